// Package reply normalizes raw agent transport output.
//
// Two consumers exist: display text (CleanDisplayText, an idempotent cleanup
// of escape artifacts and wrapping quotes) and structured quiz payloads
// (DecodeQuiz, which tolerates the upstream's inconsistent single- vs
// double-JSON encoding by degrading to an empty payload instead of failing
// the turn).
package reply
