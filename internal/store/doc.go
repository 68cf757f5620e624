// Package store holds conversation state for the life of the process.
//
// # Model
//
// A Conversation is a titled, append-only sequence of Messages plus a turn
// state (Idle or Sending). The store owns every Conversation and Message
// instance: all accessors return copies, and the conversation service is the
// only component that writes.
//
// # Ordering
//
// Conversations are kept most-recently-created first; List and Search preserve
// that order. Messages within a conversation are strictly in append order and
// are never reordered or truncated.
//
// # Turn state
//
// BeginTurn/EndTurn implement the per-conversation single-flight guard: a
// second BeginTurn while a turn is in flight fails with ErrTurnInFlight. The
// state lives here rather than in any UI layer so the guarantee is enforceable
// for every frontend.
//
// There is deliberately no durable backend; conversations do not outlive the
// process.
package store
