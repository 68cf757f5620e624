// Package auth supplies per-call credentials for the agent transport.
//
// The sign-in flow itself (user pool authentication) happens outside this
// process; this package only turns the resulting ID token into short-lived
// AWS credentials via a Cognito identity pool, and refuses with
// ErrUnauthenticated when the token is missing or expired. The orchestrator
// checks the provider immediately before every transport call and converts
// ErrUnauthenticated into the user-safe fallback reply without attempting the
// call.
package auth
