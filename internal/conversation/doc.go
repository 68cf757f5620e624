// Package conversation orchestrates turns between the user and the remote
// mentors.
//
// # Turn state machine
//
// Each conversation moves through Idle -> Sending -> (Succeeded | Failed) ->
// Idle on every submission. The Sending state is held in the store, so a
// second submission for the same conversation is rejected (ErrConversationBusy)
// no matter which frontend issued it. Different conversations may be mid-turn
// simultaneously; the guard is per conversation, not global.
//
// # Ordering
//
// The user message is appended to the store before the outbound call is
// issued, so transcript order is always user-then-agent even when the
// transport is slow. Exactly one agent message lands per accepted submission:
// the normalized reply on success, the mentor's fallback wording on any
// credential or transport failure. Transport error detail never reaches the
// transcript.
//
// # Mentors
//
// A Mentor binds a name to an endpoint identity, an optional context label,
// and optional fallback wording. The context-tag policy is pure string
// formatting: "Label: value. Message: text". Quiz generation is a normal turn
// against the learning mentor whose raw reply is additionally decoded as a
// QuizPayload; decode failures degrade to an empty payload rather than
// failing the turn.
//
// # Events
//
// The Broadcaster fans appended messages and renames out to subscribed
// presentation clients. Delivery is best-effort; slow subscribers lose events
// rather than blocking a turn.
package conversation
