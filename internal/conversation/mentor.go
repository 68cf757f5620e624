// ABOUTME: Mentor domain definitions and prompt formatting policy
// ABOUTME: Each mentor maps to one agent endpoint with optional context labeling

package conversation

import "fmt"

// Well-known mentor names. Config may define others; these are the ones the
// default configuration ships.
const (
	MentorGeneral       = "general"
	MentorLearning      = "learning"
	MentorCommunication = "communication"
	MentorCounseling    = "counseling"
)

// DefaultFallbackText is the user-safe reply substituted when a turn fails
// and the mentor defines no wording of its own.
const DefaultFallbackText = "Sorry, I'm having trouble connecting right now. Please try again."

// Mentor describes one agent endpoint the orchestrator can talk to.
type Mentor struct {
	// Name is the mentor's registry key ("general", "counseling", ...).
	Name string

	// Endpoint is the opaque endpoint identity passed to the transport.
	Endpoint string

	// ContextLabel names the context-tag clause for this mentor ("Role",
	// "Emotion"). Empty disables prefixing.
	ContextLabel string

	// FallbackText overrides DefaultFallbackText when non-empty.
	FallbackText string
}

// Prompt applies the context-tag prefixing policy. With a label and a tag the
// outgoing prompt becomes "Label: tag. Message: text"; otherwise the text
// goes out verbatim.
func (m Mentor) Prompt(tag, text string) string {
	if m.ContextLabel == "" || tag == "" {
		return text
	}
	return fmt.Sprintf("%s: %s. Message: %s", m.ContextLabel, tag, text)
}

// Fallback returns the user-safe reply for a failed turn.
func (m Mentor) Fallback() string {
	if m.FallbackText != "" {
		return m.FallbackText
	}
	return DefaultFallbackText
}
