// ABOUTME: Transport contract for one remote agent call
// ABOUTME: Defines the Invoker interface and the TransportError taxonomy

package agent

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmptyResponse is wrapped in a TransportError when the agent runtime
// returns a successful call with no body.
var ErrEmptyResponse = errors.New("empty response body")

// InvokeRequest carries everything one agent call needs.
type InvokeRequest struct {
	// Endpoint identifies the agent runtime to call. For Bedrock this is the
	// agent runtime ARN; the orchestrator treats it as opaque.
	Endpoint string

	// SessionToken correlates this turn with a runtime session. Built by the
	// session package, already padded to the transport minimum.
	SessionToken string

	// Prompt is the fully formatted prompt text, context clause included.
	Prompt string
}

// Invoker performs a single best-effort remote call. Implementations return
// raw response text or a *TransportError; they never retry.
type Invoker interface {
	Invoke(ctx context.Context, req *InvokeRequest) (string, error)
}

// TransportError wraps any failure to complete an agent call: network,
// rejected auth, malformed response. The orchestrator converts it into the
// fallback reply and never surfaces the detail to the transcript.
type TransportError struct {
	Op  string // "encode", "invoke", "read"
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("agent transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
