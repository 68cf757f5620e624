// Package agent wraps the remote agent transport.
//
// The Invoker contract is deliberately small: one session identity, one
// endpoint identity, one prompt in; raw response text or a *TransportError
// out. Exactly one attempt per call; retry policy belongs to whoever submits
// the turn, and today nobody retries. BedrockInvoker is the production
// implementation over InvokeAgentRuntime.
package agent
