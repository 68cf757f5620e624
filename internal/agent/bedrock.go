// ABOUTME: Bedrock AgentCore implementation of the Invoker transport
// ABOUTME: Sends JSON prompt payloads via InvokeAgentRuntime with per-call credentials

package agent

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentcore"

	"github.com/2389/senpai-gateway/internal/auth"
)

// DefaultQualifier is the agent runtime endpoint qualifier.
const DefaultQualifier = "DEFAULT"

// agentRuntimeAPI is the slice of the Bedrock AgentCore API the invoker uses.
type agentRuntimeAPI interface {
	InvokeAgentRuntime(ctx context.Context, params *bedrockagentcore.InvokeAgentRuntimeInput, optFns ...func(*bedrockagentcore.Options)) (*bedrockagentcore.InvokeAgentRuntimeOutput, error)
}

// BedrockInvoker calls a Bedrock agent runtime. Credentials come from the
// auth provider on every call, so a signed-out user fails before the wire.
type BedrockInvoker struct {
	client    agentRuntimeAPI
	qualifier string
	logger    *slog.Logger
}

// NewBedrockInvoker creates an invoker for the given region. An empty
// qualifier falls back to DefaultQualifier.
func NewBedrockInvoker(region, qualifier string, creds auth.Provider, logger *slog.Logger) *BedrockInvoker {
	if qualifier == "" {
		qualifier = DefaultQualifier
	}
	if logger == nil {
		logger = slog.Default()
	}
	client := bedrockagentcore.New(bedrockagentcore.Options{
		Region:      region,
		Credentials: credentialsAdapter{provider: creds},
	})
	return &BedrockInvoker{
		client:    client,
		qualifier: qualifier,
		logger:    logger.With("component", "bedrock"),
	}
}

// promptPayload is the request body the agent runtime expects.
type promptPayload struct {
	Prompt string `json:"prompt"`
}

// Invoke performs one call and returns the raw response text.
func (b *BedrockInvoker) Invoke(ctx context.Context, req *InvokeRequest) (string, error) {
	payload, err := json.Marshal(promptPayload{Prompt: req.Prompt})
	if err != nil {
		return "", &TransportError{Op: "encode", Err: err}
	}

	out, err := b.client.InvokeAgentRuntime(ctx, &bedrockagentcore.InvokeAgentRuntimeInput{
		AgentRuntimeArn:  aws.String(req.Endpoint),
		RuntimeSessionId: aws.String(req.SessionToken),
		Qualifier:        aws.String(b.qualifier),
		ContentType:      aws.String("application/json"),
		Payload:          payload,
	})
	if err != nil {
		return "", &TransportError{Op: "invoke", Err: err}
	}
	if out.Response == nil {
		return "", &TransportError{Op: "read", Err: ErrEmptyResponse}
	}
	defer out.Response.Close()

	body, err := io.ReadAll(out.Response)
	if err != nil {
		return "", &TransportError{Op: "read", Err: err}
	}
	if len(body) == 0 {
		return "", &TransportError{Op: "read", Err: ErrEmptyResponse}
	}

	b.logger.Debug("agent responded", "endpoint", req.Endpoint, "bytes", len(body))
	return string(body), nil
}

// credentialsAdapter bridges the auth.Provider contract to the AWS SDK.
type credentialsAdapter struct {
	provider auth.Provider
}

func (a credentialsAdapter) Retrieve(ctx context.Context) (aws.Credentials, error) {
	c, err := a.provider.Credentials(ctx)
	if err != nil {
		return aws.Credentials{}, err
	}
	return aws.Credentials{
		AccessKeyID:     c.AccessKeyID,
		SecretAccessKey: c.SecretAccessKey,
		SessionToken:    c.SessionToken,
		CanExpire:       !c.Expires.IsZero(),
		Expires:         c.Expires,
		Source:          "cognito-identity-pool",
	}, nil
}
