// ABOUTME: Cognito identity-pool credential provider
// ABOUTME: Exchanges an externally obtained ID token for short-lived AWS credentials

package auth

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentity"
	"github.com/golang-jwt/jwt/v5"
)

// expirySlack is how close to expiry cached credentials may get before a
// refresh is forced.
const expirySlack = time.Minute

// identityAPI is the slice of the Cognito Identity API this provider uses.
type identityAPI interface {
	GetId(ctx context.Context, params *cognitoidentity.GetIdInput, optFns ...func(*cognitoidentity.Options)) (*cognitoidentity.GetIdOutput, error)
	GetCredentialsForIdentity(ctx context.Context, params *cognitoidentity.GetCredentialsForIdentityInput, optFns ...func(*cognitoidentity.Options)) (*cognitoidentity.GetCredentialsForIdentityOutput, error)
}

// CognitoProvider exchanges a user-pool ID token for identity-pool
// credentials. The provider is handed to the orchestrator as an explicit
// dependency; there is no process-wide credential singleton.
type CognitoProvider struct {
	client         identityAPI
	tokens         TokenSource
	identityPoolID string
	loginKey       string
	logger         *slog.Logger

	mu     sync.Mutex
	cached Credentials
}

// NewCognitoProvider creates a provider for the given region and pools.
// tokens yields the ID token produced by the external sign-in flow.
func NewCognitoProvider(region, userPoolID, identityPoolID string, tokens TokenSource, logger *slog.Logger) *CognitoProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &CognitoProvider{
		client:         cognitoidentity.New(cognitoidentity.Options{Region: region}),
		tokens:         tokens,
		identityPoolID: identityPoolID,
		loginKey:       fmt.Sprintf("cognito-idp.%s.amazonaws.com/%s", region, userPoolID),
		logger:         logger.With("component", "auth"),
	}
}

// Credentials returns a valid credential bundle, refreshing from Cognito when
// the cached one is absent or near expiry. Fails with ErrUnauthenticated when
// no usable identity token exists.
func (p *CognitoProvider) Credentials(ctx context.Context) (Credentials, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached.AccessKeyID != "" && time.Until(p.cached.Expires) > expirySlack {
		return p.cached, nil
	}

	tok, err := p.tokens.IDToken(ctx)
	if err != nil {
		return Credentials{}, fmt.Errorf("%w: reading identity token: %v", ErrUnauthenticated, err)
	}
	if tok == "" {
		return Credentials{}, fmt.Errorf("%w: no identity token", ErrUnauthenticated)
	}
	if err := checkTokenExpiry(tok); err != nil {
		return Credentials{}, err
	}

	logins := map[string]string{p.loginKey: tok}

	id, err := p.client.GetId(ctx, &cognitoidentity.GetIdInput{
		IdentityPoolId: aws.String(p.identityPoolID),
		Logins:         logins,
	})
	if err != nil {
		return Credentials{}, fmt.Errorf("%w: resolving identity: %v", ErrUnauthenticated, err)
	}

	out, err := p.client.GetCredentialsForIdentity(ctx, &cognitoidentity.GetCredentialsForIdentityInput{
		IdentityId: id.IdentityId,
		Logins:     logins,
	})
	if err != nil {
		return Credentials{}, fmt.Errorf("%w: fetching credentials: %v", ErrUnauthenticated, err)
	}
	if out.Credentials == nil {
		return Credentials{}, fmt.Errorf("%w: empty credential response", ErrUnauthenticated)
	}

	p.cached = Credentials{
		AccessKeyID:     aws.ToString(out.Credentials.AccessKeyId),
		SecretAccessKey: aws.ToString(out.Credentials.SecretKey),
		SessionToken:    aws.ToString(out.Credentials.SessionToken),
		Expires:         aws.ToTime(out.Credentials.Expiration),
	}
	p.logger.Debug("credentials refreshed", "expires", p.cached.Expires)

	return p.cached, nil
}

// checkTokenExpiry rejects tokens that have already expired. Signature
// verification is Cognito's job; this only avoids spending a call on a token
// the pool will bounce.
func checkTokenExpiry(tok string) error {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, claims); err != nil {
		return fmt.Errorf("%w: malformed token: %v", ErrUnauthenticated, err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		// No exp claim; let Cognito decide.
		return nil
	}
	if time.Now().After(exp.Time) {
		return fmt.Errorf("%w: token expired", ErrUnauthenticated)
	}
	return nil
}
