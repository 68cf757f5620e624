// ABOUTME: Credential provider contract for agent calls
// ABOUTME: Defines the short-lived credential bundle and token source

package auth

import (
	"context"
	"errors"
	"time"
)

// ErrUnauthenticated is returned when no valid session exists. The caller
// must not attempt a transport call after seeing it.
var ErrUnauthenticated = errors.New("unauthenticated")

// Credentials is a short-lived AWS credential bundle scoped to the signed-in
// user.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Expires         time.Time
}

// Provider supplies credentials for agent calls. It is consulted immediately
// before every transport invocation; implementations may cache until expiry
// but must never hand out expired credentials.
type Provider interface {
	Credentials(ctx context.Context) (Credentials, error)
}

// TokenSource supplies the identity token obtained by the external sign-in
// flow. Sign-in itself is out of scope here.
type TokenSource interface {
	IDToken(ctx context.Context) (string, error)
}

// StaticTokenSource returns a TokenSource that always yields tok.
func StaticTokenSource(tok string) TokenSource {
	return staticTokenSource(tok)
}

type staticTokenSource string

func (s staticTokenSource) IDToken(ctx context.Context) (string, error) {
	return string(s), nil
}
