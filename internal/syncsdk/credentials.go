package syncsdk

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CredentialProvider supplies the bearer credential that authenticates
// a transport. The controller reads it once per connect attempt; a
// missing credential is a hard stop, not a retryable error.
type CredentialProvider interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed credential.
type StaticToken string

func (t StaticToken) Token(_ context.Context) (string, error) {
	if t == "" {
		return "", ErrNoCredential
	}
	return string(t), nil
}

// TokenFunc adapts a function to a CredentialProvider.
type TokenFunc func(ctx context.Context) (string, error)

func (f TokenFunc) Token(ctx context.Context) (string, error) {
	return f(ctx)
}

// EnvToken reads the credential from an environment variable on every
// connect attempt, so rotated tokens are picked up without a restart.
type EnvToken string

func (e EnvToken) Token(_ context.Context) (string, error) {
	tok := os.Getenv(string(e))
	if tok == "" {
		return "", fmt.Errorf("%w: env %s unset", ErrNoCredential, string(e))
	}
	return tok, nil
}

// AuthClaims are the registered JWT claims DocBox access tokens carry.
type AuthClaims struct {
	jwt.RegisteredClaims
}

// ParseToken decodes a bearer token without verifying its signature
// (the client has no key material) and rejects expired tokens so a
// doomed connect attempt fails before a transport is dialed.
func ParseToken(tokenStr string) (*AuthClaims, error) {
	claims := &AuthClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
		return nil, fmt.Errorf("token expired at %s", claims.ExpiresAt.Format(time.RFC3339))
	}

	return claims, nil
}

// ValidatingProvider wraps another provider and rejects tokens that are
// not well-formed unexpired JWTs.
type ValidatingProvider struct {
	Source CredentialProvider
}

func (p *ValidatingProvider) Token(ctx context.Context) (string, error) {
	tok, err := p.Source.Token(ctx)
	if err != nil {
		return "", err
	}
	if _, err := ParseToken(tok); err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoCredential, err)
	}
	return tok, nil
}
