// Package jwtauth provides a Provider that resolves the current
// principal from a signed JWT supplied by the host application, e.g. the
// bearer token its auth platform already holds.
package jwtauth

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/strataplan/sessionguard/principal"
)

// TokenSource returns the current raw JWT, or "" when nobody is signed
// in. The host application wires this to wherever it keeps its token.
type TokenSource func(ctx context.Context) (string, error)

// sessionClaims are the claims this provider reads from the token.
type sessionClaims struct {
	Email     string `json:"email,omitempty"`
	Name      string `json:"name,omitempty"`
	UserAgent string `json:"ua,omitempty"`
	IPAddress string `json:"ip,omitempty"`
	Platform  string `json:"platform,omitempty"`
	jwt.RegisteredClaims
}

// Provider resolves principals from HS256-signed JWTs.
type Provider struct {
	secret []byte
	source TokenSource
	issuer string // optional; enforced when non-empty
}

var _ principal.Provider = (*Provider)(nil)

// Option configures a Provider.
type Option func(*Provider)

// WithIssuer requires the token's iss claim to match.
func WithIssuer(issuer string) Option {
	return func(p *Provider) {
		p.issuer = issuer
	}
}

// New creates a JWT-backed provider. The secret is the HMAC signing key
// shared with the token issuer; source supplies the current token.
func New(secret []byte, source TokenSource, opts ...Option) (*Provider, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("jwt secret is required")
	}
	if source == nil {
		return nil, fmt.Errorf("token source is required")
	}

	p := &Provider{secret: secret, source: source}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Name implements principal.Provider.
func (p *Provider) Name() string {
	return "jwt"
}

// Current implements principal.Provider. A missing, malformed, expired,
// or badly-signed token all resolve to ErrNoPrincipal: an unverifiable
// caller is a signed-out caller.
func (p *Provider) Current(ctx context.Context) (*principal.Principal, error) {
	raw, err := p.source(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read token: %w", err)
	}
	if raw == "" {
		return nil, principal.ErrNoPrincipal
	}

	parseOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if p.issuer != "" {
		parseOpts = append(parseOpts, jwt.WithIssuer(p.issuer))
	}

	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return p.secret, nil
	}, parseOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", principal.ErrNoPrincipal, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, principal.ErrNoPrincipal
	}

	return &principal.Principal{
		ID:    claims.Subject,
		Email: claims.Email,
		Name:  claims.Name,
		Device: principal.DeviceMetadata{
			UserAgent: claims.UserAgent,
			IPAddress: claims.IPAddress,
			Platform:  claims.Platform,
		},
	}, nil
}
