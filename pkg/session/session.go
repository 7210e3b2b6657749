// Package session registers identity providers, mints and validates
// session JWTs, and resolves permissions into an AuthenticatedUser —
// the bridge between pkg/identity and pkg/auth.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/agentstack/ras-go/pkg/auth"
	"github.com/agentstack/ras-go/pkg/identity"
)

// DefaultTTL is the session JWT lifetime used when Config.TTL is zero.
const DefaultTTL = 24 * time.Hour

// PermissionsProvider resolves a subject's current permission set.
// The JWT itself never carries permissions, so they can evolve without
// reissuing tokens.
type PermissionsProvider interface {
	Permissions(ctx context.Context, subject, providerID string) ([]string, error)
}

// claims is the session JWT's claim set: subject, provider id,
// issued-at and expires-at. No permissions, no arbitrary metadata.
type claims struct {
	jwt.RegisteredClaims
	ProviderID string `json:"provider_id"`
}

// Config configures a Service.
type Config struct {
	Secret []byte
	TTL    time.Duration
}

// Service is the Session Service (§4.E): registers providers, issues
// JWTs on successful verification, and validates them back into an
// AuthenticatedUser.
type Service struct {
	secret      []byte
	ttl         time.Duration
	providers   map[string]identity.Provider
	permissions PermissionsProvider
}

// New constructs a Service. permissions may be nil, in which case
// every authenticated user resolves to no permissions beyond
// "authenticated".
func New(cfg Config, permissions PermissionsProvider) *Service {
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return &Service{
		secret:      cfg.Secret,
		ttl:         ttl,
		providers:   make(map[string]identity.Provider),
		permissions: permissions,
	}
}

// RegisterProvider adds an identity.Provider keyed by its ProviderID.
func (s *Service) RegisterProvider(p identity.Provider) {
	s.providers[p.ProviderID()] = p
}

// BeginSession verifies payload against providerID's registered
// identity.Provider and, on success, mints a session JWT.
func (s *Service) BeginSession(ctx context.Context, providerID string, payload json.RawMessage) (string, error) {
	provider, ok := s.providers[providerID]
	if !ok {
		return "", fmt.Errorf("unknown identity provider: %s", providerID)
	}

	ident, err := provider.Verify(ctx, payload)
	if err != nil {
		return "", err
	}

	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ident.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		ProviderID: ident.ProviderID,
	})

	return tok.SignedString(s.secret)
}

// Validate parses and verifies a session JWT, then resolves the
// subject's permissions into an AuthenticatedUser.
func (s *Service) Validate(ctx context.Context, tokenString string) (auth.AuthenticatedUser, error) {
	var c claims
	tok, err := jwt.ParseWithClaims(tokenString, &c, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		if isExpired(err) {
			return auth.AuthenticatedUser{}, auth.NewTokenExpiredError()
		}
		return auth.AuthenticatedUser{}, auth.NewInternalAuthError(err)
	}
	if !tok.Valid {
		return auth.AuthenticatedUser{}, auth.NewInternalAuthError(fmt.Errorf("invalid token"))
	}

	var perms []string
	if s.permissions != nil {
		perms, err = s.permissions.Permissions(ctx, c.Subject, c.ProviderID)
		if err != nil {
			return auth.AuthenticatedUser{}, auth.NewInternalAuthError(err)
		}
	}

	return auth.AuthenticatedUser{
		UserID:      c.Subject,
		Permissions: perms,
		Metadata:    map[string]any{"provider_id": c.ProviderID},
	}, nil
}

// Authenticate implements auth.AuthProvider by delegating to Validate,
// so a Service can be handed directly to a jsonrpc/rest dispatcher or
// the bidirectional engine as their AuthProvider.
func (s *Service) Authenticate(ctx context.Context, credentialToken string) (auth.AuthenticatedUser, error) {
	return s.Validate(ctx, credentialToken)
}

func isExpired(err error) bool {
	return errors.Is(err, jwt.ErrTokenExpired)
}
