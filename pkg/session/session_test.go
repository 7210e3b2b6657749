package session

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstack/ras-go/pkg/auth"
	"github.com/agentstack/ras-go/pkg/identity"
)

type stubProvider struct {
	id      string
	subject string
	email   string
	err     error
}

func (s *stubProvider) ProviderID() string { return s.id }

func (s *stubProvider) Verify(context.Context, json.RawMessage) (identity.CanonicalIdentity, error) {
	if s.err != nil {
		return identity.CanonicalIdentity{}, s.err
	}
	return identity.CanonicalIdentity{ProviderID: s.id, Subject: s.subject, Email: s.email}, nil
}

type stubPermissions struct {
	perms map[string][]string
}

func (s *stubPermissions) Permissions(_ context.Context, subject, _ string) ([]string, error) {
	return s.perms[subject], nil
}

func TestBeginSessionAndValidate(t *testing.T) {
	t.Parallel()

	svc := New(Config{Secret: []byte("secret")}, &stubPermissions{
		perms: map[string][]string{"alice": {"docs:read"}},
	})
	svc.RegisterProvider(&stubProvider{id: "local", subject: "alice", email: "alice@example.com"})

	tok, err := svc.BeginSession(context.Background(), "local", json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.NotEmpty(t, tok)

	user, err := svc.Validate(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.UserID)
	assert.Equal(t, []string{"docs:read"}, user.Permissions)
	assert.Equal(t, "local", user.Metadata["provider_id"])
}

func TestBeginSessionUnknownProvider(t *testing.T) {
	t.Parallel()

	svc := New(Config{Secret: []byte("secret")}, nil)
	_, err := svc.BeginSession(context.Background(), "ghost", json.RawMessage(`{}`))
	assert.Error(t, err)
}

func TestBeginSessionVerifyFailure(t *testing.T) {
	t.Parallel()

	svc := New(Config{Secret: []byte("secret")}, nil)
	svc.RegisterProvider(&stubProvider{id: "local", err: auth.NewInvalidCredentialsError()})

	_, err := svc.BeginSession(context.Background(), "local", json.RawMessage(`{}`))
	require.Error(t, err)
	assert.True(t, auth.IsInvalidCredentials(err))
}

func TestValidateExpiredToken(t *testing.T) {
	t.Parallel()

	svc := New(Config{Secret: []byte("secret"), TTL: -time.Minute}, nil)
	svc.RegisterProvider(&stubProvider{id: "local", subject: "alice"})

	tok, err := svc.BeginSession(context.Background(), "local", json.RawMessage(`{}`))
	require.NoError(t, err)

	_, err = svc.Validate(context.Background(), tok)
	require.Error(t, err)
	assert.True(t, auth.IsTokenExpired(err))
}

func TestValidateBadSignature(t *testing.T) {
	t.Parallel()

	issuer := New(Config{Secret: []byte("secret-a")}, nil)
	issuer.RegisterProvider(&stubProvider{id: "local", subject: "alice"})
	tok, err := issuer.BeginSession(context.Background(), "local", json.RawMessage(`{}`))
	require.NoError(t, err)

	verifier := New(Config{Secret: []byte("secret-b")}, nil)
	_, err = verifier.Validate(context.Background(), tok)
	assert.Error(t, err)
}

func TestValidateNoPermissionsProviderYieldsNoPermissions(t *testing.T) {
	t.Parallel()

	svc := New(Config{Secret: []byte("secret")}, nil)
	svc.RegisterProvider(&stubProvider{id: "local", subject: "alice"})

	tok, err := svc.BeginSession(context.Background(), "local", json.RawMessage(`{}`))
	require.NoError(t, err)

	user, err := svc.Validate(context.Background(), tok)
	require.NoError(t, err)
	assert.Empty(t, user.Permissions)
}

func TestDefaultTTLAppliedWhenUnset(t *testing.T) {
	t.Parallel()

	svc := New(Config{Secret: []byte("secret")}, nil)
	assert.Equal(t, DefaultTTL, svc.ttl)
}
