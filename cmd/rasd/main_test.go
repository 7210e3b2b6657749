package main

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentstack/ras-go/pkg/auth"
	"github.com/agentstack/ras-go/pkg/identity/local"
	"github.com/agentstack/ras-go/pkg/session"
)

func TestWhoamiHandlerReturnsTheCallingUser(t *testing.T) {
	t.Parallel()

	user := auth.AuthenticatedUser{UserID: "u1", Permissions: []string{"read"}}
	got, err := whoamiHandler(context.Background(), user, struct{}{})
	require.NoError(t, err)
	require.Equal(t, user, got)
}

func TestBeginSessionHandlerMintsTokenForRegisteredLocalUser(t *testing.T) {
	t.Parallel()

	provider := local.New()
	require.NoError(t, provider.AddUser("alice", "correct horse battery staple", "alice@example.com", "Alice"))

	sessions := session.New(session.Config{Secret: []byte("test-secret-at-least-this-long")}, nil)
	sessions.RegisterProvider(provider)

	handler := beginSessionHandler(sessions)
	resp, err := handler(context.Background(), beginSessionRequest{
		Provider: "local",
		Username: "alice",
		Password: "correct horse battery staple",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Token)

	authenticated, err := sessions.Authenticate(context.Background(), resp.Token)
	require.NoError(t, err)
	require.Equal(t, "alice", authenticated.UserID)
}

func TestBeginSessionHandlerRejectsWrongPassword(t *testing.T) {
	t.Parallel()

	provider := local.New()
	require.NoError(t, provider.AddUser("bob", "hunter2", "bob@example.com", "Bob"))

	sessions := session.New(session.Config{Secret: []byte("test-secret-at-least-this-long")}, nil)
	sessions.RegisterProvider(provider)

	_, err := beginSessionHandler(sessions)(context.Background(), beginSessionRequest{
		Provider: "local",
		Username: "bob",
		Password: "wrong",
	})
	require.Error(t, err)
}

func TestBeginSessionHandlerUnknownProviderReturnsError(t *testing.T) {
	t.Parallel()

	sessions := session.New(session.Config{Secret: []byte("test-secret-at-least-this-long")}, nil)

	_, err := beginSessionHandler(sessions)(context.Background(), beginSessionRequest{Provider: "does-not-exist"})
	require.Error(t, err)
}

func TestBeginSessionPayloadMarshalsUsernameAndPassword(t *testing.T) {
	t.Parallel()

	payload, err := json.Marshal(struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}{"carol", "swordfish"})
	require.NoError(t, err)
	require.JSONEq(t, `{"username":"carol","password":"swordfish"}`, string(payload))
}
