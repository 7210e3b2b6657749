package bidiclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agentstack/ras-go/pkg/bidi"
	"github.com/agentstack/ras-go/pkg/jsonrpc"
)

func greetDispatcher(t *testing.T) *jsonrpc.Dispatcher {
	t.Helper()
	type greetReq struct {
		Name string `json:"name"`
	}
	type greetResp struct {
		Greeting string `json:"greeting"`
	}
	return jsonrpc.NewBuilder(nil, zap.NewNop()).
		Register(jsonrpc.RPC("greet", func(_ context.Context, req greetReq) (greetResp, error) {
			return greetResp{Greeting: "hello " + req.Name}, nil
		})).
		Build()
}

func newTestServer(t *testing.T) (*bidi.Engine, *httptest.Server) {
	t.Helper()
	engine := bidi.NewEngine(greetDispatcher(t), nil, bidi.UpgradeOptional, zap.NewNop())
	srv := httptest.NewServer(http.HandlerFunc(engine.ServeHTTP))
	t.Cleanup(srv.Close)
	return engine, srv
}

func testWSURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

func newConnectedClient(t *testing.T, httpURL string) *Client {
	t.Helper()
	cfg := NewConfig(testWSURL(httpURL))
	cfg.Reconnect.Enabled = false
	cfg.RequestTimeout = 5 * time.Second

	client, err := New(cfg, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, client.Connect(context.Background()))
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })
	return client
}

func TestClientCallRoundTripsThroughLiveServer(t *testing.T) {
	t.Parallel()

	_, srv := newTestServer(t)
	client := newConnectedClient(t, srv.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := client.Call(ctx, "greet", map[string]string{"name": "world"})
	require.NoError(t, err)
	require.Nil(t, resp.Error)
	require.JSONEq(t, `{"greeting":"hello world"}`, string(resp.Result))
}

func TestClientCallUnknownMethodReturnsMethodNotFoundError(t *testing.T) {
	t.Parallel()

	_, srv := newTestServer(t)
	client := newConnectedClient(t, srv.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := client.Call(ctx, "does.not.exist", nil)
	require.NoError(t, err)
	require.NotNil(t, resp.Error)
	require.Equal(t, -32601, resp.Error.Code)
}

func TestClientSubscribeThenBroadcastIsDeliveredViaReceive(t *testing.T) {
	t.Parallel()

	engine, srv := newTestServer(t)
	client := newConnectedClient(t, srv.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, client.Subscribe(ctx, "room-1"))

	require.Eventually(t, func() bool {
		return len(engine.Registry().Topics().Members("room-1")) == 1
	}, time.Second, 10*time.Millisecond)

	sent := engine.Registry().BroadcastToTopic("room-1", bidi.Message{Type: bidi.MessageTypeServerNotification, Metadata: "hi"})
	require.Equal(t, 1, sent)

	established, ok := client.Receive(ctx)
	require.True(t, ok)
	require.Equal(t, bidi.MessageTypeConnectionEstablished, established.Type)

	msg, ok := client.Receive(ctx)
	require.True(t, ok)
	require.Equal(t, bidi.MessageTypeServerNotification, msg.Type)
}

func TestClientIsConnectedReflectsLifecycle(t *testing.T) {
	t.Parallel()

	_, srv := newTestServer(t)
	client := newConnectedClient(t, srv.URL)
	require.True(t, client.IsConnected())

	require.NoError(t, client.Disconnect(context.Background()))
	require.False(t, client.IsConnected())
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	_, err := New(NewConfig(""), zap.NewNop())
	require.Error(t, err)
}
