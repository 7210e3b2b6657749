package bidiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/coder/websocket"

	"github.com/agentstack/ras-go/pkg/bidi"
)

// transport is the client's abstraction over the underlying wire
// connection (§4.I: "the interface is shaped so a browser/WASM
// transport could be added without changing callers"). wsTransport is
// the one concrete implementation this module ships.
type transport interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Send(ctx context.Context, msg bidi.Message) error
	Receive(ctx context.Context) (bidi.Message, error)
	IsConnected() bool
}

// wsTransport is the native Go WebSocket transport, built on
// coder/websocket the same way the bidirectional engine's server side
// is (pkg/bidi/connection.go).
type wsTransport struct {
	cfg  Config
	conn *websocket.Conn
}

func newWSTransport(cfg Config) *wsTransport {
	return &wsTransport{cfg: cfg}
}

func (t *wsTransport) Connect(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, t.cfg.ConnectionTimeout)
	defer cancel()

	header := http.Header{}
	for k, v := range t.cfg.ConnectionHeaders() {
		header.Set(k, v)
	}

	conn, _, err := websocket.Dial(ctx, t.cfg.ConnectionURL(), &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		return fmt.Errorf("bidiclient: connect: %w", err)
	}
	t.conn = conn
	return nil
}

func (t *wsTransport) Disconnect(_ context.Context) error {
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close(websocket.StatusNormalClosure, "")
	t.conn = nil
	return err
}

func (t *wsTransport) Send(ctx context.Context, msg bidi.Message) error {
	if t.conn == nil {
		return ErrDisconnected
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return t.conn.Write(ctx, websocket.MessageText, data)
}

func (t *wsTransport) Receive(ctx context.Context) (bidi.Message, error) {
	if t.conn == nil {
		return bidi.Message{}, ErrDisconnected
	}
	_, data, err := t.conn.Read(ctx)
	if err != nil {
		return bidi.Message{}, err
	}
	var msg bidi.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return bidi.Message{}, err
	}
	return msg, nil
}

func (t *wsTransport) IsConnected() bool {
	return t.conn != nil
}
