package bidiclient

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agentstack/ras-go/pkg/bidi"
)

// Client is the bidirectional WebSocket client: build-time validated
// configuration, a transport-abstracted connection, automatic
// reconnect, and a pending-request registry backing Call.
type Client struct {
	cfg       Config
	transport transport
	logger    *zap.Logger

	mu            sync.Mutex
	connected     bool
	attempt       uint32
	notifications chan bidi.Message

	pending *pendingRegistry

	closed    chan struct{}
	closeOnce sync.Once
}

// New validates cfg and returns a Client ready to Connect.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:           cfg,
		transport:     newWSTransport(cfg),
		logger:        logger,
		notifications: make(chan bidi.Message, cfg.MessageBufferSize),
		pending:       newPendingRegistry(cfg.MaxPendingRequests),
		closed:        make(chan struct{}),
	}, nil
}

// Connect dials the transport and starts the background read loop.
// If the configured reconnect policy is enabled, a dropped connection
// is retried transparently; Connect itself only waits for the first
// attempt.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.transport.Connect(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	c.connected = true
	c.attempt = 0
	c.mu.Unlock()

	go c.readLoop()
	return nil
}

// Disconnect closes the transport and stops the read loop for good;
// no further reconnect attempts are made.
func (c *Client) Disconnect(ctx context.Context) error {
	c.closeOnce.Do(func() { close(c.closed) })
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	c.pending.failAll()
	return c.transport.Disconnect(ctx)
}

// IsConnected reports whether the transport currently believes it has
// a live connection.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Send writes msg directly to the transport, bypassing the
// pending-request registry. Most callers want Call or Notify instead.
func (c *Client) Send(ctx context.Context, msg bidi.Message) error {
	return c.transport.Send(ctx, msg)
}

// Receive returns the next server-pushed message that isn't a
// Call/Notify response and isn't a ping/pong (those are handled
// internally). It reports false once the client is disconnected and
// no further messages will arrive.
func (c *Client) Receive(ctx context.Context) (bidi.Message, bool) {
	select {
	case msg, ok := <-c.notifications:
		return msg, ok
	case <-ctx.Done():
		return bidi.Message{}, false
	case <-c.closed:
		return bidi.Message{}, false
	}
}

// Call sends a Request message and blocks until the matching Response
// arrives, the configured RequestTimeout elapses, or ctx is canceled.
func (c *Client) Call(ctx context.Context, method string, params any) (*bidi.Message, error) {
	requestID := uuid.New()
	rawID := []byte(`"` + requestID.String() + `"`)

	rawParams, err := marshalParams(params)
	if err != nil {
		return nil, err
	}

	waiter, err := c.pending.register(requestID)
	if err != nil {
		return nil, err
	}

	msg := bidi.Message{Type: bidi.MessageTypeRequest, JSONRPC: "2.0", ID: rawID, Method: method, Params: rawParams}
	if err := c.transport.Send(ctx, msg); err != nil {
		c.pending.cancel(requestID)
		return nil, err
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	select {
	case result := <-waiter:
		if result.err != nil {
			return nil, result.err
		}
		return &result.msg, nil
	case <-timeoutCtx.Done():
		c.pending.cancel(requestID)
		return nil, timeoutCtx.Err()
	}
}

// Notify sends a one-way Request carrying no id, matching jsonrpc's
// notification convention: no response is ever expected.
func (c *Client) Notify(ctx context.Context, method string, params any) error {
	rawParams, err := marshalParams(params)
	if err != nil {
		return err
	}
	return c.transport.Send(ctx, bidi.Message{Type: bidi.MessageTypeRequest, JSONRPC: "2.0", Method: method, Params: rawParams})
}

// Subscribe requests delivery of ServerNotification messages for topics.
func (c *Client) Subscribe(ctx context.Context, topics ...string) error {
	return c.transport.Send(ctx, bidi.Message{Type: bidi.MessageTypeSubscribe, Topics: topics})
}

// Unsubscribe is Subscribe's inverse.
func (c *Client) Unsubscribe(ctx context.Context, topics ...string) error {
	return c.transport.Send(ctx, bidi.Message{Type: bidi.MessageTypeUnsubscribe, Topics: topics})
}

func marshalParams(params any) (json.RawMessage, error) {
	if params == nil {
		return nil, nil
	}
	return json.Marshal(params)
}

func (c *Client) readLoop() {
	ctx := context.Background()
	for {
		msg, err := c.transport.Receive(ctx)
		if err != nil {
			c.handleDisconnect()
			if !c.reconnect() {
				return
			}
			continue
		}
		c.handleMessage(ctx, msg)
	}
}

func (c *Client) handleMessage(ctx context.Context, msg bidi.Message) {
	switch msg.Type {
	case bidi.MessageTypePing:
		_ = c.transport.Send(ctx, bidi.Message{Type: bidi.MessageTypePong})
	case bidi.MessageTypePong:
		// liveness only, nothing to surface.
	case bidi.MessageTypeResponse:
		var requestID uuid.UUID
		if err := json.Unmarshal(msg.ID, &requestID); err != nil {
			return
		}
		if c.pending.resolve(requestID, msg) {
			return
		}
		c.deliver(msg)
	default:
		c.deliver(msg)
	}
}

func (c *Client) deliver(msg bidi.Message) {
	select {
	case c.notifications <- msg:
	default:
		c.logger.Warn("bidiclient notification buffer full, dropping message", zap.String("type", string(msg.Type)))
	}
}

func (c *Client) handleDisconnect() {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	c.pending.failAll()
}

// reconnect retries the transport per the configured ReconnectConfig,
// returning false once the client has been closed or attempts are
// exhausted.
func (c *Client) reconnect() bool {
	select {
	case <-c.closed:
		return false
	default:
	}

	for {
		c.mu.Lock()
		attempt := c.attempt
		c.attempt++
		c.mu.Unlock()

		if !c.cfg.Reconnect.ShouldAttempt(attempt) {
			return false
		}

		delay := c.cfg.Reconnect.NextDelay(attempt)
		select {
		case <-c.closed:
			return false
		case <-time.After(delay):
		}

		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ConnectionTimeout)
		err := c.transport.Connect(ctx)
		cancel()
		if err == nil {
			c.mu.Lock()
			c.connected = true
			c.attempt = 0
			c.mu.Unlock()
			return true
		}
		c.logger.Warn("bidiclient reconnect attempt failed", zap.Uint32("attempt", attempt), zap.Error(err))
	}
}
