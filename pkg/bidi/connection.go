package bidi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agentstack/ras-go/pkg/jsonrpc"
)

// connection drives one upgraded socket's lifetime: a reader goroutine
// forwards inbound frames onto a channel, a writer goroutine drains
// the mailbox, and this type's run loop multiplexes the two until
// either side ends the connection.
type connection struct {
	id         uuid.UUID
	conn       *websocket.Conn
	engine     *Engine
	logger     *zap.Logger
	dispatcher *jsonrpc.Dispatcher
}

func (c *connection) run(ctx context.Context) {
	inbound := make(chan []byte)
	readErr := make(chan error, 1)
	go c.readLoop(ctx, inbound, readErr)

	writerDone := make(chan struct{})
	go c.writeLoop(ctx, writerDone)

	c.engine.registry.SetState(c.id, stateOpen)
	c.engine.registry.SendToConnection(c.id, newConnectionEstablishedMessage(c.id))

	reason := ""
loop:
	for {
		select {
		case <-ctx.Done():
			reason = "context canceled"
			break loop
		case err := <-readErr:
			if err != nil {
				reason = err.Error()
			}
			break loop
		case data := <-inbound:
			c.handleFrame(ctx, data)
		}
	}

	c.engine.registry.SetState(c.id, stateClosing)
	c.engine.registry.SendToConnection(c.id, newConnectionClosedMessage(c.id, reason))
	c.engine.registry.Remove(c.id)
	<-writerDone
	_ = c.conn.Close(websocket.StatusNormalClosure, reason)
}

func (c *connection) readLoop(ctx context.Context, inbound chan<- []byte, errCh chan<- error) {
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			errCh <- err
			return
		}
		inbound <- data
	}
}

func (c *connection) writeLoop(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	info, ok := c.engine.registry.Get(c.id)
	if !ok {
		return
	}
	for {
		msg, ok := info.mailbox.Receive()
		if !ok {
			return
		}
		data, err := json.Marshal(msg)
		if err != nil {
			continue
		}
		if err := c.conn.Write(ctx, websocket.MessageText, data); err != nil {
			return
		}
	}
}

func (c *connection) handleFrame(ctx context.Context, data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		c.closeWithProtocolError(ctx, "malformed message")
		return
	}

	switch msg.Type {
	case MessageTypeRequest:
		c.handleRequest(ctx, msg)
	case MessageTypeResponse:
		c.handleResponse(msg)
	case MessageTypeSubscribe:
		for _, topic := range msg.Topics {
			c.engine.registry.Subscribe(c.id, topic)
		}
	case MessageTypeUnsubscribe:
		for _, topic := range msg.Topics {
			c.engine.registry.Unsubscribe(c.id, topic)
		}
	case MessageTypePing:
		c.engine.registry.SendToConnection(c.id, newPongMessage())
	case MessageTypePong:
		// no-op: liveness only.
	default:
		// Bare jsonrpc.Request with no "type" discriminator.
		if msg.Method != "" {
			c.handleRequest(ctx, msg)
			return
		}
		c.closeWithProtocolError(ctx, "unrecognized message type")
	}
}

func (c *connection) handleRequest(ctx context.Context, msg Message) {
	req := msg.asRequest()

	info, ok := c.engine.registry.Get(c.id)
	if !ok {
		return
	}
	headers := http.Header{}
	if info.Token != "" {
		headers.Set("Authorization", "Bearer "+info.Token)
	}

	resp, _ := c.dispatcher.Dispatch(ctx, req, headers)
	if resp == nil {
		return
	}
	c.engine.registry.SendToConnection(c.id, newResponseMessage(resp))
}

func (c *connection) handleResponse(msg Message) {
	resp := msg.asResponse()
	var reqID uuid.UUID
	if err := json.Unmarshal(resp.ID, &reqID); err != nil {
		return
	}
	c.engine.registry.ResolvePending(c.id, reqID, resp)
}

func (c *connection) closeWithProtocolError(ctx context.Context, reason string) {
	c.logger.Warn("bidi protocol error", zap.String("connection_id", c.id.String()), zap.String("reason", reason))
	_ = c.conn.Close(websocket.StatusProtocolError, reason)
}
