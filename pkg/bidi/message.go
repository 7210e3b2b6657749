package bidi

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/agentstack/ras-go/pkg/jsonrpc"
)

// MessageType is the discriminator of the wire message sum type (§6).
type MessageType string

const (
	MessageTypeRequest               MessageType = "Request"
	MessageTypeResponse              MessageType = "Response"
	MessageTypeSubscribe             MessageType = "Subscribe"
	MessageTypeUnsubscribe           MessageType = "Unsubscribe"
	MessageTypePing                  MessageType = "Ping"
	MessageTypePong                  MessageType = "Pong"
	MessageTypeConnectionEstablished MessageType = "ConnectionEstablished"
	MessageTypeConnectionClosed      MessageType = "ConnectionClosed"
	MessageTypeServerNotification    MessageType = "ServerNotification"
)

// Message is every frame exchanged over the bidirectional connection,
// tagged by Type. Fields irrelevant to a given Type are omitted from
// the wire via omitempty rather than split across distinct Go types,
// since the frame is decoded by sniffing Type first. ConnectionID is
// the exception: a fixed-size uuid.UUID is never empty to omitempty,
// so it is always written, as the zero UUID on frames that carry none.
type Message struct {
	Type MessageType `json:"type"`

	// Request / Response (§4.F shape, reused verbatim).
	JSONRPC string             `json:"jsonrpc,omitempty"`
	ID      json.RawMessage    `json:"id,omitempty"`
	Method  string             `json:"method,omitempty"`
	Params  json.RawMessage    `json:"params,omitempty"`
	Result  json.RawMessage    `json:"result,omitempty"`
	Error   *jsonrpc.WireError `json:"error,omitempty"`

	// Subscribe / Unsubscribe.
	Topics []string `json:"topics,omitempty"`

	// ConnectionEstablished / ConnectionClosed.
	ConnectionID uuid.UUID `json:"connection_id,omitempty"`
	Reason       string    `json:"reason,omitempty"`

	// ServerNotification.
	Metadata any `json:"metadata,omitempty"`
}

func newRequestMessage(req jsonrpc.Request) Message {
	return Message{Type: MessageTypeRequest, JSONRPC: req.JSONRPC, ID: req.ID, Method: req.Method, Params: req.Params}
}

func newResponseMessage(resp *jsonrpc.Response) Message {
	return Message{Type: MessageTypeResponse, JSONRPC: resp.JSONRPC, ID: resp.ID, Result: resp.Result, Error: resp.Error}
}

func newConnectionEstablishedMessage(id uuid.UUID) Message {
	return Message{Type: MessageTypeConnectionEstablished, ConnectionID: id}
}

func newConnectionClosedMessage(id uuid.UUID, reason string) Message {
	return Message{Type: MessageTypeConnectionClosed, ConnectionID: id, Reason: reason}
}

func newPongMessage() Message { return Message{Type: MessageTypePong} }

// asRequest extracts the embedded jsonrpc.Request from a Request
// message.
func (m Message) asRequest() jsonrpc.Request {
	return jsonrpc.Request{JSONRPC: m.JSONRPC, ID: m.ID, Method: m.Method, Params: m.Params}
}

// asResponse extracts the embedded jsonrpc.Response from a Response
// message.
func (m Message) asResponse() *jsonrpc.Response {
	return &jsonrpc.Response{JSONRPC: m.JSONRPC, ID: m.ID, Result: m.Result, Error: m.Error}
}
