package bidi

import (
	"context"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agentstack/ras-go/pkg/auth"
	"github.com/agentstack/ras-go/pkg/jsonrpc"
	"github.com/agentstack/ras-go/pkg/wireerr"
)

// UpgradePolicy governs whether a bearer credential is required to
// complete the WebSocket handshake (§4.H.6).
type UpgradePolicy int

const (
	UpgradeOptional UpgradePolicy = iota
	UpgradeRequired
)

// Engine is the bidirectional WebSocket server: it upgrades incoming
// HTTP requests, registers the resulting connection, and drives its
// lifetime against a shared jsonrpc.Dispatcher.
type Engine struct {
	registry   *Registry
	dispatcher *jsonrpc.Dispatcher
	provider   auth.AuthProvider
	policy     UpgradePolicy
	logger     *zap.Logger
}

// NewEngine builds an Engine. provider may be nil when policy is
// UpgradeOptional and no method ever requires auth.
func NewEngine(dispatcher *jsonrpc.Dispatcher, provider auth.AuthProvider, policy UpgradePolicy, logger *zap.Logger) *Engine {
	return &Engine{
		registry:   NewRegistry(defaultShardCount),
		dispatcher: dispatcher,
		provider:   provider,
		policy:     policy,
		logger:     logger,
	}
}

// Registry exposes the engine's connection registry for broadcast and
// server-initiated RPC call sites.
func (e *Engine) Registry() *Registry { return e.registry }

// ServeHTTP implements http.Handler, upgrading the request to a
// WebSocket connection after running the authorization gate (§4.H.6).
func (e *Engine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var user *auth.AuthenticatedUser
	var token string

	if tok, authErr := auth.ExtractBearerTokenFromHeader(r.Header); authErr == nil {
		if e.provider != nil {
			if u, err := e.provider.Authenticate(r.Context(), tok); err == nil {
				user = &u
				token = tok
			} else if e.policy == UpgradeRequired {
				e.writeUpgradeError(w, err)
				return
			}
		} else if e.policy == UpgradeRequired {
			e.writeUpgradeError(w, wireerr.NewAuthenticationRequired())
			return
		}
	} else if e.policy == UpgradeRequired {
		e.writeUpgradeError(w, wireerr.NewAuthenticationRequired())
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}

	id := uuid.New()
	e.registry.Add(id)
	if user != nil {
		e.registry.SetUser(id, *user, token)
	}

	c := &connection{id: id, conn: conn, engine: e, logger: e.logger, dispatcher: e.dispatcher}
	c.run(r.Context())
}

func (e *Engine) writeUpgradeError(w http.ResponseWriter, err error) {
	we, ok := wireerr.As(err)
	if !ok {
		we = wireerr.NewAuthenticationRequired()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(we.HTTPStatus())
	_, _ = w.Write([]byte(`{"error":"` + we.Message + `"}`))
}

// CallPeer originates a server-initiated RPC against a connected peer
// (§4.H.5): it allocates a fresh request id, registers a one-shot
// waiter, and enqueues the request on the peer's mailbox. It blocks
// until the peer responds, ctx is canceled, or the connection closes.
func (e *Engine) CallPeer(ctx context.Context, connID uuid.UUID, method string, params []byte) (*jsonrpc.Response, error) {
	requestID := uuid.New()
	rawID := []byte(`"` + requestID.String() + `"`)

	waiter, ok := e.registry.RegisterPending(connID, requestID)
	if !ok {
		return nil, ErrConnectionClosed
	}

	req := jsonrpc.Request{JSONRPC: "2.0", ID: rawID, Method: method, Params: params}
	if !e.registry.SendToConnection(connID, newRequestMessage(req)) {
		return nil, ErrConnectionClosed
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case result := <-waiter:
		return result.response, result.err
	}
}
