// Package jsonrpc implements the JSON-RPC 2.0 dispatcher: a runtime
// registrar for per-method handlers, each with a declared
// authorization rule, wired through the shared auth/observability
// contracts.
package jsonrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/agentstack/ras-go/pkg/auth"
	"github.com/agentstack/ras-go/pkg/observability"
	"github.com/agentstack/ras-go/pkg/wireerr"
)

// Builder assembles a Dispatcher from a set of Method registrations
// plus the shared auth provider and optional observability hooks.
type Builder struct {
	provider auth.AuthProvider
	usage    observability.UsageTracker
	duration observability.MethodDurationTracker
	metrics  observability.ServiceMetrics
	logger   *zap.Logger
	methods  map[string]Method
}

// NewBuilder constructs a Builder. provider may be nil when every
// registered method is Unauthorized.
func NewBuilder(provider auth.AuthProvider, logger *zap.Logger) *Builder {
	return &Builder{
		provider: provider,
		usage:    observability.NewNoopUsageTracker(),
		duration: observability.NewNoopDurationTracker(),
		metrics:  observability.NewNoopServiceMetrics(),
		logger:   logger,
		methods:  make(map[string]Method),
	}
}

// WithUsageTracker overrides the default no-op UsageTracker.
func (b *Builder) WithUsageTracker(t observability.UsageTracker) *Builder {
	b.usage = t
	return b
}

// WithDurationTracker overrides the default no-op MethodDurationTracker.
func (b *Builder) WithDurationTracker(t observability.MethodDurationTracker) *Builder {
	b.duration = t
	return b
}

// WithMetrics overrides the default no-op ServiceMetrics.
func (b *Builder) WithMetrics(m observability.ServiceMetrics) *Builder {
	b.metrics = m
	return b
}

// Register adds methods to the dispatcher, keyed by their declared name.
func (b *Builder) Register(methods ...Method) *Builder {
	for _, m := range methods {
		b.methods[m.Name] = m
	}
	return b
}

// Build finalizes the dispatcher. The method table is immutable from
// this point on.
func (b *Builder) Build() *Dispatcher {
	methods := make(map[string]Method, len(b.methods))
	for k, v := range b.methods {
		methods[k] = v
	}
	return &Dispatcher{
		provider: b.provider,
		usage:    b.usage,
		duration: b.duration,
		metrics:  b.metrics,
		logger:   b.logger,
		methods:  methods,
	}
}

// Dispatcher is the built, immutable JSON-RPC handler.
type Dispatcher struct {
	provider auth.AuthProvider
	usage    observability.UsageTracker
	duration observability.MethodDurationTracker
	metrics  observability.ServiceMetrics
	logger   *zap.Logger
	methods  map[string]Method
}

// Methods returns the registered methods, for schema emission.
func (d *Dispatcher) Methods() map[string]Method {
	return d.methods
}

// ServeHTTP implements http.Handler, running the per-request algorithm
// (§4.F) for a single JSON-RPC request per HTTP request.
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var req Request
	body, err := io.ReadAll(r.Body)
	r.Body.Close()
	if err != nil {
		writeResponse(w, http.StatusOK, newError(nil, wireerr.NewParseError(err).Code(), "Parse error"))
		return
	}
	if err := json.Unmarshal(body, &req); err != nil {
		writeResponse(w, http.StatusOK, newError(nil, wireerr.NewParseError(err).Code(), "Parse error"))
		return
	}

	resp, status := d.Dispatch(r.Context(), req, r.Header)
	if resp == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeResponse(w, status, resp)
}

// Dispatch runs the per-request algorithm against an already-parsed
// request, independent of HTTP framing — shared by the HTTP handler
// and the bidirectional engine. Returns nil for a notification whose
// handler succeeds; a notification that fails still gets an error
// response.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request, headers http.Header) (*Response, int) {
	start := time.Now()

	rc := observability.RequestContext{Method: req.Method, Protocol: observability.ProtocolJSONRPC}
	d.metrics.IncrementRequestsStarted(req.Method, observability.ProtocolJSONRPC)

	var currentUser *auth.AuthenticatedUser
	d.usage.TrackRequest(ctx, headerMap(headers), currentUser, rc)

	method, ok := d.methods[req.Method]
	if !ok {
		return d.finish(ctx, rc, nil, start, newError(req.ID, -32601, fmt.Sprintf("Method not found: %s", req.Method)), 200)
	}

	if method.Rule.RequiresAuth() {
		token, authErr := auth.ExtractBearerTokenFromHeader(headers)
		if authErr != nil {
			return d.finish(ctx, rc, nil, start, newError(req.ID, -32001, "Authentication required"), 401)
		}

		user, err := d.provider.Authenticate(ctx, token)
		if err != nil {
			if auth.IsTokenExpired(err) {
				return d.finish(ctx, rc, nil, start, newError(req.ID, -32003, "Token expired"), 401)
			}
			return d.finish(ctx, rc, nil, start, newError(req.ID, -32001, "Authentication required"), 401)
		}
		currentUser = &user

		if !method.Rule.Authorized(user) {
			return d.finish(ctx, rc, currentUser, start, newError(req.ID, -32002, "Insufficient permissions"), 403)
		}
	}

	result, err := method.invoke(ctx, currentUser, req.Params)
	if err != nil {
		if we, ok := wireerr.As(err); ok && we.Type == wireerr.TypeInvalidParams {
			return d.finish(ctx, rc, currentUser, start, newError(req.ID, -32602, "Invalid params"), 200)
		}
		d.logHandlerError(req.Method, err)
		return d.finish(ctx, rc, currentUser, start, newError(req.ID, -32603, "Internal error"), 200)
	}

	if req.IsNotification() {
		d.finishNoResponse(ctx, rc, currentUser, start)
		return nil, 0
	}

	resp, marshalErr := newResult(req.ID, result)
	if marshalErr != nil {
		d.logHandlerError(req.Method, marshalErr)
		return d.finish(ctx, rc, currentUser, start, newError(req.ID, -32603, "Internal error"), 200)
	}
	return d.finish(ctx, rc, currentUser, start, resp, 200)
}

func (d *Dispatcher) finish(ctx context.Context, rc observability.RequestContext, user *auth.AuthenticatedUser, start time.Time, resp *Response, status int) (*Response, int) {
	success := resp.Error == nil
	d.duration.TrackDuration(ctx, rc, user, time.Since(start))
	d.metrics.IncrementRequestsCompleted(rc.Method, observability.ProtocolJSONRPC, success)
	d.metrics.RecordMethodDuration(rc.Method, observability.ProtocolJSONRPC, time.Since(start))
	return resp, status
}

func (d *Dispatcher) finishNoResponse(ctx context.Context, rc observability.RequestContext, user *auth.AuthenticatedUser, start time.Time) {
	d.duration.TrackDuration(ctx, rc, user, time.Since(start))
	d.metrics.IncrementRequestsCompleted(rc.Method, observability.ProtocolJSONRPC, true)
	d.metrics.RecordMethodDuration(rc.Method, observability.ProtocolJSONRPC, time.Since(start))
}

func (d *Dispatcher) logHandlerError(method string, err error) {
	if d.logger == nil {
		return
	}
	d.logger.Error("jsonrpc handler error", zap.String("method", method), zap.Error(err))
}

func headerMap(h http.Header) map[string][]string {
	if h == nil {
		return nil
	}
	return map[string][]string(h)
}

func writeResponse(w http.ResponseWriter, status int, resp *Response) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
