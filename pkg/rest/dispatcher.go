package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/agentstack/ras-go/pkg/auth"
	"github.com/agentstack/ras-go/pkg/observability"
	"github.com/agentstack/ras-go/pkg/wireerr"
)

// Builder assembles a Dispatcher from a set of Route registrations
// plus the shared auth provider and optional observability hooks.
type Builder struct {
	provider auth.AuthProvider
	usage    observability.UsageTracker
	duration observability.MethodDurationTracker
	metrics  observability.ServiceMetrics
	logger   *zap.Logger
	routes   []Route
}

// NewBuilder constructs a Builder. provider may be nil when every
// registered route is Unauthorized.
func NewBuilder(provider auth.AuthProvider, logger *zap.Logger) *Builder {
	return &Builder{
		provider: provider,
		usage:    observability.NewNoopUsageTracker(),
		duration: observability.NewNoopDurationTracker(),
		metrics:  observability.NewNoopServiceMetrics(),
		logger:   logger,
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

// Register adds routes to the dispatcher.
func (b *Builder) Register(routes ...Route) *Builder {
	b.routes = append(b.routes, routes...)
	return b
}

// Build finalizes the dispatcher, mounting every route on a fresh chi
// router keyed by verb+path template.
func (b *Builder) Build() *Dispatcher {
	routes := make([]Route, len(b.routes))
	copy(routes, b.routes)

	d := &Dispatcher{
		provider: b.provider,
		usage:    b.usage,
		duration: b.duration,
		metrics:  b.metrics,
		logger:   b.logger,
		routes:   routes,
		router:   chi.NewRouter(),
	}
	for _, route := range routes {
		route := route
		d.router.Method(route.Verb, route.Path, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d.serveRoute(route, w, r)
		}))
	}
	d.router.NotFound(notFoundHandler)
	return d
}

// notFoundHandler reports an unrouted path in the same wire-error shape
// every other REST response uses, rather than chi's default plain-text
// 404.
func notFoundHandler(w http.ResponseWriter, r *http.Request) {
	we := wireerr.NewMethodNotFound(r.Method + " " + r.URL.Path)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(we.HTTPStatus())
	_ = json.NewEncoder(w).Encode(map[string]string{"error": we.Message})
}

// Dispatcher is the built, immutable REST handler.
type Dispatcher struct {
	provider auth.AuthProvider
	usage    observability.UsageTracker
	duration observability.MethodDurationTracker
	metrics  observability.ServiceMetrics
	logger   *zap.Logger
	routes   []Route
	router   chi.Router
}

// Routes returns the registered routes, for schema emission.
func (d *Dispatcher) Routes() []Route {
	return d.routes
}

// ServeHTTP implements http.Handler by delegating to the chi router
// built at Build time.
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.router.ServeHTTP(w, r)
}

func method(route Route) string {
	return route.Verb + " " + route.Path
}

// serveRoute runs the per-request algorithm (§4.G): usage track →
// path params → auth → permissions → body decode → invoke → sanitize
// → respond → duration track.
func (d *Dispatcher) serveRoute(route Route, w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	w.Header().Set("Content-Type", "application/json")

	rc := observability.RequestContext{Method: method(route), Protocol: observability.ProtocolREST}
	d.metrics.IncrementRequestsStarted(rc.Method, observability.ProtocolREST)

	var currentUser *auth.AuthenticatedUser
	d.usage.TrackRequest(r.Context(), map[string][]string(r.Header), currentUser, rc)

	pathReq, err := route.decodePath(r)
	if err != nil {
		d.finish(r.Context(), rc, nil, start, w, wireerr.NewInvalidRequest("malformed path parameters"))
		return
	}

	if route.Rule.RequiresAuth() {
		token, authErr := auth.ExtractBearerTokenFromHeader(r.Header)
		if authErr != nil {
			d.finish(r.Context(), rc, nil, start, w, wireerr.NewAuthenticationRequired())
			return
		}

		user, err := d.provider.Authenticate(r.Context(), token)
		if err != nil {
			if auth.IsTokenExpired(err) {
				d.finish(r.Context(), rc, nil, start, w, wireerr.NewTokenExpired())
				return
			}
			d.finish(r.Context(), rc, nil, start, w, wireerr.NewAuthenticationRequired())
			return
		}
		currentUser = &user

		if !route.Rule.Authorized(user) {
			d.finish(r.Context(), rc, currentUser, start, w, wireerr.NewInsufficientPermissions())
			return
		}
	}

	result, err := route.invoke(r.Context(), currentUser, pathReq, r)
	if err != nil {
		if we, ok := wireerr.As(err); ok && we.Type == wireerr.TypeInvalidParams {
			d.finish(r.Context(), rc, currentUser, start, w, we)
			return
		}
		d.logHandlerError(rc.Method, err)
		d.finish(r.Context(), rc, currentUser, start, w, wireerr.NewInternal(err))
		return
	}

	d.finishSuccess(r.Context(), rc, currentUser, start, w, result)
}

func (d *Dispatcher) finish(ctx context.Context, rc observability.RequestContext, user *auth.AuthenticatedUser, start time.Time, w http.ResponseWriter, wireErr *wireerr.Error) {
	d.duration.TrackDuration(ctx, rc, user, time.Since(start))
	d.metrics.IncrementRequestsCompleted(rc.Method, observability.ProtocolREST, false)
	d.metrics.RecordMethodDuration(rc.Method, observability.ProtocolREST, time.Since(start))

	w.WriteHeader(wireErr.HTTPStatus())
	_ = json.NewEncoder(w).Encode(map[string]string{"error": wireErr.Message})
}

func (d *Dispatcher) finishSuccess(ctx context.Context, rc observability.RequestContext, user *auth.AuthenticatedUser, start time.Time, w http.ResponseWriter, result any) {
	d.duration.TrackDuration(ctx, rc, user, time.Since(start))
	d.metrics.IncrementRequestsCompleted(rc.Method, observability.ProtocolREST, true)
	d.metrics.RecordMethodDuration(rc.Method, observability.ProtocolREST, time.Since(start))

	if result == nil {
		w.WriteHeader(http.StatusOK)
		return
	}
	if _, isEmpty := result.(struct{}); isEmpty {
		w.WriteHeader(http.StatusOK)
		return
	}

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(result)
}

func (d *Dispatcher) logHandlerError(method string, err error) {
	if d.logger == nil {
		return
	}
	d.logger.Error("rest handler error", zap.String("route", method), zap.Error(err))
}
