// Package observability defines the dispatcher-facing tracing and
// metrics contracts. Every transport calls the same three hooks
// around dispatch; concrete backends (see pkg/observability/prometheus)
// and the noop implementations in this package are interchangeable.
package observability

import (
	"context"
	"time"

	"github.com/agentstack/ras-go/pkg/auth"
)

// Protocol is a low-cardinality transport tag, used only for routing
// and as a metric label.
type Protocol string

const (
	ProtocolREST      Protocol = "rest"
	ProtocolJSONRPC   Protocol = "jsonrpc"
	ProtocolWebSocket Protocol = "websocket"
)

// RequestContext carries per-request identification for trackers. The
// Metadata map is for tracers only; it must never reach a metric label
// (see ServiceMetrics).
type RequestContext struct {
	Method   string
	Protocol Protocol
	Metadata map[string]string
}

// UsageTracker observes every inbound request before dispatch, whether
// or not it is ultimately authorized.
type UsageTracker interface {
	TrackRequest(ctx context.Context, headers map[string][]string, user *auth.AuthenticatedUser, rc RequestContext)
}

// MethodDurationTracker observes the outcome of dispatch, success or
// failure, exactly once per request.
type MethodDurationTracker interface {
	TrackDuration(ctx context.Context, rc RequestContext, user *auth.AuthenticatedUser, elapsed time.Duration)
}

// ServiceMetrics is the synchronous counter/histogram surface. Its
// methods accept only method, protocol, and success — by construction
// there is no parameter through which a caller could smuggle a
// high-cardinality label such as a user or request id.
type ServiceMetrics interface {
	IncrementRequestsStarted(method string, protocol Protocol)
	IncrementRequestsCompleted(method string, protocol Protocol, success bool)
	RecordMethodDuration(method string, protocol Protocol, elapsed time.Duration)
}

// noopUsageTracker, noopDurationTracker, and noopServiceMetrics let a
// dispatcher builder always hold a non-nil tracker/metrics value.
type noopUsageTracker struct{}

func (noopUsageTracker) TrackRequest(context.Context, map[string][]string, *auth.AuthenticatedUser, RequestContext) {
}

type noopDurationTracker struct{}

func (noopDurationTracker) TrackDuration(context.Context, RequestContext, *auth.AuthenticatedUser, time.Duration) {
}

type noopServiceMetrics struct{}

func (noopServiceMetrics) IncrementRequestsStarted(string, Protocol)            {}
func (noopServiceMetrics) IncrementRequestsCompleted(string, Protocol, bool)    {}
func (noopServiceMetrics) RecordMethodDuration(string, Protocol, time.Duration) {}

// NewNoopUsageTracker returns a UsageTracker that does nothing.
func NewNoopUsageTracker() UsageTracker { return noopUsageTracker{} }

// NewNoopDurationTracker returns a MethodDurationTracker that does nothing.
func NewNoopDurationTracker() MethodDurationTracker { return noopDurationTracker{} }

// NewNoopServiceMetrics returns a ServiceMetrics that does nothing.
func NewNoopServiceMetrics() ServiceMetrics { return noopServiceMetrics{} }
