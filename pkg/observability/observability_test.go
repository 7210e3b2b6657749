package observability

import (
	"context"
	"testing"
	"time"

	"github.com/agentstack/ras-go/pkg/auth"
)

func TestNoopImplementationsDoNotPanic(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	user := &auth.AuthenticatedUser{UserID: "alice"}
	rc := RequestContext{Method: "get_widget", Protocol: ProtocolJSONRPC}

	NewNoopUsageTracker().TrackRequest(ctx, nil, user, rc)
	NewNoopDurationTracker().TrackDuration(ctx, rc, user, time.Millisecond)

	m := NewNoopServiceMetrics()
	m.IncrementRequestsStarted(rc.Method, rc.Protocol)
	m.IncrementRequestsCompleted(rc.Method, rc.Protocol, true)
	m.RecordMethodDuration(rc.Method, rc.Protocol, time.Millisecond)
}
