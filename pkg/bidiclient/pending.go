package bidiclient

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/agentstack/ras-go/pkg/bidi"
)

// ErrDisconnected is delivered to every pending waiter when the
// connection is lost before a response arrives.
var ErrDisconnected = errors.New("bidiclient: disconnected")

// ErrTooManyPending is returned by register when MaxPendingRequests
// would be exceeded.
var ErrTooManyPending = errors.New("bidiclient: too many pending requests")

type pendingResult struct {
	msg bidi.Message
	err error
}

// pendingRegistry is the client-side mirror of the server's
// connection-scoped pending-waiter table (§4.H.5): one entry per
// in-flight Call, keyed by request id.
type pendingRegistry struct {
	mu      sync.Mutex
	waiters map[uuid.UUID]chan pendingResult
	max     int
}

func newPendingRegistry(max int) *pendingRegistry {
	return &pendingRegistry{waiters: make(map[uuid.UUID]chan pendingResult), max: max}
}

func (p *pendingRegistry) register(id uuid.UUID) (<-chan pendingResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.max > 0 && len(p.waiters) >= p.max {
		return nil, ErrTooManyPending
	}
	ch := make(chan pendingResult, 1)
	p.waiters[id] = ch
	return ch, nil
}

func (p *pendingRegistry) resolve(id uuid.UUID, msg bidi.Message) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch, ok := p.waiters[id]
	if !ok {
		return false
	}
	delete(p.waiters, id)
	ch <- pendingResult{msg: msg}
	close(ch)
	return true
}

func (p *pendingRegistry) cancel(id uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.waiters, id)
}

// failAll resolves every outstanding waiter with ErrDisconnected, for
// use when the transport drops.
func (p *pendingRegistry) failAll() {
	p.mu.Lock()
	waiters := p.waiters
	p.waiters = make(map[uuid.UUID]chan pendingResult)
	p.mu.Unlock()

	for _, ch := range waiters {
		ch <- pendingResult{err: ErrDisconnected}
		close(ch)
	}
}
