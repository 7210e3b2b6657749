package bidi

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/agentstack/ras-go/pkg/auth"
	"github.com/agentstack/ras-go/pkg/jsonrpc"
)

// ErrConnectionClosed is delivered to any pending server-initiated-RPC
// waiter whose connection is removed before a response arrives.
var ErrConnectionClosed = errors.New("bidi: connection closed")

// connState is a connection's position in the lifecycle state machine
// (§4.H.7). Guarded by the connection's registry shard lock, never by
// goroutine-local control flow alone.
type connState int32

const (
	stateConnecting connState = iota
	stateOpen
	stateClosing
	stateClosed
)

type pendingResult struct {
	response *jsonrpc.Response
	err      error
}

// ConnectionInfo is one registered connection's mutable state. Every
// field below is mutated only while holding the owning Registry
// shard's lock; callers outside this package observe it only through
// Registry accessor methods.
type ConnectionInfo struct {
	ID            uuid.UUID
	User          *auth.AuthenticatedUser
	Token         string
	Subscriptions map[string]struct{}
	state         connState
	mailbox       *mailbox
	pending       map[uuid.UUID]chan pendingResult
}

type connShard struct {
	mu    sync.RWMutex
	conns map[uuid.UUID]*ConnectionInfo
}

// Registry is the concurrent connection_id → ConnectionInfo map (§4.H.1),
// sharded by a hash of the connection id so unrelated connections never
// contend on the same lock.
type Registry struct {
	shards []*connShard
	topics *TopicIndex
}

// NewRegistry builds a Registry with the given shard count (the
// default is used for shardCount <= 0).
func NewRegistry(shardCount int) *Registry {
	if shardCount <= 0 {
		shardCount = defaultShardCount
	}
	shards := make([]*connShard, shardCount)
	for i := range shards {
		shards[i] = &connShard{conns: make(map[uuid.UUID]*ConnectionInfo)}
	}
	return &Registry{shards: shards, topics: NewTopicIndex(shardCount)}
}

// Topics exposes the registry's topic index, for subscribe/unsubscribe
// and broadcast call sites that need it directly.
func (r *Registry) Topics() *TopicIndex { return r.topics }

func (r *Registry) shardFor(id uuid.UUID) *connShard {
	return r.shards[hashUUID(id)%uint64(len(r.shards))]
}

// Add registers a new connection in the Connecting state.
func (r *Registry) Add(id uuid.UUID) *ConnectionInfo {
	info := &ConnectionInfo{
		ID:            id,
		Subscriptions: make(map[string]struct{}),
		state:         stateConnecting,
		mailbox:       newMailbox(),
		pending:       make(map[uuid.UUID]chan pendingResult),
	}
	sh := r.shardFor(id)
	sh.mu.Lock()
	sh.conns[id] = info
	sh.mu.Unlock()
	return info
}

// Get returns the connection's info, if still registered.
func (r *Registry) Get(id uuid.UUID) (*ConnectionInfo, bool) {
	sh := r.shardFor(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	info, ok := sh.conns[id]
	return info, ok
}

// ListAll returns a snapshot of every registered connection.
func (r *Registry) ListAll() []*ConnectionInfo {
	var all []*ConnectionInfo
	for _, sh := range r.shards {
		sh.mu.RLock()
		for _, info := range sh.conns {
			all = append(all, info)
		}
		sh.mu.RUnlock()
	}
	return all
}

// Remove unregisters id, purging it from every topic it had
// subscribed to and failing every pending server-initiated-RPC waiter
// with ErrConnectionClosed.
func (r *Registry) Remove(id uuid.UUID) {
	sh := r.shardFor(id)
	sh.mu.Lock()
	info, ok := sh.conns[id]
	if ok {
		delete(sh.conns, id)
		info.state = stateClosed
	}
	var topics []string
	var waiters []chan pendingResult
	if ok {
		for topic := range info.Subscriptions {
			topics = append(topics, topic)
		}
		for _, waiter := range info.pending {
			waiters = append(waiters, waiter)
		}
		info.pending = nil
	}
	sh.mu.Unlock()

	if !ok {
		return
	}

	for _, topic := range topics {
		r.topics.Unsubscribe(id, topic)
	}
	info.mailbox.Close()
	for _, waiter := range waiters {
		waiter <- pendingResult{err: ErrConnectionClosed}
		close(waiter)
	}
}

// User returns the authenticated user attached to id, if any.
func (r *Registry) User(id uuid.UUID) (*auth.AuthenticatedUser, bool) {
	sh := r.shardFor(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	info, ok := sh.conns[id]
	if !ok {
		return nil, false
	}
	return info.User, true
}

// SetUser attaches an authenticated user and its bearer token to id,
// transitioning it from anonymous to authenticated without a
// reconnect. The token is retained so later per-message dispatch can
// re-present it without re-running the WebSocket handshake.
func (r *Registry) SetUser(id uuid.UUID, user auth.AuthenticatedUser, token string) {
	sh := r.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if info, ok := sh.conns[id]; ok {
		info.User = &user
		info.Token = token
	}
}

// State returns id's current lifecycle state.
func (r *Registry) State(id uuid.UUID) (connState, bool) {
	sh := r.shardFor(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	info, ok := sh.conns[id]
	if !ok {
		return stateClosed, false
	}
	return info.state, true
}

// SetState transitions id's lifecycle state.
func (r *Registry) SetState(id uuid.UUID, state connState) {
	sh := r.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if info, ok := sh.conns[id]; ok {
		info.state = state
	}
}

// Subscribe adds topic to id's subscription set and the topic index,
// keeping both sides of the bidirectional bookkeeping in sync.
func (r *Registry) Subscribe(id uuid.UUID, topic string) {
	sh := r.shardFor(id)
	sh.mu.Lock()
	info, ok := sh.conns[id]
	if ok {
		info.Subscriptions[topic] = struct{}{}
	}
	sh.mu.Unlock()
	if ok {
		r.topics.Subscribe(id, topic)
	}
}

// Unsubscribe is Subscribe's inverse.
func (r *Registry) Unsubscribe(id uuid.UUID, topic string) {
	sh := r.shardFor(id)
	sh.mu.Lock()
	info, ok := sh.conns[id]
	if ok {
		delete(info.Subscriptions, topic)
	}
	sh.mu.Unlock()
	if ok {
		r.topics.Unsubscribe(id, topic)
	}
}

// RegisterPending allocates a one-shot waiter for a server-initiated
// RPC keyed by requestID, scoped to connection id.
func (r *Registry) RegisterPending(id, requestID uuid.UUID) (<-chan pendingResult, bool) {
	sh := r.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	info, ok := sh.conns[id]
	if !ok {
		return nil, false
	}
	waiter := make(chan pendingResult, 1)
	info.pending[requestID] = waiter
	return waiter, true
}

// ResolvePending satisfies a previously registered waiter with resp.
// It reports false if the waiter is unknown (already resolved,
// already expired, or an orphan response).
func (r *Registry) ResolvePending(id, requestID uuid.UUID, resp *jsonrpc.Response) bool {
	sh := r.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	info, ok := sh.conns[id]
	if !ok {
		return false
	}
	waiter, ok := info.pending[requestID]
	if !ok {
		return false
	}
	delete(info.pending, requestID)
	waiter <- pendingResult{response: resp}
	close(waiter)
	return true
}

// SendToConnection enqueues msg on id's mailbox. Reports false if id
// is unknown or its mailbox is closed.
func (r *Registry) SendToConnection(id uuid.UUID, msg Message) bool {
	info, ok := r.Get(id)
	if !ok {
		return false
	}
	return info.mailbox.Send(msg)
}
