package oauth2

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is a short-lived, single-take OAuth2 authorization record.
type State struct {
	ID           string
	ProviderID   string
	RedirectURI  string
	CodeVerifier string
	ExpiresAt    time.Time
}

func (s *State) expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// StateStore is a concurrent table of pending OAuth2 authorization
// states with single-take retrieval semantics: Take atomically
// removes the entry it returns, so a replayed callback observes
// ErrStateNotFound.
type StateStore interface {
	Store(state *State) error
	Take(id string) (*State, error)
}

// shardedStateStore is the in-memory StateStore, sharded the same way
// as the bidirectional engine's connection registry so both share one
// concurrency idiom across the module rather than introducing a
// second kind of concurrent map primitive.
type shardedStateStore struct {
	shards []stateShard
}

type stateShard struct {
	mu      sync.Mutex
	entries map[string]*State
}

const stateStoreShardCount = 16

// NewMemoryStateStore returns a sharded in-memory StateStore. Callers
// should periodically call Sweep (or rely on Take's lazy eviction) to
// bound memory from abandoned flows.
func NewMemoryStateStore() *shardedStateStore {
	s := &shardedStateStore{shards: make([]stateShard, stateStoreShardCount)}
	for i := range s.shards {
		s.shards[i].entries = make(map[string]*State)
	}
	return s
}

func (s *shardedStateStore) shardFor(id string) *stateShard {
	h := fnv32(id)
	return &s.shards[h%uint32(len(s.shards))]
}

func (s *shardedStateStore) Store(state *State) error {
	shard := s.shardFor(state.ID)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	shard.entries[state.ID] = state
	return nil
}

// Take atomically removes and returns the state, or ErrStateNotFound
// if it is missing, already taken, or expired.
func (s *shardedStateStore) Take(id string) (*State, error) {
	shard := s.shardFor(id)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	state, ok := shard.entries[id]
	if !ok {
		return nil, ErrStateNotFound
	}
	delete(shard.entries, id)

	if state.expired(time.Now()) {
		return nil, ErrStateNotFound
	}
	return state, nil
}

// Sweep evicts expired, never-retrieved entries. Safe to call
// periodically from a background goroutine.
func (s *shardedStateStore) Sweep(now time.Time) {
	for i := range s.shards {
		shard := &s.shards[i]
		shard.mu.Lock()
		for id, state := range shard.entries {
			if state.expired(now) {
				delete(shard.entries, id)
			}
		}
		shard.mu.Unlock()
	}
}

func newStateID() string {
	return uuid.NewString()
}

func fnv32(s string) uint32 {
	const (
		offset32 = 2166136261
		prime32  = 16777619
	)
	var h uint32 = offset32
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= prime32
	}
	return h
}
