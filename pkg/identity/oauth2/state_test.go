package oauth2

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateRetrievableExactlyOnce(t *testing.T) {
	t.Parallel()

	store := NewMemoryStateStore()
	state := &State{ID: "s1", ProviderID: "google", ExpiresAt: time.Now().Add(time.Minute)}
	require.NoError(t, store.Store(state))

	got, err := store.Take("s1")
	require.NoError(t, err)
	assert.Equal(t, "google", got.ProviderID)

	_, err = store.Take("s1")
	assert.ErrorIs(t, err, ErrStateNotFound)
}

func TestExpiredStateIsNotRetrievable(t *testing.T) {
	t.Parallel()

	store := NewMemoryStateStore()
	state := &State{ID: "s1", ProviderID: "google", ExpiresAt: time.Now().Add(-time.Minute)}
	require.NoError(t, store.Store(state))

	_, err := store.Take("s1")
	assert.ErrorIs(t, err, ErrStateNotFound)
}

func TestConcurrentStartsProduceUniqueStates(t *testing.T) {
	t.Parallel()

	store := NewMemoryStateStore()
	var wg sync.WaitGroup
	ids := make([]string, 100)

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := newStateID()
			ids[i] = id
			_ = store.Store(&State{ID: id, ProviderID: "p", ExpiresAt: time.Now().Add(time.Minute)})
		}(i)
	}
	wg.Wait()

	seen := make(map[string]struct{}, 100)
	for _, id := range ids {
		_, dup := seen[id]
		assert.False(t, dup, "state id must be unique")
		seen[id] = struct{}{}
	}
}
