package bidi

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestTopicIndexSubscribeIsIdempotent(t *testing.T) {
	t.Parallel()

	idx := NewTopicIndex(4)
	id := uuid.New()
	idx.Subscribe(id, "room:1")
	idx.Subscribe(id, "room:1")

	assert.ElementsMatch(t, []uuid.UUID{id}, idx.Members("room:1"))
}

func TestTopicIndexUnsubscribeRemovesEmptyTopic(t *testing.T) {
	t.Parallel()

	idx := NewTopicIndex(4)
	id := uuid.New()
	idx.Subscribe(id, "room:1")
	idx.Unsubscribe(id, "room:1")

	assert.Empty(t, idx.Members("room:1"))
}

func TestTopicIndexMembersAreIndependentPerTopic(t *testing.T) {
	t.Parallel()

	idx := NewTopicIndex(4)
	a, b := uuid.New(), uuid.New()
	idx.Subscribe(a, "room:1")
	idx.Subscribe(b, "room:2")

	assert.ElementsMatch(t, []uuid.UUID{a}, idx.Members("room:1"))
	assert.ElementsMatch(t, []uuid.UUID{b}, idx.Members("room:2"))
}

func TestTopicIndexMembersUnknownTopicIsEmpty(t *testing.T) {
	t.Parallel()

	idx := NewTopicIndex(4)
	assert.Empty(t, idx.Members("nothing-here"))
}
