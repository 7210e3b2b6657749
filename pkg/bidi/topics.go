package bidi

import (
	"sync"

	"github.com/google/uuid"
)

const defaultShardCount = 16

func hashUUID(id uuid.UUID) uint64 {
	var h uint64 = 14695981039346656037
	for _, b := range id {
		h ^= uint64(b)
		h *= 1099511628211
	}
	return h
}

func hashString(s string) uint64 {
	var h uint64 = 14695981039346656037
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= 1099511628211
	}
	return h
}

type topicShard struct {
	mu     sync.RWMutex
	topics map[string]map[uuid.UUID]struct{}
}

// TopicIndex is the concurrent topic → subscriber-set map, sharded by
// a hash of the topic string so unrelated topics never contend on the
// same lock.
type TopicIndex struct {
	shards []*topicShard
}

// NewTopicIndex builds a TopicIndex with the given shard count (the
// default is used for shardCount <= 0).
func NewTopicIndex(shardCount int) *TopicIndex {
	if shardCount <= 0 {
		shardCount = defaultShardCount
	}
	shards := make([]*topicShard, shardCount)
	for i := range shards {
		shards[i] = &topicShard{topics: make(map[string]map[uuid.UUID]struct{})}
	}
	return &TopicIndex{shards: shards}
}

func (t *TopicIndex) shardFor(topic string) *topicShard {
	return t.shards[hashString(topic)%uint64(len(t.shards))]
}

// Subscribe adds id to topic's subscriber set. Idempotent.
func (t *TopicIndex) Subscribe(id uuid.UUID, topic string) {
	sh := t.shardFor(topic)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	set, ok := sh.topics[topic]
	if !ok {
		set = make(map[uuid.UUID]struct{})
		sh.topics[topic] = set
	}
	set[id] = struct{}{}
}

// Unsubscribe removes id from topic's subscriber set, dropping the
// topic entirely once its last subscriber leaves.
func (t *TopicIndex) Unsubscribe(id uuid.UUID, topic string) {
	sh := t.shardFor(topic)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	set, ok := sh.topics[topic]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(sh.topics, topic)
	}
}

// Members returns a snapshot of topic's current subscribers.
func (t *TopicIndex) Members(topic string) []uuid.UUID {
	sh := t.shardFor(topic)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	set, ok := sh.topics[topic]
	if !ok {
		return nil
	}
	members := make([]uuid.UUID, 0, len(set))
	for id := range set {
		members = append(members, id)
	}
	return members
}
