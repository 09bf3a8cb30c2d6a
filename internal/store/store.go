// Package store is the in-memory map behind the reference server.
//
// Keys are spread over a fixed number of shards, each with its own lock.
// The shard is picked with Jump consistent hashing over an xxh3 hash of the
// key, so changing the shard count moves as few keys as possible.
package store

import (
	"sync"

	"github.com/zeebo/xxh3"
)

// DefaultShards is used when New is given a non-positive shard count.
const DefaultShards = 16

type shard struct {
	mu    sync.RWMutex
	items map[string][]byte
}

// Store is a concurrency-safe key/value map.
type Store struct {
	shards []shard
}

// New creates an empty store with n shards.
func New(n int) *Store {
	if n <= 0 {
		n = DefaultShards
	}

	s := &Store{shards: make([]shard, n)}
	for i := range s.shards {
		s.shards[i].items = make(map[string][]byte)
	}
	return s
}

func (s *Store) shardFor(key string) *shard {
	return &s.shards[jumpHash(xxh3.HashString(key), len(s.shards))]
}

// Get returns the value stored under key.
func (s *Store) Get(key string) ([]byte, bool) {
	sh := s.shardFor(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	v, ok := sh.items[key]
	return v, ok
}

// Set stores a copy of value under key.
func (s *Store) Set(key string, value []byte) {
	v := make([]byte, len(value))
	copy(v, value)

	sh := s.shardFor(key)
	sh.mu.Lock()
	sh.items[key] = v
	sh.mu.Unlock()
}

// Len returns the number of keys across all shards.
func (s *Store) Len() int {
	total := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		total += len(sh.items)
		sh.mu.RUnlock()
	}
	return total
}

// jumpHash maps key to a bucket in [0, buckets).
// Google's "Jump" Consistent Hash function: https://arxiv.org/abs/1406.2294
func jumpHash(key uint64, buckets int) int {
	if buckets <= 0 {
		return 0
	}

	var b int64 = -1
	var j int64

	for j < int64(buckets) {
		b = j
		key = key*2862933555777941757 + 1
		j = int64(float64(b+1) * (float64(int64(1)<<31) / float64((key>>33)+1)))
	}

	return int(b)
}
