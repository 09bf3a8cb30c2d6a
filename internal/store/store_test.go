package store

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/xxh3"
)

func TestStore_GetSet(t *testing.T) {
	s := New(4)

	_, ok := s.Get("missing")
	assert.False(t, ok)

	s.Set("foo", []byte("bar"))
	v, ok := s.Get("foo")
	require.True(t, ok)
	assert.Equal(t, []byte("bar"), v)

	s.Set("foo", []byte("baz"))
	v, _ = s.Get("foo")
	assert.Equal(t, []byte("baz"), v)
	assert.Equal(t, 1, s.Len())
}

func TestStore_SetCopiesValue(t *testing.T) {
	s := New(1)
	value := []byte("abc")

	s.Set("k", value)
	value[0] = 'X'

	v, _ := s.Get("k")
	assert.Equal(t, "abc", string(v))
}

func TestStore_EmptyValueIsPresent(t *testing.T) {
	s := New(0)

	s.Set("empty", nil)
	v, ok := s.Get("empty")
	assert.True(t, ok)
	assert.Empty(t, v)
	assert.Len(t, s.shards, DefaultShards)
}

func TestStore_Concurrent(t *testing.T) {
	s := New(8)

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 100 {
				key := fmt.Sprintf("key-%d-%d", i, j)
				s.Set(key, []byte(key))
				v, ok := s.Get(key)
				assert.True(t, ok)
				assert.Equal(t, key, string(v))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1600, s.Len())
}

func TestJumpHash(t *testing.T) {
	assert.Equal(t, 0, jumpHash(12345, 0))
	assert.Equal(t, 0, jumpHash(12345, 1))

	for i := range 1000 {
		h := xxh3.HashString(fmt.Sprintf("key-%d", i))
		b := jumpHash(h, 10)
		assert.GreaterOrEqual(t, b, 0)
		assert.Less(t, b, 10)
		assert.Equal(t, b, jumpHash(h, 10), "must be deterministic")
	}
}

func TestJumpHash_Distribution(t *testing.T) {
	counts := make([]int, 8)
	for i := range 8000 {
		counts[jumpHash(xxh3.HashString(fmt.Sprintf("key-%d", i)), len(counts))]++
	}

	for bucket, n := range counts {
		assert.InDelta(t, 1000, n, 200, "bucket %d", bucket)
	}
}
