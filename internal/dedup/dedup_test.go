package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIndex struct {
	lookups int
	rows    map[string]string
}

func (f *fakeIndex) Lookup(_ context.Context, kind, hash string) (string, bool, error) {
	f.lookups++
	id, ok := f.rows[kind+":"+hash]
	return id, ok, nil
}

type memCache struct {
	vals map[string]string
}

func newMemCache() *memCache { return &memCache{vals: map[string]string{}} }

func (c *memCache) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := c.vals[key]
	return v, ok, nil
}

func (c *memCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	c.vals[key] = value
	return nil
}

func TestSeenBefore_FallsBackToIndexOnCacheMiss(t *testing.T) {
	ctx := context.Background()
	idx := &fakeIndex{rows: map[string]string{"chunk:abc123": "chunk-1"}}
	cache := newMemCache()

	id, found, err := SeenBefore(ctx, cache, idx, "chunk", "abc123", time.Minute)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "chunk-1", id)
	assert.Equal(t, 1, idx.lookups)

	// Second lookup hits the cache, not the index.
	id, found, err = SeenBefore(ctx, cache, idx, "chunk", "abc123", time.Minute)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "chunk-1", id)
	assert.Equal(t, 1, idx.lookups)
}

func TestSeenBefore_UnknownHashIsNotFound(t *testing.T) {
	ctx := context.Background()
	idx := &fakeIndex{rows: map[string]string{}}
	cache := newMemCache()

	_, found, err := SeenBefore(ctx, cache, idx, "document", "nope", time.Minute)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestNoopCache_AlwaysMisses(t *testing.T) {
	var c NoopCache
	_, found, err := c.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, found)
	require.NoError(t, c.Set(context.Background(), "k", "v", time.Second))
}
