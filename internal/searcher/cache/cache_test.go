package cache

import (
	"context"
	"errors"
	"path"
	"sync"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
}

func newMemStore() *memStore {
	return &memStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memStore) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (m *memStore) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = string(value.([]byte))
	m.ttls[key] = ttl
	return nil
}

func (m *memStore) FlushByPattern(ctx context.Context, pattern string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k := range m.data {
		if ok, _ := path.Match(pattern, k); ok {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

type hit struct {
	DocID int     `json:"doc_id"`
	Score float64 `json:"score"`
}

func TestGetOrComputeCaches(t *testing.T) {
	store := newMemStore()
	c := New(store, time.Minute)
	ctx := context.Background()
	key := Key(ModeVector, 1, "cats dogs", 10)

	calls := 0
	compute := func() ([]hit, error) {
		calls++
		return []hit{{DocID: 3, Score: 0.5}}, nil
	}

	v, cached, err := GetOrCompute(ctx, c, key, compute)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, []hit{{3, 0.5}}, v)

	v, cached, err = GetOrCompute(ctx, c, key, compute)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, []hit{{3, 0.5}}, v)
	assert.Equal(t, 1, calls)
	assert.Equal(t, time.Minute, store.ttls[key])

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestGetOrComputeDoesNotCacheErrors(t *testing.T) {
	store := newMemStore()
	c := New(store, time.Minute)
	boom := errors.New("boom")
	_, _, err := GetOrCompute(context.Background(), c, "k", func() (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, store.data)
}

func TestNilCacheComputes(t *testing.T) {
	v, cached, err := GetOrCompute(context.Background(), nil, "k", func() (string, error) { return "x", nil })
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, "x", v)
}

func TestKey(t *testing.T) {
	assert.Equal(t, Key(ModeVector, 1, "Dogs  cats", 10), Key(ModeVector, 1, "cats dogs", 10))
	assert.NotEqual(t, Key(ModeVector, 1, "cats", 10), Key(ModeVector, 2, "cats", 10))
	assert.NotEqual(t, Key(ModeVector, 1, "cats", 10), Key(ModeVector, 1, "cats", 5))
	assert.NotEqual(t, Key(ModeVector, 1, "cats", 10), Key(ModeBoolean, 1, "cats", 10))
	assert.NotEqual(t, Key(ModeBoolean, 1, "a AND b", 0), Key(ModeBoolean, 1, "b AND a", 0))
	assert.NotEqual(t, Key(ModeBoolean, 1, "a AND b", 0), Key(ModeBoolean, 1, "a and b", 0))
	assert.Equal(t, Key(ModeBoolean, 1, "(a  AND b)", 0), Key(ModeBoolean, 1, "( a AND b )", 0))
}

func TestVectorKeyHonoursWordCap(t *testing.T) {
	// With a cap of two, "cat dog mouse" ranks {cat, dog} and
	// "mouse dog cat" ranks {mouse, dog}.
	assert.NotEqual(t, VectorKey(1, "cat dog mouse", 10, 2), VectorKey(1, "mouse dog cat", 10, 2))
	assert.Equal(t, VectorKey(1, "cat dog mouse", 10, 2), VectorKey(1, "dog cat bird", 10, 2))
	assert.Equal(t, VectorKey(1, "cat dog", 10, 2), VectorKey(1, "dog cat", 10, 2))
	assert.Equal(t, VectorKey(1, "cat dog mouse", 10, 0), VectorKey(1, "mouse dog cat", 10, 0))
	assert.Equal(t, Key(ModeVector, 3, "b a", 5), VectorKey(3, "a b", 5, 0))
}

func TestInvalidate(t *testing.T) {
	store := newMemStore()
	c := New(store, time.Minute)
	ctx := context.Background()
	for _, q := range []string{"a", "b"} {
		_, _, err := GetOrCompute(ctx, c, Key(ModeVector, 1, q, 10), func() (int, error) { return 1, nil })
		require.NoError(t, err)
	}
	store.data["unrelated"] = "keep"

	require.NoError(t, c.Invalidate(ctx))
	assert.Equal(t, map[string]string{"unrelated": "keep"}, store.data)
}
