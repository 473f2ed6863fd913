// Package cache keeps recent query results in Redis. Keys carry the snapshot
// generation, so a reload never serves results computed against an older
// corpus even before the old keys are flushed.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kk0kc/oip/internal/indexer/tokenizer"
	pkgredis "github.com/kk0kc/oip/pkg/redis"
)

const keyPrefix = "oip:search:"

const (
	ModeVector  = "vector"
	ModeBoolean = "boolean"
)

// Store is the subset of the Redis client the cache uses.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type QueryCache struct {
	store  Store
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

func New(store Store, ttl time.Duration) *QueryCache {
	return &QueryCache{
		store:  store,
		ttl:    ttl,
		logger: slog.Default().With("component", "query-cache"),
	}
}

// Key identifies a query result within a snapshot generation. Vector
// queries are keyed without a word cap; use VectorKey when the ranker
// truncates long queries.
func Key(mode string, generation uint64, query string, limit int) string {
	if mode == ModeVector {
		return VectorKey(generation, query, limit, 0)
	}
	return hashKey(mode, generation, normalizeBoolean(query), limit)
}

// VectorKey keys a free-text query that the ranker cuts to its first
// maxWords words. 0 means no cap.
func VectorKey(generation uint64, query string, limit, maxWords int) string {
	return hashKey(ModeVector, generation, normalizeVector(query, maxWords), limit)
}

func hashKey(mode string, generation uint64, normalized string, limit int) string {
	raw := fmt.Sprintf("%s|%s|limit=%d", mode, normalized, limit)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%sg%d:%x", keyPrefix, generation, hash[:16])
}

// normalizeVector sorts the words that survive the cap: a free-text query
// is a bag of words, but which words are kept depends on their order.
func normalizeVector(query string, maxWords int) string {
	words := tokenizer.Words(query)
	if maxWords > 0 && len(words) > maxWords {
		words = words[:maxWords]
	}
	sort.Strings(words)
	return strings.Join(words, " ")
}

// normalizeBoolean keeps token order and operator case.
func normalizeBoolean(query string) string {
	return strings.Join(tokenizer.Lex(query), " ")
}

func (c *QueryCache) get(ctx context.Context, key string, out any) bool {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.misses.Add(1)
		return false
	}
	if err := json.Unmarshal([]byte(data), out); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		return false
	}
	c.hits.Add(1)
	c.logger.Debug("cache hit", "key", key)
	return true
}

func (c *QueryCache) set(ctx context.Context, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached value at key or computes, stores and
// returns it. Concurrent misses on the same key share one computation.
// cached reports whether the value came from Redis. A nil cache always
// computes.
func GetOrCompute[T any](ctx context.Context, c *QueryCache, key string, compute func() (T, error)) (T, bool, error) {
	if c == nil {
		v, err := compute()
		return v, false, err
	}
	var cachedValue T
	if c.get(ctx, key, &cachedValue) {
		return cachedValue, true, nil
	}
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		v, err := compute()
		if err != nil {
			return nil, err
		}
		c.set(ctx, key, v)
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, false, err
	}
	return val.(T), false, nil
}

// Invalidate removes every cached result.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
