package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Manager handles caching operations with Redis backend.
type Manager struct {
	redis *redis.Client
}

// NewManager creates a new cache manager with Redis backend.
func NewManager(redisClient *redis.Client) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &Manager{
		redis: redisClient,
	}
}

// IndexTTL is the minimum lifetime of a collection index set. Each Set
// extends it to cover the entry it adds.
const IndexTTL = time.Hour

// Get retrieves a cache entry by key.
// Returns ErrCacheMiss if the key doesn't exist or the entry is expired.
func (m *Manager) Get(ctx context.Context, key CacheKey) (*CacheEntry, error) {
	collection := key.Collection()

	data, err := m.redis.Get(ctx, key.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			CacheMisses.WithLabelValues(collection).Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get %s: %w", collection, err)
	}

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	if entry.IsExpired() {
		_ = m.Delete(ctx, key)
		CacheMisses.WithLabelValues(collection).Inc()
		return nil, ErrCacheMiss
	}

	CacheHits.WithLabelValues(collection).Inc()
	return &entry, nil
}

// Set stores a cache entry until its Expires time and records the key in its
// collection's index. Expired entries are skipped.
func (m *Manager) Set(ctx context.Context, key CacheKey, entry *CacheEntry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	ttl := entry.TTL()
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	k, index := key.String(), IndexKey(key.Collection())
	_, err = m.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, k, data, ttl)
		pipe.SAdd(ctx, index, k)
		pipe.Expire(ctx, index, max(ttl, IndexTTL))
		return nil
	})
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set %s: %w", k, err)
	}

	CacheEntryBytes.Observe(float64(len(data)))
	return nil
}

// Delete removes a cache entry and its index membership.
func (m *Manager) Delete(ctx context.Context, key CacheKey) error {
	k := key.String()
	_, err := m.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, k)
		pipe.SRem(ctx, IndexKey(key.Collection()), k)
		return nil
	})
	if err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del %s: %w", k, err)
	}
	return nil
}

// Revalidate applies a 304 Not Modified answer to entry and stores it again.
// The new expiry comes from the 304's caching headers; a changed ETag or
// Last-Modified replaces the stored validator.
func (m *Manager) Revalidate(ctx context.Context, key CacheKey, entry *CacheEntry, headers http.Header) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	entry.Expires = ParseExpires(headers)
	if etag := headers.Get("ETag"); etag != "" && etag != entry.ETag {
		entry.ETag = etag
		if entry.Headers != nil {
			entry.Headers.Set("ETag", etag)
		}
	}
	if lm := headers.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			entry.LastModified = t
		}
	}

	if err := m.Set(ctx, key, entry); err != nil {
		CacheErrors.WithLabelValues("revalidate").Inc()
		return err
	}
	return nil
}

// InvalidatePath drops every cached response of the collection path belongs
// to, whatever its query string, record id or scope, and returns how many
// entries were removed.
func (m *Manager) InvalidatePath(ctx context.Context, path string) (int, error) {
	collection := CollectionOf(path)
	index := IndexKey(collection)

	keys, err := m.redis.SMembers(ctx, index).Result()
	if err != nil {
		CacheErrors.WithLabelValues("invalidate").Inc()
		return 0, fmt.Errorf("redis smembers %s: %w", index, err)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	var removed *redis.IntCmd
	_, err = m.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.Del(ctx, keys...)
		pipe.Del(ctx, index)
		return nil
	})
	if err != nil {
		CacheErrors.WithLabelValues("invalidate").Inc()
		return 0, fmt.Errorf("redis del %s: %w", collection, err)
	}

	n := int(removed.Val())
	CacheInvalidations.WithLabelValues(collection).Add(float64(n))
	return n, nil
}
