// Package cache provides a Redis-backed response cache for backend GET
// requests.
//
// Only responses that carry an ETag or Last-Modified validator are stored,
// and the client always revalidates a cached entry with a conditional request
// before serving it. Listings therefore never go stale after a mutation: the
// backend answers 304 Not Modified or a fresh 200.
//
// # Basic Usage
//
//	manager := cache.NewManager(redisClient)
//
//	key := cache.CacheKey{
//		Path:        "/api/v1/users",
//		QueryParams: url.Values{"page": []string{"2"}, "limit": []string{"10"}},
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from the backend
//	}
//
//	if cache.Cacheable(resp) {
//		entry, _ := cache.ResponseToEntry(resp)
//		_ = manager.Set(ctx, key, entry)
//	}
//
// Every stored key is also recorded in a per-collection index set, so a
// mutation of /api/v1/users/7 drops all cached users pages and records:
//
//	n, err := manager.InvalidatePath(ctx, "/api/v1/users")
//
// # Metrics
//
//   - relaxflow_cache_hits_total{collection}
//   - relaxflow_cache_misses_total{collection}
//   - relaxflow_cache_invalidated_keys_total{collection}
//   - relaxflow_cache_entry_bytes
//   - relaxflow_conditional_requests_total
//   - relaxflow_304_responses_total
//   - relaxflow_cache_errors_total{operation}
package cache
