package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// KeyPrefix namespaces every cache key in Redis.
const KeyPrefix = "relaxflow"

// CacheKey identifies a cached backend response.
type CacheKey struct {
	// Path is the request path (e.g., "/api/v1/users")
	Path string

	// QueryParams are the query parameters (e.g., {"page": "2", "limit": "10"})
	QueryParams url.Values

	// Scope separates responses fetched with different credentials
	Scope string
}

// CollectionOf strips a trailing record id: /api/v1/users/7 -> /api/v1/users.
func CollectionOf(path string) string {
	p := strings.TrimRight(path, "/")
	i := strings.LastIndex(p, "/")
	if i <= 0 {
		return p
	}
	if _, err := strconv.ParseInt(p[i+1:], 10, 64); err == nil {
		return p[:i]
	}
	return p
}

// Collection returns the collection the cached response belongs to.
func (k CacheKey) Collection() string {
	return CollectionOf(k.Path)
}

// IndexKey names the Redis set listing every cached key of a collection.
func IndexKey(collection string) string {
	return KeyPrefix + "-index:" + strings.Trim(collection, "/")
}

// ScopeForToken derives a short, non-reversible scope from a bearer token.
func ScopeForToken(token string) string {
	if token == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:6])
}

// String generates a deterministic cache key string.
// Format: relaxflow:path:query1=val1:query2=val2:scope=abc
//
// Example:
//
//	relaxflow:api/v1/users:limit=10:page=2
func (k CacheKey) String() string {
	parts := []string{KeyPrefix}

	if path := strings.Trim(k.Path, "/"); path != "" {
		parts = append(parts, path)
	}

	if len(k.QueryParams) > 0 {
		keys := make([]string, 0, len(k.QueryParams))
		for key := range k.QueryParams {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			values := append([]string(nil), k.QueryParams[key]...)
			sort.Strings(values)
			parts = append(parts, fmt.Sprintf("%s=%s", key, strings.Join(values, ",")))
		}
	}

	if k.Scope != "" {
		parts = append(parts, "scope="+k.Scope)
	}

	return strings.Join(parts, ":")
}
