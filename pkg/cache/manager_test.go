package cache

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// setupTestRedis connects to a local Redis on DB 15 and skips when none is
// running. The client integration tests cover the same paths against a
// container.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}

	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func usersKey(page string) CacheKey {
	return CacheKey{
		Path:        "/api/v1/users",
		QueryParams: url.Values{"page": []string{page}, "limit": []string{"10"}},
		Scope:       ScopeForToken("test-token"),
	}
}

func TestNewManager_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewManager should panic with nil redis client")
		}
	}()
	NewManager(nil)
}

func TestManager_SetAndGet(t *testing.T) {
	manager := NewManager(setupTestRedis(t))
	ctx := context.Background()
	key := usersKey("1")

	entry := &CacheEntry{
		Data:         []byte(`{"data":[{"id":1}]}`),
		ETag:         `"abc123"`,
		Expires:      time.Now().Add(5 * time.Minute),
		LastModified: time.Now().Add(-1 * time.Hour),
		StatusCode:   200,
		Headers:      http.Header{"Content-Type": []string{"application/json"}},
		CachedAt:     time.Now(),
	}

	if err := manager.Set(ctx, key, entry); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	retrieved, err := manager.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if string(retrieved.Data) != string(entry.Data) {
		t.Errorf("Data mismatch: got %s, want %s", retrieved.Data, entry.Data)
	}
	if retrieved.ETag != entry.ETag {
		t.Errorf("ETag mismatch: got %s, want %s", retrieved.ETag, entry.ETag)
	}
	if retrieved.StatusCode != entry.StatusCode {
		t.Errorf("StatusCode mismatch: got %d, want %d", retrieved.StatusCode, entry.StatusCode)
	}

	if _, err := manager.Get(ctx, usersKey("2")); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("other page should miss, got %v", err)
	}
}

func TestManager_Get_CacheMiss(t *testing.T) {
	manager := NewManager(setupTestRedis(t))

	_, err := manager.Get(context.Background(), CacheKey{Path: "/api/v1/nonexistent"})
	if !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss, got %v", err)
	}
}

func TestManager_Set_ExpiredEntrySkipped(t *testing.T) {
	manager := NewManager(setupTestRedis(t))
	ctx := context.Background()
	key := usersKey("1")

	entry := &CacheEntry{
		Data:    []byte(`{"data":[]}`),
		Expires: time.Now().Add(-1 * time.Hour),
	}

	if err := manager.Set(ctx, key, entry); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if _, err := manager.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss for expired entry, got %v", err)
	}
}

func TestManager_Get_InvalidEntry(t *testing.T) {
	client := setupTestRedis(t)
	manager := NewManager(client)
	ctx := context.Background()
	key := usersKey("1")

	if err := client.Set(ctx, key.String(), "not json", time.Minute).Err(); err != nil {
		t.Fatalf("raw set failed: %v", err)
	}

	if _, err := manager.Get(ctx, key); !errors.Is(err, ErrInvalidEntry) {
		t.Errorf("Expected ErrInvalidEntry, got %v", err)
	}
}

func TestManager_Delete(t *testing.T) {
	manager := NewManager(setupTestRedis(t))
	ctx := context.Background()
	key := usersKey("1")

	entry := &CacheEntry{
		Data:    []byte(`{"data":[]}`),
		ETag:    `"v1"`,
		Expires: time.Now().Add(5 * time.Minute),
	}

	if err := manager.Set(ctx, key, entry); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, err := manager.Get(ctx, key); err != nil {
		t.Fatalf("Get after Set failed: %v", err)
	}
	if err := manager.Delete(ctx, key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := manager.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss after Delete, got %v", err)
	}
}

func TestManager_Revalidate(t *testing.T) {
	manager := NewManager(setupTestRedis(t))
	ctx := context.Background()
	key := usersKey("1")

	entry := &CacheEntry{
		Data:    []byte(`{"data":[]}`),
		ETag:    `"v1"`,
		Expires: time.Now().Add(5 * time.Second),
		Headers: http.Header{"Etag": []string{`"v1"`}},
	}
	if err := manager.Set(ctx, key, entry); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	notModified := http.Header{}
	notModified.Set("Cache-Control", "max-age=600")
	notModified.Set("ETag", `"v2"`)
	if err := manager.Revalidate(ctx, key, entry, notModified); err != nil {
		t.Fatalf("Revalidate failed: %v", err)
	}

	retrieved, err := manager.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get after Revalidate failed: %v", err)
	}

	if ttl := retrieved.TTL(); ttl < 9*time.Minute {
		t.Errorf("TTL = %v, want about 10m from max-age", ttl)
	}
	if retrieved.ETag != `"v2"` {
		t.Errorf("ETag = %s, want the 304's validator", retrieved.ETag)
	}
	if got := retrieved.Headers.Get("ETag"); got != `"v2"` {
		t.Errorf("stored ETag header = %s, want \"v2\"", got)
	}
}

func TestManager_Set_NilEntry(t *testing.T) {
	manager := NewManager(setupTestRedis(t))

	if err := manager.Set(context.Background(), usersKey("1"), nil); err == nil {
		t.Error("Set with nil entry should return error")
	}
}

func TestManager_InvalidatePath(t *testing.T) {
	manager := NewManager(setupTestRedis(t))
	ctx := context.Background()

	owners := CacheKey{Path: "/api/v1/owners", QueryParams: url.Values{"page": []string{"1"}}}
	entry := &CacheEntry{Data: []byte(`[]`), ETag: `"v1"`, Expires: time.Now().Add(time.Minute), StatusCode: http.StatusOK}
	for _, key := range []CacheKey{
		usersKey("1"),
		usersKey("2"),
		{Path: "/api/v1/users"},
		{Path: "/api/v1/users/7", Scope: ScopeForToken("test-token")},
		owners,
	} {
		if err := manager.Set(ctx, key, entry); err != nil {
			t.Fatalf("Set(%s) error = %v", key, err)
		}
	}

	n, err := manager.InvalidatePath(ctx, "/api/v1/users/7")
	if err != nil {
		t.Fatalf("InvalidatePath() error = %v", err)
	}
	if n != 4 {
		t.Errorf("InvalidatePath() removed %d keys, want 4 (pages and the record)", n)
	}

	if _, err := manager.Get(ctx, usersKey("1")); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("users page 1 still cached: %v", err)
	}
	if _, err := manager.Get(ctx, owners); err != nil {
		t.Errorf("owners listing should survive, got %v", err)
	}

	n, err = manager.InvalidatePath(ctx, "/api/v1/users")
	if err != nil || n != 0 {
		t.Errorf("second InvalidatePath() = %d, %v; want 0, nil", n, err)
	}
}

func TestManager_DeleteDropsIndexMembership(t *testing.T) {
	client := setupTestRedis(t)
	manager := NewManager(client)
	ctx := context.Background()

	entry := &CacheEntry{Data: []byte(`[]`), ETag: `"v1"`, Expires: time.Now().Add(time.Minute)}
	for _, page := range []string{"1", "2"} {
		if err := manager.Set(ctx, usersKey(page), entry); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}
	if err := manager.Delete(ctx, usersKey("1")); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	members, err := client.SMembers(ctx, IndexKey("/api/v1/users")).Result()
	if err != nil {
		t.Fatalf("SMembers failed: %v", err)
	}
	if len(members) != 1 || members[0] != usersKey("2").String() {
		t.Errorf("index = %v, want only page 2", members)
	}
}
