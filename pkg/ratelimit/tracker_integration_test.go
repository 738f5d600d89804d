//go:build integration

package ratelimit

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a Redis container and returns a client
func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	endpoint, err := redisContainer.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Failed to get Redis endpoint: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("Failed to connect to Redis: %v", err)
	}

	t.Cleanup(func() {
		client.Close()
		redisContainer.Terminate(ctx)
	})

	return client
}

func TestTracker_Integration_SharedState(t *testing.T) {
	redisClient := setupRedis(t)
	ctx := context.Background()

	writer := NewTracker(redisClient, zerolog.Nop())
	reader := NewTracker(redisClient, zerolog.Nop())

	state, err := reader.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state.Known {
		t.Error("empty Redis should yield an unknown state")
	}

	headers := http.Header{}
	headers.Set(HeaderRemaining, "75")
	headers.Set(HeaderReset, "120")
	headers.Set(HeaderLimit, "100")

	if err := writer.UpdateFromHeaders(ctx, headers); err != nil {
		t.Fatalf("UpdateFromHeaders() error = %v", err)
	}

	state, err = reader.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState() after update error = %v", err)
	}
	if state.Remaining != 75 || state.Limit != 100 || !state.Known {
		t.Errorf("shared state = %+v", state)
	}

	tolerance := 5 * time.Second
	if d := state.TimeUntilReset(); d < 120*time.Second-tolerance || d > 120*time.Second {
		t.Errorf("TimeUntilReset = %v, want approximately 2m", d)
	}
}

func TestTracker_Integration_CriticalBlocksOtherProcess(t *testing.T) {
	redisClient := setupRedis(t)
	ctx := context.Background()

	writer := NewTracker(redisClient, zerolog.Nop())
	reader := NewTracker(redisClient, zerolog.Nop())

	headers := http.Header{}
	headers.Set(HeaderRemaining, "1")
	headers.Set(HeaderReset, "60")
	if err := writer.UpdateFromHeaders(ctx, headers); err != nil {
		t.Fatalf("UpdateFromHeaders() error = %v", err)
	}

	allowed, err := reader.ShouldAllowRequest(ctx)
	if err != nil {
		t.Fatalf("ShouldAllowRequest() error = %v", err)
	}
	if allowed {
		t.Error("ShouldAllowRequest() = true, want false for critical shared state")
	}
}

func TestTracker_Integration_ThrottlesWarning(t *testing.T) {
	redisClient := setupRedis(t)
	ctx := context.Background()

	tracker := NewTracker(redisClient, zerolog.Nop())
	tracker.SetThrottleDelay(200 * time.Millisecond)

	headers := http.Header{}
	headers.Set(HeaderRemaining, "8")
	headers.Set(HeaderReset, "60")
	if err := tracker.UpdateFromHeaders(ctx, headers); err != nil {
		t.Fatalf("UpdateFromHeaders() error = %v", err)
	}

	start := time.Now()
	allowed, err := tracker.ShouldAllowRequest(ctx)
	if err != nil || !allowed {
		t.Fatalf("ShouldAllowRequest() = %v, %v; want true, nil", allowed, err)
	}
	if d := time.Since(start); d < 200*time.Millisecond {
		t.Errorf("throttle duration = %v, want >= 200ms", d)
	}
}
