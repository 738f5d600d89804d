package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultThrottleDelay is the pause applied to each request in the warning band.
const DefaultThrottleDelay = 1 * time.Second

// DefaultMaxStateAge bounds how long an observed budget gates requests. An
// older state no longer blocks or throttles, so one request goes out and
// refreshes it.
const DefaultMaxStateAge = 5 * time.Minute

var (
	remainingGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relaxflow_rate_limit_remaining",
		Help: "Requests remaining in the current backend rate limit window",
	})

	blocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relaxflow_rate_limit_blocks_total",
		Help: "Total number of requests blocked by the critical threshold",
	})

	throttlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relaxflow_rate_limit_throttles_total",
		Help: "Total number of requests throttled by the warning threshold",
	})
)

// Tracker records the request budget reported by the backend and gates
// requests. With a Redis client the state is shared between processes;
// without one it lives in memory.
type Tracker struct {
	redis  *redis.Client
	logger zerolog.Logger

	mu            sync.Mutex
	local         State
	throttleDelay time.Duration
	maxStateAge   time.Duration
}

// NewTracker creates a tracker. redisClient may be nil.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger) *Tracker {
	return &Tracker{
		redis:         redisClient,
		logger:        logger,
		throttleDelay: DefaultThrottleDelay,
		maxStateAge:   DefaultMaxStateAge,
	}
}

// SetThrottleDelay overrides the warning-band pause.
func (t *Tracker) SetThrottleDelay(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.throttleDelay = d
}

// GetState returns the current state. Redis state wins over the in-memory
// copy when present; a Redis failure returns the in-memory copy with the error.
func (t *Tracker) GetState(ctx context.Context) (State, error) {
	t.mu.Lock()
	local := t.local
	t.mu.Unlock()

	if t.redis == nil {
		return local, nil
	}

	data, err := t.redis.Get(ctx, RedisKeyState).Bytes()
	if errors.Is(err, redis.Nil) {
		return local, nil
	}
	if err != nil {
		return local, fmt.Errorf("get rate limit state: %w", err)
	}

	var shared State
	if err := json.Unmarshal(data, &shared); err != nil {
		return local, fmt.Errorf("decode rate limit state: %w", err)
	}
	return shared, nil
}

// UpdateFromHeaders records the budget from a response. Responses without
// X-RateLimit-Remaining are ignored.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, headers http.Header) error {
	remainStr := headers.Get(HeaderRemaining)
	if remainStr == "" {
		return nil
	}

	remain, err := strconv.Atoi(remainStr)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", HeaderRemaining, err)
	}

	resetSeconds := 0
	if resetStr := headers.Get(HeaderReset); resetStr != "" {
		if resetSeconds, err = strconv.Atoi(resetStr); err != nil {
			return fmt.Errorf("parse %s header: %w", HeaderReset, err)
		}
	}

	limit, _ := strconv.Atoi(headers.Get(HeaderLimit))

	now := time.Now()
	state := State{
		Remaining:  remain,
		Limit:      limit,
		ResetAt:    now.Add(time.Duration(resetSeconds) * time.Second),
		LastUpdate: now,
		Known:      true,
	}

	t.mu.Lock()
	t.local = state
	t.mu.Unlock()

	remainingGauge.Set(float64(remain))

	switch {
	case state.NeedsCriticalBlock():
		t.logger.Error().
			Int("remaining", remain).
			Time("reset_at", state.ResetAt).
			Msg("Rate limit CRITICAL - requests will be blocked until reset")
	case state.NeedsThrottling():
		t.logger.Warn().
			Int("remaining", remain).
			Time("reset_at", state.ResetAt).
			Msg("Rate limit WARNING - requests will be throttled")
	default:
		t.logger.Debug().
			Int("remaining", remain).
			Time("reset_at", state.ResetAt).
			Msg("Rate limit state updated")
	}

	if t.redis == nil {
		return nil
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode rate limit state: %w", err)
	}
	ttl := state.TimeUntilReset() + time.Minute
	if err := t.redis.Set(ctx, RedisKeyState, data, ttl).Err(); err != nil {
		return fmt.Errorf("store rate limit state in redis: %w", err)
	}
	return nil
}

// SetMaxStateAge overrides how long an observed budget gates requests.
func (t *Tracker) SetMaxStateAge(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.maxStateAge = d
}

// ShouldAllowRequest reports whether a request may be sent. In the warning
// band it sleeps for the throttle delay first, returning early with the
// context error if ctx is done.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		t.logger.Warn().Err(err).Msg("Falling back to in-memory rate limit state")
	}

	t.mu.Lock()
	maxAge := t.maxStateAge
	t.mu.Unlock()
	if state.Known && state.IsStale(maxAge) {
		t.logger.Debug().
			Time("last_update", state.LastUpdate).
			Msg("Rate limit state is stale - not gating")
		return true, nil
	}

	if state.NeedsCriticalBlock() {
		t.logger.Error().
			Int("remaining", state.Remaining).
			Dur("wait_duration", state.TimeUntilReset()).
			Msg("Rate limit critical - blocking request")
		blocksTotal.Inc()
		return false, nil
	}

	if state.NeedsThrottling() {
		t.mu.Lock()
		delay := t.throttleDelay
		t.mu.Unlock()

		t.logger.Warn().
			Int("remaining", state.Remaining).
			Dur("delay", delay).
			Msg("Rate limit warning - throttling request")
		throttlesTotal.Inc()

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(delay):
		}
	}

	return true, nil
}
