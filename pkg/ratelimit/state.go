// Package ratelimit tracks the backend's request budget from the
// X-RateLimit-Remaining and X-RateLimit-Reset response headers and gates
// outgoing requests before the budget runs out.
package ratelimit

import (
	"time"
)

// Response headers read by the tracker.
const (
	HeaderRemaining = "X-RateLimit-Remaining"
	HeaderReset     = "X-RateLimit-Reset"
	HeaderLimit     = "X-RateLimit-Limit"
)

// RedisKeyState holds the JSON-encoded State shared between processes.
const RedisKeyState = "relaxflow:rate_limit:state"

// Thresholds for gating decisions.
const (
	// RemainingCritical blocks requests while fewer calls remain, until the
	// window resets.
	RemainingCritical = 2

	// RemainingWarning throttles requests while fewer calls remain.
	RemainingWarning = 10
)

// State is the last observed request budget.
type State struct {
	// Remaining is the number of requests left in the current window.
	Remaining int `json:"remaining"`

	// Limit is the window size, 0 when the backend does not send it.
	Limit int `json:"limit,omitempty"`

	// ResetAt is when the window resets.
	ResetAt time.Time `json:"reset_at"`

	LastUpdate time.Time `json:"last_update"`

	// Known is false until a response carried rate-limit headers.
	Known bool `json:"known"`
}

// IsStale returns true if the state is older than maxAge.
func (s *State) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// TimeUntilReset returns the duration until the window resets, or 0 if the
// reset time has passed.
func (s *State) TimeUntilReset() time.Duration {
	duration := time.Until(s.ResetAt)
	if duration < 0 {
		return 0
	}
	return duration
}

// NeedsCriticalBlock reports whether requests must be held back until the
// window resets.
func (s *State) NeedsCriticalBlock() bool {
	return s.Known && s.Remaining < RemainingCritical && s.TimeUntilReset() > 0
}

// NeedsThrottling reports whether requests should be slowed down.
func (s *State) NeedsThrottling() bool {
	return s.Known && s.Remaining < RemainingWarning && s.TimeUntilReset() > 0 && !s.NeedsCriticalBlock()
}
