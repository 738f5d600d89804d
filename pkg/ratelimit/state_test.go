package ratelimit

import (
	"testing"
	"time"
)

func TestState_IsStale(t *testing.T) {
	tests := []struct {
		name     string
		state    *State
		maxAge   time.Duration
		expected bool
	}{
		{name: "fresh state", state: &State{LastUpdate: time.Now()}, maxAge: 5 * time.Minute, expected: false},
		{name: "stale state", state: &State{LastUpdate: time.Now().Add(-10 * time.Minute)}, maxAge: 5 * time.Minute, expected: true},
		{name: "just under max age", state: &State{LastUpdate: time.Now().Add(-4 * time.Minute)}, maxAge: 5 * time.Minute, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsStale(tt.maxAge); got != tt.expected {
				t.Errorf("IsStale() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestState_Gating(t *testing.T) {
	future := time.Now().Add(30 * time.Second)
	past := time.Now().Add(-30 * time.Second)

	tests := []struct {
		name         string
		state        State
		wantBlock    bool
		wantThrottle bool
	}{
		{name: "unknown", state: State{}, wantBlock: false, wantThrottle: false},
		{name: "healthy", state: State{Known: true, Remaining: 50, ResetAt: future}, wantBlock: false, wantThrottle: false},
		{name: "at warning threshold", state: State{Known: true, Remaining: RemainingWarning, ResetAt: future}, wantBlock: false, wantThrottle: false},
		{name: "warning", state: State{Known: true, Remaining: 5, ResetAt: future}, wantBlock: false, wantThrottle: true},
		{name: "at critical threshold", state: State{Known: true, Remaining: RemainingCritical, ResetAt: future}, wantBlock: false, wantThrottle: true},
		{name: "critical", state: State{Known: true, Remaining: 1, ResetAt: future}, wantBlock: true, wantThrottle: false},
		{name: "exhausted", state: State{Known: true, Remaining: 0, ResetAt: future}, wantBlock: true, wantThrottle: false},
		{name: "critical after reset", state: State{Known: true, Remaining: 0, ResetAt: past}, wantBlock: false, wantThrottle: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.NeedsCriticalBlock(); got != tt.wantBlock {
				t.Errorf("NeedsCriticalBlock() = %v, want %v", got, tt.wantBlock)
			}
			if got := tt.state.NeedsThrottling(); got != tt.wantThrottle {
				t.Errorf("NeedsThrottling() = %v, want %v", got, tt.wantThrottle)
			}
		})
	}
}

func TestState_TimeUntilReset(t *testing.T) {
	s := State{ResetAt: time.Now().Add(-time.Minute)}
	if got := s.TimeUntilReset(); got != 0 {
		t.Errorf("TimeUntilReset() = %v, want 0", got)
	}

	s = State{ResetAt: time.Now().Add(time.Minute)}
	if got := s.TimeUntilReset(); got <= 55*time.Second || got > time.Minute {
		t.Errorf("TimeUntilReset() = %v, want ~1m", got)
	}
}
