package ratelimit

import (
	"context"
	"time"
)

// Result represents the result of a rate limit check
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

// Limiter defines the interface for rate limiting
type Limiter interface {
	// Check checks if a request should be allowed and updates counters
	Check(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)

	// Reset resets the rate limit for a key
	Reset(ctx context.Context, key string) error
}

// Policy is a request budget over a sliding window
type Policy struct {
	Limit  int
	Window time.Duration
}

// Config holds the budgets applied to the risk API
type Config struct {
	Global  Policy
	PerUser Policy
	PerIP   Policy
}

// NewConfig builds a Config sharing one window across all budgets
func NewConfig(global, perUser, perIP int, window time.Duration) *Config {
	return &Config{
		Global:  Policy{Limit: global, Window: window},
		PerUser: Policy{Limit: perUser, Window: window},
		PerIP:   Policy{Limit: perIP, Window: window},
	}
}
