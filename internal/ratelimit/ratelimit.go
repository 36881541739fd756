// Package ratelimit provides fixed-window rate limiting backed by a
// cache counter. Each client key gets a counter that expires when its
// window ends; the window is armed by the first request and never
// slides.
package ratelimit

import (
	"context"
	"time"

	"github.com/vitolahq/vitola/internal/cache"
)

// Config holds rate limiter settings.
type Config struct {
	// RequestsPerWindow is the maximum requests allowed per window.
	RequestsPerWindow int64

	// Window is the time window for rate limiting.
	Window time.Duration

	// KeyPrefix namespaces counter keys, so several limiters can share
	// one cache.
	KeyPrefix string
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		RequestsPerWindow: 100,
		Window:            time.Minute,
		KeyPrefix:         "ratelimit:",
	}
}

// Limiter enforces rate limits using an expiring counter.
type Limiter struct {
	counter cache.Counter
	config  *Config
}

// New creates a rate limiter backed by the given counter.
func New(counter cache.Counter, config *Config) *Limiter {
	if config == nil {
		config = DefaultConfig()
	}
	return &Limiter{
		counter: counter,
		config:  config,
	}
}

// Result describes the outcome of a rate limit decision.
type Result struct {
	// Allowed is whether the request may proceed.
	Allowed bool

	// Limit is the configured maximum for the window.
	Limit int64

	// Remaining is how many requests are left in the window.
	Remaining int64

	// ResetAt is when the window expires.
	ResetAt time.Time
}

// Allow records a request for the given key and reports whether it fits
// in the current window.
func (l *Limiter) Allow(ctx context.Context, key string) (*Result, error) {
	count, resetAt, err := l.counter.Increment(ctx, l.config.KeyPrefix+key, 1, l.config.Window)
	if err != nil {
		return nil, err
	}

	remaining := l.config.RequestsPerWindow - count
	if remaining < 0 {
		remaining = 0
	}

	return &Result{
		Allowed:   count <= l.config.RequestsPerWindow,
		Limit:     l.config.RequestsPerWindow,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

// Check reports the state of the window without recording a request.
// ResetAt is approximate; only Allow learns the counter's real deadline.
func (l *Limiter) Check(ctx context.Context, key string) (*Result, error) {
	count, err := l.counter.GetCount(ctx, l.config.KeyPrefix+key)
	if err != nil {
		return nil, err
	}

	remaining := l.config.RequestsPerWindow - count
	if remaining < 0 {
		remaining = 0
	}

	return &Result{
		Allowed:   count < l.config.RequestsPerWindow,
		Limit:     l.config.RequestsPerWindow,
		Remaining: remaining,
		ResetAt:   time.Now().Add(l.config.Window),
	}, nil
}

// Reset clears the counter for the given key.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	return l.counter.Reset(ctx, l.config.KeyPrefix+key)
}
