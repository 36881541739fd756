// Package cache provides TTL key-value storage with expiring counters,
// used for rate limiting and other short-lived lookaside data.
//
// Drivers register themselves via Register. The memory driver suits a
// single process; the valkey driver shares state across processes.
package cache

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("key not found")
	ErrExpired  = errors.New("key expired")
)

// Cache provides TTL-based key-value storage.
type Cache interface {
	// Get retrieves a value by key. Returns ErrNotFound if not present.
	// Drivers that expire lazily return ErrExpired for a key past its
	// deadline that has not been collected yet.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with the given TTL. If TTL is 0, the driver's
	// default TTL applies.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key.
	Delete(ctx context.Context, key string) error

	// Exists checks if a key exists and is not expired.
	Exists(ctx context.Context, key string) (bool, error)

	// Close releases resources.
	Close() error
}

// Counter provides atomic counters that expire on a fixed window.
type Counter interface {
	// Increment adds delta to the counter and returns the new value
	// together with the moment the counter expires. The first increment
	// creates the counter with the given TTL; later increments keep the
	// original deadline, so the window never slides.
	Increment(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, time.Time, error)

	// GetCount returns the current counter value. Returns 0 if not found.
	GetCount(ctx context.Context, key string) (int64, error)

	// Reset removes the counter.
	Reset(ctx context.Context, key string) error
}

// CacheWithCounter combines Cache and Counter interfaces.
type CacheWithCounter interface {
	Cache
	Counter
}
