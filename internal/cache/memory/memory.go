// Package memory provides an in-process cache driver with TTL support.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/vitolahq/vitola/internal/cache"
)

func init() {
	cache.Register("memory", NewDriver)
}

// Options holds memory driver settings from Config.Options.
type Options struct {
	// DefaultTTLSeconds applies when Set or Increment receive a zero TTL.
	// Defaults to 15 minutes.
	DefaultTTLSeconds int `mapstructure:"default_ttl_seconds"`

	// CleanupIntervalSeconds sets how often the sweeper collects expired
	// entries. Defaults to 5 minutes. Expired entries are invisible to
	// reads either way; the sweeper only reclaims their memory.
	CleanupIntervalSeconds int `mapstructure:"cleanup_interval_seconds"`
}

// NewDriver creates a memory cache from driver configuration.
func NewDriver(cfg *cache.Config) (cache.CacheWithCounter, error) {
	var opts Options
	if cfg.Options != nil {
		if err := mapstructure.Decode(cfg.Options, &opts); err != nil {
			return nil, fmt.Errorf("invalid memory driver options: %w", err)
		}
	}

	defaultTTL := 15 * time.Minute
	if opts.DefaultTTLSeconds > 0 {
		defaultTTL = time.Duration(opts.DefaultTTLSeconds) * time.Second
	}
	cleanupInterval := 5 * time.Minute
	if opts.CleanupIntervalSeconds > 0 {
		cleanupInterval = time.Duration(opts.CleanupIntervalSeconds) * time.Second
	}

	return New(defaultTTL, cleanupInterval), nil
}

// item is a cached value with its expiry.
type item struct {
	value     []byte
	expiresAt time.Time
}

func (i *item) isExpired() bool {
	return time.Now().After(i.expiresAt)
}

// counterItem is a counter with its window deadline.
type counterItem struct {
	value     int64
	expiresAt time.Time
}

func (c *counterItem) isExpired() bool {
	return time.Now().After(c.expiresAt)
}

// Cache is an in-memory cache with TTL support. Values are copied on
// both store and load, so callers can never mutate cached state.
type Cache struct {
	mu         sync.RWMutex
	items      map[string]*item
	counters   map[string]*counterItem
	defaultTTL time.Duration
	stopClean  chan struct{}
}

// New creates a new in-memory cache.
// cleanupInterval specifies how often to run the sweeper (0 disables).
func New(defaultTTL time.Duration, cleanupInterval time.Duration) *Cache {
	c := &Cache{
		items:      make(map[string]*item),
		counters:   make(map[string]*counterItem),
		defaultTTL: defaultTTL,
		stopClean:  make(chan struct{}),
	}

	if cleanupInterval > 0 {
		go c.cleanupLoop(cleanupInterval)
	}

	return c
}

func (c *Cache) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.deleteExpired()
		case <-c.stopClean:
			return
		}
	}
}

func (c *Cache) deleteExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for k, v := range c.items {
		if now.After(v.expiresAt) {
			delete(c.items, k)
		}
	}
	for k, v := range c.counters {
		if now.After(v.expiresAt) {
			delete(c.counters, k)
		}
	}
}

// Get retrieves a value by key.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, ok := c.items[key]
	if !ok {
		return nil, cache.ErrNotFound
	}

	if item.isExpired() {
		return nil, cache.ErrExpired
	}

	result := make([]byte, len(item.value))
	copy(result, item.value)
	return result, nil
}

// Set stores a value with the given TTL.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.defaultTTL
	}

	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = &item{
		value:     valueCopy,
		expiresAt: time.Now().Add(ttl),
	}

	return nil
}

// Delete removes a key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, key)
	return nil
}

// Exists checks if a key exists and is not expired.
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, ok := c.items[key]
	if !ok {
		return false, nil
	}

	return !item.isExpired(), nil
}

// Increment adds delta to a counter and returns the new value together
// with the window deadline. An expired counter starts a fresh window; a
// live one keeps its original deadline.
func (c *Cache) Increment(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, time.Time, error) {
	if ttl == 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	counter, ok := c.counters[key]
	if !ok || counter.isExpired() {
		expiresAt := time.Now().Add(ttl)
		c.counters[key] = &counterItem{
			value:     delta,
			expiresAt: expiresAt,
		}
		return delta, expiresAt, nil
	}

	counter.value += delta
	return counter.value, counter.expiresAt, nil
}

// GetCount returns the current counter value.
func (c *Cache) GetCount(ctx context.Context, key string) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	counter, ok := c.counters[key]
	if !ok || counter.isExpired() {
		return 0, nil
	}

	return counter.value, nil
}

// Reset removes a counter.
func (c *Cache) Reset(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.counters, key)
	return nil
}

// Close stops the sweeper goroutine.
func (c *Cache) Close() error {
	close(c.stopClean)
	return nil
}

// Ensure Cache implements CacheWithCounter.
var _ cache.CacheWithCounter = (*Cache)(nil)
