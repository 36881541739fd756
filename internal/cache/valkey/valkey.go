// Package valkey provides a cache driver backed by a Valkey or Redis
// server, letting multiple processes share counters and cached values.
package valkey

import (
	"context"
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/valkey-io/valkey-go"

	"github.com/vitolahq/vitola/internal/cache"
)

func init() {
	cache.Register("valkey", NewDriver)
}

// Options holds valkey driver settings from Config.Options.
type Options struct {
	// Addr is the host:port of the server. Defaults to localhost:6379.
	Addr string `mapstructure:"addr"`

	// Password authenticates the connection when set.
	Password string `mapstructure:"password"`

	// DB selects the logical database.
	DB int `mapstructure:"db"`

	// DefaultTTLSeconds applies when Set or Increment receive a zero TTL.
	// Defaults to 15 minutes.
	DefaultTTLSeconds int `mapstructure:"default_ttl_seconds"`
}

// NewDriver creates a valkey cache from driver configuration.
func NewDriver(cfg *cache.Config) (cache.CacheWithCounter, error) {
	var opts Options
	if cfg.Options != nil {
		if err := mapstructure.Decode(cfg.Options, &opts); err != nil {
			return nil, fmt.Errorf("invalid valkey driver options: %w", err)
		}
	}
	return New(opts)
}

// Cache talks to a Valkey or Redis server. The server owns expiry, so a
// missing and an expired key both read as cache.ErrNotFound.
type Cache struct {
	client     valkey.Client
	defaultTTL time.Duration
}

// New connects to the server and verifies it responds before returning.
func New(opts Options) (*Cache, error) {
	if opts.Addr == "" {
		opts.Addr = "localhost:6379"
	}
	defaultTTL := 15 * time.Minute
	if opts.DefaultTTLSeconds > 0 {
		defaultTTL = time.Duration(opts.DefaultTTLSeconds) * time.Second
	}

	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{opts.Addr},
		Password:    opts.Password,
		SelectDB:    opts.DB,
		// Counters must not be served from a client-side cache.
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to valkey at %s: %w", opts.Addr, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping valkey at %s: %w", opts.Addr, err)
	}

	return &Cache{client: client, defaultTTL: defaultTTL}, nil
}

// Get retrieves a value by key.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Do(ctx, c.client.B().Get().Key(key).Build()).AsBytes()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, cache.ErrNotFound
		}
		return nil, err
	}
	return val, nil
}

// Set stores a value with the given TTL.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	cmd := c.client.B().Set().Key(key).Value(valkey.BinaryString(value)).Px(ttl).Build()
	return c.client.Do(ctx, cmd).Error()
}

// Delete removes a key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.client.Do(ctx, c.client.B().Del().Key(key).Build()).Error()
}

// Exists checks if a key exists.
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Do(ctx, c.client.B().Exists().Key(key).Build()).AsInt64()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Increment adds delta to a counter and returns the new value together
// with the window deadline. Only the increment that creates the key arms
// the expiry, so the window never slides.
func (c *Cache) Increment(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, time.Time, error) {
	if ttl == 0 {
		ttl = c.defaultTTL
	}

	count, err := c.client.Do(ctx, c.client.B().Incrby().Key(key).Increment(delta).Build()).AsInt64()
	if err != nil {
		return 0, time.Time{}, err
	}

	if count == delta {
		// First increment in this window; start the clock.
		if err := c.expire(ctx, key, ttl); err != nil {
			return 0, time.Time{}, err
		}
		return count, time.Now().Add(ttl), nil
	}

	remaining, err := c.client.Do(ctx, c.client.B().Pttl().Key(key).Build()).AsInt64()
	if err != nil {
		return 0, time.Time{}, err
	}
	if remaining < 0 {
		// The key carries no expiry, likely seeded outside Increment.
		// Arm one so the counter cannot grow forever.
		if err := c.expire(ctx, key, ttl); err != nil {
			return 0, time.Time{}, err
		}
		remaining = ttl.Milliseconds()
	}
	return count, time.Now().Add(time.Duration(remaining) * time.Millisecond), nil
}

func (c *Cache) expire(ctx context.Context, key string, ttl time.Duration) error {
	cmd := c.client.B().Pexpire().Key(key).Milliseconds(ttl.Milliseconds()).Build()
	return c.client.Do(ctx, cmd).Error()
}

// GetCount returns the current counter value.
func (c *Cache) GetCount(ctx context.Context, key string) (int64, error) {
	n, err := c.client.Do(ctx, c.client.B().Get().Key(key).Build()).AsInt64()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return 0, nil
		}
		return 0, err
	}
	return n, nil
}

// Reset removes a counter.
func (c *Cache) Reset(ctx context.Context, key string) error {
	return c.client.Do(ctx, c.client.B().Del().Key(key).Build()).Error()
}

// Close shuts down the client connection.
func (c *Cache) Close() error {
	c.client.Close()
	return nil
}

// Ensure Cache implements CacheWithCounter.
var _ cache.CacheWithCounter = (*Cache)(nil)
