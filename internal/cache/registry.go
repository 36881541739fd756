package cache

import (
	"fmt"
	"sync"
)

// Config holds configuration for cache driver selection.
type Config struct {
	// Driver is the driver name: memory, valkey
	Driver string `json:"driver"`

	// Options carries driver-specific settings, decoded by each driver
	// (e.g. valkey address, janitor interval).
	Options map[string]any `json:"options,omitempty"`
}

// Factory is a function that creates a cache driver instance.
type Factory func(cfg *Config) (CacheWithCounter, error)

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Factory)
)

// Register registers a cache driver factory by name.
// This is typically called from init() in driver packages.
func Register(name string, factory Factory) {
	driversMu.Lock()
	defer driversMu.Unlock()
	drivers[name] = factory
}

// New creates a cache driver instance based on the configuration.
func New(cfg *Config) (CacheWithCounter, error) {
	driversMu.RLock()
	factory, ok := drivers[cfg.Driver]
	driversMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown cache driver: %s", cfg.Driver)
	}

	return factory(cfg)
}

// AvailableDrivers returns the list of registered driver names.
func AvailableDrivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()

	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	return names
}
