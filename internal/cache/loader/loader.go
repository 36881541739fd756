// Package loader registers all cache drivers via side-effect imports.
// Import it blank from the main package to make every driver available
// to cache.New.
package loader

import (
	_ "github.com/vitolahq/vitola/internal/cache/memory"
	_ "github.com/vitolahq/vitola/internal/cache/valkey"
)
