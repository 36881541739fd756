// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Mode represents the server operating mode.
type Mode string

const (
	ModeStrict Mode = "strict"
	ModeDev    Mode = "dev"
)

// ParseMode parses a mode string, returning an error for invalid values.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "strict", "":
		return ModeStrict, nil
	case "dev":
		return ModeDev, nil
	default:
		return "", fmt.Errorf("invalid mode %q: must be one of strict, dev", s)
	}
}

// LoaderOptions controls how configuration is loaded.
type LoaderOptions struct {
	// ConfigPath is the path to a TOML config file (optional).
	// If provided but file is missing or invalid, loading fails.
	ConfigPath string

	// ModeFlag is the --mode flag value (overrides config file mode).
	ModeFlag string

	// FlagOverrides are CLI flag values that override config file values.
	FlagOverrides FlagOverrides

	// Logger is used for warning messages (e.g., undecoded keys).
	// If nil, slog.Default() is used.
	Logger *slog.Logger
}

// FlagOverrides holds CLI flag values that override config file values.
type FlagOverrides struct {
	ListenAddr    *string
	PublicOrigin  *string
	LogLevel      *string
	TLSMode       *string
	StoreDriver   *string
	StoreDataDir  *string
	CacheDriver   *string
	AdminUsername *string
	AdminPassword *string
}

// fileConfig mirrors Config but with pointer sections to detect presence.
type fileConfig struct {
	Mode string `toml:"mode"`

	PublicOrigin string `toml:"public_origin"`
	ListenAddr   string `toml:"listen_addr"`

	Server    *serverConfig    `toml:"server"`
	TLS       *TLSConfig       `toml:"tls"`
	Store     *StoreConfig     `toml:"store"`
	Cache     *CacheConfig     `toml:"cache"`
	Logging   *LoggingConfig   `toml:"logging"`
	RateLimit *rateLimitConfig `toml:"rate_limit"`
}

// serverConfig holds server-specific settings in TOML.
type serverConfig struct {
	TrustedProxies []string        `toml:"trusted_proxies"`
	BootstrapAdmin *bootstrapAdmin `toml:"bootstrap_admin"`
}

// bootstrapAdmin holds bootstrap admin credentials in TOML.
type bootstrapAdmin struct {
	Username string `toml:"username"`
	Password string `toml:"password"`
	Email    string `toml:"email"`
}

// rateLimitConfig holds rate limit settings in TOML.
type rateLimitConfig struct {
	Login      *RateLimitRule `toml:"login"`
	PublicView *RateLimitRule `toml:"public_view"`
}

// Load loads configuration with the following precedence:
//  1. Determine effective mode: --mode flag > mode in config file > default (strict)
//  2. Start from mode preset defaults
//  3. Overlay TOML config file values
//  4. Overlay CLI flags
//  5. Validate enum fields
//
// If ConfigPath is provided but the file is missing, unreadable, or invalid TOML,
// Load returns an error (fail fast). Unknown/undecoded TOML keys produce a warning
// but do not fail the load.
func Load(opts LoaderOptions) (*Config, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var fc fileConfig

	// Step 1: Load TOML file if provided
	if opts.ConfigPath != "" {
		data, err := os.ReadFile(opts.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", opts.ConfigPath, err)
		}
		md, err := toml.Decode(string(data), &fc)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", opts.ConfigPath, err)
		}

		// Warn about undecoded keys (do not fail)
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			logger.Warn("config file contains undecoded keys", "path", opts.ConfigPath, "keys", keys)
		}
	}

	// Step 2: Determine effective mode
	modeStr := "strict" // default
	if fc.Mode != "" {
		modeStr = fc.Mode
	}
	if opts.ModeFlag != "" {
		modeStr = opts.ModeFlag
	}

	mode, err := ParseMode(modeStr)
	if err != nil {
		return nil, err
	}

	// Step 3: Start from mode preset
	cfg := presetForMode(mode)

	// Step 4: Overlay TOML values
	if opts.ConfigPath != "" {
		overlayFileConfig(cfg, &fc)
	}

	// Step 5: Overlay CLI flags
	overlayFlags(cfg, opts.FlagOverrides)

	// A trailing slash on the origin would double up when paths are appended.
	cfg.PublicOrigin = strings.TrimSuffix(cfg.PublicOrigin, "/")

	// Step 6: Validate enum fields (fatal on invalid values)
	if err := validateEnums(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// presetForMode returns the base config for a given mode.
func presetForMode(mode Mode) *Config {
	if mode == ModeDev {
		return DevConfig()
	}
	return StrictConfig()
}

// StrictConfig returns production-safe strict defaults.
func StrictConfig() *Config {
	return &Config{
		Mode:         string(ModeStrict),
		PublicOrigin: "https://localhost:8443",
		ListenAddr:   ":8443",
		Server: ServerConfig{
			TrustedProxies: []string{"127.0.0.0/8", "::1/128"},
			BootstrapAdmin: BootstrapAdminConfig{
				Username: "admin",
			},
		},
		TLS: TLSConfig{
			Mode:          "selfsigned",
			HTTPPort:      8080,
			HTTPSPort:     8443,
			SelfSignedDir: ".vitola/certs",
			ACME: ACMEConfig{
				Directory:  "https://acme-v02.api.letsencrypt.org/directory",
				StorageDir: ".vitola/acme",
				UseStaging: false,
			},
		},
		Store: StoreConfig{
			Driver:  "json",
			DataDir: ".vitola/data",
		},
		Cache: CacheConfig{
			Driver: "memory",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		RateLimit: RateLimitConfig{
			Login:      RateLimitRule{Requests: 5, WindowSeconds: 60},
			PublicView: RateLimitRule{Requests: 30, WindowSeconds: 60},
		},
	}
}

// DevConfig returns development mode defaults.
func DevConfig() *Config {
	cfg := StrictConfig()
	cfg.Mode = string(ModeDev)
	cfg.PublicOrigin = "http://localhost:8080"
	cfg.ListenAddr = ":8080"
	cfg.TLS.Mode = "off"
	cfg.TLS.ACME.Directory = "https://acme-staging-v02.api.letsencrypt.org/directory"
	cfg.TLS.ACME.UseStaging = true
	cfg.Logging.Level = "debug"
	return cfg
}

// overlayFileConfig applies TOML file values onto cfg.
func overlayFileConfig(cfg *Config, fc *fileConfig) {
	if fc.PublicOrigin != "" {
		cfg.PublicOrigin = fc.PublicOrigin
	}
	if fc.ListenAddr != "" {
		cfg.ListenAddr = fc.ListenAddr
	}

	if fc.Server != nil {
		if len(fc.Server.TrustedProxies) > 0 {
			cfg.Server.TrustedProxies = fc.Server.TrustedProxies
		}
		if fc.Server.BootstrapAdmin != nil {
			if fc.Server.BootstrapAdmin.Username != "" {
				cfg.Server.BootstrapAdmin.Username = fc.Server.BootstrapAdmin.Username
			}
			if fc.Server.BootstrapAdmin.Password != "" {
				cfg.Server.BootstrapAdmin.Password = fc.Server.BootstrapAdmin.Password
			}
			if fc.Server.BootstrapAdmin.Email != "" {
				cfg.Server.BootstrapAdmin.Email = fc.Server.BootstrapAdmin.Email
			}
		}
	}

	if fc.TLS != nil {
		if fc.TLS.Mode != "" {
			cfg.TLS.Mode = fc.TLS.Mode
		}
		if fc.TLS.CertFile != "" {
			cfg.TLS.CertFile = fc.TLS.CertFile
		}
		if fc.TLS.KeyFile != "" {
			cfg.TLS.KeyFile = fc.TLS.KeyFile
		}
		if fc.TLS.HTTPPort != 0 {
			cfg.TLS.HTTPPort = fc.TLS.HTTPPort
		}
		if fc.TLS.HTTPSPort != 0 {
			cfg.TLS.HTTPSPort = fc.TLS.HTTPSPort
		}
		if fc.TLS.SelfSignedDir != "" {
			cfg.TLS.SelfSignedDir = fc.TLS.SelfSignedDir
		}
		if fc.TLS.ACME.Email != "" {
			cfg.TLS.ACME.Email = fc.TLS.ACME.Email
		}
		if fc.TLS.ACME.Domain != "" {
			cfg.TLS.ACME.Domain = fc.TLS.ACME.Domain
		}
		if fc.TLS.ACME.Directory != "" {
			cfg.TLS.ACME.Directory = fc.TLS.ACME.Directory
		}
		if fc.TLS.ACME.StorageDir != "" {
			cfg.TLS.ACME.StorageDir = fc.TLS.ACME.StorageDir
		}
		// UseStaging is a bool, overlay when the TLS section is present
		cfg.TLS.ACME.UseStaging = fc.TLS.ACME.UseStaging
	}

	if fc.Store != nil {
		if fc.Store.Driver != "" {
			cfg.Store.Driver = fc.Store.Driver
		}
		if fc.Store.DataDir != "" {
			cfg.Store.DataDir = fc.Store.DataDir
		}
		if len(fc.Store.Options) > 0 {
			cfg.Store.Options = fc.Store.Options
		}
	}

	if fc.Cache != nil {
		if fc.Cache.Driver != "" {
			cfg.Cache.Driver = fc.Cache.Driver
		}
		if len(fc.Cache.Options) > 0 {
			cfg.Cache.Options = fc.Cache.Options
		}
	}

	if fc.Logging != nil {
		if fc.Logging.Level != "" {
			cfg.Logging.Level = fc.Logging.Level
		}
		// AllowSensitive is a bool, overlay when the logging section is present
		cfg.Logging.AllowSensitive = fc.Logging.AllowSensitive
	}

	if fc.RateLimit != nil {
		if fc.RateLimit.Login != nil {
			if fc.RateLimit.Login.Requests != 0 {
				cfg.RateLimit.Login.Requests = fc.RateLimit.Login.Requests
			}
			if fc.RateLimit.Login.WindowSeconds != 0 {
				cfg.RateLimit.Login.WindowSeconds = fc.RateLimit.Login.WindowSeconds
			}
		}
		if fc.RateLimit.PublicView != nil {
			if fc.RateLimit.PublicView.Requests != 0 {
				cfg.RateLimit.PublicView.Requests = fc.RateLimit.PublicView.Requests
			}
			if fc.RateLimit.PublicView.WindowSeconds != 0 {
				cfg.RateLimit.PublicView.WindowSeconds = fc.RateLimit.PublicView.WindowSeconds
			}
		}
	}
}

// overlayFlags applies CLI flag values onto cfg.
func overlayFlags(cfg *Config, f FlagOverrides) {
	if f.ListenAddr != nil && *f.ListenAddr != "" {
		cfg.ListenAddr = *f.ListenAddr
	}
	if f.PublicOrigin != nil && *f.PublicOrigin != "" {
		cfg.PublicOrigin = *f.PublicOrigin
	}
	if f.LogLevel != nil && *f.LogLevel != "" {
		cfg.Logging.Level = *f.LogLevel
	}
	if f.TLSMode != nil && *f.TLSMode != "" {
		cfg.TLS.Mode = *f.TLSMode
	}
	if f.StoreDriver != nil && *f.StoreDriver != "" {
		cfg.Store.Driver = *f.StoreDriver
	}
	if f.StoreDataDir != nil && *f.StoreDataDir != "" {
		cfg.Store.DataDir = *f.StoreDataDir
	}
	if f.CacheDriver != nil && *f.CacheDriver != "" {
		cfg.Cache.Driver = *f.CacheDriver
	}
	if f.AdminUsername != nil && *f.AdminUsername != "" {
		cfg.Server.BootstrapAdmin.Username = *f.AdminUsername
	}
	if f.AdminPassword != nil && *f.AdminPassword != "" {
		cfg.Server.BootstrapAdmin.Password = *f.AdminPassword
	}
}

// validateEnums validates enum-like config fields and returns an error for invalid values.
func validateEnums(cfg *Config) error {
	// mode is already validated by ParseMode before we get here

	// tls.mode
	switch cfg.TLS.Mode {
	case "off", "static", "selfsigned", "acme":
		// valid
	default:
		return fmt.Errorf("invalid tls.mode %q: must be one of off, static, selfsigned, acme", cfg.TLS.Mode)
	}

	// static needs both halves of the pair
	if cfg.TLS.Mode == "static" && (cfg.TLS.CertFile == "" || cfg.TLS.KeyFile == "") {
		return fmt.Errorf("tls.cert_file and tls.key_file are required when tls.mode is static")
	}

	// acme cannot register or order without these
	if cfg.TLS.Mode == "acme" && (cfg.TLS.ACME.Email == "" || cfg.TLS.ACME.Domain == "") {
		return fmt.Errorf("tls.acme.email and tls.acme.domain are required when tls.mode is acme")
	}

	// store.driver
	switch cfg.Store.Driver {
	case "json", "sqlite":
		// valid
	default:
		return fmt.Errorf("invalid store.driver %q: must be one of json, sqlite", cfg.Store.Driver)
	}

	// cache.driver
	switch cfg.Cache.Driver {
	case "memory", "valkey":
		// valid
	default:
		return fmt.Errorf("invalid cache.driver %q: must be one of memory, valkey", cfg.Cache.Driver)
	}

	// logging.level
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return fmt.Errorf("invalid logging.level %q: must be one of debug, info, warn, error", cfg.Logging.Level)
	}

	// rate limit windows are armed by the first request; a zero or negative
	// budget would reject everything or nothing
	if cfg.RateLimit.Login.Requests <= 0 || cfg.RateLimit.Login.WindowSeconds <= 0 {
		return fmt.Errorf("rate_limit.login requires positive requests and window_seconds")
	}
	if cfg.RateLimit.PublicView.Requests <= 0 || cfg.RateLimit.PublicView.WindowSeconds <= 0 {
		return fmt.Errorf("rate_limit.public_view requires positive requests and window_seconds")
	}

	return nil
}
