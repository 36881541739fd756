// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config holds the server configuration.
type Config struct {
	// Mode is the operating mode: strict or dev.
	Mode string `toml:"mode"`

	// PublicOrigin is the externally reachable origin (scheme + host + port)
	// used when minting share link URLs.
	// Example: "https://humidor.example.com"
	PublicOrigin string `toml:"public_origin"`

	// ListenAddr is the address to listen on.
	// Example: ":8443"
	ListenAddr string `toml:"listen_addr"`

	// Server holds server-level settings.
	Server ServerConfig `toml:"server"`

	// TLS configuration
	TLS TLSConfig `toml:"tls"`

	// Store configuration
	Store StoreConfig `toml:"store"`

	// Cache configuration
	Cache CacheConfig `toml:"cache"`

	// Logging configuration
	Logging LoggingConfig `toml:"logging"`

	// RateLimit configuration
	RateLimit RateLimitConfig `toml:"rate_limit"`
}

// ServerConfig holds server-level settings.
type ServerConfig struct {
	// TrustedProxies is a list of CIDR ranges for trusted reverse proxies.
	// X-Forwarded-* headers are only honored from these addresses.
	// Default: ["127.0.0.0/8", "::1/128"]
	TrustedProxies []string `toml:"trusted_proxies"`

	// BootstrapAdmin holds admin bootstrap configuration.
	BootstrapAdmin BootstrapAdminConfig `toml:"bootstrap_admin"`
}

// BootstrapAdminConfig holds bootstrap admin credentials.
type BootstrapAdminConfig struct {
	// Username for the admin account. Default: "admin"
	Username string `toml:"username"`

	// Password for the admin account. If empty on first boot, a random
	// password is generated and logged once.
	Password string `toml:"password"`

	// Email for the admin account. Optional; derived from the username
	// when empty.
	Email string `toml:"email"`
}

// StoreConfig holds persistence settings.
type StoreConfig struct {
	// Driver is the store driver name: json or sqlite.
	Driver string `toml:"driver"`

	// DataDir is the directory for data files (json file, sqlite db).
	DataDir string `toml:"data_dir"`

	// Options holds per-driver configuration, decoded by the driver.
	// Example: [store.options] file_name = "humidors.json"
	Options map[string]any `toml:"options"`
}

// CacheConfig holds cache settings.
type CacheConfig struct {
	// Driver is the cache driver name: memory or valkey.
	Driver string `toml:"driver"`

	// Options holds per-driver configuration, decoded by the driver.
	// Example: [cache.options] address = "localhost:6379"
	Options map[string]any `toml:"options"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	// Default: info in strict mode, debug in dev mode.
	Level string `toml:"level"`

	// AllowSensitive permits logging of sensitive values (share link
	// tokens in request paths). Default: false. Use only for debugging.
	AllowSensitive bool `toml:"allow_sensitive"`
}

// RateLimitConfig holds per-route rate limit settings.
type RateLimitConfig struct {
	// Login limits POST /api/auth/login per client IP.
	Login RateLimitRule `toml:"login"`

	// PublicView limits GET /public/humidors/{token} per client IP.
	PublicView RateLimitRule `toml:"public_view"`
}

// RateLimitRule is a fixed-window request budget.
type RateLimitRule struct {
	// Requests is the maximum requests allowed per window.
	Requests int64 `toml:"requests"`

	// WindowSeconds is the window length in seconds.
	WindowSeconds int `toml:"window_seconds"`
}

// Window returns the rule's window as a duration.
func (r RateLimitRule) Window() time.Duration {
	return time.Duration(r.WindowSeconds) * time.Second
}

// TLSConfig holds TLS-related settings.
type TLSConfig struct {
	// Mode is one of: off, static, selfsigned, acme
	Mode string `toml:"mode"`

	// CertFile and KeyFile for static mode
	CertFile string `toml:"cert_file"`
	KeyFile  string `toml:"key_file"`

	// HTTPPort for HTTP listener (used for ACME challenges and redirects)
	HTTPPort int `toml:"http_port"`

	// HTTPSPort for HTTPS listener
	HTTPSPort int `toml:"https_port"`

	// SelfSignedDir is where self-signed certs are stored
	SelfSignedDir string `toml:"self_signed_dir"`

	// ACME configuration
	ACME ACMEConfig `toml:"acme"`
}

// ACMEConfig holds ACME/Let's Encrypt settings.
type ACMEConfig struct {
	// Email for ACME registration
	Email string `toml:"email"`

	// Domain is the domain to obtain a certificate for
	Domain string `toml:"domain"`

	// Directory is the ACME server URL (default: Let's Encrypt production)
	Directory string `toml:"directory"`

	// StorageDir is where ACME certificates and account info are stored
	StorageDir string `toml:"storage_dir"`

	// UseStaging uses Let's Encrypt staging (for testing)
	UseStaging bool `toml:"use_staging"`
}

// Redacted returns a string representation of the config with secrets redacted.
// Driver option maps may carry credentials (valkey passwords), so only their
// sizes are printed.
func (c *Config) Redacted() string {
	var sb strings.Builder
	sb.WriteString("Config{\n")
	sb.WriteString(fmt.Sprintf("  Mode: %q,\n", c.Mode))
	sb.WriteString(fmt.Sprintf("  PublicOrigin: %q,\n", c.PublicOrigin))
	sb.WriteString(fmt.Sprintf("  ListenAddr: %q,\n", c.ListenAddr))
	sb.WriteString("  Server: {\n")
	sb.WriteString(fmt.Sprintf("    TrustedProxies: %v,\n", c.Server.TrustedProxies))
	sb.WriteString("    BootstrapAdmin: {\n")
	sb.WriteString(fmt.Sprintf("      Username: %q,\n", c.Server.BootstrapAdmin.Username))
	sb.WriteString("      Password: [REDACTED],\n")
	sb.WriteString(fmt.Sprintf("      Email: %q,\n", c.Server.BootstrapAdmin.Email))
	sb.WriteString("    },\n")
	sb.WriteString("  },\n")
	sb.WriteString("  TLS: {\n")
	sb.WriteString(fmt.Sprintf("    Mode: %q,\n", c.TLS.Mode))
	sb.WriteString(fmt.Sprintf("    CertFile: %q,\n", c.TLS.CertFile))
	sb.WriteString(fmt.Sprintf("    KeyFile: %q,\n", c.TLS.KeyFile))
	sb.WriteString(fmt.Sprintf("    HTTPPort: %d,\n", c.TLS.HTTPPort))
	sb.WriteString(fmt.Sprintf("    HTTPSPort: %d,\n", c.TLS.HTTPSPort))
	sb.WriteString(fmt.Sprintf("    SelfSignedDir: %q,\n", c.TLS.SelfSignedDir))
	sb.WriteString("    ACME: {\n")
	sb.WriteString(fmt.Sprintf("      Email: %q,\n", c.TLS.ACME.Email))
	sb.WriteString(fmt.Sprintf("      Domain: %q,\n", c.TLS.ACME.Domain))
	sb.WriteString(fmt.Sprintf("      Directory: %q,\n", c.TLS.ACME.Directory))
	sb.WriteString(fmt.Sprintf("      StorageDir: %q,\n", c.TLS.ACME.StorageDir))
	sb.WriteString(fmt.Sprintf("      UseStaging: %v,\n", c.TLS.ACME.UseStaging))
	sb.WriteString("    },\n")
	sb.WriteString("  },\n")
	sb.WriteString("  Store: {\n")
	sb.WriteString(fmt.Sprintf("    Driver: %q,\n", c.Store.Driver))
	sb.WriteString(fmt.Sprintf("    DataDir: %q,\n", c.Store.DataDir))
	sb.WriteString(fmt.Sprintf("    OptionsCount: %d,\n", len(c.Store.Options)))
	sb.WriteString("  },\n")
	sb.WriteString("  Cache: {\n")
	sb.WriteString(fmt.Sprintf("    Driver: %q,\n", c.Cache.Driver))
	sb.WriteString(fmt.Sprintf("    OptionsCount: %d,\n", len(c.Cache.Options)))
	sb.WriteString("  },\n")
	sb.WriteString("  Logging: {\n")
	sb.WriteString(fmt.Sprintf("    Level: %q,\n", c.Logging.Level))
	sb.WriteString(fmt.Sprintf("    AllowSensitive: %v,\n", c.Logging.AllowSensitive))
	sb.WriteString("  },\n")
	sb.WriteString("  RateLimit: {\n")
	sb.WriteString(fmt.Sprintf("    Login: %d per %ds,\n", c.RateLimit.Login.Requests, c.RateLimit.Login.WindowSeconds))
	sb.WriteString(fmt.Sprintf("    PublicView: %d per %ds,\n", c.RateLimit.PublicView.Requests, c.RateLimit.PublicView.WindowSeconds))
	sb.WriteString("  },\n")
	sb.WriteString("}")
	return sb.String()
}
