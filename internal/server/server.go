// Package server provides HTTP server wiring and lifecycle management.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/vitolahq/vitola/internal/access"
	"github.com/vitolahq/vitola/internal/api"
	"github.com/vitolahq/vitola/internal/cache"
	"github.com/vitolahq/vitola/internal/cache/memory"
	"github.com/vitolahq/vitola/internal/config"
	"github.com/vitolahq/vitola/internal/identity"
	"github.com/vitolahq/vitola/internal/inventory"
	"github.com/vitolahq/vitola/internal/platform/tlsutil"
	"github.com/vitolahq/vitola/internal/publiclink"
	"github.com/vitolahq/vitola/internal/ratelimit"
	"github.com/vitolahq/vitola/internal/sharing"
	"github.com/vitolahq/vitola/internal/store"
	"github.com/vitolahq/vitola/internal/transfer"
)

// ErrMissingDep reports a nil required dependency.
var ErrMissingDep = errors.New("missing required dependency")

// Deps holds all server dependencies.
type Deps struct {
	// Required: persistence, sessions and password auth
	Store       store.Store
	SessionRepo identity.SessionRepo
	UserAuth    *identity.UserAuth

	// Optional: counter backend for the rate limiters (nil uses an
	// in-process cache)
	Cache cache.CacheWithCounter

	// Optional: domain services (nil constructs them over Store)
	Users     *identity.Users
	Resolver  *access.Resolver
	Inventory *inventory.Service
	Sharing   *sharing.Service
	Registry  *publiclink.Registry
	Assembler *publiclink.Assembler
	Transfer  *transfer.Service
}

// Server wraps the HTTP server and its dependencies.
type Server struct {
	cfg            *config.Config
	httpServer     *http.Server
	logger         *slog.Logger
	deps           *Deps
	trustedProxies *TrustedProxies
	limiters       map[string]*ratelimit.Limiter

	healthHandler  *api.HealthHandler
	authHandler    *api.AuthHandler
	humidorHandler *api.HumidorHandler
	cigarHandler   *api.CigarHandler
	shareHandler   *api.ShareHandler
	linkHandler    *api.PublicLinkHandler
	adminHandler   *api.AdminHandler
}

// New creates a new Server with the given configuration.
// Returns an error if required dependencies are missing.
func New(cfg *config.Config, logger *slog.Logger, deps *Deps) (*Server, error) {
	// Fail fast: validate required dependencies
	if err := validateDeps(deps); err != nil {
		return nil, err
	}

	// Fill optional dependencies with defaults built over the store
	initializeDefaultDeps(cfg, logger, deps)

	s := &Server{
		cfg:            cfg,
		logger:         logger,
		deps:           deps,
		trustedProxies: NewTrustedProxies(cfg.Server.TrustedProxies),
		healthHandler:  api.NewHealthHandler(deps.Store),
		authHandler:    api.NewAuthHandler(deps.Store, deps.SessionRepo, deps.UserAuth, deps.Users),
		humidorHandler: api.NewHumidorHandler(deps.Inventory, deps.Sharing),
		cigarHandler:   api.NewCigarHandler(deps.Inventory),
		shareHandler:   api.NewShareHandler(deps.Sharing, deps.Resolver),
		linkHandler:    api.NewPublicLinkHandler(deps.Registry, deps.Assembler),
		adminHandler:   api.NewAdminHandler(deps.Users, deps.Store, deps.SessionRepo, deps.Transfer),
	}

	// One fixed-window limiter per throttled route group. They share the
	// cache but keep disjoint key prefixes, so a burst of login attempts
	// never eats into the public view budget.
	s.limiters = map[string]*ratelimit.Limiter{
		"/api/auth/login": ratelimit.New(deps.Cache, &ratelimit.Config{
			RequestsPerWindow: cfg.RateLimit.Login.Requests,
			Window:            cfg.RateLimit.Login.Window(),
			KeyPrefix:         "ratelimit:login:",
		}),
		"/public": ratelimit.New(deps.Cache, &ratelimit.Config{
			RequestsPerWindow: cfg.RateLimit.PublicView.Requests,
			Window:            cfg.RateLimit.PublicView.Window(),
			KeyPrefix:         "ratelimit:public:",
		}),
	}

	router := s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Start starts the HTTP server. It blocks until the server is shut down.
// The context bounds TLS setup; acme mode may block on the ACME directory
// before the listener opens.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("starting server",
		"addr", s.cfg.ListenAddr,
		"public_origin", s.cfg.PublicOrigin,
		"tls_mode", s.cfg.TLS.Mode,
	)

	tlsManager := tlsutil.NewManager(&s.cfg.TLS, s.logger)
	tlsConfig, err := tlsManager.GetTLSConfig(ctx, extractHostname(s.cfg.PublicOrigin))
	if err != nil {
		return fmt.Errorf("failed to configure TLS: %w", err)
	}
	if tlsConfig == nil {
		return s.httpServer.ListenAndServe()
	}

	s.httpServer.TLSConfig = tlsConfig
	s.logger.Info("starting server with TLS", "mode", s.cfg.TLS.Mode)

	// Certificates come from TLSConfig; ListenAndServeTLS with empty
	// paths uses them.
	return s.httpServer.ListenAndServeTLS("", "")
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	return s.httpServer.Shutdown(ctx)
}

// extractHostname extracts just the hostname from an origin URL.
// For TLS certificate generation, we need the hostname without port.
func extractHostname(origin string) string {
	host := strings.TrimPrefix(origin, "https://")
	host = strings.TrimPrefix(host, "http://")
	host = strings.TrimSuffix(host, "/")

	// Strip the port, stopping at ']' so IPv6 literals like [::1]:8443
	// keep their address intact.
	for i := len(host) - 1; i >= 0; i-- {
		if host[i] == ':' {
			host = host[:i]
			break
		}
		if host[i] == ']' {
			break
		}
	}

	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	return host
}

// validateDeps checks that all required dependencies are provided.
func validateDeps(deps *Deps) error {
	if deps == nil {
		return errors.New("deps is nil")
	}

	if deps.Store == nil {
		return fmt.Errorf("%w: Store", ErrMissingDep)
	}
	if deps.SessionRepo == nil {
		return fmt.Errorf("%w: SessionRepo", ErrMissingDep)
	}
	if deps.UserAuth == nil {
		return fmt.Errorf("%w: UserAuth", ErrMissingDep)
	}

	// Optional deps are allowed to be nil
	return nil
}

// initializeDefaultDeps constructs the domain services a caller left nil.
// Order matters: the resolver feeds the inventory service and the public
// link registry.
func initializeDefaultDeps(cfg *config.Config, logger *slog.Logger, deps *Deps) {
	if deps.Cache == nil {
		deps.Cache = memory.New(15*time.Minute, 5*time.Minute)
	}
	if deps.Users == nil {
		deps.Users = identity.NewUsers(deps.Store, deps.UserAuth)
	}
	if deps.Resolver == nil {
		deps.Resolver = access.NewResolver(deps.Store, deps.Store)
	}
	if deps.Inventory == nil {
		deps.Inventory = inventory.NewService(deps.Store, deps.Store, deps.Resolver)
	}
	if deps.Sharing == nil {
		deps.Sharing = sharing.NewService(deps.Store, deps.Store, deps.Store, deps.Store)
	}
	if deps.Registry == nil {
		deps.Registry = publiclink.NewRegistry(deps.Store, deps.Resolver, cfg.PublicOrigin)
	}
	if deps.Assembler == nil {
		deps.Assembler = publiclink.NewAssembler(deps.Store, deps.Store, deps.Store, deps.Store)
	}
	if deps.Transfer == nil {
		deps.Transfer = transfer.NewService(deps.Store, deps.Store, logger)
	}
}
