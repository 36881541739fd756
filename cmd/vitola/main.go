// Package main is the entrypoint for the vitola server.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vitolahq/vitola/internal/cache"
	"github.com/vitolahq/vitola/internal/config"
	"github.com/vitolahq/vitola/internal/identity"
	"github.com/vitolahq/vitola/internal/platform/logutil"
	"github.com/vitolahq/vitola/internal/server"
	"github.com/vitolahq/vitola/internal/store"

	// Register store and cache drivers
	_ "github.com/vitolahq/vitola/internal/cache/loader"
	_ "github.com/vitolahq/vitola/internal/store/json"
	_ "github.com/vitolahq/vitola/internal/store/sqlite"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to TOML config file (optional)")
	modeFlag := flag.String("mode", "", "Operating mode: strict or dev (overrides config)")
	listenAddr := flag.String("listen", "", "Listen address (overrides config)")
	publicOrigin := flag.String("public-origin", "", "Public origin for share links (overrides config)")
	tlsMode := flag.String("tls-mode", "", "TLS mode: off, static, selfsigned, or acme (overrides config)")
	storeDriver := flag.String("store-driver", "", "Store driver: json or sqlite (overrides config)")
	storeDataDir := flag.String("store-data-dir", "", "Directory for store data files (overrides config)")
	cacheDriver := flag.String("cache-driver", "", "Cache driver: memory or valkey (overrides config)")
	adminUsername := flag.String("admin-username", "", "Bootstrap admin username (overrides config)")
	adminPassword := flag.String("admin-password", "", "Bootstrap admin password (overrides config)")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, or error (overrides config)")
	flag.Parse()

	// Bootstrap logger for config loading errors (uses default level)
	bootstrapLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Load config with precedence: mode preset -> TOML file -> CLI flags
	cfg, err := config.Load(config.LoaderOptions{
		ConfigPath: *configPath,
		ModeFlag:   *modeFlag,
		FlagOverrides: config.FlagOverrides{
			ListenAddr:    listenAddr,
			PublicOrigin:  publicOrigin,
			LogLevel:      logLevel,
			TLSMode:       tlsMode,
			StoreDriver:   storeDriver,
			StoreDataDir:  storeDataDir,
			CacheDriver:   cacheDriver,
			AdminUsername: adminUsername,
			AdminPassword: adminPassword,
		},
		Logger: bootstrapLogger,
	})
	if err != nil {
		bootstrapLogger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Create logger with configured level
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logutil.ParseLevel(cfg.Logging.Level),
	}))
	slog.SetDefault(logger)

	// Log effective config with secrets redacted
	logger.Info("effective configuration", "config", cfg.Redacted())

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Open the store
	st, err := store.New(&store.DriverConfig{
		Driver:  cfg.Store.Driver,
		DataDir: cfg.Store.DataDir,
		Options: cfg.Store.Options,
	})
	if err != nil {
		logger.Error("failed to create store", "error", err)
		os.Exit(1)
	}
	if err := st.Init(ctx); err != nil {
		logger.Error("failed to initialize store", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	logger.Info("store ready", "driver", st.Name(), "data_dir", cfg.Store.DataDir)

	// Create the cache backing the rate limiters
	cacheInstance, err := cache.New(&cache.Config{
		Driver:  cfg.Cache.Driver,
		Options: cfg.Cache.Options,
	})
	if err != nil {
		logger.Error("failed to create cache", "error", err)
		os.Exit(1)
	}
	defer cacheInstance.Close()

	// Create identity components
	sessionRepo := identity.NewMemorySessionRepo()
	userAuth := identity.NewUserAuth(0) // 0 selects the bcrypt default cost

	// Bootstrap the admin account. An empty configured password gets a
	// random one, printed exactly once on first creation.
	adminSeed := identity.SeededUser{
		Username: cfg.Server.BootstrapAdmin.Username,
		Password: cfg.Server.BootstrapAdmin.Password,
		Email:    cfg.Server.BootstrapAdmin.Email,
	}
	generatedPassword := false
	if adminSeed.Username != "" && adminSeed.Password == "" {
		adminSeed.Password, err = identity.GenerateToken()
		if err != nil {
			logger.Error("failed to generate admin password", "error", err)
			os.Exit(1)
		}
		generatedPassword = true
	}

	bootstrap := identity.NewBootstrap(st, userAuth, logger)
	created, err := bootstrap.Run(ctx, adminSeed, nil)
	if err != nil {
		logger.Error("failed to bootstrap admin", "error", err)
		os.Exit(1)
	}
	if generatedPassword && created > 0 {
		logger.Info("generated bootstrap admin password",
			"username", adminSeed.Username,
			"password", adminSeed.Password,
		)
	}

	// Create server dependencies; the domain services are built by the server
	deps := &server.Deps{
		Store:       st,
		SessionRepo: sessionRepo,
		UserAuth:    userAuth,
		Cache:       cacheInstance,
	}

	// Create and start server
	srv, err := server.New(cfg, logger, deps)
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	go func() {
		if err := srv.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("server started, press Ctrl+C to stop")

	// Wait for shutdown signal
	<-ctx.Done()
	logger.Info("shutdown signal received")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
