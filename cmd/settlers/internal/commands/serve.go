package commands

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/wolfeidau/settlers/internal/api"
	"github.com/wolfeidau/settlers/internal/assets"
	"github.com/wolfeidau/settlers/internal/config"
	"github.com/wolfeidau/settlers/internal/frontend"
	"github.com/wolfeidau/settlers/internal/logger"
	"github.com/wolfeidau/settlers/internal/relay"
	"github.com/wolfeidau/settlers/internal/resources"
	"github.com/wolfeidau/settlers/internal/telemetry"
	"golang.org/x/sync/errgroup"
)

type ServeCmd struct {
	Config []string `help:"configuration files to load instead of searching for settlers.yaml" env:"SETTLERS_CONFIG"`

	// Server configuration
	Addr           string   `help:"HTTP server listen address" env:"SETTLERS_BIND_ADDR"`
	ResourcesPath  string   `help:"directory of public resources served under /public" env:"SETTLERS_RESOURCES_PATH"`
	CertPath       string   `help:"path to TLS cert file" env:"SETTLERS_CERT_PATH"`
	KeyPath        string   `help:"path to TLS key file" env:"SETTLERS_KEY_PATH"`
	CORSOrigins    []string `help:"allowed CORS origins for API requests" env:"SETTLERS_CORS_ORIGINS"`
	MaxConnections int      `help:"maximum concurrent connections, 0 for unlimited" env:"SETTLERS_MAX_CONNECTIONS"`

	// Relay configuration
	RelayPolicy string `help:"relay routing policy (echo or broadcast)" env:"SETTLERS_RELAY_POLICY"`

	// Store configuration
	Store       string `help:"store type (memory or postgres)" env:"SETTLERS_STORE"`
	DatabaseURL string `help:"PostgreSQL connection string" env:"SETTLERS_DATABASE_URL"`
	AutoMigrate bool   `help:"run database migrations on startup" env:"SETTLERS_AUTO_MIGRATE"`

	// Operational modes
	Telemetry   bool `help:"enable OpenTelemetry metrics and tracing" env:"SETTLERS_TELEMETRY"`
	BuildAssets bool `help:"compile client sources with esbuild before loading resources" env:"SETTLERS_BUILD_ASSETS"`
}

func (c *ServeCmd) Run(globals *Globals) error {
	s, err := c.settings()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logger.Setup(globals.Debug || s.Dev)
	zlog.Logger = log

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Str("version", globals.Version).Bool("debug", globals.Debug).Msg("Starting server")

	if s.Telemetry {
		log.Info().Msg("Telemetry is enabled")
		shutdown, err := telemetry.InitTelemetry(ctx, "settlers-server", globals.Version)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without metrics")
			shutdown = func(ctx context.Context) error { return nil }
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Failed to shutdown telemetry")
			}
		}()
	}

	if s.BuildAssets {
		if err := buildAssets(s, log); err != nil {
			return err
		}
	}

	// resources are fully loaded before the listener starts accepting
	cache, err := resources.Load(resources.DefaultPopulator(s.ResourcesPath))
	if err != nil {
		return fmt.Errorf("failed to load resources: %w", err)
	}

	stores, err := openStores(ctx, s)
	if err != nil {
		return err
	}
	defer stores.Close()

	router := api.NewRouter(api.Deps{Sessions: stores.Sessions, Users: stores.Users},
		api.WithMaxBodySize(s.MaxAPIBodySize))

	bus := relay.NewBus()
	policy, err := relay.NewPolicy(s.Relay.Policy, bus)
	if err != nil {
		return err
	}

	bridge := relay.NewBridge(bus, relay.BridgeConfig{
		MaxMessageSize: s.MaxMessageSize,
		WriteTimeout:   s.Relay.WriteTimeout,
		PingInterval:   s.Relay.PingInterval,
	})

	server, err := frontend.New(frontend.Config{
		Addr:            s.Addr,
		MaxBodySize:     s.MaxBodySize,
		MaxConnections:  s.MaxConnections,
		ShutdownTimeout: s.ShutdownTimeout,
		CertFile:        s.TLS.CertPath,
		KeyFile:         s.TLS.KeyPath,
		CORSOrigins:     s.CORSOrigins,
	}, frontend.Deps{
		Resources: cache,
		Router:    router,
		Relay:     bridge,
		Logger:    log,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	log.Info().
		Str("addr", s.Addr).
		Int("resources", cache.Len()).
		Bool("bundled", resources.Bundled).
		Str("store", s.Store).
		Str("relay_policy", s.Relay.Policy).
		Msg("Server configured")

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.ListenAndServe(gctx)
	})
	g.Go(func() error {
		err := relay.NewLoop(bus, policy).Run(gctx)
		if errors.Is(err, relay.ErrInboundClosed) {
			return fmt.Errorf("relay loop stopped: %w", err)
		}
		return err
	})
	g.Go(func() error {
		sweepSessions(gctx, stores.Sessions, sessionSweepInterval)
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	log.Info().Msg("Server stopped")
	return nil
}

func buildAssets(s *config.Settings, log zerolog.Logger) error {
	if resources.Bundled {
		log.Warn().Msg("Resources are embedded in this binary, skipping asset build")
		return nil
	}

	cfg := assets.DefaultConfig()
	cfg.OutputDir = filepath.Join(s.ResourcesPath, "js")
	cfg.MetafilePath = filepath.Join(cfg.OutputDir, "meta.json")
	cfg.Minify = !s.Dev
	cfg.SourceMap = s.Dev

	pipeline := assets.New(cfg)
	if err := pipeline.Build(); err != nil {
		return fmt.Errorf("failed to build assets: %w", err)
	}

	log.Info().Strs("outputs", pipeline.Outputs()).Msg("Client assets built")
	return nil
}
