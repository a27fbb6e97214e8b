package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rhuss/appgate/pkg/auth"
	"github.com/rhuss/appgate/pkg/config"
	"github.com/rhuss/appgate/pkg/debug"
	"github.com/rhuss/appgate/pkg/registry"
	"github.com/rhuss/appgate/pkg/registry/file"
	"github.com/rhuss/appgate/pkg/session"
	sessionjwt "github.com/rhuss/appgate/pkg/session/jwt"
	"github.com/rhuss/appgate/pkg/session/noop"
	"github.com/rhuss/appgate/pkg/storage/memory"
	"github.com/rhuss/appgate/pkg/storage/postgres"
	"github.com/rhuss/appgate/pkg/storage/redis"
	"github.com/rhuss/appgate/pkg/transport"
	transporthttp "github.com/rhuss/appgate/pkg/transport/http"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			logger := newLogger(cfg.Logging, os.Stderr)
			slog.SetDefault(logger)
			debug.Init(cfg.Logging.Debug)
			if cats := debug.Categories(); len(cats) > 0 {
				logger.Info("debug categories enabled", "categories", cats)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			gw, err := build(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer gw.Close()

			return gw.server.Run(ctx)
		},
	}
}

// gateway is a fully wired server with the resources it owns.
type gateway struct {
	registry *registry.Memory
	sessions auth.SessionResolver
	adapter  *transporthttp.Adapter
	server   *transporthttp.Server
	closers  []func() error
}

// Close releases backend connections in reverse order of creation.
func (g *gateway) Close() error {
	var errs []error
	for i := len(g.closers) - 1; i >= 0; i-- {
		errs = append(errs, g.closers[i]())
	}
	return errors.Join(errs...)
}

// sessionStore is a session.Store the gateway owns.
type sessionStore interface {
	session.Store
	HealthCheck(ctx context.Context) error
	Close() error
}

// build wires the registry, session backend and HTTP server from cfg.
// Background loops (file watching, registry refresh, session sweeping)
// stop when ctx is cancelled.
func build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*gateway, error) {
	gw := &gateway{registry: registry.NewMemory()}
	var readiness []transporthttp.Check

	fail := func(err error) (*gateway, error) {
		gw.Close()
		return nil, err
	}

	var pg *postgres.Store
	if cfg.Registry.Type == "postgres" || cfg.Sessions.Type == "postgres" {
		var err error
		pg, err = postgres.New(ctx, postgres.Config{
			DSN:            cfg.Storage.Postgres.DSN,
			MaxConns:       cfg.Storage.Postgres.MaxConns,
			MigrateOnStart: cfg.Storage.Postgres.MigrateOnStart,
		})
		if err != nil {
			return fail(fmt.Errorf("connecting to postgres: %w", err))
		}
		gw.closers = append(gw.closers, pg.Close)
		readiness = append(readiness, transporthttp.Check{Name: "postgres", Fn: pg.HealthCheck})
	}

	if err := buildRegistry(ctx, cfg.Registry, gw.registry, pg); err != nil {
		return fail(err)
	}
	slog.Info("registry loaded", "type", cfg.Registry.Type, "apps", gw.registry.Len())

	store, err := buildSessionStore(ctx, cfg.Sessions, pg)
	if err != nil {
		return fail(err)
	}
	switch {
	case store != nil:
		// The postgres store is shared with the registry and already tracked.
		if cfg.Sessions.Type != "postgres" {
			gw.closers = append(gw.closers, store.Close)
			readiness = append(readiness, transporthttp.Check{Name: "sessions", Fn: store.HealthCheck})
		}
		if err := seedSessions(ctx, store, cfg.Sessions.Seed, time.Now()); err != nil {
			return fail(err)
		}
		gw.sessions = session.NewResolver(store)
	case cfg.Sessions.Type == "jwt":
		gw.sessions = sessionjwt.New(sessionjwt.Config{
			Issuer:            cfg.Sessions.JWT.Issuer,
			Audience:          cfg.Sessions.JWT.Audience,
			JWKSURL:           cfg.Sessions.JWT.JWKSURL,
			UserClaim:         cfg.Sessions.JWT.UserClaim,
			UsernameClaim:     cfg.Sessions.JWT.UsernameClaim,
			AppClaim:          cfg.Sessions.JWT.AppClaim,
			InstallationClaim: cfg.Sessions.JWT.InstallationClaim,
			CacheTTL:          cfg.Sessions.JWT.CacheTTL,
		})
	default:
		gw.sessions = noop.Resolver{}
	}
	slog.Info("session backend ready", "type", cfg.Sessions.Type)

	adapterCfg := transporthttp.Config{
		MountPath:   cfg.Server.MountPath,
		MaxBodySize: cfg.Server.MaxBodySize,
		Version:     version,
		Readiness:   readiness,
		Logger:      logger,
	}
	if cfg.CORS.Enabled {
		adapterCfg.CORS = &transport.CORSOptions{
			AllowOrigin:  cfg.CORS.AllowOrigin,
			AllowHeaders: cfg.CORS.AllowHeaders,
		}
	}
	if cfg.Observability.Metrics.Enabled {
		adapterCfg.MetricsPath = cfg.Observability.Metrics.Path
	}

	gw.adapter = transporthttp.NewAdapter(gw.registry, gw.sessions, adapterCfg)
	gw.server = transporthttp.NewServer(gw.adapter,
		transporthttp.WithAddr(fmt.Sprintf(":%d", cfg.Server.Port)),
		transporthttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
		transporthttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		transporthttp.WithLogger(logger),
	)

	return gw, nil
}

// buildRegistry fills target from the configured source and starts any
// reload loop it needs.
func buildRegistry(ctx context.Context, cfg config.RegistryConfig, target *registry.Memory, pg *postgres.Store) error {
	switch cfg.Type {
	case "memory":
		return target.Replace(cfg.RegistryApps())

	case "file":
		w, err := file.NewWatcher(ctx, cfg.File, target)
		if err != nil {
			return fmt.Errorf("loading apps file: %w", err)
		}
		go w.Run(ctx)
		if cfg.RefreshInterval > 0 {
			go registry.RunRefresher(ctx, &file.Loader{Path: cfg.File}, target, cfg.RefreshInterval)
		}
		return nil

	case "postgres":
		if err := registry.Refresh(ctx, pg, target); err != nil {
			return fmt.Errorf("loading apps from postgres: %w", err)
		}
		interval := cfg.RefreshInterval
		if interval == 0 {
			interval = 30 * time.Second
		}
		go registry.RunRefresher(ctx, pg, target, interval)
		return nil
	}
	return fmt.Errorf("unknown registry type %q", cfg.Type)
}

// buildSessionStore returns the stateful store for the configured backend,
// or nil for backends that need none.
func buildSessionStore(ctx context.Context, cfg config.SessionsConfig, pg *postgres.Store) (sessionStore, error) {
	switch cfg.Type {
	case "memory":
		s := memory.New(cfg.Memory.MaxSize)
		go s.RunSweeper(ctx, cfg.Memory.SweepInterval)
		return s, nil
	case "postgres":
		return pg, nil
	case "redis":
		s, err := redis.New(ctx, redis.Config{
			Addr:      cfg.Redis.Addr,
			Username:  cfg.Redis.Username,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, nil
}

// seedSessions stores the configured startup sessions.
func seedSessions(ctx context.Context, store session.Store, seeds []config.SessionSeedConfig, now time.Time) error {
	for i, s := range seeds {
		rec := session.Record{
			Token:          s.Token,
			AppID:          s.AppID,
			UserID:         s.UserID,
			Username:       s.Username,
			InstallationID: s.InstallationID,
		}
		if s.TTL > 0 {
			rec.ExpiresAt = now.Add(s.TTL)
		}
		if err := store.Save(ctx, rec); err != nil {
			return fmt.Errorf("seeding sessions[%d]: %w", i, err)
		}
	}
	if len(seeds) > 0 {
		slog.Info("sessions seeded", "count", len(seeds))
	}
	return nil
}
