// Package main is the entry point for the WAISPATH routing API server.
//
// It loads configuration, connects the Postgres obstacle store and the Google
// routing provider, assembles the accessibility engines, and serves the HTTP
// API through the core chassis (middleware, routing, health checks).
//
// Graceful shutdown is handled via OS signal interception (SIGINT, SIGTERM).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"waispath/internal/api/handlers"
	"waispath/internal/config"
	"waispath/internal/consensus"
	"waispath/internal/core"
	"waispath/internal/db"
	"waispath/internal/detour"
	"waispath/internal/external"
	"waispath/internal/proximity"
	"waispath/internal/scoring"
	"waispath/internal/session"
	"waispath/internal/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("waispath routing API starting",
		"environment", cfg.Environment,
		"service", cfg.Service,
		"port", cfg.Server.Port,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Postgres pool for the obstacle store.
	pool, err := newDBPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting database: %w", err)
	}
	defer pool.Close()

	obstacles := db.NewObstacleRepository(pool)

	// Routing provider behind the anti-corruption layer.
	routing, err := external.NewGoogleRoutingClient(external.GoogleRoutingConfig{
		APIKey: cfg.Routing.GoogleMapsAPIKey.Unmask(),
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("creating routing client: %w", err)
	}

	// Accessibility engines.
	scorer := scoring.NewScorer(logger)
	detector := proximity.NewDetector(proximity.Config{
		Store:     obstacles,
		Proximity: types.DefaultProximityConfig(),
		Logger:    logger,
	})
	detourEngine := detour.NewEngine(detour.Config{
		Planner: routing,
		Detour:  types.DefaultDetourConfig(),
		Logger:  logger,
	})
	validation := consensus.NewEngine(consensus.Config{
		Store:     obstacles,
		Events:    obstacles,
		Consensus: types.DefaultConsensusConfig(),
		Logger:    logger,
	})
	sessions := session.NewManager()

	// HTTP chassis.
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.RegisterHealthProbe(&dbProbe{pool: pool})

	scoreHandler := handlers.NewScoreHandler(scorer, srv.Validator, logger)
	navHandler := handlers.NewNavigationHandler(sessions, detector, validation, srv.Validator, logger)
	detourHandler := handlers.NewDetourHandler(detourEngine, routing, srv.Validator, logger)

	srv.MountRoutes(
		scoreHandler.RegisterRoutes,
		navHandler.RegisterRoutes,
		detourHandler.RegisterRoutes,
	)

	return runHTTPServer(srv, cfg, logger)
}

// newDBPool builds a pgx pool tuned from the database configuration.
func newDBPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL.Unmask())
	if err != nil {
		return nil, fmt.Errorf("parsing database url: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)
	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.HealthCheckPeriod = cfg.HealthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return pool, nil
}

// dbProbe reports database connectivity for the health endpoint.
type dbProbe struct {
	pool *pgxpool.Pool
}

func (p *dbProbe) Name() string { return "database" }

func (p *dbProbe) Check(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// runHTTPServer starts the server in standard HTTP mode with graceful shutdown.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)

	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured slog.Logger configured for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return slog.New(handler)
}
