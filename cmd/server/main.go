// Package main is the entry point for the team roster server binary.
// It dispatches two subcommands, serve and version, via a simple switch on
// os.Args so the binary's full CLI surface is readable in one place.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/team-roster/team-roster/internal/api"
	"github.com/team-roster/team-roster/internal/auth/azuread"
	"github.com/team-roster/team-roster/internal/config"
	"github.com/team-roster/team-roster/internal/graph"
	"github.com/team-roster/team-roster/internal/middleware"
	"github.com/team-roster/team-roster/internal/roster"
	"github.com/team-roster/team-roster/internal/safego"
	"github.com/team-roster/team-roster/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %v\n", err)
	}
}

func run() error {
	command := "serve"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	switch command {
	case "serve":
		// A .env file is optional; real deployments set the environment directly.
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load .env: %w", err)
		}
		configPath := os.Getenv("CONFIG_PATH")
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return serve(configPath, cfg)
	case "version":
		fmt.Printf("Team Roster v%s\n", api.Version)
		return nil
	default:
		return fmt.Errorf("unknown command: %s\nAvailable commands: serve, version", command)
	}
}

func serve(configPath string, cfg *config.Config) error {
	// Initialise structured logger as early as possible so all subsequent log output
	// uses the configured format (json / text) and level.
	telemetry.SetupLogger(cfg.Logging.Format, cfg.Logging.Level)

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := config.Watch(configPath, func(next *config.Config) {
		telemetry.SetLogLevel(next.Logging.Level)
	}); err != nil {
		slog.Warn("config hot reload disabled", "error", err)
	}

	factory, err := graph.NewClientFactory(cfg.Graph, cfg.Auth.AzureAD)
	if err != nil {
		return fmt.Errorf("failed to create graph client factory: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps := api.Dependencies{
		Roster:    roster.NewAggregator(factory, cfg.Roster),
		Directory: factory,
	}
	if cfg.Auth.RequireValidToken {
		deps.Validator = azuread.NewValidator(ctx, cfg.Auth.AzureAD)
	}

	limiter, closeLimiter := newLimiter(cfg.Security.RateLimiting)
	defer closeLimiter()
	deps.Limiter = limiter

	// Start Prometheus metrics endpoint on a dedicated port so it is not reachable
	// through the public API ingress path.
	if cfg.Telemetry.Metrics.Enabled {
		metricsAddr := fmt.Sprintf(":%d", cfg.Telemetry.Metrics.PrometheusPort)
		safego.Go(func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			slog.Info("starting Prometheus metrics server", "addr", metricsAddr)
			srv := &http.Server{
				Addr:         metricsAddr,
				Handler:      mux,
				ReadTimeout:  10 * time.Second,
				WriteTimeout: 10 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("metrics server error", "error", err)
			}
		})
	}

	server := &http.Server{
		Addr:         cfg.Server.GetAddress(),
		Handler:      api.NewRouter(cfg, deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	safego.Go(func() {
		slog.Info("starting server",
			"addr", server.Addr,
			"graph_base_url", cfg.Graph.BaseURL,
			"require_valid_token", cfg.Auth.RequireValidToken,
			"rate_limiting", cfg.Security.RateLimiting.Enabled,
		)

		var err error
		if cfg.Security.TLS.Enabled {
			slog.Info("TLS enabled", "cert", cfg.Security.TLS.CertFile)
			err = server.ListenAndServeTLS(cfg.Security.TLS.CertFile, cfg.Security.TLS.KeyFile)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	})

	select {
	case err := <-serveErr:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// newLimiter builds the configured rate limiter and a function releasing its
// resources. It returns a nil limiter when rate limiting is disabled.
func newLimiter(cfg config.RateLimitingConfig) (middleware.Limiter, func()) {
	if !cfg.Enabled {
		return nil, func() {}
	}

	rlCfg := middleware.DefaultRateLimitConfig()
	if cfg.RequestsPerMinute > 0 {
		rlCfg.RequestsPerMinute = cfg.RequestsPerMinute
	}
	if cfg.Burst > 0 {
		rlCfg.BurstSize = cfg.Burst
	}

	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		slog.Info("rate limiting backed by redis", "addr", cfg.Redis.Addr)
		return middleware.NewRedisLimiter(rdb, rlCfg), func() {
			if err := rdb.Close(); err != nil {
				slog.Warn("failed to close redis client", "error", err)
			}
		}
	}

	rl := middleware.NewRateLimiter(rlCfg)
	return rl, rl.Stop
}
