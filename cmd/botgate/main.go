package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"botgate/internal/api"
	"botgate/internal/classify"
	"botgate/internal/config"
	"botgate/internal/counter"
	"botgate/internal/events"
	"botgate/internal/gate"
	"botgate/internal/logger"
	"botgate/internal/models"
	"botgate/internal/observability"
	"botgate/internal/ratelimit"
	"botgate/internal/version"
)

var (
	configFile  = flag.String("config", "", "Path to configuration file")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	ver := version.GetInfo()
	if *showVersion {
		fmt.Println(ver.String())
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize structured logging
	log, closer, err := logger.Setup(cfg.Logging, ver)
	if err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}
	if closer != nil {
		defer closer.Close()
	}
	slog.SetDefault(log)

	// Initialize observability (OpenTelemetry)
	otelProvider, err := observability.Setup(cfg.Metrics, cfg.Observability, ver)
	if err != nil {
		slog.Error("Failed to initialize observability", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := otelProvider.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shutdown observability", "error", err)
		}
	}()

	// Initialize the counter store and rate limiter
	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		store, err := initializeStore(cfg)
		if err != nil {
			slog.Error("Failed to initialize counter store", "error", err)
			os.Exit(1)
		}
		defer store.Close()

		// Wrap the store with instrumentation if metrics are enabled
		activeStore := store
		if cfg.Metrics.Enabled {
			instrumented, err := observability.NewInstrumentedStore(store)
			if err != nil {
				slog.Error("Failed to create instrumented store", "error", err)
				os.Exit(1)
			}
			activeStore = instrumented
		}

		limiterOpts := []ratelimit.Option{
			ratelimit.WithStoreTimeout(cfg.RateLimit.StoreTimeout),
		}
		if !cfg.RateLimit.FailOpen {
			limiterOpts = append(limiterOpts, ratelimit.WithFailClosed())
		}
		limiter = ratelimit.New(activeStore, classLimits(cfg.RateLimit), limiterOpts...)
	}

	// Initialize the security event logger with its optional audit sink
	var sink events.Sink
	if cfg.Events.Audit.Enabled {
		auditSink, err := events.NewSQLiteAuditSink(cfg.Events.Audit.Path)
		if err != nil {
			slog.Error("Failed to open audit sink", "error", err)
			os.Exit(1)
		}
		defer auditSink.Close()
		sink = auditSink
	}
	eventLog := events.NewLogger(log, sink)

	var gateMetrics *observability.GateMetrics
	if cfg.Metrics.Enabled {
		gateMetrics, err = observability.NewGateMetrics()
		if err != nil {
			slog.Error("Failed to register gate metrics", "error", err)
			os.Exit(1)
		}
	}

	handlers := api.NewHandlers(ver)

	// Setup routes with middleware
	routeOpts := []api.RouteOption{}
	if cfg.Observability.Tracing.Enabled {
		routeOpts = append(routeOpts, api.WithOTelMiddleware(cfg.Observability.ServiceName))
	}
	if cfg.Gate.Enabled {
		gateMW := api.NewGate(
			classify.New(cfg.Gate.BlockThreshold, cfg.Gate.MonitorThreshold),
			limiter,
			gate.NewEngine(cfg.Gate.MonitorThreshold),
			eventLog,
			gateMetrics,
			cfg.Gate,
		)
		routeOpts = append(routeOpts, api.WithGate(gateMW))
	}

	router := api.SetupRoutes(handlers, routeOpts...)

	// Start metrics server if enabled
	var metricsServer *observability.MetricsServer
	if cfg.Metrics.Enabled {
		metricsServer = observability.NewMetricsServer(cfg.Metrics.Port, cfg.Metrics.Path, otelProvider)
		go func() {
			if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("Starting server",
			"addr", server.Addr,
			"gate_enabled", cfg.Gate.Enabled,
			"rate_limit_strategy", cfg.RateLimit.Strategy)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			slog.Error("Metrics server forced to shutdown", "error", err)
		}
	}

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server shutdown complete")
}

// initializeStore creates the counter store named by the rate-limit strategy.
func initializeStore(cfg *models.Config) (counter.Store, error) {
	switch cfg.RateLimit.Strategy {
	case models.StoreStrategyMemory:
		return counter.NewMemoryStore(cfg.RateLimit.SweepInterval), nil
	case models.StoreStrategyRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return counter.NewRedisStore(ctx, client)
	default:
		return nil, fmt.Errorf("unsupported rate limit strategy: %s", cfg.RateLimit.Strategy)
	}
}

// classLimits converts configured per-class quotas, falling back to the
// built-in defaults for classes the config leaves out.
func classLimits(cfg models.RateLimitConfig) map[ratelimit.Class]ratelimit.ClassLimit {
	limits := ratelimit.DefaultClassLimits()
	for name, quota := range cfg.Classes {
		if quota.Limit > 0 && quota.Window > 0 {
			limits[ratelimit.Class(name)] = ratelimit.ClassLimit{
				Limit:  quota.Limit,
				Window: quota.Window,
			}
		}
	}
	return limits
}
