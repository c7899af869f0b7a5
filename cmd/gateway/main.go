package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/af-corp/appgen-gateway/internal/auth"
	"github.com/af-corp/appgen-gateway/internal/completion"
	"github.com/af-corp/appgen-gateway/internal/config"
	"github.com/af-corp/appgen-gateway/internal/filter"
	"github.com/af-corp/appgen-gateway/internal/filter/injection"
	"github.com/af-corp/appgen-gateway/internal/filter/secrets"
	"github.com/af-corp/appgen-gateway/internal/gateway"
	"github.com/af-corp/appgen-gateway/internal/generation"
	"github.com/af-corp/appgen-gateway/internal/identity"
	"github.com/af-corp/appgen-gateway/internal/instructions"
	"github.com/af-corp/appgen-gateway/internal/policy"
	"github.com/af-corp/appgen-gateway/internal/telemetry"
)

var version = "dev"

func main() {
	configDir := flag.String("config", "configs", "path to configuration directory")
	envFile := flag.String("env", ".env", "path to an optional .env file")
	flag.Parse()

	if err := config.LoadDotEnv(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "load %s: %v\n", *envFile, err)
		os.Exit(1)
	}

	bootLogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// Load configuration
	loader := config.NewLoader(*configDir, bootLogger)
	if err := loader.Load(); err != nil {
		bootLogger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	cfg := loader.Config()

	logger := newLogger(cfg.Telemetry)
	slog.SetDefault(logger)

	if err := loader.Watch(); err != nil {
		logger.Warn("failed to start config watcher", "error", err)
	}
	defer loader.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.TracingEnabled {
		shutdown, err := telemetry.InitTracer("appgen-gateway")
		if err != nil {
			logger.Warn("failed to initialize tracing", "error", err)
		} else {
			defer shutdown(context.Background())
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := telemetry.NewMetrics(reg)

	// Identity provider
	var provider identity.Provider
	switch cfg.Identity.Provider {
	case "postgres":
		dbPool, err := pgxpool.New(ctx, cfg.Database.DSN())
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer dbPool.Close()

		if err := dbPool.Ping(ctx); err != nil {
			logger.Warn("database not reachable (gateway will start but token auth will fail)", "error", err)
		} else {
			logger.Info("database connected")
		}
		provider = identity.NewPostgresStore(dbPool)
	case "instant", "":
		provider = identity.NewInstantClient(cfg.Identity.Instant, cfg.Identity.Timeout)
	default:
		logger.Error("unknown identity provider", "provider", cfg.Identity.Provider)
		os.Exit(1)
	}

	resolver, err := auth.NewResolverFromConfig(cfg.Auth, provider)
	if err != nil {
		logger.Error("invalid auth configuration", "error", err)
		os.Exit(1)
	}
	logger.Info("auth configured", "mode", resolver.Mode(), "strategies", resolver.Strategies())

	// Connect to Redis
	var rdb redis.UniversalClient
	if len(cfg.Redis.Addresses) > 0 && cfg.Redis.Addresses[0] != "" {
		rdb = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    cfg.Redis.Addresses,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis not reachable (instructions fall back to default)", "error", err)
		} else {
			logger.Info("redis connected")
		}
	}

	// Supplementary instructions
	store, err := newInstructionsStore(cfg.Instructions, rdb, metrics)
	if err != nil {
		logger.Error("invalid instructions configuration", "error", err)
		os.Exit(1)
	}
	store.Reload(ctx)
	if cfg.Instructions.Watch && cfg.Instructions.Source != "redis" {
		if err := store.WatchFile(cfg.Instructions.Path); err != nil {
			logger.Warn("failed to watch instructions file", "error", err)
		}
	}
	defer store.Close()

	// Build provider registry
	health := completion.NewHealthTracker(cfg.Routing.CircuitBreaker.FailureThreshold, cfg.Routing.CircuitBreaker.RecoveryProbeInterval)
	providerRegistry, err := completion.BuildFromConfig(ctx, loader.Providers(), health)
	if err != nil {
		logger.Error("failed to build provider registry", "error", err)
		os.Exit(1)
	}

	// Generation pipeline
	stages, err := generation.StagesFromConfig(loader.Pipeline())
	if err != nil {
		logger.Error("invalid pipeline configuration", "error", err)
		os.Exit(1)
	}

	injectionScanner := injection.NewScanner(func() config.InjectionFilterConfig {
		return loader.Config().Filter.Injection
	})
	secretScanner := secrets.NewScanner()
	filters := []filter.Filter{injectionScanner}
	if cfg.Filter.Secrets.Enabled {
		filters = append(filters, secretScanner)
	}
	filterChain := filter.NewChain(metrics, filters...)

	pipeline, err := generation.New(stages, providerRegistry,
		generation.WithMetrics(metrics),
		generation.WithScreener(filterChain),
		generation.WithStageTimeout(cfg.Routing.DefaultTimeout),
	)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}

	loader.OnReload(func() {
		newRegistry, err := completion.BuildFromConfig(ctx, loader.Providers(), health)
		if err != nil {
			logger.Error("provider registry reload failed, keeping previous", "error", err)
		} else {
			providerRegistry.Replace(newRegistry)
			logger.Info("provider registry reloaded", "providers", providerRegistry.Names())
		}

		newStages, err := generation.StagesFromConfig(loader.Pipeline())
		if err != nil {
			logger.Error("pipeline reload failed, keeping previous stages", "error", err)
			return
		}
		if err := pipeline.SetStages(newStages); err != nil {
			logger.Error("pipeline reload failed, keeping previous stages", "error", err)
			return
		}
		logger.Info("pipeline reloaded", "stages", len(newStages))
	})

	// Policy
	evaluator := policy.NewEvaluator(func() config.PolicyConfig { return loader.Config().Policy })
	var authorize func(http.Handler) http.Handler
	if evaluator.Enabled() {
		if err := evaluator.Load(ctx); err != nil {
			logger.Error("failed to load policies", "error", err)
			os.Exit(1)
		}
		authorize = evaluator.Middleware
	}

	// Build handler
	opts := []gateway.HandlerOption{
		gateway.WithVersion(version),
		gateway.WithProviderStates(health.States),
	}
	if cfg.Filter.Secrets.Enabled {
		opts = append(opts, gateway.WithRedactor(secretScanner.Redact))
	}
	handler := gateway.NewHandler(pipeline, store, opts...)

	r := gateway.NewRouter(handler, gateway.RouterConfig{
		Authenticate: auth.Middleware(resolver, metrics),
		Authorize:    authorize,
		Metrics:      metrics,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      otelhttp.NewHandler(r, "appgen-gateway"),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	metricsSrv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Telemetry.MetricsPort),
		Handler: metricsMux,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("gateway starting", "addr", addr, "version", version)
		return serve(srv)
	})
	g.Go(func() error {
		logger.Info("metrics server starting", "addr", metricsSrv.Addr)
		return serve(metricsSrv)
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
		defer cancel()
		return errors.Join(srv.Shutdown(shutdownCtx), metricsSrv.Shutdown(shutdownCtx))
	})

	if err := g.Wait(); err != nil {
		logger.Error("gateway stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("gateway stopped")
}

func serve(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func newLogger(cfg config.TelemetryConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.LogFormat, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func newInstructionsStore(cfg config.InstructionsConfig, rdb redis.UniversalClient, metrics *telemetry.Metrics) (*instructions.Store, error) {
	var src instructions.Source
	switch cfg.Source {
	case "redis":
		if rdb == nil {
			return nil, errors.New("instructions source is redis but no redis address is configured")
		}
		src = instructions.RedisSource{Client: rdb, Key: cfg.RedisKey}
	case "file", "":
		src = instructions.FileSource{Path: filepath.Clean(cfg.Path)}
	default:
		return nil, fmt.Errorf("unknown instructions source %q", cfg.Source)
	}
	return instructions.NewStore(src, cfg.Fallback, metrics), nil
}
