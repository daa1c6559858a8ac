package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/mcs-platform/mcs-gateway/internal/application/admission"
	"github.com/mcs-platform/mcs-gateway/internal/config"
	"github.com/mcs-platform/mcs-gateway/internal/domain/policy"
	infraaudit "github.com/mcs-platform/mcs-gateway/internal/infrastructure/audit"
	"github.com/mcs-platform/mcs-gateway/internal/infrastructure/monitoring"
	infrapolicy "github.com/mcs-platform/mcs-gateway/internal/infrastructure/policy"
	infraproxy "github.com/mcs-platform/mcs-gateway/internal/infrastructure/proxy"
	infraratelimit "github.com/mcs-platform/mcs-gateway/internal/infrastructure/ratelimit"
	"github.com/mcs-platform/mcs-gateway/internal/interfaces/http/handlers"
	"github.com/mcs-platform/mcs-gateway/internal/interfaces/http/middleware"
	"github.com/mcs-platform/mcs-gateway/internal/interfaces/http/router"
	"github.com/mcs-platform/mcs-gateway/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "directory containing config.yaml")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger, err := monitoring.NewZapLogger(&cfg.Log)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracer, tracerCleanup, err := monitoring.InitTracer(&cfg.Tracing, appLogger)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize tracer", err)
	}
	defer tracerCleanup()

	metrics := monitoring.NewMetrics()

	// A policy document that fails to load at startup is fatal: the gateway
	// never serves traffic without entitlements.
	policyStore, err := infrapolicy.NewFileStore(cfg.Policy.Path, appLogger)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to load policy document", err)
	}
	engine := policy.NewEngine(policyStore)

	limiter := buildLimiter(ctx, cfg, appLogger, metrics)
	forwarder := infraproxy.NewForwarder(appLogger, metrics)

	var audit admission.AuditSink
	if cfg.Audit.Enabled {
		producer := infraaudit.NewKafkaProducer(&cfg.Audit, appLogger)
		defer producer.Close()
		audit = producer
	}

	pipeline := admission.NewPipeline(engine, limiter, forwarder, appLogger, metrics, audit)

	auth, err := middleware.NewAuthenticator(cfg.JWT, appLogger, handlers.RespondError)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to build auth middleware", err)
	}

	r := router.NewRouter(
		cfg,
		appLogger,
		handlers.NewHealthHandler(policyStore),
		handlers.NewOrchestrationsHandler(pipeline, appLogger),
		handlers.NewPlatformHandler(pipeline, appLogger),
		auth,
		tracer,
		metrics,
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return r.Start(groupCtx)
	})
	if cfg.Policy.Watch {
		group.Go(func() error {
			return policyStore.Watch(groupCtx)
		})
	}

	if err := group.Wait(); err != nil {
		appLogger.Fatal(context.Background(), "Gateway exited with error", err)
	}
	appLogger.Info(context.Background(), "Gateway stopped")
}

// buildLimiter wires the fixed-window limiter. With no Redis addresses the
// limiter runs purely on the in-process store; with Redis configured, an
// unreachable server at startup is logged but not fatal since every check
// degrades to the in-process fallback.
func buildLimiter(ctx context.Context, cfg *config.Config, log logger.Logger, metrics *monitoring.Metrics) *infraratelimit.Limiter {
	if len(cfg.Redis.Addresses) == 0 {
		log.Warn(ctx, "No Redis configured, rate limiting is per-instance only")
		return infraratelimit.NewLimiter(nil, log, metrics)
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    cfg.Redis.Addresses,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Redis.RedisCheckTimeout())
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn(ctx, "Redis unreachable at startup, checks will use the fallback store",
			logger.Error(err))
	}

	return infraratelimit.NewLimiter(
		infraratelimit.NewRedisStore(client, cfg.Redis.RedisCheckTimeout()),
		log,
		metrics,
	)
}
