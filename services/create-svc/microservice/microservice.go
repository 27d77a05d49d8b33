package microservice

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go-micro.dev/v5"

	natsBroker "github.com/micro/plugins/v5/broker/nats"
	natsRegistry "github.com/micro/plugins/v5/registry/nats"
	natsTransport "github.com/micro/plugins/v5/transport/nats"

	"github.com/go-url-platform/shortener/internal/cache"
	"github.com/go-url-platform/shortener/internal/cleanup"
	"github.com/go-url-platform/shortener/internal/codegen"
	"github.com/go-url-platform/shortener/internal/config"
	"github.com/go-url-platform/shortener/internal/obs"
	"github.com/go-url-platform/shortener/internal/rpcjson"
	"github.com/go-url-platform/shortener/internal/store"
	"github.com/go-url-platform/shortener/services/create-svc/domain"
	"github.com/go-url-platform/shortener/services/create-svc/handler"
)

// Microservice wraps the go-micro service hosting the Create Service (C6),
// with the Cleanup Worker (C8) running as a background cron job in the same
// process since it owns the primary DB's write path.
type Microservice struct {
	service micro.Service
	log     *logrus.Logger
	pools   *store.Pools
	health  *store.HealthMonitor
	cleanup *cleanup.Worker
}

// Init wires config, store, cache, and code generator, then registers the
// Create Service handler on a NATS-backed go-micro service.
func Init(version string, log *logrus.Logger) (*Microservice, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	tracingConfig := obs.DefaultTracingConfig("create-svc")
	if tp, err := obs.InitJaeger(tracingConfig); err != nil {
		log.WithError(err).Warn("tracing disabled: jaeger init failed")
	} else {
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				log.WithError(err).Error("tracer provider shutdown failed")
			}
		}()
	}

	metrics := obs.NewMetrics()

	ctx := context.Background()

	pools, err := store.NewPools(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store pools: %w", err)
	}

	if err := store.BootstrapPartitions(ctx, pools.Primary, cfg.Store.PartitionLookAhead); err != nil {
		return nil, fmt.Errorf("bootstrap partitions: %w", err)
	}

	health := store.NewHealthMonitor(pools, cfg.Health)
	health.Start(ctx)

	mappingStore := store.NewMappingStore(pools, health)

	redisClient, err := cache.NewClient(ctx, cfg.Cache.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	tieredCache := cache.NewTieredCache(redisClient, cfg.Cache)

	generator, err := buildGenerator(cfg.Codegen, mappingStore)
	if err != nil {
		return nil, fmt.Errorf("build code generator: %w", err)
	}

	svc := domain.NewService(mappingStore, tieredCache, generator, log)
	urlHandler := handler.NewURLHandler(svc, log)

	var cleanupWorker *cleanup.Worker
	if cfg.Cleanup.Enabled {
		cleanupWorker = cleanup.NewWorker(mappingStore, cfg.Cleanup.RetentionMonths, cfg.Cleanup.BatchSize, cfg.Cleanup.Cron, cfg.Cleanup.InterBatchSleep)
		if err := cleanupWorker.Start(); err != nil {
			return nil, fmt.Errorf("start cleanup worker: %w", err)
		}
	}

	microService := micro.NewService(
		micro.Name("create-svc"),
		micro.Version(version),
		micro.Transport(natsTransport.NewTransport()),
		micro.Registry(natsRegistry.NewRegistry()),
		micro.Broker(natsBroker.NewBroker()),
		micro.WrapHandler(obs.GoMicroMiddleware("create-svc")),
		micro.WrapHandler(obs.TraceGoMicroMiddleware("create-svc")),
	)
	microService.Init()

	if err := rpcjson.Register(microService.Server(), "Create", urlHandler); err != nil {
		return nil, fmt.Errorf("register handler: %w", err)
	}

	go func() {
		metricsRouter := gin.New()
		metricsRouter.GET("/metrics", metrics.PrometheusHandler())
		log.WithField("addr", cfg.Service.MetricsAddr).Info("metrics server starting")
		if err := metricsRouter.Run(cfg.Service.MetricsAddr); err != nil {
			log.WithError(err).Error("metrics server stopped")
		}
	}()

	log.Info("create-svc configured with NATS transport, registry, broker, and full observability stack")

	return &Microservice{service: microService, log: log, pools: pools, health: health, cleanup: cleanupWorker}, nil
}

// Run starts the microservice and blocks until it exits.
func (m *Microservice) Run() error {
	m.log.Info("starting create-svc")
	defer m.pools.Close()
	defer m.health.Stop()
	if m.cleanup != nil {
		defer m.cleanup.Stop()
	}
	return m.service.Run()
}

func buildGenerator(cfg config.CodegenConfig, checker codegen.ExistenceChecker) (codegen.Generator, error) {
	switch cfg.Strategy {
	case "snowflake":
		return codegen.NewSnowflakeGenerator(cfg.SnowflakeNode)
	default:
		return codegen.NewRandomGenerator(checker, cfg.DrawCeiling, cfg.AttemptBudget), nil
	}
}
