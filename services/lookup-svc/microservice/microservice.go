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

	"github.com/go-url-platform/shortener/internal/bus"
	"github.com/go-url-platform/shortener/internal/cache"
	"github.com/go-url-platform/shortener/internal/config"
	"github.com/go-url-platform/shortener/internal/obs"
	"github.com/go-url-platform/shortener/internal/rpcjson"
	"github.com/go-url-platform/shortener/internal/store"
	"github.com/go-url-platform/shortener/services/lookup-svc/domain"
	"github.com/go-url-platform/shortener/services/lookup-svc/handler"
)

// Microservice wraps the go-micro service hosting the Lookup Service (C7).
type Microservice struct {
	service micro.Service
	log     *logrus.Logger
	pools   *store.Pools
	health  *store.HealthMonitor
}

// Init wires config, store, cache, geo resolver and event bus producer, then
// registers the Lookup Service handler on a NATS-backed go-micro service.
func Init(version string, log *logrus.Logger) (*Microservice, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	tracingConfig := obs.DefaultTracingConfig("lookup-svc")
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

	health := store.NewHealthMonitor(pools, cfg.Health)
	health.Start(ctx)

	mappingStore := store.NewMappingStore(pools, health)

	redisClient, err := cache.NewClient(ctx, cfg.Cache.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	tieredCache := cache.NewTieredCache(redisClient, cfg.Cache)

	microService := micro.NewService(
		micro.Name("lookup-svc"),
		micro.Version(version),
		micro.Transport(natsTransport.NewTransport()),
		micro.Registry(natsRegistry.NewRegistry()),
		micro.Broker(natsBroker.NewBroker()),
		micro.WrapHandler(obs.GoMicroMiddleware("lookup-svc")),
		micro.WrapHandler(obs.TraceGoMicroMiddleware("lookup-svc")),
	)
	microService.Init()

	geo, err := buildGeoResolver(cfg.Geo)
	if err != nil {
		log.WithError(err).Warn("geo resolver falling back to synthetic mapping")
		geo = bus.NewSyntheticGeoResolver()
	}

	producer := bus.NewProducer(microService.Options().Broker, cfg.Bus.Topic, geo, obs.NewTracer("lookup-svc"))

	svc := domain.NewService(mappingStore, tieredCache, producer, log)
	redirectHandler := handler.NewRedirectHandler(svc, log)

	if err := rpcjson.Register(microService.Server(), "Lookup", redirectHandler); err != nil {
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

	log.Info("lookup-svc configured with NATS transport, registry, broker, and full observability stack")

	return &Microservice{service: microService, log: log, pools: pools, health: health}, nil
}

// Run starts the microservice and blocks until it exits.
func (m *Microservice) Run() error {
	m.log.Info("starting lookup-svc")
	defer m.pools.Close()
	defer m.health.Stop()
	return m.service.Run()
}

func buildGeoResolver(cfg config.GeoConfig) (bus.GeoResolver, error) {
	if cfg.MaxMindDBPath == "" {
		return bus.NewSyntheticGeoResolver(), nil
	}
	return bus.NewMaxMindGeoResolver(cfg.MaxMindDBPath)
}
