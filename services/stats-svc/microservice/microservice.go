package microservice

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"go-micro.dev/v5"

	natsBroker "github.com/micro/plugins/v5/broker/nats"
	natsRegistry "github.com/micro/plugins/v5/registry/nats"
	natsTransport "github.com/micro/plugins/v5/transport/nats"

	"github.com/go-url-platform/shortener/internal/bus"
	"github.com/go-url-platform/shortener/internal/config"
	"github.com/go-url-platform/shortener/internal/obs"
	"github.com/go-url-platform/shortener/internal/rpcjson"
	internalstore "github.com/go-url-platform/shortener/internal/store"
	"github.com/go-url-platform/shortener/services/stats-svc/aggregator"
	"github.com/go-url-platform/shortener/services/stats-svc/handler"
	"github.com/go-url-platform/shortener/services/stats-svc/query"
	"github.com/go-url-platform/shortener/services/stats-svc/store"
)

// Microservice wraps the go-micro service hosting the Stats Query API (C12),
// with the Event Bus Consumer/Batcher (C10) and Stats Aggregator (C11)
// running as background workers inside the same process.
type Microservice struct {
	service    micro.Service
	log        *logrus.Logger
	pool       *pgxpool.Pool
	consumer   *bus.Consumer
	batcher    *bus.Batcher
	aggregator *aggregator.Aggregator
}

func Init(version string, log *logrus.Logger) (*Microservice, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	tracingConfig := obs.DefaultTracingConfig("stats-svc")
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

	pool, err := internalstore.OpenPool(ctx, cfg.StatsDSN, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open stats db pool: %w", err)
	}

	statsStore := store.NewStatsStore(pool)

	var mirror *store.ClickHouseMirror
	if cfg.ClickHouse.Enabled {
		conn, err := clickhouse.Open(&clickhouse.Options{
			Addr: []string{cfg.ClickHouse.Host},
			Auth: clickhouse.Auth{
				Database: cfg.ClickHouse.Database,
				Username: cfg.ClickHouse.User,
				Password: cfg.ClickHouse.Password,
			},
		})
		if err != nil {
			log.WithError(err).Warn("clickhouse mirror disabled: connect failed")
		} else {
			mirror = store.NewClickHouseMirror(conn, log)
			if err := mirror.Ping(ctx); err != nil {
				log.WithError(err).Warn("clickhouse mirror disabled: ping failed")
				mirror = nil
			}
		}
	}

	microService := micro.NewService(
		micro.Name("stats-svc"),
		micro.Version(version),
		micro.Transport(natsTransport.NewTransport()),
		micro.Registry(natsRegistry.NewRegistry()),
		micro.Broker(natsBroker.NewBroker()),
		micro.WrapHandler(obs.GoMicroMiddleware("stats-svc")),
		micro.WrapHandler(obs.TraceGoMicroMiddleware("stats-svc")),
	)
	microService.Init()

	batcher := bus.NewBatcher(statsStore, cfg.Batcher.BatchSize, cfg.Batcher.FlushInterval)
	batcher.Start(ctx)

	consumer := bus.NewConsumer(microService.Options().Broker, cfg.Bus.Topic, batcher, cfg.Batcher.ConsumerConcurrency)
	if err := consumer.Start(ctx); err != nil {
		return nil, fmt.Errorf("start event consumer: %w", err)
	}

	var agg *aggregator.Aggregator
	if cfg.Aggregator.Enabled {
		var aggMirror aggregator.Mirror
		if mirror != nil && cfg.Aggregator.MirrorToClickhouse {
			aggMirror = mirror
		}
		agg, err = aggregator.New(statsStore, aggMirror, cfg.Aggregator.TimeZone, cfg.Aggregator.Interval)
		if err != nil {
			return nil, fmt.Errorf("build aggregator: %w", err)
		}
		if err := agg.Start(); err != nil {
			return nil, fmt.Errorf("start aggregator: %w", err)
		}
	}

	queryService := query.NewService(statsStore)
	statsHandler := handler.NewStatsHandler(queryService, log)

	if err := rpcjson.Register(microService.Server(), "Stats", statsHandler); err != nil {
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

	log.Info("stats-svc configured with NATS transport, registry, broker, and full observability stack")

	return &Microservice{
		service:    microService,
		log:        log,
		pool:       pool,
		consumer:   consumer,
		batcher:    batcher,
		aggregator: agg,
	}, nil
}

func (m *Microservice) Run() error {
	m.log.Info("starting stats-svc")
	defer m.pool.Close()
	defer m.consumer.Stop(context.Background())
	defer m.batcher.Stop()
	if m.aggregator != nil {
		defer m.aggregator.Stop()
	}
	return m.service.Run()
}
