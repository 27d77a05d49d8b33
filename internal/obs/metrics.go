// Package obs wires Prometheus metrics and OpenTelemetry/Jaeger tracing for
// every service in the platform.
package obs

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go-micro.dev/v5/server"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"service", "method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "endpoint", "status"},
	)

	RPCRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rpc_requests_total",
			Help: "Total number of inter-service RPC requests",
		},
		[]string{"service", "method", "status"},
	)

	RPCRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rpc_request_duration_seconds",
			Help:    "Duration of inter-service RPC requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "status"},
	)

	URLsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "urls_created_total",
			Help: "Total number of short URLs created",
		},
		[]string{"service"},
	)

	RedirectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redirections_total",
			Help: "Total number of URL redirections",
		},
		[]string{"service", "country", "device_type"},
	)

	RedirectRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redirect_request_duration_seconds",
			Help:    "Duration of redirect requests in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"service", "cache_hit"},
	)

	CacheOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_operations_total",
			Help: "Total cache operations",
		},
		[]string{"service", "operation", "result"},
	)

	CacheTierHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_tier_hits_total",
			Help: "Cache hits by adaptive TTL tier",
		},
		[]string{"tier"},
	)

	DatabaseOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "database_operations_total",
			Help: "Total database operations",
		},
		[]string{"service", "operation", "table", "route"},
	)

	DatabaseOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "database_operation_duration_seconds",
			Help:    "Duration of database operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "operation", "table", "route"},
	)

	ReplicaHealthy = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "replica_healthy",
			Help: "1 if a replica is currently considered healthy, else 0",
		},
		[]string{"replica"},
	)

	CodeGenerationAttempts = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "code_generation_attempts",
			Help:    "Number of attempts the Code Generator needed before success",
			Buckets: []float64{1, 2, 3, 5, 10, 25, 50, 100},
		},
		[]string{"strategy", "result"},
	)

	CleanupBatchesDeleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cleanup_rows_deleted_total",
			Help: "Total mapping rows deleted by the cleanup worker",
		},
		[]string{},
	)

	AggregatorRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "aggregator_run_duration_seconds",
			Help:    "Duration of a single stats aggregator pass",
			Buckets: prometheus.DefBuckets,
		},
	)

	BatcherBufferSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "batcher_buffer_size",
			Help: "Current number of click events buffered awaiting flush",
		},
	)

	NATSMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nats_messages_published_total",
			Help: "Total NATS messages published",
		},
		[]string{"service", "subject"},
	)

	NATSMessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nats_messages_received_total",
			Help: "Total NATS messages received",
		},
		[]string{"service", "subject"},
	)
)

// Metrics bundles a private registry with all collectors above registered.
type Metrics struct {
	Registry *prometheus.Registry
}

// NewMetrics builds a fresh registry with runtime and business metrics registered.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	registry.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		RPCRequestsTotal,
		RPCRequestDuration,
		URLsCreatedTotal,
		RedirectionsTotal,
		RedirectRequestDuration,
		CacheOperationsTotal,
		CacheTierHits,
		DatabaseOperationsTotal,
		DatabaseOperationDuration,
		ReplicaHealthy,
		CodeGenerationAttempts,
		CleanupBatchesDeleted,
		AggregatorRunDuration,
		BatcherBufferSize,
		NATSMessagesPublished,
		NATSMessagesReceived,
	)

	return &Metrics{Registry: registry}
}

// PrometheusHandler returns the Gin handler serving this registry.
func (m *Metrics) PrometheusHandler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
	return gin.WrapH(h)
}

// GinMiddleware records HTTP request count/duration for every Gin route.
func GinMiddleware(serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start)
		status := strconv.Itoa(c.Writer.Status())

		HTTPRequestsTotal.WithLabelValues(serviceName, c.Request.Method, c.FullPath(), status).Inc()
		HTTPRequestDuration.WithLabelValues(serviceName, c.Request.Method, c.FullPath(), status).Observe(duration.Seconds())
	}
}

// GoMicroMiddleware records RPC count/duration for every go-micro handler call.
func GoMicroMiddleware(serviceName string) server.HandlerWrapper {
	return func(fn server.HandlerFunc) server.HandlerFunc {
		return func(ctx context.Context, req server.Request, rsp interface{}) error {
			start := time.Now()

			err := fn(ctx, req, rsp)

			duration := time.Since(start)
			status := "success"
			if err != nil {
				status = "error"
			}

			RPCRequestsTotal.WithLabelValues(serviceName, req.Method(), status).Inc()
			RPCRequestDuration.WithLabelValues(serviceName, req.Method(), status).Observe(duration.Seconds())

			return err
		}
	}
}

// RecordDatabaseOperation times fn and records it against the given operation/table/route.
func RecordDatabaseOperation(service, operation, table, route string, fn func() error) error {
	start := time.Now()
	err := fn()
	DatabaseOperationsTotal.WithLabelValues(service, operation, table, route).Inc()
	DatabaseOperationDuration.WithLabelValues(service, operation, table, route).Observe(time.Since(start).Seconds())
	return err
}

// RecordCacheOperation records a cache operation's outcome.
func RecordCacheOperation(service, operation string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheOperationsTotal.WithLabelValues(service, operation, result).Inc()
}

// RecordNATSMessagePublished increments the publish counter for subject.
func RecordNATSMessagePublished(service, subject string) {
	NATSMessagesPublished.WithLabelValues(service, subject).Inc()
}

// RecordNATSMessageReceived increments the receive counter for subject.
func RecordNATSMessageReceived(service, subject string) {
	NATSMessagesReceived.WithLabelValues(service, subject).Inc()
}
