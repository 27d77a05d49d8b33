package obs

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/sirupsen/logrus"
	"go-micro.dev/v5/server"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	oteltrace "go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// TracingConfig holds configuration for Jaeger tracing.
type TracingConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	JaegerEndpoint string
	SamplingRatio  float64
}

// DefaultTracingConfig returns default tracing configuration for serviceName.
func DefaultTracingConfig(serviceName string) *TracingConfig {
	return &TracingConfig{
		ServiceName:    serviceName,
		ServiceVersion: getEnv("SERVICE_VERSION", "1.0.0"),
		Environment:    getEnv("ENVIRONMENT", "development"),
		JaegerEndpoint: getEnv("JAEGER_ENDPOINT", "localhost:4317"),
		SamplingRatio:  1.0,
	}
}

// InitJaeger initializes Jaeger tracing for the service via the OTLP gRPC exporter.
func InitJaeger(config *TracingConfig) (*trace.TracerProvider, error) {
	ctx := context.Background()

	log := logrus.WithFields(logrus.Fields{
		"service": config.ServiceName,
		"jaeger":  config.JaegerEndpoint,
	})
	log.Info("initializing tracing")

	conn, err := grpc.NewClient(config.JaegerEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection to Jaeger at %s: %w", config.JaegerEndpoint, err)
	}

	exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP gRPC exporter: %w", err)
	}

	log.Info("connected to tracing backend")

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
			semconv.DeploymentEnvironment(config.Environment),
			attribute.String("service.type", "microservice"),
			attribute.String("service.framework", "go-micro"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
		trace.WithSampler(trace.AlwaysSample()),
	)

	otel.SetTracerProvider(tp)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp, nil
}

// Tracer wraps an OpenTelemetry tracer with convenience span-starting methods.
type Tracer struct {
	tracer oteltrace.Tracer
}

func NewTracer(serviceName string) *Tracer {
	return &Tracer{tracer: otel.Tracer(serviceName)}
}

func (t *Tracer) StartSpan(ctx context.Context, spanName string, opts ...oteltrace.SpanStartOption) (context.Context, oteltrace.Span) {
	return t.tracer.Start(ctx, spanName, opts...)
}

func (t *Tracer) StartHTTPSpan(ctx context.Context, method, endpoint string) (context.Context, oteltrace.Span) {
	spanName := fmt.Sprintf("HTTP %s %s", method, endpoint)
	ctx, span := t.tracer.Start(ctx, spanName)

	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", endpoint),
		attribute.String("span.kind", "server"),
	)

	return ctx, span
}

// StartRPCSpan starts a span for an inter-service RPC call over go-micro/NATS.
func (t *Tracer) StartRPCSpan(ctx context.Context, service, method string) (context.Context, oteltrace.Span) {
	spanName := fmt.Sprintf("RPC %s/%s", service, method)
	ctx, span := t.tracer.Start(ctx, spanName)

	span.SetAttributes(
		attribute.String("rpc.system", "go-micro"),
		attribute.String("rpc.service", service),
		attribute.String("rpc.method", method),
		attribute.String("span.kind", "server"),
	)

	return ctx, span
}

func (t *Tracer) StartDatabaseSpan(ctx context.Context, operation, table string) (context.Context, oteltrace.Span) {
	spanName := fmt.Sprintf("DB %s %s", operation, table)
	ctx, span := t.tracer.Start(ctx, spanName)

	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", operation),
		attribute.String("db.sql.table", table),
		attribute.String("span.kind", "client"),
	)

	return ctx, span
}

func (t *Tracer) StartCacheSpan(ctx context.Context, operation, key string) (context.Context, oteltrace.Span) {
	spanName := fmt.Sprintf("Cache %s", operation)
	ctx, span := t.tracer.Start(ctx, spanName)

	span.SetAttributes(
		attribute.String("cache.system", "redis"),
		attribute.String("cache.operation", operation),
		attribute.String("cache.key", key),
		attribute.String("span.kind", "client"),
	)

	return ctx, span
}

func (t *Tracer) StartNATSSpan(ctx context.Context, operation, subject string) (context.Context, oteltrace.Span) {
	spanName := fmt.Sprintf("NATS %s %s", operation, subject)
	ctx, span := t.tracer.Start(ctx, spanName)

	span.SetAttributes(
		attribute.String("messaging.system", "nats"),
		attribute.String("messaging.operation", operation),
		attribute.String("messaging.destination", subject),
		attribute.String("span.kind", "producer"),
	)

	return ctx, span
}

func RecordError(span oteltrace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

func RecordSuccess(span oteltrace.Span) {
	span.SetStatus(codes.Ok, "")
}

func AddAttributes(span oteltrace.Span, attrs ...attribute.KeyValue) {
	span.SetAttributes(attrs...)
}

// TraceHTTPMiddleware provides request tracing for plain net/http handlers.
func TraceHTTPMiddleware(serviceName string) func(next http.Handler) http.Handler {
	tracer := NewTracer(serviceName)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

			ctx, span := tracer.StartHTTPSpan(ctx, r.Method, r.URL.Path)
			defer span.End()

			span.SetAttributes(
				attribute.String("http.url", r.URL.String()),
				attribute.String("http.user_agent", r.UserAgent()),
				attribute.String("http.remote_addr", r.RemoteAddr),
				attribute.String("service.name", serviceName),
			)

			wrapped := &responseWriter{ResponseWriter: w, statusCode: 200}

			next.ServeHTTP(wrapped, r.WithContext(ctx))

			span.SetAttributes(attribute.Int("http.status_code", wrapped.statusCode))

			if wrapped.statusCode >= 400 {
				span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", wrapped.statusCode))
			} else {
				span.SetStatus(codes.Ok, "")
			}
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// TraceGoMicroMiddleware provides tracing for go-micro RPC handler calls.
func TraceGoMicroMiddleware(serviceName string) server.HandlerWrapper {
	tracer := NewTracer(serviceName)

	return func(fn server.HandlerFunc) server.HandlerFunc {
		return func(ctx context.Context, req server.Request, rsp interface{}) error {
			ctx, span := tracer.StartRPCSpan(ctx, req.Service(), req.Method())
			defer span.End()

			span.SetAttributes(
				attribute.String("rpc.request.endpoint", req.Endpoint()),
				attribute.String("rpc.request.content_type", req.ContentType()),
			)

			err := fn(ctx, req, rsp)

			if err != nil {
				RecordError(span, err)
			} else {
				RecordSuccess(span)
			}

			return err
		}
	}
}

// Business logic tracing helpers

// TraceCreate traces a short-URL creation operation.
func TraceCreate(ctx context.Context, tracer *Tracer, longURL string) (context.Context, oteltrace.Span) {
	ctx, span := tracer.StartSpan(ctx, "url.create")
	span.SetAttributes(
		attribute.String("url.long", longURL),
		attribute.String("operation", "create"),
	)
	return ctx, span
}

// TraceLookup traces a short-code resolution operation.
func TraceLookup(ctx context.Context, tracer *Tracer, shortCode string) (context.Context, oteltrace.Span) {
	ctx, span := tracer.StartSpan(ctx, "url.lookup")
	span.SetAttributes(
		attribute.String("url.short_code", shortCode),
		attribute.String("operation", "lookup"),
	)
	return ctx, span
}

// TraceClickEvent traces publishing a click event onto the bus.
func TraceClickEvent(ctx context.Context, tracer *Tracer, shortCode string) (context.Context, oteltrace.Span) {
	ctx, span := tracer.StartSpan(ctx, "stats.click")
	span.SetAttributes(
		attribute.String("url.short_code", shortCode),
		attribute.String("operation", "stats"),
	)
	return ctx, span
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
