package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go-micro.dev/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"golang.org/x/time/rate"

	natsBroker "github.com/micro/plugins/v5/broker/nats"
	natsRegistry "github.com/micro/plugins/v5/registry/nats"
	natsTransport "github.com/micro/plugins/v5/transport/nats"

	"github.com/go-url-platform/shortener/services/gateway/handler"

	"github.com/go-url-platform/shortener/internal/config"
	"github.com/go-url-platform/shortener/internal/obs"
)

var Version = "latest"

type healthResponse struct {
	Status    string `json:"status" example:"ok"`
	Service   string `json:"service" example:"gateway"`
	Transport string `json:"transport" example:"NATS"`
	Version   string `json:"version" example:"1.0"`
}

// @title			URL Shortening Platform Gateway
// @version		1.0
// @description	Public HTTP entry point for the horizontally-scalable URL shortening platform. Routes requests to the Create, Lookup, and Stats services over NATS.
//
// @contact.name	Platform Support
//
// @license.name	MIT
// @license.url	https://opensource.org/licenses/MIT
//
// @BasePath	/api/v1
func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.Info("starting gateway")

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("failed to load config")
	}

	tracingConfig := obs.DefaultTracingConfig("gateway")
	tp, err := obs.InitJaeger(tracingConfig)
	if err != nil {
		logger.WithError(err).Warn("tracing disabled: jaeger init failed")
	} else {
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				logger.WithError(err).Error("tracer provider shutdown failed")
			}
		}()
	}

	metrics := obs.NewMetrics()

	service := micro.NewService(
		micro.Name("gateway"),
		micro.Version(Version),
		micro.Transport(natsTransport.NewTransport()),
		micro.Registry(natsRegistry.NewRegistry()),
		micro.Broker(natsBroker.NewBroker()),
	)
	service.Init()

	go func() {
		if err := service.Run(); err != nil {
			logger.WithError(err).Error("go-micro client service stopped")
		}
	}()

	gatewayHandler := handler.NewGatewayHandler(service.Client(), logger)

	router := gin.Default()
	router.Use(obs.GinMiddleware("gateway"))

	if tp != nil {
		router.Use(func(c *gin.Context) {
			ctx := otel.GetTextMapPropagator().Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))

			tracer := obs.NewTracer("gateway")
			ctx, span := tracer.StartHTTPSpan(ctx, c.Request.Method, c.Request.URL.Path)
			defer span.End()

			obs.AddAttributes(span,
				attribute.String("http.url", c.Request.URL.String()),
				attribute.String("http.user_agent", c.Request.UserAgent()),
				attribute.String("http.remote_addr", c.ClientIP()),
			)

			c.Request = c.Request.WithContext(ctx)
			c.Next()

			status := c.Writer.Status()
			obs.AddAttributes(span, attribute.Int("http.status_code", status))
			if status >= 400 {
				obs.RecordError(span, fmt.Errorf("HTTP %d", status))
			} else {
				obs.RecordSuccess(span)
			}
		})
	}

	router.Use(corsMiddleware(cfg.Gateway.CORSOrigins))
	if cfg.Gateway.RateLimitOn {
		router.Use(rateLimitMiddleware(cfg.Gateway.RateLimitRPS))
	}

	router.GET("/metrics", metrics.PrometheusHandler())
	router.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := router.Group("/api/v1")
	{
		api.POST("/create/shorten", gatewayHandler.ShortenURL)
		api.GET("/create/qr", gatewayHandler.GetQRCode)
		api.GET("/stats/url/:code", gatewayHandler.GetURLStatistics)
		api.GET("/stats/platform", gatewayHandler.GetPlatformStatistics)
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, healthResponse{Status: "ok", Service: "gateway", Transport: "NATS", Version: Version})
	})
	router.GET("/health/create", gatewayHandler.ServiceHealth("create-svc"))
	router.GET("/health/lookup", gatewayHandler.ServiceHealth("lookup-svc"))
	router.GET("/health/stats", gatewayHandler.ServiceHealth("stats-svc"))

	// Registered last: a bare short code is ambiguous with every path above it.
	router.GET("/:code", gatewayHandler.RedirectURL)

	logger.WithField("addr", cfg.Gateway.ListenAddr).Info("gateway ready")
	if err := router.Run(cfg.Gateway.ListenAddr); err != nil {
		logger.WithError(err).Fatal("gateway stopped")
	}
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	allowAll := len(origins) == 0
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if allowAll {
			c.Header("Access-Control-Allow-Origin", "*")
		} else if allowed[origin] {
			c.Header("Access-Control-Allow-Origin", origin)
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

// rateLimitMiddleware enforces a platform-wide token bucket. It is a
// capability hook, not a per-client limiter: spec scope stops at admission
// control, not fairness between callers.
func rateLimitMiddleware(rps int) gin.HandlerFunc {
	limiter := rate.NewLimiter(rate.Limit(rps), rps)
	return func(c *gin.Context) {
		if !limiter.AllowN(time.Now(), 1) {
			c.AbortWithStatus(429)
			return
		}
		c.Next()
	}
}
