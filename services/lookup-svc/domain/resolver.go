// Package domain implements the Lookup Service (C7) state machine:
// cache-get, db-lookup, freshness-check, cache-put, access-touch, and a
// non-blocking click-event emit, terminating in a redirect target or a
// closed-enum error.
package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/ua-parser/uap-go/uaparser"

	"github.com/go-url-platform/shortener/internal/bus"
	"github.com/go-url-platform/shortener/internal/cache"
	"github.com/go-url-platform/shortener/internal/obs"
	"github.com/go-url-platform/shortener/internal/pkgerr"
	"github.com/go-url-platform/shortener/internal/store"
)

const serviceName = "lookup-svc"

// ClientInfo carries per-request metadata used to enrich the click event
// published after a successful resolution.
type ClientInfo struct {
	ClientIP  string
	UserAgent string
	Referrer  string
}

// Service resolves short codes to original URLs.
type Service struct {
	store    *store.MappingStore
	cache    *cache.TieredCache
	producer *bus.Producer
	uaParser *uaparser.Parser
	tracer   *obs.Tracer
	log      *logrus.Logger
}

func NewService(mappingStore *store.MappingStore, tieredCache *cache.TieredCache, producer *bus.Producer, log *logrus.Logger) *Service {
	return &Service{
		store:    mappingStore,
		cache:    tieredCache,
		producer: producer,
		uaParser: uaparser.NewFromSaved(),
		tracer:   obs.NewTracer(serviceName),
		log:      log,
	}
}

// Resolve runs the S0-S7 state machine for a single redirect request and
// returns the original URL on success.
func (s *Service) Resolve(ctx context.Context, code string, client ClientInfo) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", pkgerr.New(pkgerr.KindInvalidInput, "short code is required")
	}

	ctx, span := obs.TraceLookup(ctx, s.tracer, code)
	defer span.End()

	start := time.Now()
	device := string(s.classifyDevice(client.UserAgent))

	// Country is resolved asynchronously by the click-event pipeline's geo
	// resolver, not here; this redirect metric labels it unknown.
	if cached, hit := s.cache.Get(ctx, code); hit {
		s.touchAndEmit(code, cached, client)
		obs.RecordSuccess(span)
		obs.RedirectionsTotal.WithLabelValues(serviceName, "unknown", device).Inc()
		obs.RedirectRequestDuration.WithLabelValues(serviceName, "true").Observe(time.Since(start).Seconds())
		return cached, nil
	}

	mapping, err := s.store.FindByShortCode(ctx, code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			err = pkgerr.New(pkgerr.KindNotFound, "short code not found")
			obs.RecordError(span, err)
			return "", err
		}
		err = pkgerr.Wrap(pkgerr.KindInternal, "lookup failed", err)
		obs.RecordError(span, err)
		return "", err
	}

	if mapping.ExpiresAt.Before(time.Now()) {
		err := pkgerr.New(pkgerr.KindExpired, "short url has expired")
		obs.RecordError(span, err)
		return "", err
	}

	if err := s.cache.Put(ctx, code, mapping.OriginalURL); err != nil {
		s.log.WithError(err).Warn("cache put failed, continuing with redirect")
	}

	s.touchAndEmit(code, mapping.OriginalURL, client)
	obs.RecordSuccess(span)
	obs.RedirectionsTotal.WithLabelValues(serviceName, "unknown", device).Inc()
	obs.RedirectRequestDuration.WithLabelValues(serviceName, "false").Observe(time.Since(start).Seconds())

	return mapping.OriginalURL, nil
}

// touchAndEmit performs S5 (access-touch) and S6 (event-emit). Both run in
// the background: a failure here must never fail the redirect already
// decided by the caller.
func (s *Service) touchAndEmit(code, originalURL string, client ClientInfo) {
	go func() {
		writeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.store.TouchAccessByCode(writeCtx, code, time.Now().UTC()); err != nil {
			s.log.WithError(err).WithField("short_code", code).Warn("access touch failed")
		}
	}()

	event := bus.NewClickEvent(code, client.ClientIP, client.UserAgent, client.Referrer, s.classifyDevice(client.UserAgent))
	go s.producer.Publish(event)
}

func (s *Service) classifyDevice(userAgent string) bus.DeviceType {
	if userAgent == "" {
		return bus.DeviceUnknown
	}

	client := s.uaParser.Parse(userAgent)
	family := strings.ToLower(client.Device.Family)
	ua := strings.ToLower(userAgent)

	switch {
	case strings.Contains(family, "tablet") || strings.Contains(ua, "tablet") || strings.Contains(ua, "ipad"):
		return bus.DeviceTablet
	case (family != "" && family != "other") || strings.Contains(ua, "mobile") || strings.Contains(ua, "android") || strings.Contains(ua, "iphone"):
		return bus.DeviceMobile
	default:
		return bus.DeviceDesktop
	}
}
