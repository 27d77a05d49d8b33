package domain

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-url-platform/shortener/internal/cache"
	"github.com/go-url-platform/shortener/internal/codegen"
	"github.com/go-url-platform/shortener/internal/obs"
	"github.com/go-url-platform/shortener/internal/pkgerr"
	"github.com/go-url-platform/shortener/internal/qrcode"
	"github.com/go-url-platform/shortener/internal/store"
	"github.com/sirupsen/logrus"
)

const serviceName = "create-svc"

// Service implements the Create Service (C6) algorithm: dedupe by
// original_url, generate a code, insert the mapping, and warm the cache.
type Service struct {
	store     *store.MappingStore
	cache     *cache.TieredCache
	generator codegen.Generator
	tracer    *obs.Tracer
	log       *logrus.Logger
}

// NewService wires the Create Service against its dependencies.
func NewService(mappingStore *store.MappingStore, tieredCache *cache.TieredCache, generator codegen.Generator, log *logrus.Logger) *Service {
	return &Service{
		store:     mappingStore,
		cache:     tieredCache,
		generator: generator,
		tracer:    obs.NewTracer(serviceName),
		log:       log,
	}
}

// Create validates req.OriginalURL, dedupes against an existing mapping, and
// otherwise generates and persists a new short code.
func (s *Service) Create(ctx context.Context, req *CreateRequest) (*CreateResponse, error) {
	if err := validateOriginalURL(req.OriginalURL); err != nil {
		return nil, err
	}
	if err := validateBaseURL(req.BaseURL); err != nil {
		return nil, err
	}

	ctx, span := obs.TraceCreate(ctx, s.tracer, req.OriginalURL)
	defer span.End()

	if existing, err := s.store.FindByOriginal(ctx, req.OriginalURL); err == nil {
		obs.RecordSuccess(span)
		return s.toResponse(req, existing), nil
	} else if !errors.Is(err, store.ErrNotFound) {
		err = pkgerr.Wrap(pkgerr.KindInternal, "lookup by original_url failed", err)
		obs.RecordError(span, err)
		return nil, err
	}

	mapping, err := s.createWithRetry(ctx, req.OriginalURL)
	if err != nil {
		obs.RecordError(span, err)
		return nil, err
	}

	s.warmCache(ctx, mapping)
	obs.URLsCreatedTotal.WithLabelValues(serviceName).Inc()
	obs.RecordSuccess(span)

	return s.toResponse(req, mapping), nil
}

// createWithRetry generates a candidate code and inserts it, retrying on a
// short_code unique-violation race up to MaxCodeRegenerationAttempts times.
func (s *Service) createWithRetry(ctx context.Context, originalURL string) (*store.UrlMapping, error) {
	var lastErr error
	for attempt := 0; attempt < MaxCodeRegenerationAttempts; attempt++ {
		code, err := s.generator.Next(ctx)
		if err != nil {
			if errors.Is(err, codegen.ErrCapacityExhausted) {
				return nil, pkgerr.Wrap(pkgerr.KindGenerationFail, "short code space exhausted", err)
			}
			return nil, pkgerr.Wrap(pkgerr.KindGenerationFail, "code generation failed", err)
		}

		now := time.Now().UTC()
		mapping := &store.UrlMapping{
			OriginalURL: originalURL,
			ShortCode:   code,
			CreatedAt:   now,
			ExpiresAt:   now.Add(ExpiryHorizon),
		}

		if err := s.store.Insert(ctx, mapping); err != nil {
			if errors.Is(err, store.ErrUniqueViolation) {
				lastErr = err
				s.log.WithField("short_code", code).Warn("short code collision, regenerating")
				continue
			}
			return nil, pkgerr.Wrap(pkgerr.KindInternal, "insert mapping failed", err)
		}

		return mapping, nil
	}

	return nil, pkgerr.Wrap(pkgerr.KindGenerationFail, "exhausted regeneration attempts", lastErr)
}

func (s *Service) warmCache(ctx context.Context, mapping *store.UrlMapping) {
	if err := s.cache.Put(ctx, mapping.ShortCode, mapping.OriginalURL); err != nil {
		s.log.WithError(err).Warn("failed to warm cache after create")
	}
}

func (s *Service) toResponse(req *CreateRequest, mapping *store.UrlMapping) *CreateResponse {
	base := strings.TrimRight(req.BaseURL, "/")
	shortURL := mapping.ShortCode
	if base != "" {
		shortURL = base + "/" + mapping.ShortCode
	}

	return &CreateResponse{
		OriginalURL: mapping.OriginalURL,
		ShortURL:    shortURL,
		ShortCode:   mapping.ShortCode,
		Success:     true,
	}
}

// QR renders a PNG QR code for the given short URL.
func (s *Service) QR(ctx context.Context, req *QRRequest) (*QRResponse, error) {
	if req.ShortURL == "" {
		return nil, pkgerr.New(pkgerr.KindInvalidInput, "short_url is required")
	}

	png, err := qrcode.Encode(req.ShortURL)
	if err != nil {
		return nil, pkgerr.Wrap(pkgerr.KindInvalidInput, "failed to render qr code", err)
	}

	return &QRResponse{PNG: png}, nil
}

// validateBaseURL enforces that base is http/https with a host. Synthesizing
// a default from the caller's scheme/host is the Gateway's job (it is the
// only component with an incoming HTTP request to synthesize from); the
// Create Service only validates whatever base it was handed.
func validateBaseURL(base string) error {
	if base == "" {
		return pkgerr.New(pkgerr.KindInvalidInput, "base_url is required")
	}

	parsed, err := url.Parse(base)
	if err != nil {
		return pkgerr.Wrap(pkgerr.KindInvalidInput, "base_url is not a valid URL", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return pkgerr.New(pkgerr.KindInvalidInput, "base_url must use http or https")
	}
	if parsed.Host == "" {
		return pkgerr.New(pkgerr.KindInvalidInput, "base_url is missing a host")
	}

	return nil
}

func validateOriginalURL(original string) error {
	if original == "" {
		return pkgerr.New(pkgerr.KindInvalidInput, "original_url is required")
	}
	if len(original) > MaxOriginalURLLength {
		return pkgerr.New(pkgerr.KindInvalidInput, fmt.Sprintf("original_url exceeds %d characters", MaxOriginalURLLength))
	}

	parsed, err := url.Parse(original)
	if err != nil {
		return pkgerr.Wrap(pkgerr.KindInvalidInput, "original_url is not a valid URL", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return pkgerr.New(pkgerr.KindInvalidInput, "original_url must use http or https")
	}
	if parsed.Host == "" {
		return pkgerr.New(pkgerr.KindInvalidInput, "original_url is missing a host")
	}

	return nil
}
