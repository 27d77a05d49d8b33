// Package query implements the Stats Query API (C12): read-only access to
// the rollup and raw-event tables maintained by the Aggregator and Batcher.
package query

import (
	"context"

	"github.com/go-url-platform/shortener/internal/pkgerr"
	"github.com/go-url-platform/shortener/services/stats-svc/domain"
)

const (
	topCountriesLimit = 10
	timelineDays      = 30
)

// ReadStore is the subset of the Stats DB access layer the Query API needs.
type ReadStore interface {
	GetStatistics(ctx context.Context, code string) (domain.UrlStatistics, bool, error)
	TopCountries(ctx context.Context, code string, limit int) ([]domain.CountryBreakdown, error)
	DailyTimeline(ctx context.Context, code string, days int) ([]domain.DailyClicks, error)
	PlatformTotals(ctx context.Context) (domain.PlatformStatisticsResponse, error)
}

// Service serves per-URL and platform-wide statistics from the Stats DB.
type Service struct {
	store ReadStore
}

func NewService(store ReadStore) *Service {
	return &Service{store: store}
}

// URLStatistics returns the per-code rollup enriched with top countries and
// a 30-day daily timeline. A code with no rollup row yet (no aggregation
// pass has run since its first click) returns a zero-valued rollup rather
// than an error, since the statistics contract is eventually consistent.
func (s *Service) URLStatistics(ctx context.Context, code string) (*domain.UrlStatisticsResponse, error) {
	if code == "" {
		return nil, pkgerr.New(pkgerr.KindInvalidInput, "short code is required")
	}

	stats, _, err := s.store.GetStatistics(ctx, code)
	if err != nil {
		return nil, pkgerr.Wrap(pkgerr.KindInternal, "failed to load statistics", err)
	}
	stats.ShortCode = code

	countries, err := s.store.TopCountries(ctx, code, topCountriesLimit)
	if err != nil {
		return nil, pkgerr.Wrap(pkgerr.KindInternal, "failed to load country breakdown", err)
	}

	timeline, err := s.store.DailyTimeline(ctx, code, timelineDays)
	if err != nil {
		return nil, pkgerr.Wrap(pkgerr.KindInternal, "failed to load daily timeline", err)
	}

	return &domain.UrlStatisticsResponse{
		UrlStatistics: stats,
		TopCountries:  countries,
		DailyTimeline: timeline,
	}, nil
}

// PlatformStatistics returns totals across all known codes. Implementations
// MUST NOT hold a long transaction against the raw events table to serve
// this; PlatformTotals reads the rollup table only.
func (s *Service) PlatformStatistics(ctx context.Context) (*domain.PlatformStatisticsResponse, error) {
	totals, err := s.store.PlatformTotals(ctx)
	if err != nil {
		return nil, pkgerr.Wrap(pkgerr.KindInternal, "failed to load platform totals", err)
	}
	return &totals, nil
}
