package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-url-platform/shortener/services/stats-svc/domain"
)

type fakeReadStore struct {
	stats     domain.UrlStatistics
	found     bool
	countries []domain.CountryBreakdown
	timeline  []domain.DailyClicks
	platform  domain.PlatformStatisticsResponse
}

func (f *fakeReadStore) GetStatistics(ctx context.Context, code string) (domain.UrlStatistics, bool, error) {
	return f.stats, f.found, nil
}

func (f *fakeReadStore) TopCountries(ctx context.Context, code string, limit int) ([]domain.CountryBreakdown, error) {
	return f.countries, nil
}

func (f *fakeReadStore) DailyTimeline(ctx context.Context, code string, days int) ([]domain.DailyClicks, error) {
	return f.timeline, nil
}

func (f *fakeReadStore) PlatformTotals(ctx context.Context) (domain.PlatformStatisticsResponse, error) {
	return f.platform, nil
}

func TestURLStatisticsRejectsEmptyCode(t *testing.T) {
	svc := NewService(&fakeReadStore{})
	_, err := svc.URLStatistics(context.Background(), "")
	require.Error(t, err)
}

func TestURLStatisticsComposesRollupAndBreakdowns(t *testing.T) {
	store := &fakeReadStore{
		stats:     domain.UrlStatistics{TotalClicks: 42},
		found:     true,
		countries: []domain.CountryBreakdown{{Country: "US", Clicks: 30}},
		timeline:  []domain.DailyClicks{{Clicks: 10}},
	}
	svc := NewService(store)

	resp, err := svc.URLStatistics(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, "abc123", resp.ShortCode)
	assert.Equal(t, int64(42), resp.TotalClicks)
	assert.Len(t, resp.TopCountries, 1)
	assert.Len(t, resp.DailyTimeline, 1)
}

func TestPlatformStatisticsPassesThroughTotals(t *testing.T) {
	store := &fakeReadStore{platform: domain.PlatformStatisticsResponse{TotalCodes: 3, TotalClicks: 100, ClicksToday: 5}}
	svc := NewService(store)

	resp, err := svc.PlatformStatistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), resp.TotalCodes)
	assert.Equal(t, int64(100), resp.TotalClicks)
}
