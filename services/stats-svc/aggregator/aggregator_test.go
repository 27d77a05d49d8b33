package aggregator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-url-platform/shortener/services/stats-svc/domain"
)

type fakeRollupStore struct {
	codes      []string
	rollups    map[string]domain.UrlStatistics
	upserted   []domain.UrlStatistics
	rollupErrs map[string]error
}

func (f *fakeRollupStore) DistinctShortCodes(ctx context.Context) ([]string, error) {
	return f.codes, nil
}

func (f *fakeRollupStore) RollupCounts(ctx context.Context, code string, loc *time.Location, now time.Time) (domain.UrlStatistics, error) {
	if err, ok := f.rollupErrs[code]; ok {
		return domain.UrlStatistics{}, err
	}
	return f.rollups[code], nil
}

func (f *fakeRollupStore) UpsertStatistics(ctx context.Context, stats domain.UrlStatistics) error {
	f.upserted = append(f.upserted, stats)
	return nil
}

type fakeMirror struct {
	mirrored []domain.UrlStatistics
}

func (m *fakeMirror) MirrorRollup(ctx context.Context, stats domain.UrlStatistics) {
	m.mirrored = append(m.mirrored, stats)
}

func TestRunPassUpsertsEveryDistinctCode(t *testing.T) {
	store := &fakeRollupStore{
		codes: []string{"abc123", "xyz789"},
		rollups: map[string]domain.UrlStatistics{
			"abc123": {ShortCode: "abc123", TotalClicks: 5},
			"xyz789": {ShortCode: "xyz789", TotalClicks: 2},
		},
	}
	agg, err := New(store, nil, "UTC", 10*time.Minute)
	require.NoError(t, err)

	agg.RunPass(context.Background())

	assert.Len(t, store.upserted, 2)
}

func TestRunPassSkipsCodeOnRollupError(t *testing.T) {
	store := &fakeRollupStore{
		codes:      []string{"bad", "good"},
		rollups:    map[string]domain.UrlStatistics{"good": {ShortCode: "good", TotalClicks: 1}},
		rollupErrs: map[string]error{"bad": assertErr{}},
	}
	agg, err := New(store, nil, "UTC", 10*time.Minute)
	require.NoError(t, err)

	agg.RunPass(context.Background())

	assert.Len(t, store.upserted, 1)
	assert.Equal(t, "good", store.upserted[0].ShortCode)
}

func TestRunPassMirrorsEverySuccessfulUpsert(t *testing.T) {
	store := &fakeRollupStore{
		codes:   []string{"abc123"},
		rollups: map[string]domain.UrlStatistics{"abc123": {ShortCode: "abc123", TotalClicks: 5}},
	}
	mirror := &fakeMirror{}
	agg, err := New(store, mirror, "UTC", 10*time.Minute)
	require.NoError(t, err)

	agg.RunPass(context.Background())

	assert.Len(t, mirror.mirrored, 1)
}

func TestNewFallsBackToUTCOnUnknownTimeZone(t *testing.T) {
	agg, err := New(&fakeRollupStore{}, nil, "Not/A_Zone", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, agg.loc)
}

type assertErr struct{}

func (assertErr) Error() string { return "rollup failed" }
