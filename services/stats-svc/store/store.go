// Package store implements the Stats DB access layer: the raw click-events
// table (write path for the Batcher, read path for the Aggregator) and the
// url_statistics rollup table (write path for the Aggregator, read path for
// the Query API).
package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/go-url-platform/shortener/internal/bus"
	"github.com/go-url-platform/shortener/internal/obs"
	"github.com/go-url-platform/shortener/services/stats-svc/domain"
)

// StatsStore is the Postgres-backed Stats DB access layer. It implements
// bus.RawEventWriter so the Batcher can drain directly into it.
type StatsStore struct {
	pool *pgxpool.Pool
}

func NewStatsStore(pool *pgxpool.Pool) *StatsStore {
	return &StatsStore{pool: pool}
}

// InsertBatch bulk-inserts a drained batch of click events in a single
// round trip via pgx's CopyFrom.
func (s *StatsStore) InsertBatch(ctx context.Context, events []bus.ClickEvent) error {
	return obs.RecordDatabaseOperation("stats-svc", "insert", "url_click_events", "primary", func() error {
		rows := make([][]interface{}, 0, len(events))
		for _, e := range events {
			rows = append(rows, []interface{}{
				e.ShortCode, e.IPAddress, e.UserAgent, e.Referrer,
				e.Country, e.City, string(e.DeviceType),
				time.UnixMilli(e.Timestamp).UTC(),
			})
		}
		_, err := s.pool.CopyFrom(ctx,
			pgx.Identifier{"url_click_events"},
			[]string{"short_code", "ip_address", "user_agent", "referrer", "country", "city", "device_type", "clicked_at"},
			pgx.CopyFromRows(rows),
		)
		return err
	})
}

// DistinctShortCodes returns every short_code with at least one raw event,
// the iteration set the Aggregator recomputes rollups over.
func (s *StatsStore) DistinctShortCodes(ctx context.Context) ([]string, error) {
	var codes []string
	err := obs.RecordDatabaseOperation("stats-svc", "select", "url_click_events", "primary", func() error {
		rows, err := s.pool.Query(ctx, `SELECT DISTINCT short_code FROM url_click_events`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var code string
			if err := rows.Scan(&code); err != nil {
				return err
			}
			codes = append(codes, code)
		}
		return rows.Err()
	})
	return codes, err
}

// RollupCounts recomputes the full UrlStatistics row for code from the raw
// events table, using loc for the day/week/month calendar boundaries.
func (s *StatsStore) RollupCounts(ctx context.Context, code string, loc *time.Location, now time.Time) (domain.UrlStatistics, error) {
	local := now.In(loc)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	weekStart := dayStart.AddDate(0, 0, -int(local.Weekday()))
	monthStart := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)

	var stats domain.UrlStatistics
	stats.ShortCode = code
	err := obs.RecordDatabaseOperation("stats-svc", "select", "url_click_events", "primary", func() error {
		return s.pool.QueryRow(ctx, `
			SELECT
				COUNT(*),
				COUNT(*) FILTER (WHERE clicked_at >= $2),
				COUNT(*) FILTER (WHERE clicked_at >= $3),
				COUNT(*) FILTER (WHERE clicked_at >= $4),
				MIN(clicked_at),
				MAX(clicked_at)
			FROM url_click_events
			WHERE short_code = $1
		`, code, dayStart.UTC(), weekStart.UTC(), monthStart.UTC()).Scan(
			&stats.TotalClicks, &stats.ClicksToday, &stats.ClicksThisWeek, &stats.ClicksThisMonth,
			&stats.FirstClickAt, &stats.LastClickAt,
		)
	})
	return stats, err
}

// UpsertStatistics idempotently writes the recomputed rollup.
func (s *StatsStore) UpsertStatistics(ctx context.Context, stats domain.UrlStatistics) error {
	return obs.RecordDatabaseOperation("stats-svc", "upsert", "url_statistics", "primary", func() error {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO url_statistics (short_code, total_clicks, clicks_today, clicks_this_week, clicks_this_month, first_click_at, last_click_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, now())
			ON CONFLICT (short_code) DO UPDATE SET
				total_clicks = EXCLUDED.total_clicks,
				clicks_today = EXCLUDED.clicks_today,
				clicks_this_week = EXCLUDED.clicks_this_week,
				clicks_this_month = EXCLUDED.clicks_this_month,
				first_click_at = EXCLUDED.first_click_at,
				last_click_at = EXCLUDED.last_click_at,
				updated_at = now()
		`, stats.ShortCode, stats.TotalClicks, stats.ClicksToday, stats.ClicksThisWeek, stats.ClicksThisMonth, stats.FirstClickAt, stats.LastClickAt)
		return err
	})
}

// GetStatistics reads the current rollup row, if one exists.
func (s *StatsStore) GetStatistics(ctx context.Context, code string) (domain.UrlStatistics, bool, error) {
	var stats domain.UrlStatistics
	found := false
	err := obs.RecordDatabaseOperation("stats-svc", "select", "url_statistics", "primary", func() error {
		row := s.pool.QueryRow(ctx, `
			SELECT short_code, total_clicks, clicks_today, clicks_this_week, clicks_this_month, first_click_at, last_click_at, updated_at
			FROM url_statistics WHERE short_code = $1
		`, code)
		err := row.Scan(&stats.ShortCode, &stats.TotalClicks, &stats.ClicksToday, &stats.ClicksThisWeek, &stats.ClicksThisMonth,
			&stats.FirstClickAt, &stats.LastClickAt, &stats.UpdatedAt)
		if err == pgx.ErrNoRows {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	return stats, found, err
}

// TopCountries returns the top-N countries by click count for code.
func (s *StatsStore) TopCountries(ctx context.Context, code string, limit int) ([]domain.CountryBreakdown, error) {
	var out []domain.CountryBreakdown
	err := obs.RecordDatabaseOperation("stats-svc", "select", "url_click_events", "primary", func() error {
		rows, err := s.pool.Query(ctx, `
			SELECT COALESCE(NULLIF(country, ''), 'Unknown') AS country, COUNT(*) AS clicks
			FROM url_click_events
			WHERE short_code = $1
			GROUP BY country
			ORDER BY clicks DESC
			LIMIT $2
		`, code, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var c domain.CountryBreakdown
			if err := rows.Scan(&c.Country, &c.Clicks); err != nil {
				return err
			}
			out = append(out, c)
		}
		return rows.Err()
	})
	return out, err
}

// DailyTimeline returns a day-bucketed click count over the trailing window.
func (s *StatsStore) DailyTimeline(ctx context.Context, code string, days int) ([]domain.DailyClicks, error) {
	var out []domain.DailyClicks
	err := obs.RecordDatabaseOperation("stats-svc", "select", "url_click_events", "primary", func() error {
		rows, err := s.pool.Query(ctx, `
			SELECT DATE_TRUNC('day', clicked_at) AS day, COUNT(*) AS clicks
			FROM url_click_events
			WHERE short_code = $1 AND clicked_at >= now() - ($2 || ' days')::interval
			GROUP BY day
			ORDER BY day
		`, code, days)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var d domain.DailyClicks
			if err := rows.Scan(&d.Day, &d.Clicks); err != nil {
				return err
			}
			out = append(out, d)
		}
		return rows.Err()
	})
	return out, err
}

// PlatformTotals computes aggregate totals directly from url_statistics, a
// cheap read that avoids scanning the raw events table on every request.
func (s *StatsStore) PlatformTotals(ctx context.Context) (domain.PlatformStatisticsResponse, error) {
	var p domain.PlatformStatisticsResponse
	err := obs.RecordDatabaseOperation("stats-svc", "select", "url_statistics", "primary", func() error {
		return s.pool.QueryRow(ctx, `
			SELECT COUNT(*), COALESCE(SUM(total_clicks), 0), COALESCE(SUM(clicks_today), 0)
			FROM url_statistics
		`).Scan(&p.TotalCodes, &p.TotalClicks, &p.ClicksToday)
	})
	return p, err
}
