package store

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/sirupsen/logrus"

	"github.com/go-url-platform/shortener/services/stats-svc/domain"
)

// ClickHouseMirror is a best-effort OLAP mirror of the authoritative
// Postgres rollup. It never participates in the Query API's read path
// directly; a failed mirror write is logged and otherwise ignored, since
// Postgres remains the source of truth for UrlStatistics.
type ClickHouseMirror struct {
	conn clickhouse.Conn
	log  *logrus.Logger
}

func NewClickHouseMirror(conn clickhouse.Conn, log *logrus.Logger) *ClickHouseMirror {
	return &ClickHouseMirror{conn: conn, log: log}
}

// MirrorRollup writes the freshly recomputed rollup row for one code. Errors
// are swallowed after logging: this path is an analytics convenience, not
// part of the statistics contract.
func (m *ClickHouseMirror) MirrorRollup(ctx context.Context, stats domain.UrlStatistics) {
	query := `
		INSERT INTO url_statistics_mirror (short_code, total_clicks, clicks_today, clicks_this_week, clicks_this_month, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	if err := m.conn.Exec(ctx, query,
		stats.ShortCode, stats.TotalClicks, stats.ClicksToday, stats.ClicksThisWeek, stats.ClicksThisMonth, stats.UpdatedAt,
	); err != nil {
		m.log.WithError(err).WithField("short_code", stats.ShortCode).Warn("clickhouse mirror write failed")
	}
}

// Ping verifies connectivity at startup so a misconfigured mirror fails
// loudly once instead of silently dropping every write.
func (m *ClickHouseMirror) Ping(ctx context.Context) error {
	if err := m.conn.Ping(ctx); err != nil {
		return fmt.Errorf("clickhouse mirror ping: %w", err)
	}
	return nil
}
