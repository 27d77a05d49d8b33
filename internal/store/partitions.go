package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// ErrLegacyTableNotEmpty is returned when an automatic migration of a
// pre-existing non-partitioned url_mappings table is attempted but the table
// already holds rows. Implementations must refuse to mutate it automatically.
var ErrLegacyTableNotEmpty = fmt.Errorf("store: legacy url_mappings table is non-empty, refusing automatic migration")

// BootstrapPartitions ensures the range-partitioned url_mappings table
// exists, along with monthly partitions covering the current month and the
// next lookAheadMonths months.
func BootstrapPartitions(ctx context.Context, pool *pgxpool.Pool, lookAheadMonths int) error {
	if err := migrateLegacyTableIfEmpty(ctx, pool); err != nil {
		return err
	}

	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS url_mappings (
			id BIGSERIAL,
			original_url TEXT NOT NULL,
			short_code VARCHAR(10) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			created_date DATE NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL,
			access_count BIGINT NOT NULL DEFAULT 0,
			last_accessed_at TIMESTAMPTZ,
			shard_id INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (id, created_date)
		) PARTITION BY RANGE (created_date);
	`); err != nil {
		return fmt.Errorf("store: create url_mappings: %w", err)
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_url_mappings_short_code ON url_mappings (short_code);`,
		`CREATE INDEX IF NOT EXISTS idx_url_mappings_original_url ON url_mappings (original_url);`,
		`CREATE INDEX IF NOT EXISTS idx_url_mappings_created_date ON url_mappings (created_date);`,
		`CREATE INDEX IF NOT EXISTS idx_url_mappings_expires_at ON url_mappings (expires_at);`,
	}
	for _, stmt := range indexes {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("store: create index: %w", err)
		}
	}

	now := time.Now().UTC()
	for i := 0; i <= lookAheadMonths; i++ {
		monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, i, 0)
		if err := ensureMonthPartition(ctx, pool, monthStart); err != nil {
			return err
		}
	}

	return nil
}

func ensureMonthPartition(ctx context.Context, pool *pgxpool.Pool, monthStart time.Time) error {
	monthEnd := monthStart.AddDate(0, 1, 0)
	partitionName := fmt.Sprintf("url_mappings_%04d_%02d", monthStart.Year(), monthStart.Month())

	_, err := pool.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s PARTITION OF url_mappings
		FOR VALUES FROM ('%s') TO ('%s');
	`, partitionName, monthStart.Format("2006-01-02"), monthEnd.Format("2006-01-02")))
	if err != nil {
		return fmt.Errorf("store: create partition %s: %w", partitionName, err)
	}
	return nil
}

// migrateLegacyTableIfEmpty looks for a pre-existing non-partitioned
// url_mappings table (from a prior non-partitioned deployment). If found and
// empty, it is renamed out of the way so BootstrapPartitions can create the
// partitioned table cleanly. If found with rows, migration is refused.
func migrateLegacyTableIfEmpty(ctx context.Context, pool *pgxpool.Pool) error {
	var isPartitioned bool
	err := pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM pg_partitioned_table pt
			JOIN pg_class c ON c.oid = pt.partrelid
			WHERE c.relname = 'url_mappings'
		)
	`).Scan(&isPartitioned)
	if err != nil {
		return fmt.Errorf("store: check partitioned state: %w", err)
	}
	if isPartitioned {
		return nil
	}

	var exists bool
	if err := pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM pg_tables WHERE tablename = 'url_mappings')`).Scan(&exists); err != nil {
		return fmt.Errorf("store: check legacy table: %w", err)
	}
	if !exists {
		return nil
	}

	var rowCount int64
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM url_mappings LIMIT 1`).Scan(&rowCount); err != nil {
		return fmt.Errorf("store: count legacy rows: %w", err)
	}
	if rowCount > 0 {
		return ErrLegacyTableNotEmpty
	}

	logrus.Info("migrating empty legacy non-partitioned url_mappings table out of the way")
	_, err = pool.Exec(ctx, `ALTER TABLE url_mappings RENAME TO url_mappings_legacy_empty;`)
	if err != nil {
		return fmt.Errorf("store: rename legacy table: %w", err)
	}
	return nil
}
