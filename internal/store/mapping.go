package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/go-url-platform/shortener/internal/obs"
)

// UrlMapping is the authoritative record of a short<->long binding.
type UrlMapping struct {
	ID              int64
	OriginalURL     string
	ShortCode       string
	CreatedAt       time.Time
	CreatedDate     time.Time
	ExpiresAt       time.Time
	AccessCount     int64
	LastAccessedAt  *time.Time
	ShardID         int32
}

// ErrUniqueViolation is returned by Insert when short_code already exists;
// callers regenerate and retry.
var ErrUniqueViolation = errors.New("store: unique violation on short_code")

// ErrNotFound is returned when a lookup finds no matching row.
var ErrNotFound = errors.New("store: mapping not found")

// MappingStore is the read/write-split, partition-aware relational access
// layer for UrlMapping rows described by C3.
type MappingStore struct {
	pools  *Pools
	health *HealthMonitor
}

func NewMappingStore(pools *Pools, health *HealthMonitor) *MappingStore {
	return &MappingStore{pools: pools, health: health}
}

// readPool returns a healthy replica pool and its dsn, or the primary (with
// an empty dsn, since the primary carries no read breaker) if none are
// healthy. Selection is round-robin and re-evaluated on every call (routing
// is per-operation, not per-request).
func (s *MappingStore) readPool() (*pgxpool.Pool, string) {
	if r, dsn := s.health.PickReplicaWithDSN(); r != nil {
		return r, dsn
	}
	return s.pools.Primary, ""
}

const mappingColumns = `id, original_url, short_code, created_at, created_date, expires_at, access_count, last_accessed_at, shard_id`

func scanMapping(row pgx.Row) (*UrlMapping, error) {
	var m UrlMapping
	err := row.Scan(&m.ID, &m.OriginalURL, &m.ShortCode, &m.CreatedAt, &m.CreatedDate, &m.ExpiresAt, &m.AccessCount, &m.LastAccessedAt, &m.ShardID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// FindByShortCode reads via a replica when one is healthy, wrapped in that
// replica's circuit breaker.
func (s *MappingStore) FindByShortCode(ctx context.Context, code string) (*UrlMapping, error) {
	pool, dsn := s.readPool()
	var result *UrlMapping
	err := obs.RecordDatabaseOperation("store", "select", "url_mappings", "replica-preferred", func() error {
		_, err := s.health.Breakers().ExecuteRead(dsn, func() (any, error) {
			row := pool.QueryRow(ctx, `SELECT `+mappingColumns+` FROM url_mappings WHERE short_code = $1`, code)
			m, err := scanMapping(row)
			if err != nil {
				return nil, err
			}
			result = m
			return nil, nil
		})
		return err
	})
	return result, err
}

// FindByOriginal reads via a replica; used by Create for deduplication.
func (s *MappingStore) FindByOriginal(ctx context.Context, original string) (*UrlMapping, error) {
	pool, dsn := s.readPool()
	var result *UrlMapping
	err := obs.RecordDatabaseOperation("store", "select", "url_mappings", "replica-preferred", func() error {
		_, err := s.health.Breakers().ExecuteRead(dsn, func() (any, error) {
			row := pool.QueryRow(ctx, `SELECT `+mappingColumns+` FROM url_mappings WHERE original_url = $1`, original)
			m, err := scanMapping(row)
			if err != nil {
				return nil, err
			}
			result = m
			return nil, nil
		})
		return err
	})
	return result, err
}

// ExistsShortCode reads via a replica, wrapped in that replica's circuit
// breaker.
func (s *MappingStore) ExistsShortCode(ctx context.Context, code string) (bool, error) {
	pool, dsn := s.readPool()
	var exists bool
	err := obs.RecordDatabaseOperation("store", "select", "url_mappings", "replica-preferred", func() error {
		_, err := s.health.Breakers().ExecuteRead(dsn, func() (any, error) {
			return nil, pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM url_mappings WHERE short_code = $1)`, code).Scan(&exists)
		})
		return err
	})
	return exists, err
}

// Insert writes via the primary only. A short_code collision surfaces as
// ErrUniqueViolation so the caller can regenerate and retry.
func (s *MappingStore) Insert(ctx context.Context, m *UrlMapping) error {
	return obs.RecordDatabaseOperation("store", "insert", "url_mappings", "primary", func() error {
		m.CreatedDate = m.CreatedAt.Truncate(24 * time.Hour)

		err := s.pools.Primary.QueryRow(ctx, `
			INSERT INTO url_mappings (original_url, short_code, created_at, created_date, expires_at, access_count, shard_id)
			VALUES ($1, $2, $3, $4, $5, 0, $6)
			RETURNING id
		`, m.OriginalURL, m.ShortCode, m.CreatedAt, m.CreatedDate, m.ExpiresAt, m.ShardID).Scan(&m.ID)

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrUniqueViolation
		}
		return err
	})
}

// TouchAccess performs a blind idempotent increment on the primary. Callers
// on a read-only path MUST invoke this in a fresh context so routing is
// re-evaluated to the primary.
func (s *MappingStore) TouchAccess(ctx context.Context, id int64, lastAccessedAt time.Time) error {
	return obs.RecordDatabaseOperation("store", "update", "url_mappings", "primary", func() error {
		_, err := s.pools.Primary.Exec(ctx, `
			UPDATE url_mappings SET access_count = access_count + 1, last_accessed_at = $2 WHERE id = $1
		`, id, lastAccessedAt)
		return err
	})
}

// TouchAccessByCode is TouchAccess keyed by short_code, used on the lookup
// path where a cache hit means the caller never loaded the row's id.
func (s *MappingStore) TouchAccessByCode(ctx context.Context, code string, lastAccessedAt time.Time) error {
	return obs.RecordDatabaseOperation("store", "update", "url_mappings", "primary", func() error {
		_, err := s.pools.Primary.Exec(ctx, `
			UPDATE url_mappings SET access_count = access_count + 1, last_accessed_at = $2 WHERE short_code = $1
		`, code, lastAccessedAt)
		return err
	})
}

// DeleteBatch deletes up to limit rows matching the cleanup eligibility rule
// on the primary and returns the number deleted.
func (s *MappingStore) DeleteBatch(ctx context.Context, accessCutoff, now time.Time, limit int) (int64, error) {
	var deleted int64
	err := obs.RecordDatabaseOperation("store", "delete", "url_mappings", "primary", func() error {
		tag, err := s.pools.Primary.Exec(ctx, `
			DELETE FROM url_mappings
			WHERE id IN (
				SELECT id FROM url_mappings
				WHERE COALESCE(last_accessed_at, created_at) < $1 OR expires_at < $2
				LIMIT $3
			)
		`, accessCutoff, now, limit)
		if err != nil {
			return err
		}
		deleted = tag.RowsAffected()
		return nil
	})
	return deleted, err
}
