// Package store implements the Mapping Store (read/write-split, partitioned
// relational access to URL mappings) and the Replica Health Monitor that
// gates which replicas routing may use.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/go-url-platform/shortener/internal/config"
)

// Pools bundles the primary connection pool with every configured replica
// pool. Replica order is fixed at construction time and used for round-robin
// selection by the Health Monitor.
type Pools struct {
	Primary     *pgxpool.Pool
	Replicas    []*pgxpool.Pool
	ReplicaDSNs []string
}

// NewPools opens the primary pool and one pool per configured replica DSN.
// Replica connection failures at startup are logged, not fatal: the Health
// Monitor will simply never mark that replica healthy.
func NewPools(ctx context.Context, cfg config.StoreConfig) (*Pools, error) {
	primary, err := openPool(ctx, cfg.PrimaryDSN, cfg)
	if err != nil {
		return nil, fmt.Errorf("store: open primary pool: %w", err)
	}

	pools := &Pools{
		Primary:     primary,
		Replicas:    make([]*pgxpool.Pool, 0, len(cfg.ReplicaDSNs)),
		ReplicaDSNs: make([]string, 0, len(cfg.ReplicaDSNs)),
	}

	for _, dsn := range cfg.ReplicaDSNs {
		replica, err := openPool(ctx, dsn, cfg)
		if err != nil {
			logrus.WithError(err).WithField("dsn", redactDSN(dsn)).Warn("replica pool unreachable at startup")
			continue
		}
		pools.Replicas = append(pools.Replicas, replica)
		pools.ReplicaDSNs = append(pools.ReplicaDSNs, dsn)
	}

	return pools, nil
}

// OpenPool opens a standalone pgx pool against dsn using the pool-sizing
// fields of cfg. Used by services with a single database (no primary/replica
// split), such as the Stats DB.
func OpenPool(ctx context.Context, dsn string, cfg config.StoreConfig) (*pgxpool.Pool, error) {
	return openPool(ctx, dsn, cfg)
}

func openPool(ctx context.Context, dsn string, cfg config.StoreConfig) (*pgxpool.Pool, error) {
	pgxCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	pgxCfg.MaxConns = cfg.MaxConns
	pgxCfg.MinConns = cfg.MinConns
	pgxCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	pgxCfg.MaxConnIdleTime = cfg.ConnIdleTimeout
	pgxCfg.HealthCheckPeriod = time.Minute

	acquireCtx, cancel := context.WithTimeout(ctx, cfg.AcquireTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(acquireCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return pool, nil
}

// Close releases every pool.
func (p *Pools) Close() {
	if p.Primary != nil {
		p.Primary.Close()
	}
	for _, r := range p.Replicas {
		r.Close()
	}
}

func redactDSN(dsn string) string {
	return "<redacted>"
}
