package store

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/go-url-platform/shortener/internal/config"
	"github.com/go-url-platform/shortener/internal/obs"
)

type replicaStatus struct {
	healthy   bool
	checkedAt time.Time
}

// HealthMonitor maintains a last-known-good view of each configured replica
// and gates which replicas routing may select. It owns no connections; it
// only probes pools handed to it by Pools.
type HealthMonitor struct {
	pools  []*pgxpool.Pool
	dsns   []string
	status sync.Map // dsn -> replicaStatus

	probeInterval   time.Duration
	probeTimeout    time.Duration
	stalenessWindow time.Duration
	shutdownGrace   time.Duration
	lagThresholdMiB int64

	breakers *BreakerSet

	cursor int64 // round-robin cursor, advanced atomically

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHealthMonitor builds a monitor over the given replica pools.
func NewHealthMonitor(pools *Pools, cfg config.HealthMonitorConfig) *HealthMonitor {
	return &HealthMonitor{
		pools:           pools.Replicas,
		dsns:            pools.ReplicaDSNs,
		probeInterval:   cfg.ProbeInterval,
		probeTimeout:    cfg.ProbeTimeout,
		stalenessWindow: cfg.StalenessWindow,
		shutdownGrace:   cfg.ShutdownGrace,
		lagThresholdMiB: cfg.LagThresholdMiB,
		breakers:        NewBreakerSet(pools.ReplicaDSNs),
		stopCh:          make(chan struct{}),
		doneCh:          make(chan struct{}),
	}
}

// Start runs an initial probe synchronously, then probes on probeInterval
// until Stop is called.
func (m *HealthMonitor) Start(ctx context.Context) {
	m.probeAll(ctx)

	go func() {
		defer close(m.doneCh)
		ticker := time.NewTicker(m.probeInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m.probeAll(ctx)
			case <-m.stopCh:
				return
			}
		}
	}()
}

// Stop terminates the probe schedule, waiting up to shutdownGrace.
func (m *HealthMonitor) Stop() {
	close(m.stopCh)
	select {
	case <-m.doneCh:
	case <-time.After(m.shutdownGrace):
		logrus.Warn("health monitor did not stop within shutdown grace period")
	}
}

func (m *HealthMonitor) probeAll(ctx context.Context) {
	var wg sync.WaitGroup
	for i, pool := range m.pools {
		wg.Add(1)
		go func(dsn string, pool *pgxpool.Pool) {
			defer wg.Done()
			m.probeOne(ctx, dsn, pool)
		}(m.dsns[i], pool)
	}
	wg.Wait()
}

func (m *HealthMonitor) probeOne(ctx context.Context, dsn string, pool *pgxpool.Pool) {
	probeCtx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()

	ok, err := m.breakers.Execute(dsn, func() (bool, error) {
		conn, err := pool.Acquire(probeCtx)
		if err != nil {
			return false, err
		}
		defer conn.Release()

		var inRecovery bool
		if err := conn.QueryRow(probeCtx, "SELECT pg_is_in_recovery()").Scan(&inRecovery); err != nil {
			return false, err
		}
		if !inRecovery {
			// A pool serving as the primary is not a usable read replica.
			return false, nil
		}

		lagBytes, err := replicationLagBytes(probeCtx, conn)
		if err != nil {
			// Lag estimate unobtainable: treat as within threshold per probe contract.
			return true, nil
		}
		return lagBytes <= m.lagThresholdMiB*1024*1024, nil
	})

	healthy := err == nil && ok
	m.status.Store(dsn, replicaStatus{healthy: healthy, checkedAt: time.Now()})

	gaugeValue := 0.0
	if healthy {
		gaugeValue = 1.0
	}
	obs.ReplicaHealthy.WithLabelValues(redactDSN(dsn)).Set(gaugeValue)

	if err != nil {
		logrus.WithError(err).WithField("dsn", redactDSN(dsn)).Debug("replica probe failed")
	}
}

// Healthy reports whether dsn is currently considered healthy: a probe
// succeeded within the staleness window.
func (m *HealthMonitor) Healthy(dsn string) bool {
	v, ok := m.status.Load(dsn)
	if !ok {
		return false
	}
	st := v.(replicaStatus)
	if time.Since(st.checkedAt) > m.stalenessWindow {
		return false
	}
	return st.healthy
}

// PickReplica returns a healthy replica pool using round-robin selection, or
// nil if none are healthy (callers must fall through to the primary).
func (m *HealthMonitor) PickReplica() *pgxpool.Pool {
	pool, _ := m.PickReplicaWithDSN()
	return pool
}

// PickReplicaWithDSN is PickReplica but also returns the selected dsn, so
// callers can run their query through that replica's circuit breaker.
func (m *HealthMonitor) PickReplicaWithDSN() (*pgxpool.Pool, string) {
	n := len(m.pools)
	if n == 0 {
		return nil, ""
	}

	start := int(atomic.AddInt64(&m.cursor, 1))
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		if m.Healthy(m.dsns[idx]) {
			return m.pools[idx], m.dsns[idx]
		}
	}
	return nil, ""
}

// Breakers exposes the replica circuit breaker set so the Mapping Store can
// wrap its own reads, not just health probes.
func (m *HealthMonitor) Breakers() *BreakerSet {
	return m.breakers
}

// replicationLagBytes estimates the replica's lag in bytes as the WAL it has
// received but not yet replayed. When either position is unavailable the
// query yields 0; an error is returned only if the query itself fails.
func replicationLagBytes(ctx context.Context, conn *pgxpool.Conn) (int64, error) {
	var lag int64
	err := conn.QueryRow(ctx, `
		SELECT COALESCE(pg_wal_lsn_diff(pg_last_wal_receive_lsn(), pg_last_wal_replay_lsn()), 0)::bigint
	`).Scan(&lag)
	return lag, err
}
