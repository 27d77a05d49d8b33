package store

import (
	"time"

	"github.com/sony/gobreaker/v2"
)

// BreakerSet holds two circuit breakers per replica DSN, one for health
// probes and one for live reads, so a consistently failing replica stops
// absorbing probe/read latency budget instead of timing out on every
// attempt. Probes and reads trip independently: a replica can still be
// probed as healthy while its query breaker is open on a burst of read
// errors the next probe interval hasn't caught yet.
type BreakerSet struct {
	probes map[string]*gobreaker.CircuitBreaker[bool]
	reads  map[string]*gobreaker.CircuitBreaker[any]
}

// NewBreakerSet builds a probe breaker and a read breaker per dsn, both with
// settings tuned for a replication read/probe: open after 5 consecutive
// failures, half-open after 15s.
func NewBreakerSet(dsns []string) *BreakerSet {
	readyToTrip := func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= 5
	}

	bs := &BreakerSet{
		probes: make(map[string]*gobreaker.CircuitBreaker[bool], len(dsns)),
		reads:  make(map[string]*gobreaker.CircuitBreaker[any], len(dsns)),
	}
	for _, dsn := range dsns {
		bs.probes[dsn] = gobreaker.NewCircuitBreaker[bool](gobreaker.Settings{
			Name:        "replica-probe:" + redactDSN(dsn),
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     15 * time.Second,
			ReadyToTrip: readyToTrip,
		})
		bs.reads[dsn] = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
			Name:        "replica-read:" + redactDSN(dsn),
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     15 * time.Second,
			ReadyToTrip: readyToTrip,
		})
	}
	return bs
}

// Execute runs a health probe through the probe breaker registered for dsn.
// If dsn has no breaker (unknown replica), fn runs unprotected.
func (bs *BreakerSet) Execute(dsn string, fn func() (bool, error)) (bool, error) {
	cb, ok := bs.probes[dsn]
	if !ok {
		return fn()
	}
	return cb.Execute(fn)
}

// ExecuteRead runs a replica query through the read breaker registered for
// dsn. If dsn has no breaker (unknown replica, or a fallback to the
// primary), fn runs unprotected.
func (bs *BreakerSet) ExecuteRead(dsn string, fn func() (any, error)) (any, error) {
	cb, ok := bs.reads[dsn]
	if !ok {
		return fn()
	}
	return cb.Execute(fn)
}
