package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/go-url-platform/shortener/internal/config"
)

// MappingStoreTestSuite exercises the Mapping Store contract against a real
// Postgres instance. It is skipped unless STORE_TEST_DSN is set so the suite
// never runs accidentally outside an integration environment.
type MappingStoreTestSuite struct {
	suite.Suite
	pools  *Pools
	health *HealthMonitor
	store  *MappingStore
	ctx    context.Context
}

func (s *MappingStoreTestSuite) SetupSuite() {
	dsn := os.Getenv("STORE_TEST_DSN")
	if dsn == "" {
		s.T().Skip("STORE_TEST_DSN not set, skipping mapping store integration suite")
	}

	s.ctx = context.Background()

	cfg := config.StoreConfig{
		PrimaryDSN:      dsn,
		MaxConns:        5,
		MinConns:        1,
		AcquireTimeout:  5 * time.Second,
		ConnIdleTimeout: time.Minute,
		ConnMaxLifetime: 5 * time.Minute,
	}

	pools, err := NewPools(s.ctx, cfg)
	s.Require().NoError(err)
	s.pools = pools

	s.Require().NoError(BootstrapPartitions(s.ctx, pools.Primary, 1))

	s.health = NewHealthMonitor(pools, config.HealthMonitorConfig{
		ProbeInterval:   time.Minute,
		ProbeTimeout:    time.Second,
		StalenessWindow: time.Minute,
		ShutdownGrace:   time.Second,
	})
	s.store = NewMappingStore(pools, s.health)
}

func (s *MappingStoreTestSuite) TearDownSuite() {
	if s.pools != nil {
		s.pools.Close()
	}
}

func (s *MappingStoreTestSuite) TestInsertAndFind() {
	m := &UrlMapping{
		OriginalURL: "https://example.com/a",
		ShortCode:   "abc123",
		CreatedAt:   time.Now().UTC(),
		ExpiresAt:   time.Now().UTC().AddDate(1, 0, 0),
	}

	err := s.store.Insert(s.ctx, m)
	s.Require().NoError(err)
	s.NotZero(m.ID)

	found, err := s.store.FindByShortCode(s.ctx, "abc123")
	s.Require().NoError(err)
	s.Equal("https://example.com/a", found.OriginalURL)

	byOriginal, err := s.store.FindByOriginal(s.ctx, "https://example.com/a")
	s.Require().NoError(err)
	s.Equal("abc123", byOriginal.ShortCode)
}

func (s *MappingStoreTestSuite) TestUniqueViolationOnDuplicateCode() {
	m1 := &UrlMapping{OriginalURL: "https://example.com/b1", ShortCode: "dupcode", CreatedAt: time.Now().UTC(), ExpiresAt: time.Now().UTC().AddDate(1, 0, 0)}
	m2 := &UrlMapping{OriginalURL: "https://example.com/b2", ShortCode: "dupcode", CreatedAt: time.Now().UTC(), ExpiresAt: time.Now().UTC().AddDate(1, 0, 0)}

	s.Require().NoError(s.store.Insert(s.ctx, m1))
	err := s.store.Insert(s.ctx, m2)
	s.ErrorIs(err, ErrUniqueViolation)
}

func (s *MappingStoreTestSuite) TestTouchAccessIsBlindIncrement() {
	m := &UrlMapping{OriginalURL: "https://example.com/c", ShortCode: "touchme", CreatedAt: time.Now().UTC(), ExpiresAt: time.Now().UTC().AddDate(1, 0, 0)}
	s.Require().NoError(s.store.Insert(s.ctx, m))

	s.Require().NoError(s.store.TouchAccess(s.ctx, m.ID, time.Now().UTC()))
	s.Require().NoError(s.store.TouchAccess(s.ctx, m.ID, time.Now().UTC()))

	found, err := s.store.FindByShortCode(s.ctx, "touchme")
	s.Require().NoError(err)
	s.Equal(int64(2), found.AccessCount)
}

func (s *MappingStoreTestSuite) TestDeleteBatchRespectsEligibility() {
	fresh := &UrlMapping{OriginalURL: "https://example.com/fresh", ShortCode: "freshxx", CreatedAt: time.Now().UTC(), ExpiresAt: time.Now().UTC().AddDate(1, 0, 0)}
	// Created at the start of the current month so it lands in a partition
	// the suite bootstrapped (current and next month only).
	now := time.Now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	expired := &UrlMapping{OriginalURL: "https://example.com/expired", ShortCode: "expired1", CreatedAt: monthStart, ExpiresAt: time.Now().UTC().Add(-time.Hour)}

	s.Require().NoError(s.store.Insert(s.ctx, fresh))
	s.Require().NoError(s.store.Insert(s.ctx, expired))

	n, err := s.store.DeleteBatch(s.ctx, time.Now().UTC().AddDate(0, -6, 0), time.Now().UTC(), 1000)
	s.Require().NoError(err)
	s.GreaterOrEqual(n, int64(1))

	_, err = s.store.FindByShortCode(s.ctx, "expired1")
	s.ErrorIs(err, ErrNotFound)

	_, err = s.store.FindByShortCode(s.ctx, "freshxx")
	s.NoError(err)
}

func (s *MappingStoreTestSuite) TestExistsShortCode() {
	exists, err := s.store.ExistsShortCode(s.ctx, "does-not-exist")
	s.Require().NoError(err)
	s.False(exists)
}

func TestMappingStoreTestSuite(t *testing.T) {
	suite.Run(t, new(MappingStoreTestSuite))
}

func TestErrLegacyTableNotEmptyIsDefined(t *testing.T) {
	assert.NotNil(t, ErrLegacyTableNotEmpty)
}
