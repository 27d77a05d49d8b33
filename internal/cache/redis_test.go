package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/go-url-platform/shortener/internal/config"
)

// TieredCacheTestSuite exercises the adaptive-TTL cache against a real Redis
// instance. Skipped unless CACHE_TEST_REDIS_URL is set.
type TieredCacheTestSuite struct {
	suite.Suite
	client *Client
	cache  *TieredCache
	ctx    context.Context
}

func (s *TieredCacheTestSuite) SetupSuite() {
	url := os.Getenv("CACHE_TEST_REDIS_URL")
	if url == "" {
		s.T().Skip("CACHE_TEST_REDIS_URL not set, skipping cache integration suite")
	}

	s.ctx = context.Background()

	client, err := NewClient(s.ctx, url)
	s.Require().NoError(err)
	s.client = client

	s.cache = NewTieredCache(client, config.CacheConfig{
		KeyPrefix:           "url",
		AccessCounterPrefix: "access",
		ColdTTL:             10 * time.Minute,
		WarmTTL:             15 * time.Minute,
		HotTTL:              30 * time.Minute,
		WarmThreshold:       5,
		HotThreshold:        10,
	})
}

func (s *TieredCacheTestSuite) TearDownSuite() {
	if s.client != nil {
		s.client.Close()
	}
}

func (s *TieredCacheTestSuite) TestPutThenGet() {
	s.Require().NoError(s.cache.Put(s.ctx, "abc123", "https://example.com"))

	value, found := s.cache.Get(s.ctx, "abc123")
	s.True(found)
	s.Equal("https://example.com", value)
}

func (s *TieredCacheTestSuite) TestGetMiss() {
	_, found := s.cache.Get(s.ctx, "does-not-exist")
	s.False(found)
}

func (s *TieredCacheTestSuite) TestTierEscalatesWithAccessCount() {
	s.Require().NoError(s.cache.Put(s.ctx, "hotcode", "https://example.com/hot"))

	for i := 0; i < 11; i++ {
		_, found := s.cache.Get(s.ctx, "hotcode")
		s.True(found)
	}

	time.Sleep(200 * time.Millisecond) // let the fire-and-forget tier refresh land

	ttl, err := s.client.rdb.TTL(s.ctx, s.cache.key("hotcode")).Result()
	s.Require().NoError(err)
	s.GreaterOrEqual(ttl, 29*time.Minute)
}

func TestTieredCacheTestSuite(t *testing.T) {
	suite.Run(t, new(TieredCacheTestSuite))
}

func TestTierForThresholds(t *testing.T) {
	cache := &TieredCache{cfg: config.CacheConfig{
		ColdTTL: time.Minute, WarmTTL: 2 * time.Minute, HotTTL: 3 * time.Minute,
		WarmThreshold: 5, HotThreshold: 10,
	}}

	if got := cache.tierFor(0); got != time.Minute {
		t.Fatalf("expected cold ttl, got %v", got)
	}
	if got := cache.tierFor(5); got != 2*time.Minute {
		t.Fatalf("expected warm ttl, got %v", got)
	}
	if got := cache.tierFor(10); got != 3*time.Minute {
		t.Fatalf("expected hot ttl, got %v", got)
	}
}
