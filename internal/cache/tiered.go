package cache

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/go-url-platform/shortener/internal/config"
	"github.com/go-url-platform/shortener/internal/obs"
)

// TieredCache wraps Client with the adaptive sliding-TTL policy from C5:
// hot/warm/cold tiers driven by an access counter that expires alongside the
// value it tracks.
type TieredCache struct {
	client *Client
	cfg    config.CacheConfig
}

func NewTieredCache(client *Client, cfg config.CacheConfig) *TieredCache {
	return &TieredCache{client: client, cfg: cfg}
}

func (t *TieredCache) key(shortCode string) string {
	return URLCacheKey(t.cfg.KeyPrefix, shortCode)
}

func (t *TieredCache) counterKey(shortCode string) string {
	return AccessCounterKey(t.cfg.AccessCounterPrefix, shortCode)
}

// Get returns the cached original URL for shortCode, if present. On hit it
// fires off (without blocking the caller) a sliding-TTL refresh of the value
// and its access counter, at whichever tier the post-increment count lands
// in. The functional result returned here is unaffected by that refresh.
func (t *TieredCache) Get(ctx context.Context, shortCode string) (string, bool) {
	value, found, err := t.client.Get(ctx, t.key(shortCode))
	if err != nil {
		logrus.WithError(err).Warn("cache get failed, treating as miss")
		return "", false
	}
	if !found {
		return "", false
	}

	obs.RecordCacheOperation("cache", "get", true)
	go t.refreshTier(shortCode)

	return value, true
}

func (t *TieredCache) refreshTier(shortCode string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	count, err := t.client.IncrementWithExpiry(ctx, t.counterKey(shortCode), t.tierFor(0))
	if err != nil {
		logrus.WithError(err).Debug("access counter refresh failed")
		return
	}

	ttl := t.tierFor(count)
	obs.CacheTierHits.WithLabelValues(tierLabel(count, t.cfg)).Inc()

	if err := t.client.Expire(ctx, t.key(shortCode), ttl); err != nil {
		logrus.WithError(err).Debug("ttl refresh failed")
	}
	if err := t.client.Expire(ctx, t.counterKey(shortCode), ttl); err != nil {
		logrus.WithError(err).Debug("access counter ttl refresh failed")
	}
}

// tierFor returns the TTL for the given access count: hot >= HotThreshold,
// warm >= WarmThreshold, else cold.
func (t *TieredCache) tierFor(accessCount int64) time.Duration {
	switch {
	case accessCount >= t.cfg.HotThreshold:
		return t.cfg.HotTTL
	case accessCount >= t.cfg.WarmThreshold:
		return t.cfg.WarmTTL
	default:
		return t.cfg.ColdTTL
	}
}

func tierLabel(accessCount int64, cfg config.CacheConfig) string {
	switch {
	case accessCount >= cfg.HotThreshold:
		return "hot"
	case accessCount >= cfg.WarmThreshold:
		return "warm"
	default:
		return "cold"
	}
}

// Put stores value at the cold TTL unless ttl is explicitly given.
func (t *TieredCache) Put(ctx context.Context, shortCode, value string, ttl ...time.Duration) error {
	effective := t.cfg.ColdTTL
	if len(ttl) > 0 {
		effective = ttl[0]
	}
	obs.RecordCacheOperation("cache", "put", false)
	return t.client.Set(ctx, t.key(shortCode), value, effective)
}

func (t *TieredCache) Remove(ctx context.Context, shortCode string) error {
	return t.client.Delete(ctx, t.key(shortCode))
}

func (t *TieredCache) Exists(ctx context.Context, shortCode string) (bool, error) {
	return t.client.Exists(ctx, t.key(shortCode))
}
