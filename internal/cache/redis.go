// Package cache implements the Cache Layer (C5): a keyed string cache with
// adaptive sliding TTL on top of Redis.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Client is a thin wrapper over go-redis exposing only the primitives the
// Cache Layer needs: get/set-with-expiry/delete/exists/increment.
type Client struct {
	rdb *redis.Client
}

// NewClient parses redisURL and opens a pooled Redis connection.
func NewClient(ctx context.Context, redisURL string) (*Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("cache: parse redis url: %w", err)
	}

	opt.MaxRetries = 3
	opt.MinRetryBackoff = 8 * time.Millisecond
	opt.MaxRetryBackoff = 512 * time.Millisecond
	opt.PoolSize = 30
	opt.MinIdleConns = 10
	opt.PoolTimeout = 30 * time.Second

	rdb := redis.NewClient(opt)

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("cache: ping redis: %w", err)
	}

	logrus.Info("connected to redis")

	return &Client{rdb: rdb}, nil
}

func (c *Client) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := c.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (c *Client) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

func (c *Client) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return c.rdb.Expire(ctx, key, ttl).Err()
}

func (c *Client) Delete(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, key).Err()
}

func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.rdb.Exists(ctx, key).Result()
	return n > 0, err
}

// IncrementWithExpiry increments key and (re)sets its TTL in a single
// pipeline round trip, so the access counter always expires alongside the
// value it is tracking.
func (c *Client) IncrementWithExpiry(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	pipe := c.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

func (c *Client) HealthCheck(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// URLCacheKey builds the `url:<short_code>` key the spec mandates.
func URLCacheKey(prefix, shortCode string) string {
	return fmt.Sprintf("%s:%s", prefix, shortCode)
}

// AccessCounterKey builds the `access:<k>` counter key.
func AccessCounterKey(prefix, shortCode string) string {
	return fmt.Sprintf("%s:%s", prefix, shortCode)
}
