// Package redis keeps short-lived relay state in Redis. Today that is the
// pending half of the Telegram login flow.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// PrefixPendingLogin namespaces pending login entries.
const PrefixPendingLogin = "relay:login:"

var (
	// ErrCacheMiss is returned by Get for an absent or expired key.
	ErrCacheMiss = errors.New("cache: key not found")

	ErrCacheConnection = errors.New("cache: connection failed")
	ErrCacheEncoding   = errors.New("cache: value encoding failed")
	ErrCacheKeyEmpty   = errors.New("cache: empty key")

	// ErrCacheInvalidTTL rejects entries that would never expire.
	ErrCacheInvalidTTL = errors.New("cache: ttl must be positive")
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config selects the Redis server. A non-empty URL (redis:// or rediss://)
// takes precedence over Addr, Password and DB. Zero durations and pool size
// keep the go-redis defaults.
type Config struct {
	URL string

	Addr     string
	Password string
	DB       int

	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func (c Config) options() (*redis.Options, error) {
	opts := &redis.Options{Addr: c.Addr, Password: c.Password, DB: c.DB}
	if c.URL != "" {
		var err error
		if opts, err = redis.ParseURL(c.URL); err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
	}

	override := func(dst *time.Duration, v time.Duration) {
		if v > 0 {
			*dst = v
		}
	}
	override(&opts.DialTimeout, c.DialTimeout)
	override(&opts.ReadTimeout, c.ReadTimeout)
	override(&opts.WriteTimeout, c.WriteTimeout)
	if c.PoolSize > 0 {
		opts.PoolSize = c.PoolSize
	}
	return opts, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CACHE
// ══════════════════════════════════════════════════════════════════════════════

// Cache stores JSON encoded values under expiring keys.
type Cache struct {
	rdb *redis.Client
}

// NewCache dials Redis and fails unless the server answers PING within the
// dial timeout.
func NewCache(ctx context.Context, cfg Config) (*Cache, error) {
	opts, err := cfg.options()
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)

	wait := opts.DialTimeout
	if wait <= 0 {
		wait = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Join(ErrCacheConnection, err)
	}
	return &Cache{rdb: rdb}, nil
}

// Ping implements the health check probe.
func (c *Cache) Ping(ctx context.Context) error { return c.rdb.Ping(ctx).Err() }

func (c *Cache) Close() error { return c.rdb.Close() }

// Set writes value under key. The entry expires after ttl.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	switch {
	case key == "":
		return ErrCacheKeyEmpty
	case ttl <= 0:
		return ErrCacheInvalidTTL
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return errors.Join(ErrCacheEncoding, err)
	}
	return c.rdb.Set(ctx, key, raw, ttl).Err()
}

// Get decodes the entry under key into dest.
func (c *Cache) Get(ctx context.Context, key string, dest any) error {
	if key == "" {
		return ErrCacheKeyEmpty
	}

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return ErrCacheMiss
	case err != nil:
		return err
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		return errors.Join(ErrCacheEncoding, err)
	}
	return nil
}

// Delete removes keys. Absent keys are not an error.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}
