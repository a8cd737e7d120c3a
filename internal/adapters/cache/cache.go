// Package cache keeps the last successfully fetched raw rows in Redis so a
// restart or a source outage does not leave the service without data.
//
// Key schema:
//
//	{prefix}:rows - hash with fields "data" (JSON [][]string) and "fetched_at" (unix nanos)
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/ladder/pkg/metrics"
)

const (
	fieldData      = "data"
	fieldFetchedAt = "fetched_at"
)

// RowCache stores one row set per key prefix.
type RowCache struct {
	rdb       *redis.Client
	prefix    string
	retention time.Duration
	owned     bool
}

// New connects to redisURL (redis://host:port/db), pings it, and returns a cache.
func New(ctx context.Context, redisURL string, opts ...Option) (*RowCache, error) {
	ro, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("%w: parse url: %w", ErrUnavailable, err)
	}

	rdb := redis.NewClient(ro)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%w: ping: %w", ErrUnavailable, err)
	}

	c := NewWithClient(rdb, opts...)
	c.owned = true
	return c, nil
}

// NewWithClient wraps an existing client. Close will not close rdb.
func NewWithClient(rdb *redis.Client, opts ...Option) *RowCache {
	c := &RowCache{
		rdb:       rdb,
		prefix:    "ladder",
		retention: 7 * 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *RowCache) key() string { return c.prefix + ":rows" }

// Get returns the cached rows and when they were fetched. ErrMiss means
// nothing is stored.
func (c *RowCache) Get(ctx context.Context) ([][]string, time.Time, error) {
	vals, err := c.rdb.HMGet(ctx, c.key(), fieldData, fieldFetchedAt).Result()
	if err != nil {
		metrics.RecordCacheResult(metrics.CacheError)
		return nil, time.Time{}, fmt.Errorf("%w: get: %w", ErrUnavailable, err)
	}

	data, _ := vals[0].(string)
	stamp, _ := vals[1].(string)
	if data == "" || stamp == "" {
		metrics.RecordCacheResult(metrics.CacheMiss)
		return nil, time.Time{}, ErrMiss
	}

	nanos, err := strconv.ParseInt(stamp, 10, 64)
	if err != nil {
		metrics.RecordCacheResult(metrics.CacheError)
		return nil, time.Time{}, fmt.Errorf("%w: fetched_at %q: %w", ErrCorrupt, stamp, err)
	}

	var rows [][]string
	if err := json.Unmarshal([]byte(data), &rows); err != nil {
		metrics.RecordCacheResult(metrics.CacheError)
		return nil, time.Time{}, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	metrics.RecordCacheResult(metrics.CacheHit)
	return rows, time.Unix(0, nanos).UTC(), nil
}

// Put replaces the cached rows atomically.
func (c *RowCache) Put(ctx context.Context, rows [][]string, fetchedAt time.Time) error {
	if rows == nil {
		rows = [][]string{}
	}
	data, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("cache: marshal rows: %w", err)
	}

	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, c.key(), fieldData, data, fieldFetchedAt, strconv.FormatInt(fetchedAt.UnixNano(), 10))
	pipe.Expire(ctx, c.key(), c.retention)
	if _, err := pipe.Exec(ctx); err != nil {
		metrics.RecordCacheResult(metrics.CacheError)
		return fmt.Errorf("%w: put: %w", ErrUnavailable, err)
	}
	return nil
}

// Ping checks the Redis connection.
func (c *RowCache) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: ping: %w", ErrUnavailable, err)
	}
	return nil
}

// Close releases the connection if New opened it.
func (c *RowCache) Close() error {
	if !c.owned {
		return nil
	}
	if err := c.rdb.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
		return err
	}
	return nil
}
