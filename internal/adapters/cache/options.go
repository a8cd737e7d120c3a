package cache

import (
	"strings"
	"time"
)

// Option configures a RowCache.
type Option func(*RowCache)

// WithPrefix namespaces the cache key, e.g. per spreadsheet.
func WithPrefix(prefix string) Option {
	return func(c *RowCache) {
		if p := strings.TrimSpace(prefix); p != "" {
			c.prefix = p
		}
	}
}

// WithRetention sets how long Redis keeps an entry after the last write.
// Freshness is decided by the reader, so retention is usually much longer
// than the refresh TTL.
func WithRetention(d time.Duration) Option {
	return func(c *RowCache) {
		if d > 0 {
			c.retention = d
		}
	}
}
