package cache

import "errors"

var (
	// ErrMiss means no rows are cached.
	ErrMiss = errors.New("cache miss")
	// ErrUnavailable wraps connection and command failures.
	ErrUnavailable = errors.New("cache unavailable")
	// ErrCorrupt means the stored entry could not be decoded.
	ErrCorrupt = errors.New("cache entry corrupt")
)
