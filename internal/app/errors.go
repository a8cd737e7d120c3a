package service

import "errors"

var (
	// ErrFetch wraps a transient failure to read rows from the source.
	ErrFetch = errors.New("fetch match rows")
	// ErrDataQuality wraps a row rejected under the fail policy.
	ErrDataQuality = errors.New("match data rejected")
	// ErrNoData is returned by reads before the first successful refresh.
	ErrNoData = errors.New("no ratings computed yet")
	// ErrPlayerNotFound is returned for an id absent from the snapshot.
	ErrPlayerNotFound = errors.New("player not found")
	// ErrInvalidLimit is returned for a leaderboard size below one.
	ErrInvalidLimit = errors.New("limit must be at least 1")
)
