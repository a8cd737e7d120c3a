package service

import (
	"time"

	"github.com/okian/ladder/internal/domain/matches"
	"github.com/okian/ladder/internal/domain/rating"
	"github.com/okian/ladder/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithCache enables the row cache. Rows younger than ttl are served from
// it without contacting the source; ttl 0 only uses it as a fallback.
func WithCache(c RowCache, ttl time.Duration) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
			s.cacheTTL = max(ttl, 0)
		}
	}
}

// WithParseOptions sets the row parser options.
func WithParseOptions(opts ...matches.Option) Option {
	return func(s *Service) {
		s.parseOpts = append(s.parseOpts, opts...)
	}
}

// WithRatingOptions sets the rating model options.
func WithRatingOptions(opts ...rating.Option) Option {
	return func(s *Service) {
		s.ratingOpts = append(s.ratingOpts, opts...)
	}
}

// WithMatchWindow keeps only matches younger than d; 0 keeps all.
func WithMatchWindow(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.window = d
		}
	}
}

// WithRefreshInterval makes Start re-read the source every d; 0 disables it.
func WithRefreshInterval(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.refreshInterval = d
		}
	}
}

// WithRefreshTimeout bounds a single rebuild. It applies to the shared
// rebuild, not to any one caller. Non-positive values keep the default.
func WithRefreshTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.refreshTimeout = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
