package rating

import "time"

// Option applies a configuration option to a State before the replay.
type Option func(*State)

// WithK sets the sensitivity constant. Non-positive values are ignored.
func WithK(k float64) Option {
	return func(s *State) {
		if k > 0 {
			s.k = k
		}
	}
}

// WithDecayFactor sets the per-day decay base. 1 disables decay. Values
// outside (0, 1] are ignored and the current factor is kept; a factor above 1
// would grow old deltas, and config validation rejects it before it gets here.
func WithDecayFactor(factor float64) Option {
	return func(s *State) {
		if factor > 0 && factor <= 1 {
			s.decayFactor = factor
		}
	}
}

// WithDefaultRating sets the seed rating for first-time players.
func WithDefaultRating(r float64) Option {
	return func(s *State) {
		s.defaultRating = r
	}
}

// WithScale sets the rating gap that corresponds to 10:1 odds.
func WithScale(scale float64) Option {
	return func(s *State) {
		if scale > 0 {
			s.scale = scale
		}
	}
}

// WithClock sets the source of "now" used for decay.
func WithClock(now func() time.Time) Option {
	return func(s *State) {
		if now != nil {
			s.clock = now
		}
	}
}
