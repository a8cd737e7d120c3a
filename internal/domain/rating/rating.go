// Package rating replays a chronological match sequence through a pairwise
// logistic (Elo) model and answers per-player questions about the result.
//
// A State is built once by Compute and never changes afterwards; a new
// dataset means a new State.
package rating

import (
	"math"
	"sort"
	"time"

	"github.com/okian/ladder/internal/domain/model"
)

// Model defaults.
const (
	DefaultRating      = 1000.0
	DefaultK           = 50.0
	DefaultScale       = 400.0
	DefaultDecayFactor = 1.0

	day = 24 * time.Hour
)

// State holds ratings and per-player history produced by one replay.
type State struct {
	// model parameters
	k             float64
	decayFactor   float64
	defaultRating float64
	scale         float64
	clock         func() time.Time

	ratings    map[string]float64
	history    map[string][]model.HistoryEntry
	order      []string // players in first-seen order
	matchCount int
	computedAt time.Time
}

// Compute folds ms left to right and returns the resulting state. ms must
// already be in chronological order; it is not modified.
func Compute(ms []model.Match, opts ...Option) *State {
	s := &State{
		k:             DefaultK,
		decayFactor:   DefaultDecayFactor,
		defaultRating: DefaultRating,
		scale:         DefaultScale,
		clock:         time.Now,
		ratings:       make(map[string]float64),
		history:       make(map[string][]model.HistoryEntry),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.computedAt = s.clock()
	for _, m := range ms {
		s.apply(m)
	}
	s.matchCount = len(ms)

	return s
}

// ExpectedScore is the probability that a player rated r beats one rated
// opponent when a gap of scale points means 10:1 odds.
func ExpectedScore(r, opponent, scale float64) float64 {
	return 1 / (1 + math.Pow(10, (opponent-r)/scale))
}

func (s *State) apply(m model.Match) {
	r1 := s.seed(m.Player1)
	r2 := s.seed(m.Player2)

	p1 := ExpectedScore(r1, r2, s.scale)
	p2 := 1 - p1

	var o1, o2 float64
	if m.Winner == model.Player1 {
		o1 = 1
	} else {
		o2 = 1
	}

	decay := s.decay(m.OccurredAt)
	d1 := decay * s.k * (o1 - p1)
	d2 := decay * s.k * (o2 - p2)

	s.ratings[m.Player1] = r1 + d1
	s.ratings[m.Player2] = r2 + d2

	s.history[m.Player1] = append(s.history[m.Player1], model.HistoryEntry{Match: m, Rating: r1 + d1, Delta: d1})
	s.history[m.Player2] = append(s.history[m.Player2], model.HistoryEntry{Match: m, Rating: r2 + d2, Delta: d2})
}

// seed returns the stored rating for id, storing the default on first sight.
// Only the replay writes through here; reads go through Rating.
func (s *State) seed(id string) float64 {
	if r, ok := s.ratings[id]; ok {
		return r
	}
	s.ratings[id] = s.defaultRating
	s.order = append(s.order, id)
	return s.defaultRating
}

func (s *State) decay(at time.Time) float64 {
	if s.decayFactor == 1 {
		return 1
	}
	days := float64(s.computedAt.Sub(at)) / float64(day)
	return math.Pow(s.decayFactor, days)
}

// Rating returns the current rating of id and whether id has played.
func (s *State) Rating(id string) (float64, bool) {
	r, ok := s.ratings[id]
	return r, ok
}

// RatingOrDefault returns the current rating, or the seed rating for a player
// with no matches. It never records the player.
func (s *State) RatingOrDefault(id string) float64 {
	if r, ok := s.ratings[id]; ok {
		return r
	}
	return s.defaultRating
}

// Known reports whether id took part in at least one match.
func (s *State) Known(id string) bool {
	_, ok := s.ratings[id]
	return ok
}

// Wins counts matches id won.
func (s *State) Wins(id string) int {
	n := 0
	for _, h := range s.history[id] {
		if h.Match.WinnerID() == id {
			n++
		}
	}
	return n
}

// Losses counts matches id lost.
func (s *State) Losses(id string) int {
	n := 0
	for _, h := range s.history[id] {
		if h.Match.WinnerID() != id {
			n++
		}
	}
	return n
}

// History returns a chronologically sorted copy of id's history. Unknown
// players get an empty, non-nil slice.
func (s *State) History(id string) []model.HistoryEntry {
	src := s.history[id]
	out := make([]model.HistoryEntry, len(src))
	copy(out, src)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Match.OccurredAt.Before(out[j].Match.OccurredAt)
	})
	return out
}

// StartDate returns the time of id's first match. ok is false for players
// with no history.
func (s *State) StartDate(id string) (start time.Time, ok bool) {
	for i, h := range s.history[id] {
		if i == 0 || h.Match.OccurredAt.Before(start) {
			start = h.Match.OccurredAt
		}
		ok = true
	}
	return start, ok
}

// Ratings returns a copy of the rating map.
func (s *State) Ratings() map[string]float64 {
	out := make(map[string]float64, len(s.ratings))
	for id, r := range s.ratings {
		out[id] = r
	}
	return out
}

// Players lists known players in the order they first appeared.
func (s *State) Players() []string {
	return append([]string(nil), s.order...)
}

// Len returns the number of known players.
func (s *State) Len() int { return len(s.ratings) }

// MatchCount returns the number of matches replayed.
func (s *State) MatchCount() int { return s.matchCount }

// ComputedAt returns the instant used as "now" for decay.
func (s *State) ComputedAt() time.Time { return s.computedAt }

// DefaultRating returns the seed rating this state was built with.
func (s *State) DefaultRating() float64 { return s.defaultRating }
