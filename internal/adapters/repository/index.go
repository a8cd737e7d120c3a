package repository

import (
	"context"
	"math/rand"
	"time"

	"github.com/okian/ladder/pkg/metrics"
)

// Treap-based, in-memory Ranking implementation.
//
// Ordering: rating DESC, then Seq ASC. "less" means ranks earlier, so an
// in-order traversal yields the leaderboard from best to worst and a node's
// rank is the size of everything to its left plus one.
//
// An Index is built once per rating snapshot and never mutated afterwards,
// so reads need no locking.

// treap node
type node struct {
	key   Standing
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less returns true if a should appear before b in the leaderboard.
func less(a, b Standing) bool {
	if a.Rating != b.Rating {
		return a.Rating > b.Rating // higher rating ranks earlier
	}
	return a.Seq < b.Seq // tie-breaker: first seen ranks earlier
}

func rotateRight(y *node) *node {
	x := y.left
	t2 := x.right
	x.right = y
	y.left = t2
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	t2 := y.left
	y.left = x
	x.right = t2
	fix(x)
	fix(y)
	return y
}

func insert(n *node, key Standing, prio uint64) *node {
	if n == nil {
		return &node{key: key, prio: prio, size: 1}
	}
	if less(key, n.key) {
		n.left = insert(n.left, key, prio)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, key, prio)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

// position returns the 1-based in-order position of key, or 0 if absent.
func position(n *node, key Standing) int {
	pos := 0
	for n != nil {
		switch {
		case n.key == key:
			return pos + nsize(n.left) + 1
		case less(key, n.key):
			n = n.left
		default:
			pos += nsize(n.left) + 1
			n = n.right
		}
	}
	return 0
}

// collectTopN appends up to limit entries in rank order.
func collectTopN(n *node, limit int, out *[]Entry) {
	if n == nil || len(*out) >= limit {
		return
	}

	collectTopN(n.left, limit, out)

	if len(*out) < limit {
		*out = append(*out, Entry{Rank: len(*out) + 1, Player: n.key.Player, Rating: n.key.Rating})
	}

	if len(*out) < limit {
		collectTopN(n.right, limit, out)
	}
}

var _ Ranking = (*Index)(nil)

// Index is an immutable ranking over one snapshot of ratings.
type Index struct {
	root *node
	byID map[string]Standing
	seed int64
}

// NewIndex builds a ranking from standings. Later duplicates of a player
// replace earlier ones.
func NewIndex(ctx context.Context, standings []Standing, opts ...Option) *Index {
	start := time.Now()
	defer func() {
		metrics.RecordIndexBuildDuration(float64(time.Since(start).Milliseconds()))
	}()

	ix := &Index{
		byID: make(map[string]Standing, len(standings)),
		seed: defaultPrioritySeed,
	}

	for _, opt := range opts {
		opt(ix)
	}

	for _, st := range standings {
		ix.byID[st.Player] = st
	}

	rng := rand.New(rand.NewSource(ix.seed)) //nolint:gosec // tree shape only, not security relevant
	inserted := make(map[string]struct{}, len(ix.byID))
	for i := len(standings) - 1; i >= 0; i-- {
		st := standings[i]
		if _, done := inserted[st.Player]; done {
			continue // superseded duplicate
		}
		inserted[st.Player] = struct{}{}
		ix.root = insert(ix.root, st, rng.Uint64())
	}

	metrics.UpdateRankedPlayers(len(ix.byID))
	return ix
}

// Rank returns the current rank and rating for a player in O(log n).
func (ix *Index) Rank(ctx context.Context, player string) (Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRankingQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	st, ok := ix.byID[player]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return Entry{}, ErrNotFound
	}

	return Entry{Rank: position(ix.root, st), Player: st.Player, Rating: st.Rating}, nil
}

// TopN returns the top n entries ordered by rating desc.
func (ix *Index) TopN(ctx context.Context, n int) ([]Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRankingQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}

	out := make([]Entry, 0, min(n, len(ix.byID)))
	collectTopN(ix.root, n, &out)
	return out, nil
}

// All returns the whole leaderboard.
func (ix *Index) All(ctx context.Context) []Entry {
	out := make([]Entry, 0, len(ix.byID))
	collectTopN(ix.root, len(ix.byID), &out)
	return out
}

// Count returns the number of ranked players.
func (ix *Index) Count(ctx context.Context) int {
	return len(ix.byID)
}
