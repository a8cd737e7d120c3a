// Package repository holds the ranking index built from a rating snapshot.
package repository

import "context"

// Standing is one player's input to the ranking.
type Standing struct {
	Player string
	Rating float64
	Seq    int // first-seen order, breaks rating ties
}

// Entry is a ranked leaderboard row.
type Entry struct {
	Rank   int
	Player string
	Rating float64
}

// Ranking answers rank queries over a fixed set of standings.
type Ranking interface {
	// Rank returns the 1-based position of player.
	// Returns ErrNotFound if the player is unknown.
	Rank(ctx context.Context, player string) (Entry, error)

	// TopN returns the first n entries, best first.
	TopN(ctx context.Context, n int) ([]Entry, error)

	// All returns every entry, best first.
	All(ctx context.Context) []Entry

	// Count returns the number of ranked players.
	Count(ctx context.Context) int
}
