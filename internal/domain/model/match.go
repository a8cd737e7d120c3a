// Package model contains domain models passed between layers.
package model

import "time"

// Winner designates which side of a match won. There are no draws.
type Winner uint8

const (
	// Player1 means the first listed participant won.
	Player1 Winner = iota + 1
	// Player2 means the second listed participant won.
	Player2
)

// String returns the spreadsheet spelling of the winner marker.
func (w Winner) String() string {
	switch w {
	case Player1:
		return "Player 1"
	case Player2:
		return "Player 2"
	default:
		return "unknown"
	}
}

// Match is an immutable head-to-head result.
type Match struct {
	Player1    string    // first participant, case-sensitive
	Player2    string    // second participant, never equal to Player1
	Winner     Winner    // which side won
	OccurredAt time.Time // when the match was played
}

// WinnerID returns the identifier of the winning participant.
func (m Match) WinnerID() string {
	if m.Winner == Player1 {
		return m.Player1
	}
	return m.Player2
}

// LoserID returns the identifier of the losing participant.
func (m Match) LoserID() string {
	if m.Winner == Player1 {
		return m.Player2
	}
	return m.Player1
}

// Involves reports whether id took part in the match.
func (m Match) Involves(id string) bool {
	return m.Player1 == id || m.Player2 == id
}

// Opponent returns the other participant for id, or "" when id did not play.
func (m Match) Opponent(id string) string {
	switch id {
	case m.Player1:
		return m.Player2
	case m.Player2:
		return m.Player1
	default:
		return ""
	}
}

// HistoryEntry pairs a processed match with the participant's rating after it.
type HistoryEntry struct {
	Match  Match
	Rating float64 // post-match rating
	Delta  float64 // change applied by this match
}
