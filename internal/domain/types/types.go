// Package types contains the read shapes handed to the presentation layer.
package types

import (
	"time"

	"github.com/okian/ladder/internal/domain/model"
)

// PlayerSummary is the per-player row of the ladder table.
type PlayerSummary struct {
	Name        string    `json:"name"`
	Rating      int       `json:"rating"`       // rounded for display
	RatingExact float64   `json:"rating_exact"` // unrounded, for charts
	Ranking     int       `json:"ranking"`
	Wins        int       `json:"wins"`
	Losses      int       `json:"losses"`
	StartDate   time.Time `json:"start_date"`
}

// Played returns the number of matches the player took part in.
func (p PlayerSummary) Played() int { return p.Wins + p.Losses }

// HistoryPoint is one match from a player's perspective.
type HistoryPoint struct {
	Date     time.Time `json:"date"`
	Rating   float64   `json:"rating"`
	Delta    float64   `json:"delta"`
	Opponent string    `json:"opponent"`
	Won      bool      `json:"won"`
}

// NewHistoryPoint projects a history entry onto player.
func NewHistoryPoint(player string, e model.HistoryEntry) HistoryPoint {
	return HistoryPoint{
		Date:     e.Match.OccurredAt,
		Rating:   e.Rating,
		Delta:    e.Delta,
		Opponent: e.Match.Opponent(player),
		Won:      e.Match.WinnerID() == player,
	}
}

// Series is a player's rating over time.
type Series struct {
	Player string         `json:"player"`
	Points []HistoryPoint `json:"points"`
}
