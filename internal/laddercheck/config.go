package laddercheck

import (
	"time"

	"github.com/okian/ladder/internal/domain/types"
)

// Config holds configuration for a consistency check run.
type Config struct {
	BaseURL       string        // Base URL of the service
	Workers       int           // Concurrent history fetches
	Timeout       time.Duration // HTTP request timeout
	ReadyWait     time.Duration // How long to wait for /readyz
	Refresh       bool          // POST /refresh before checking
	Force         bool          // Bypass the row cache on refresh
	DefaultRating float64       // Seed rating the service was started with
	LogFile       string        // Log file for check output
	Verbose       bool          // Log every violation
}

// Report is everything fetched from the service for one check.
type Report struct {
	Players     []types.PlayerSummary
	Leaderboard []types.PlayerSummary
	Histories   map[string][]types.HistoryPoint
}

// Violation is one broken consistency rule.
type Violation struct {
	Player string
	Rule   string
	Detail string
}

func (v Violation) String() string {
	if v.Player == "" {
		return v.Rule + ": " + v.Detail
	}
	return v.Player + ": " + v.Rule + ": " + v.Detail
}

// Stats holds run statistics.
type Stats struct {
	Players            int
	Matches            int
	HistoriesRetrieved int
	LeaderboardEntries int
	Violations         int
	StartTime          time.Time
	EndTime            time.Time
	Duration           time.Duration
}
