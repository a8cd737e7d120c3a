package laddercheck

import "time"

// Rule names reported in violations.
const (
	RuleHistoryLength   = "history_length"
	RuleWinCount        = "win_count"
	RuleChronological   = "chronological"
	RuleDeltaChain      = "delta_chain"
	RuleFinalRating     = "final_rating"
	RuleRounding        = "rounding"
	RuleRankingSequence = "ranking_sequence"
	RuleRankingOrder    = "ranking_order"
	RuleLeaderboard     = "leaderboard"
	RuleBalance         = "win_loss_balance"
)

// Defaults used when the config leaves a field zero.
const (
	DefaultWorkers       = 8
	DefaultTimeout       = 10 * time.Second
	DefaultReadyWait     = time.Minute
	DefaultRatingSeed    = 1000.0
	readyPollInterval    = 500 * time.Millisecond
	ratingTolerance      = 1e-6
	maxLeaderboardLimit  = 100
	logFilePermission    = 0o600
	violationsShownQuiet = 10
)
