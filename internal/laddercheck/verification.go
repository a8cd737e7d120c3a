package laddercheck

import (
	"fmt"
	"math"
	"sort"

	"github.com/okian/ladder/internal/domain/types"
)

// Verify checks that the report is internally consistent and returns every
// violation found. An empty result means the service state is coherent.
func Verify(report *Report, defaultRating float64) []Violation {
	var out []Violation
	for _, p := range report.Players {
		out = append(out, verifyPlayer(p, report.Histories[p.Name], defaultRating)...)
	}
	out = append(out, verifyRanking(report.Players)...)
	out = append(out, verifyLeaderboard(report.Players, report.Leaderboard)...)
	out = append(out, verifyBalance(report.Players)...)
	return out
}

func verifyPlayer(p types.PlayerSummary, history []types.HistoryPoint, defaultRating float64) []Violation {
	var out []Violation
	fail := func(rule, format string, args ...any) {
		out = append(out, Violation{Player: p.Name, Rule: rule, Detail: fmt.Sprintf(format, args...)})
	}

	if len(history) != p.Played() {
		fail(RuleHistoryLength, "%d points for %d wins and %d losses", len(history), p.Wins, p.Losses)
	}
	won := 0
	for _, h := range history {
		if h.Won {
			won++
		}
	}
	if won != p.Wins {
		fail(RuleWinCount, "history has %d wins, summary has %d", won, p.Wins)
	}
	if math.Round(p.RatingExact) != float64(p.Rating) {
		fail(RuleRounding, "rating %d does not round %.4f", p.Rating, p.RatingExact)
	}

	prev := defaultRating
	for i, h := range history {
		if i > 0 && h.Date.Before(history[i-1].Date) {
			fail(RuleChronological, "point %d at %s precedes %s", i, h.Date, history[i-1].Date)
		}
		if !closeTo(h.Rating-h.Delta, prev) {
			fail(RuleDeltaChain, "point %d starts at %.4f, previous rating was %.4f", i, h.Rating-h.Delta, prev)
		}
		prev = h.Rating
	}
	if n := len(history); n > 0 && !closeTo(history[n-1].Rating, p.RatingExact) {
		fail(RuleFinalRating, "last point %.4f, summary %.4f", history[n-1].Rating, p.RatingExact)
	}
	if len(history) > 0 && !p.StartDate.Equal(history[0].Date) {
		fail(RuleChronological, "start date %s differs from first match %s", p.StartDate, history[0].Date)
	}
	return out
}

// verifyRanking checks that rankings are 1..N and follow rating order.
func verifyRanking(players []types.PlayerSummary) []Violation {
	byRank := sortedByRanking(players)

	var out []Violation
	for i, p := range byRank {
		if p.Ranking != i+1 {
			out = append(out, Violation{Player: p.Name, Rule: RuleRankingSequence,
				Detail: fmt.Sprintf("ranking %d at position %d", p.Ranking, i+1)})
		}
		if i > 0 && p.RatingExact > byRank[i-1].RatingExact {
			out = append(out, Violation{Player: p.Name, Rule: RuleRankingOrder,
				Detail: fmt.Sprintf("rated %.4f but ranked below %s at %.4f", p.RatingExact, byRank[i-1].Name, byRank[i-1].RatingExact)})
		}
	}
	return out
}

// verifyLeaderboard checks that the leaderboard is a prefix of the ranking.
func verifyLeaderboard(players, leaderboard []types.PlayerSummary) []Violation {
	byRank := sortedByRanking(players)
	if len(leaderboard) > len(byRank) {
		return []Violation{{Rule: RuleLeaderboard,
			Detail: fmt.Sprintf("%d entries for %d players", len(leaderboard), len(byRank))}}
	}

	var out []Violation
	for i, e := range leaderboard {
		if e.Name != byRank[i].Name || e.Ranking != byRank[i].Ranking {
			out = append(out, Violation{Player: e.Name, Rule: RuleLeaderboard,
				Detail: fmt.Sprintf("entry %d is %s#%d, ranking has %s#%d", i, e.Name, e.Ranking, byRank[i].Name, byRank[i].Ranking)})
		}
	}
	return out
}

// verifyBalance checks that every match produced one win and one loss.
func verifyBalance(players []types.PlayerSummary) []Violation {
	wins, losses := 0, 0
	for _, p := range players {
		wins += p.Wins
		losses += p.Losses
	}
	if wins != losses {
		return []Violation{{Rule: RuleBalance, Detail: fmt.Sprintf("%d wins against %d losses", wins, losses)}}
	}
	return nil
}

func sortedByRanking(players []types.PlayerSummary) []types.PlayerSummary {
	out := make([]types.PlayerSummary, len(players))
	copy(out, players)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Ranking < out[j].Ranking })
	return out
}

func closeTo(a, b float64) bool {
	return math.Abs(a-b) <= ratingTolerance*math.Max(1, math.Abs(b))
}
