package laddercheck

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/okian/ladder/internal/domain/types"
	"github.com/okian/ladder/pkg/logger"
)

// collect reads players, the leaderboard and every history from the service.
func collect(ctx context.Context, config *Config, stats *Stats) (*Report, error) {
	client := newHTTPClient(config.BaseURL, config.Timeout)

	var report Report
	if err := client.getJSON(ctx, "/players", &report.Players); err != nil {
		return nil, fmt.Errorf("players: %w", err)
	}
	stats.Players = len(report.Players)
	stats.Matches = 0
	for _, p := range report.Players {
		stats.Matches += p.Wins
	}

	limit := min(max(len(report.Players), 1), maxLeaderboardLimit)
	if err := client.getJSON(ctx, fmt.Sprintf("/leaderboard?limit=%d", limit), &report.Leaderboard); err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	stats.LeaderboardEntries = len(report.Leaderboard)

	histories, err := retrieveHistories(ctx, client, config, report.Players)
	if err != nil {
		return nil, err
	}
	report.Histories = histories
	stats.HistoriesRetrieved = len(histories)

	logger.Get().Info(ctx, "service state collected",
		logger.Int("players", stats.Players),
		logger.Int("leaderboard", stats.LeaderboardEntries),
		logger.Int("histories", stats.HistoriesRetrieved))
	return &report, nil
}

// retrieveHistories fetches each player's history with a bounded pool.
func retrieveHistories(ctx context.Context, client *HTTPClient, config *Config, players []types.PlayerSummary) (map[string][]types.HistoryPoint, error) {
	var (
		mu  sync.Mutex
		out = make(map[string][]types.HistoryPoint, len(players))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(config.Workers)
	for _, p := range players {
		name := p.Name
		g.Go(func() error {
			var body struct {
				Player  string               `json:"player"`
				History []types.HistoryPoint `json:"history"`
			}
			if err := client.getJSON(gctx, "/players/"+url.PathEscape(name)+"/history", &body); err != nil {
				return fmt.Errorf("history of %q: %w", name, err)
			}
			mu.Lock()
			out[name] = body.History
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
