package laddercheck

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/ladder/pkg/logger"
)

// ErrInconsistent is returned by Run when any violation was found.
var ErrInconsistent = errors.New("service state is inconsistent")

// Run executes the complete consistency check against a running service.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	applyDefaults(config)
	stats := &Stats{StartTime: time.Now()}

	logger.Get().Info(ctx, "starting ladder consistency check",
		logger.String("baseURL", config.BaseURL),
		logger.Int("workers", config.Workers),
		logger.Duration("timeout", config.Timeout),
		logger.Bool("refresh", config.Refresh),
		logger.Bool("force", config.Force))

	// Step 1: wait until the service has published a snapshot
	if err := waitReady(ctx, config); err != nil {
		return stats, fmt.Errorf("readiness check failed: %w", err)
	}

	// Step 2: optionally rebuild ratings
	if config.Refresh {
		if err := triggerRefresh(ctx, config); err != nil {
			return stats, fmt.Errorf("refresh failed: %w", err)
		}
	}

	// Step 3: read everything
	report, err := collect(ctx, config, stats)
	if err != nil {
		return stats, fmt.Errorf("collection failed: %w", err)
	}

	// Step 4: verify
	violations := Verify(report, config.DefaultRating)
	stats.Violations = len(violations)
	reportViolations(ctx, violations, config.Verbose)

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)

	if len(violations) > 0 {
		return stats, fmt.Errorf("%w: %d violations", ErrInconsistent, len(violations))
	}
	logger.Get().Info(ctx, "check completed successfully")
	return stats, nil
}

func applyDefaults(config *Config) {
	if config.Workers <= 0 {
		config.Workers = DefaultWorkers
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.ReadyWait <= 0 {
		config.ReadyWait = DefaultReadyWait
	}
	if config.DefaultRating == 0 {
		config.DefaultRating = DefaultRatingSeed
	}
}

// waitReady polls /readyz until it answers 200 or the wait runs out.
func waitReady(ctx context.Context, config *Config) error {
	logger.Get().Info(ctx, "waiting for service readiness")

	client := newHTTPClient(config.BaseURL, config.Timeout)
	ctx, cancel := context.WithTimeout(ctx, config.ReadyWait)
	defer cancel()

	ticker := time.NewTicker(readyPollInterval)
	defer ticker.Stop()
	var lastErr error
	for {
		err := client.getJSON(ctx, "/readyz", nil)
		if err == nil {
			logger.Get().Info(ctx, "service is ready")
			return nil
		}
		// A request cut short by the wait itself says nothing about the service.
		if ctx.Err() == nil {
			lastErr = err
			logger.Get().Debug(ctx, "service not ready yet", logger.Error(err))
		}

		select {
		case <-ctx.Done():
			if lastErr == nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w (last error: %w)", ctx.Err(), lastErr)
		case <-ticker.C:
		}
	}
}

// triggerRefresh asks the service to rebuild its snapshot.
func triggerRefresh(ctx context.Context, config *Config) error {
	client := newHTTPClient(config.BaseURL, config.Timeout)
	path := "/refresh"
	if config.Force {
		path += "?force=true"
	}

	var resp struct {
		Generation string `json:"generation"`
		FromCache  bool   `json:"from_cache"`
		Players    int    `json:"players"`
		Matches    int    `json:"matches"`
		Skipped    []struct {
			Row    int    `json:"row"`
			Reason string `json:"reason"`
		} `json:"skipped"`
	}
	if err := client.postJSON(ctx, path, &resp); err != nil {
		return err
	}
	logger.Get().Info(ctx, "snapshot rebuilt",
		logger.String("generation", resp.Generation),
		logger.Bool("from_cache", resp.FromCache),
		logger.Int("players", resp.Players),
		logger.Int("matches", resp.Matches),
		logger.Int("skipped", len(resp.Skipped)))
	for _, s := range resp.Skipped {
		logger.Get().Warn(ctx, "row skipped", logger.Int("row", s.Row), logger.String("reason", s.Reason))
	}
	return nil
}

func reportViolations(ctx context.Context, violations []Violation, verbose bool) {
	if len(violations) == 0 {
		logger.Get().Info(ctx, "no violations found")
		return
	}
	shown := violations
	if !verbose && len(shown) > violationsShownQuiet {
		shown = shown[:violationsShownQuiet]
	}
	for _, v := range shown {
		logger.Get().Warn(ctx, "violation", logger.String("player", v.Player),
			logger.String("rule", v.Rule), logger.String("detail", v.Detail))
	}
	if len(shown) < len(violations) {
		logger.Get().Warn(ctx, "more violations omitted, use -verbose",
			logger.Int("omitted", len(violations)-len(shown)))
	}
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	logger.Get().Info(ctx, "final statistics",
		logger.Int("players", stats.Players),
		logger.Int("matches", stats.Matches),
		logger.Int("historiesRetrieved", stats.HistoriesRetrieved),
		logger.Int("leaderboardEntries", stats.LeaderboardEntries),
		logger.Int("violations", stats.Violations),
		logger.Duration("duration", stats.Duration))
}
