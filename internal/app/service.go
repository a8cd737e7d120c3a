// Package service turns the match sheet into ratings and serves read
// queries over the most recent complete result.
package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	repository "github.com/okian/ladder/internal/adapters/repository"
	"github.com/okian/ladder/internal/domain/matches"
	"github.com/okian/ladder/internal/domain/model"
	"github.com/okian/ladder/internal/domain/rating"
	"github.com/okian/ladder/internal/domain/types"
	"github.com/okian/ladder/pkg/logger"
	"github.com/okian/ladder/pkg/metrics"
)

// DefaultRefreshTimeout bounds one rebuild when no timeout is configured.
const DefaultRefreshTimeout = 2 * time.Minute

// RowSource yields the raw match rows.
type RowSource interface {
	Fetch(ctx context.Context) ([][]string, error)
}

// RowCache stores the last fetched rows with their fetch time.
type RowCache interface {
	Get(ctx context.Context) ([][]string, time.Time, error)
	Put(ctx context.Context, rows [][]string, fetchedAt time.Time) error
}

// Snapshot is one complete, immutable rating result.
type Snapshot struct {
	Generation uuid.UUID
	BuiltAt    time.Time
	FetchedAt  time.Time
	FromCache  bool
	Matches    []model.Match
	State      *rating.State
	Index      repository.Ranking
	Skipped    []matches.RowError
}

// Service implements the API dependencies for the ladder.
type Service struct {
	mu sync.Mutex

	source     RowSource
	cache      RowCache
	cacheTTL   time.Duration
	parseOpts  []matches.Option
	ratingOpts []rating.Option

	window          time.Duration
	refreshInterval time.Duration
	refreshTimeout  time.Duration
	clock           func() time.Time

	snap      atomic.Pointer[Snapshot]
	group     singleflight.Group
	refreshes atomic.Int64
	failures  atomic.Int64
	lastErr   atomic.Pointer[string]

	// State
	started bool
	cancel  context.CancelFunc
	done    chan struct{}

	logger logger.Logger
}

// New constructs a Service reading from source.
func New(source RowSource, opts ...Option) *Service {
	s := &Service{
		source:         source,
		clock:          time.Now,
		refreshTimeout: DefaultRefreshTimeout,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.Nop()
	}

	return s
}

// Start performs an initial refresh and, when an interval is configured,
// keeps refreshing in the background until Stop or ctx cancellation. A
// failed initial refresh is logged; reads report ErrNoData until one
// succeeds.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.started = true
	s.mu.Unlock()

	s.logger.Info(ctx, "starting ladder service...",
		logger.Duration("refresh_interval", s.refreshInterval),
		logger.Duration("match_window", s.window),
		logger.Bool("cache", s.cache != nil),
	)

	if _, err := s.Refresh(ctx); err != nil {
		s.logger.Error(ctx, "initial refresh failed", logger.Error(err))
	}

	go s.loop(loopCtx)

	return nil
}

func (s *Service) loop(ctx context.Context) {
	defer close(s.done)

	if s.refreshInterval <= 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(s.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn(ctx, "scheduled refresh failed", logger.Error(err))
			}
		}
	}
}

// Stop ends the background refresh loop.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(context.Background(), "stopping ladder service...")
	s.cancel()
	<-s.done
	s.started = false
	s.logger.Info(context.Background(), "ladder service stopped")
}

// Refresh rebuilds the ratings, serving rows from a fresh cache entry when
// one exists. Concurrent calls share one rebuild. On failure the previous
// snapshot stays published.
func (s *Service) Refresh(ctx context.Context) (*Snapshot, error) {
	return s.do(ctx, "refresh", false)
}

// Reload is Refresh without the cache shortcut.
func (s *Service) Reload(ctx context.Context) (*Snapshot, error) {
	return s.do(ctx, "reload", true)
}

// do runs one shared rebuild per key. The rebuild is detached from the
// caller that started it and bounded by refreshTimeout, so a caller that
// gives up stops waiting without failing the others.
func (s *Service) do(ctx context.Context, key string, bypassCache bool) (*Snapshot, error) {
	ch := s.group.DoChan(key, func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.refreshTimeout)
		defer cancel()
		return s.rebuild(rctx, bypassCache)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Snapshot), nil
	}
}

// publish stores snap unless a snapshot built from newer rows is already
// out, and returns the snapshot that is current afterwards.
func (s *Service) publish(snap *Snapshot) (*Snapshot, bool) {
	for {
		cur := s.snap.Load()
		if cur != nil && snap.FetchedAt.Before(cur.FetchedAt) {
			return cur, false
		}
		if s.snap.CompareAndSwap(cur, snap) {
			return snap, true
		}
	}
}

func (s *Service) rebuild(ctx context.Context, bypassCache bool) (*Snapshot, error) {
	start := time.Now()
	now := s.clock()
	s.refreshes.Add(1)

	snap, outcome, err := s.build(ctx, now, bypassCache)

	metrics.RecordRefresh(outcome)
	metrics.RecordRefreshDuration(float64(time.Since(start).Milliseconds()))

	if err != nil {
		s.failures.Add(1)
		msg := err.Error()
		s.lastErr.Store(&msg)
		metrics.RecordErrorByComponent("service", outcome)
		return nil, err
	}

	s.lastErr.Store(nil)
	if cur, ok := s.publish(snap); !ok {
		s.logger.Info(ctx, "discarding rebuild from older rows",
			logger.String("generation", snap.Generation.String()),
			logger.Time("fetched_at", snap.FetchedAt),
			logger.Time("published_fetched_at", cur.FetchedAt),
		)
		return cur, nil
	}

	metrics.UpdateSnapshot(snap.State.Len(), snap.State.MatchCount())
	metrics.UpdateLastRefreshUnix(float64(snap.BuiltAt.Unix()))
	metrics.RecordRowsSkipped(len(snap.Skipped))

	s.logger.Info(ctx, "ratings snapshot published",
		logger.String("generation", snap.Generation.String()),
		logger.Int("players", snap.State.Len()),
		logger.Int("matches", snap.State.MatchCount()),
		logger.Int("skipped_rows", len(snap.Skipped)),
		logger.Bool("from_cache", snap.FromCache),
		logger.Duration("took", time.Since(start)),
	)

	return snap, nil
}

func (s *Service) build(ctx context.Context, now time.Time, bypassCache bool) (*Snapshot, string, error) {
	rows, fetchedAt, fromCache, err := s.loadRows(ctx, now, bypassCache)
	if err != nil {
		if ctx.Err() != nil {
			return nil, metrics.OutcomeCancelled, fmt.Errorf("%w: %w", ErrFetch, err)
		}
		return nil, metrics.OutcomeFetchErr, fmt.Errorf("%w: %w", ErrFetch, err)
	}

	res, err := matches.Parse(ctx, rows, s.parseOpts...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, metrics.OutcomeCancelled, err
		}
		return nil, metrics.OutcomeDataErr, fmt.Errorf("%w: %w", ErrDataQuality, err)
	}
	for _, rowErr := range res.Skipped {
		s.logger.Debug(ctx, "skipped malformed row", logger.Int("row", rowErr.Index), logger.String("reason", rowErr.Reason))
	}

	ms := matches.Window(res.Matches, now, s.window)
	opts := append([]rating.Option{rating.WithClock(func() time.Time { return now })}, s.ratingOpts...)
	state := rating.Compute(ms, opts...)

	players := state.Players()
	standings := make([]repository.Standing, len(players))
	for i, p := range players {
		r, _ := state.Rating(p)
		standings[i] = repository.Standing{Player: p, Rating: r, Seq: i}
	}

	return &Snapshot{
		Generation: uuid.New(),
		BuiltAt:    now,
		FetchedAt:  fetchedAt,
		FromCache:  fromCache,
		Matches:    ms,
		State:      state,
		Index:      repository.NewIndex(ctx, standings),
		Skipped:    res.Skipped,
	}, metrics.OutcomeSuccess, nil
}

// loadRows returns rows and when they were fetched. A fresh cache entry
// wins over the source; a stale one is only used while nothing has been
// published yet and the source is failing.
func (s *Service) loadRows(ctx context.Context, now time.Time, bypassCache bool) ([][]string, time.Time, bool, error) {
	var cached [][]string
	var cachedAt time.Time
	haveCached := false

	if s.cache != nil {
		rows, at, err := s.cache.Get(ctx)
		switch {
		case err == nil:
			cached, cachedAt, haveCached = rows, at, true
			if !bypassCache && s.cacheTTL > 0 && now.Sub(at) < s.cacheTTL {
				return rows, at, true, nil
			}
			metrics.RecordCacheResult(metrics.CacheStale)
		case ctx.Err() != nil:
			return nil, time.Time{}, false, ctx.Err()
		default:
			s.logger.Debug(ctx, "row cache unavailable", logger.Error(err))
		}
	}

	rows, err := s.source.Fetch(ctx)
	if err != nil {
		if haveCached && s.snap.Load() == nil && ctx.Err() == nil {
			s.logger.Warn(ctx, "source unavailable, using stale cached rows",
				logger.Error(err),
				logger.Time("fetched_at", cachedAt),
			)
			return cached, cachedAt, true, nil
		}
		return nil, time.Time{}, false, err
	}

	if s.cache != nil {
		if perr := s.cache.Put(ctx, rows, now); perr != nil {
			s.logger.Warn(ctx, "row cache write failed", logger.Error(perr))
		}
	}

	return rows, now, false, nil
}

// Snapshot returns the published snapshot, or nil before the first refresh.
func (s *Service) Snapshot() *Snapshot {
	return s.snap.Load()
}

func (s *Service) current() (*Snapshot, error) {
	snap := s.snap.Load()
	if snap == nil {
		return nil, ErrNoData
	}
	return snap, nil
}

func summarize(ctx context.Context, snap *Snapshot, name string) (types.PlayerSummary, error) {
	r, ok := snap.State.Rating(name)
	if !ok {
		return types.PlayerSummary{}, fmt.Errorf("%w: %s", ErrPlayerNotFound, name)
	}
	entry, err := snap.Index.Rank(ctx, name)
	if err != nil {
		return types.PlayerSummary{}, fmt.Errorf("%w: %s", ErrPlayerNotFound, name)
	}
	start, _ := snap.State.StartDate(name)

	return types.PlayerSummary{
		Name:        name,
		Rating:      int(math.Round(r)),
		RatingExact: r,
		Ranking:     entry.Rank,
		Wins:        snap.State.Wins(name),
		Losses:      snap.State.Losses(name),
		StartDate:   start,
	}, nil
}

// Players returns a summary for every rated player, sorted by name.
func (s *Service) Players(ctx context.Context) ([]types.PlayerSummary, error) {
	snap, err := s.current()
	if err != nil {
		return nil, err
	}

	names := snap.State.Players()
	sort.Strings(names)

	out := make([]types.PlayerSummary, 0, len(names))
	for _, name := range names {
		sum, err := summarize(ctx, snap, name)
		if err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, nil
}

// Player returns one player's summary.
func (s *Service) Player(ctx context.Context, name string) (types.PlayerSummary, error) {
	snap, err := s.current()
	if err != nil {
		return types.PlayerSummary{}, err
	}
	return summarize(ctx, snap, name)
}

// Leaderboard returns the top n players by ranking.
func (s *Service) Leaderboard(ctx context.Context, n int) ([]types.PlayerSummary, error) {
	snap, err := s.current()
	if err != nil {
		return nil, err
	}

	entries, err := snap.Index.TopN(ctx, n)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidLimit) {
			return nil, ErrInvalidLimit
		}
		return nil, err
	}

	out := make([]types.PlayerSummary, 0, len(entries))
	for _, e := range entries {
		sum, err := summarize(ctx, snap, e.Player)
		if err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, nil
}

// History returns one player's matches from their perspective, oldest first.
func (s *Service) History(ctx context.Context, name string) ([]types.HistoryPoint, error) {
	snap, err := s.current()
	if err != nil {
		return nil, err
	}
	if !snap.State.Known(name) {
		return nil, fmt.Errorf("%w: %s", ErrPlayerNotFound, name)
	}
	return historyPoints(snap, name), nil
}

// Histories returns rating series for names, or for every player sorted by
// name when names is empty.
func (s *Service) Histories(ctx context.Context, names []string) ([]types.Series, error) {
	snap, err := s.current()
	if err != nil {
		return nil, err
	}

	if len(names) == 0 {
		names = snap.State.Players()
		sort.Strings(names)
	}

	out := make([]types.Series, 0, len(names))
	for _, name := range names {
		if !snap.State.Known(name) {
			return nil, fmt.Errorf("%w: %s", ErrPlayerNotFound, name)
		}
		out = append(out, types.Series{Player: name, Points: historyPoints(snap, name)})
	}
	return out, nil
}

func historyPoints(snap *Snapshot, name string) []types.HistoryPoint {
	entries := snap.State.History(name)
	points := make([]types.HistoryPoint, len(entries))
	for i, e := range entries {
		points[i] = types.NewHistoryPoint(name, e)
	}
	return points
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()

	stats := map[string]any{
		"started":          started,
		"refreshes":        s.refreshes.Load(),
		"failed_refreshes": s.failures.Load(),
		"refresh_interval": s.refreshInterval.String(),
		"match_window":     s.window.String(),
		"cache_enabled":    s.cache != nil,
	}
	if msg := s.lastErr.Load(); msg != nil {
		stats["last_error"] = *msg
	}

	if snap := s.snap.Load(); snap != nil {
		stats["generation"] = snap.Generation.String()
		stats["built_at"] = snap.BuiltAt
		stats["fetched_at"] = snap.FetchedAt
		stats["from_cache"] = snap.FromCache
		stats["players"] = snap.State.Len()
		stats["matches"] = snap.State.MatchCount()
		stats["skipped_rows"] = len(snap.Skipped)
	}

	return stats
}
