package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/ladder/internal/adapters/cache"
	"github.com/okian/ladder/internal/adapters/http/api"
	"github.com/okian/ladder/internal/adapters/http/swagger"
	"github.com/okian/ladder/internal/adapters/sheets"
	app "github.com/okian/ladder/internal/app"
	"github.com/okian/ladder/internal/config"
	"github.com/okian/ladder/internal/domain/matches"
	"github.com/okian/ladder/internal/domain/rating"
	"github.com/okian/ladder/pkg/logger"
	"github.com/okian/ladder/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 30 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	systemMetricsInterval     = 10 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	if err := logger.Init(); err != nil {
		_, _ = os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logger.Get().Error(ctx, "ladder exited", logger.Error(err))
		_ = logger.Sync()
		stop()
		os.Exit(1)
	}
	_ = logger.Sync()
}

func run(ctx context.Context) error {
	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	if err := logger.InitWithOptions(logger.WithFormat(cfg.LogFormat)); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	log := logger.Named("ladder")

	svc, cleanup, err := buildService(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)

	srv := newHTTPServer(cfg.Addr, newMux(ctx, svc, cfg.MaxLeaderboardLimit))

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}
	log.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return nil
}

// buildService wires the sheet client, the optional row cache and the
// rating options into a Service. The returned cleanup releases the cache.
func buildService(ctx context.Context, cfg *config.Config, log logger.Logger) (*app.Service, func(), error) {
	client, err := sheets.NewClient(sheets.Endpoint{
		Mode:          cfg.SheetsMode,
		BaseURL:       cfg.SheetsBaseURL,
		SpreadsheetID: cfg.SheetsSpreadsheetID,
		Range:         cfg.SheetsRange,
		APIKey:        cfg.SheetsAPIKey,
		ProxyURL:      cfg.SheetsProxyURL,
	},
		sheets.WithTimeout(cfg.SheetsTimeout),
		sheets.WithRetry(cfg.SheetsRetries),
		sheets.WithMaxConnsPerHost(cfg.SheetsMaxConns),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("sheets client: %w", err)
	}

	parseOpts, err := parseOptions(cfg)
	if err != nil {
		return nil, nil, err
	}

	opts := []app.Option{
		app.WithLogger(log),
		app.WithParseOptions(parseOpts...),
		app.WithRatingOptions(
			rating.WithK(cfg.EloK),
			rating.WithScale(cfg.EloScale),
			rating.WithDecayFactor(cfg.DecayFactor),
			rating.WithDefaultRating(cfg.DefaultRating),
		),
		app.WithMatchWindow(cfg.MatchWindow),
		app.WithRefreshInterval(cfg.RefreshInterval),
		app.WithRefreshTimeout(cfg.RefreshTimeout),
	}

	cleanup := func() {}
	if cfg.RedisURL != "" {
		rc, err := cache.New(ctx, cfg.RedisURL, cache.WithPrefix(cachePrefix(cfg)))
		if err != nil {
			// The sheet is still the source of truth; run uncached.
			log.Warn(ctx, "row cache unavailable, continuing without it", logger.Error(err))
		} else {
			opts = append(opts, app.WithCache(rc, cfg.CacheTTL))
			cleanup = func() {
				if err := rc.Close(); err != nil {
					log.Warn(ctx, "closing row cache", logger.Error(err))
				}
			}
		}
	}

	return app.New(client, opts...), cleanup, nil
}

func parseOptions(cfg *config.Config) ([]matches.Option, error) {
	policy, err := matches.ParsePolicy(cfg.RowPolicy)
	if err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(cfg.Location)
	if err != nil {
		return nil, fmt.Errorf("location %q: %w", cfg.Location, err)
	}

	opts := []matches.Option{
		matches.WithPolicy(policy),
		matches.WithStrictWinner(cfg.StrictWinner),
		matches.WithLocation(loc),
	}
	if len(cfg.DateLayouts) > 0 {
		opts = append(opts, matches.WithDateLayouts(cfg.DateLayouts...))
	}
	return opts, nil
}

// cachePrefix namespaces cached rows per spreadsheet and range.
func cachePrefix(cfg *config.Config) string {
	id := cfg.SheetsSpreadsheetID
	if cfg.SheetsMode == config.SheetsModeProxy {
		id = cfg.SheetsProxyURL
	}
	return "ladder:" + id + ":" + cfg.SheetsRange
}

func newMux(ctx context.Context, svc api.Dependencies, maxLimit int) *http.ServeMux {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, maxLimit).Register(ctx, mux)
	return mux
}

func newHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

// startSystemMetricsUpdater updates system metrics until ctx is done.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
