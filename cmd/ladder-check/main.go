package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/ladder/internal/laddercheck"
	"github.com/okian/ladder/pkg/logger"
)

const defaultCheckTimeout = 10 * time.Minute

func main() {
	var (
		baseURL       = flag.String("url", "http://localhost:9080", "Base URL of the service")
		workers       = flag.Int("workers", laddercheck.DefaultWorkers, "Concurrent history requests")
		timeout       = flag.Duration("timeout", laddercheck.DefaultTimeout, "HTTP request timeout")
		wait          = flag.Duration("wait", laddercheck.DefaultReadyWait, "How long to wait for the service to become ready")
		refresh       = flag.Bool("refresh", false, "Trigger POST /refresh before checking")
		force         = flag.Bool("force", false, "With -refresh, bypass the row cache")
		defaultRating = flag.Float64("default-rating", laddercheck.DefaultRatingSeed, "Seed rating the service runs with")
		logFile       = flag.String("log", "", "Log file (default: ladder_check_TIMESTAMP.log)")
		verbose       = flag.Bool("verbose", false, "Log every violation")
		help          = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		laddercheck.ShowHelp()
		return
	}

	path, err := laddercheck.SetupLogging(*logFile)
	if err != nil {
		_, _ = os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultCheckTimeout)
	defer cancel()

	logger.Get().Info(ctx, "logging to file", logger.String("logFile", path))

	config := &laddercheck.Config{
		BaseURL:       *baseURL,
		Workers:       *workers,
		Timeout:       *timeout,
		ReadyWait:     *wait,
		Refresh:       *refresh,
		Force:         *force,
		DefaultRating: *defaultRating,
		LogFile:       path,
		Verbose:       *verbose,
	}

	if _, err := laddercheck.Run(ctx, config); err != nil {
		logger.Get().Error(ctx, "check failed", logger.Error(err))
		cancel()
		stop()
		os.Exit(1)
	}
}
