package laddercheck

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/ladder/pkg/logger"
)

// SetupLogging sends log output to both stdout and a file. If logFile is
// empty, a timestamped filename is generated.
func SetupLogging(logFile string) (string, error) {
	if logFile == "" {
		logFile = "ladder_check_" + time.Now().Format("20060102_150405") + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return "", fmt.Errorf("failed to create log file: %w", err)
	}

	if err := logger.InitWithOptions(logger.WithWriter(io.MultiWriter(os.Stdout, file))); err != nil {
		return "", fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logFile, nil
}

// ShowHelp prints usage information for the check tool.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`Ladder Consistency Check
========================

Reads every player, history and the leaderboard from a running ladder
service and checks that they agree with each other.

Usage:
  go run ./cmd/ladder-check [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -workers int
        Concurrent history requests (default 8)
  -timeout duration
        HTTP request timeout (default 10s)
  -wait duration
        How long to wait for the service to become ready (default 1m)
  -refresh
        Trigger POST /refresh before checking
  -force
        With -refresh, bypass the row cache
  -default-rating float
        Seed rating the service runs with (default 1000)
  -log string
        Log file (default: ladder_check_TIMESTAMP.log)
  -verbose
        Log every violation
  -help
        Show this help message

Examples:
  # Check a local service
  go run ./cmd/ladder-check

  # Re-read the sheet first, then check
  go run ./cmd/ladder-check -refresh -force -url http://ladder:9080
`)
}
