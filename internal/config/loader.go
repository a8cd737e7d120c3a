package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix  = "LADDER_"
	envCfgFile = "LADDER_CONFIG"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if LADDER_CONFIG is set
//  3. env (prefix LADDER_)
func Load(ctx context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv(envCfgFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// LADDER_SHEETS_RANGE -> sheets_range (flat keys, underscores preserved).
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(ctx); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate(_ context.Context) error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}

	switch c.SheetsMode {
	case SheetsModeDirect:
		if c.SheetsBaseURL == "" || c.SheetsSpreadsheetID == "" {
			return fmt.Errorf("%w: direct mode needs sheets_base_url and sheets_spreadsheet_id", ErrInvalidConfig)
		}
	case SheetsModeProxy:
		if c.SheetsProxyURL == "" {
			return fmt.Errorf("%w: proxy mode needs sheets_proxy_url", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown sheets_mode %q", ErrInvalidConfig, c.SheetsMode)
	}
	if c.SheetsRange == "" {
		return fmt.Errorf("%w: sheets_range must not be empty", ErrInvalidConfig)
	}
	if c.SheetsRetries < 0 {
		return fmt.Errorf("%w: sheets_retries must be >= 0", ErrInvalidConfig)
	}
	if c.SheetsMaxConns < 1 {
		return fmt.Errorf("%w: sheets_max_conns must be >= 1", ErrInvalidConfig)
	}

	if c.RowPolicy != "skip" && c.RowPolicy != "fail" {
		return fmt.Errorf("%w: row_policy must be skip or fail, got %q", ErrInvalidConfig, c.RowPolicy)
	}
	if _, err := time.LoadLocation(c.Location); err != nil {
		return fmt.Errorf("%w: location %q: %w", ErrInvalidConfig, c.Location, err)
	}

	if c.EloK <= 0 || c.EloScale <= 0 {
		return fmt.Errorf("%w: elo_k and elo_scale must be positive", ErrInvalidConfig)
	}
	if c.DecayFactor <= 0 || c.DecayFactor > 1 {
		return fmt.Errorf("%w: decay_factor must be in (0, 1]", ErrInvalidConfig)
	}
	if c.RefreshInterval < 0 || c.MatchWindow < 0 || c.CacheTTL < 0 {
		return fmt.Errorf("%w: durations must not be negative", ErrInvalidConfig)
	}
	if c.RefreshTimeout <= 0 {
		return fmt.Errorf("%w: refresh_timeout must be positive", ErrInvalidConfig)
	}
	if c.MaxLeaderboardLimit < 1 {
		return fmt.Errorf("%w: max_leaderboard_limit must be >= 1", ErrInvalidConfig)
	}
	return nil
}
