// Package config defines service configuration and its defaults.
//
// Keys are flat so that an env var like LADDER_SHEETS_RANGE maps directly to
// the koanf tag "sheets_range".
package config

import (
	"time"
)

// Fetch modes for the spreadsheet source.
const (
	SheetsModeDirect = "direct"
	SheetsModeProxy  = "proxy"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// ShutdownTimeout bounds graceful HTTP shutdown.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// Spreadsheet source. In direct mode the values API is called with
	// SheetsAPIKey; in proxy mode SheetsProxyURL is called and holds the key.
	SheetsMode          string        `koanf:"sheets_mode"`
	SheetsBaseURL       string        `koanf:"sheets_base_url"`
	SheetsSpreadsheetID string        `koanf:"sheets_spreadsheet_id"`
	SheetsRange         string        `koanf:"sheets_range"`
	SheetsAPIKey        string        `koanf:"sheets_api_key"`
	SheetsProxyURL      string        `koanf:"sheets_proxy_url"`
	SheetsTimeout       time.Duration `koanf:"sheets_timeout"`
	SheetsRetries       int           `koanf:"sheets_retries"`
	SheetsMaxConns      int           `koanf:"sheets_max_conns"`

	// RedisURL enables the raw row cache when set.
	RedisURL string `koanf:"redis_url"`

	// CacheTTL is how long cached rows are served without refetching.
	CacheTTL time.Duration `koanf:"cache_ttl"`

	// RefreshInterval re-reads the source periodically; 0 disables the loop.
	RefreshInterval time.Duration `koanf:"refresh_interval"`

	// RefreshTimeout bounds one rebuild, independent of the request that started it.
	RefreshTimeout time.Duration `koanf:"refresh_timeout"`

	// MatchWindow keeps only matches younger than this; 0 keeps all.
	MatchWindow time.Duration `koanf:"match_window"`

	// RowPolicy is "skip" or "fail" for malformed rows.
	RowPolicy string `koanf:"row_policy"`

	// StrictWinner rejects winner markers other than "Player 1"/"Player 2".
	StrictWinner bool `koanf:"strict_winner"`

	// DateLayouts overrides the accepted date formats; empty uses the built-in list.
	DateLayouts []string `koanf:"date_layouts"`

	// Location is the IANA zone used for dates without an offset.
	Location string `koanf:"location"`

	// Elo parameters.
	EloK          float64 `koanf:"elo_k"`
	EloScale      float64 `koanf:"elo_scale"`
	DecayFactor   float64 `koanf:"decay_factor"`
	DefaultRating float64 `koanf:"default_rating"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		ShutdownTimeout:     10 * time.Second,
		SheetsMode:          SheetsModeDirect,
		SheetsBaseURL:       "https://sheets.googleapis.com/v4/spreadsheets",
		SheetsRange:         "Match History!A2:F9999",
		SheetsTimeout:       10 * time.Second,
		SheetsRetries:       2,
		SheetsMaxConns:      4,
		CacheTTL:            5 * time.Minute,
		RefreshInterval:     0,
		RefreshTimeout:      2 * time.Minute,
		MatchWindow:         0,
		RowPolicy:           "skip",
		Location:            "UTC",
		EloK:                50,
		EloScale:            400,
		DecayFactor:         1,
		DefaultRating:       1000,
		MaxLeaderboardLimit: 100,
	}
}
