// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	service "github.com/okian/ladder/internal/app"
	"github.com/okian/ladder/internal/domain/types"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	PlayerReader
	LeaderboardDependencies
	HistoryReader
	Refresher
	StatsProvider
}

// PlayerReader exposes per-player summaries.
type PlayerReader interface {
	Players(ctx context.Context) ([]types.PlayerSummary, error)
	Player(ctx context.Context, name string) (types.PlayerSummary, error)
}

// HistoryReader exposes rating histories.
type HistoryReader interface {
	History(ctx context.Context, name string) ([]types.HistoryPoint, error)
	Histories(ctx context.Context, names []string) ([]types.Series, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	playersHandler     *PlayersHandler
	leaderboardHandler *LeaderboardHandler
	historyHandler     *HistoryHandler
	refreshHandler     *RefreshHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, maxLimit int) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(deps),
		statsHandler:       NewStatsHandler(deps),
		playersHandler:     NewPlayersHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps, maxLimit),
		historyHandler:     NewHistoryHandler(deps),
		refreshHandler:     NewRefreshHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /readyz", MetricsMiddleware(s.healthHandler.HandleReady, "readyz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("GET /players", MetricsMiddleware(s.playersHandler.HandleList, "players"))
	mux.HandleFunc("GET /players/{name}", MetricsMiddleware(s.playersHandler.HandleGet, "player"))
	mux.HandleFunc("GET /players/{name}/history", MetricsMiddleware(s.historyHandler.HandlePlayer, "player_history"))
	mux.HandleFunc("GET /history", MetricsMiddleware(s.historyHandler.HandleMany, "history"))
	mux.HandleFunc("GET /leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("POST /refresh", MetricsMiddleware(s.refreshHandler.HandleRefresh, "refresh"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError translates service errors into status codes. Context
// errors win over the kind they were wrapped in.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "cancelled", wrap(op, err))
	case errors.Is(err, service.ErrNoData):
		writeError(w, http.StatusServiceUnavailable, "data_unavailable", wrap(op, err))
	case errors.Is(err, service.ErrPlayerNotFound):
		writeError(w, http.StatusNotFound, "not_found", wrap(op, err))
	case errors.Is(err, service.ErrInvalidLimit):
		writeError(w, http.StatusBadRequest, "bad_request", wrap(op, err))
	case errors.Is(err, service.ErrDataQuality):
		writeError(w, http.StatusUnprocessableEntity, "data_quality", wrap(op, err))
	case errors.Is(err, service.ErrFetch):
		writeError(w, http.StatusBadGateway, "upstream_error", wrap(op, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", wrap(op, err))
	}
}
