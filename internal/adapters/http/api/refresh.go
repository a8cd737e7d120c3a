package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	service "github.com/okian/ladder/internal/app"
)

// Refresher rebuilds the ratings on demand.
type Refresher interface {
	Refresh(ctx context.Context) (*service.Snapshot, error)
	Reload(ctx context.Context) (*service.Snapshot, error)
}

// RefreshHandler handles refresh requests.
type RefreshHandler struct {
	deps Refresher
}

// NewRefreshHandler creates a new refresh handler.
func NewRefreshHandler(deps Refresher) *RefreshHandler {
	return &RefreshHandler{deps: deps}
}

type skippedRow struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

type refreshResponse struct {
	Generation string       `json:"generation"`
	BuiltAt    time.Time    `json:"built_at"`
	FetchedAt  time.Time    `json:"fetched_at"`
	FromCache  bool         `json:"from_cache"`
	Players    int          `json:"players"`
	Matches    int          `json:"matches"`
	Skipped    []skippedRow `json:"skipped"`
}

// HandleRefresh handles POST /refresh. With force=true the row cache is
// bypassed.
func (h *RefreshHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	const op = "api.refresh"

	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))
	refresh := h.deps.Refresh
	if force {
		refresh = h.deps.Reload
	}

	snap, err := refresh(r.Context())
	if err != nil {
		writeServiceError(w, op, err)
		return
	}

	resp := refreshResponse{
		Generation: snap.Generation.String(),
		BuiltAt:    snap.BuiltAt,
		FetchedAt:  snap.FetchedAt,
		FromCache:  snap.FromCache,
		Players:    snap.State.Len(),
		Matches:    snap.State.MatchCount(),
		Skipped:    make([]skippedRow, len(snap.Skipped)),
	}
	for i, s := range snap.Skipped {
		resp.Skipped[i] = skippedRow{Row: s.Index, Reason: s.Reason}
	}
	writeJSON(w, http.StatusOK, resp)
}
