package api

import (
	"net/http"
	"strings"

	"github.com/okian/ladder/internal/domain/types"
)

// HistoryHandler serves rating histories.
type HistoryHandler struct {
	deps HistoryReader
}

// NewHistoryHandler creates a new history handler.
func NewHistoryHandler(deps HistoryReader) *HistoryHandler {
	return &HistoryHandler{deps: deps}
}

type playerHistoryResponse struct {
	Player  string               `json:"player"`
	History []types.HistoryPoint `json:"history"`
}

// HandlePlayer handles GET /players/{name}/history.
func (h *HistoryHandler) HandlePlayer(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_player_history"
	name := strings.TrimSpace(r.PathValue("name"))
	if name == "" {
		writeError(w, http.StatusBadRequest, "bad_request", wrap(op, ErrBadRequest))
		return
	}

	points, err := h.deps.History(r.Context(), name)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, playerHistoryResponse{Player: name, History: points})
}

// HandleMany handles GET /history?players=a,b. Without players every
// player's series is returned.
func (h *HistoryHandler) HandleMany(w http.ResponseWriter, r *http.Request) {
	series, err := h.deps.Histories(r.Context(), splitNames(r.URL.Query().Get("players")))
	if err != nil {
		writeServiceError(w, "api.get_histories", err)
		return
	}
	writeJSON(w, http.StatusOK, series)
}

// splitNames parses a comma separated list, dropping blanks and repeats.
func splitNames(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	for _, part := range strings.Split(raw, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
