package api

import (
	"net/http"
	"strings"
)

// PlayersHandler serves player summaries.
type PlayersHandler struct {
	deps PlayerReader
}

// NewPlayersHandler creates a new players handler.
func NewPlayersHandler(deps PlayerReader) *PlayersHandler {
	return &PlayersHandler{deps: deps}
}

// HandleList handles GET /players.
func (h *PlayersHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	players, err := h.deps.Players(r.Context())
	if err != nil {
		writeServiceError(w, "api.list_players", err)
		return
	}
	writeJSON(w, http.StatusOK, players)
}

// HandleGet handles GET /players/{name}.
func (h *PlayersHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_player"
	name := strings.TrimSpace(r.PathValue("name"))
	if name == "" {
		writeError(w, http.StatusBadRequest, "bad_request", wrap(op, ErrBadRequest))
		return
	}

	player, err := h.deps.Player(r.Context(), name)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, player)
}
