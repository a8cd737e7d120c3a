package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	service "github.com/okian/ladder/internal/app"
	"github.com/okian/ladder/pkg/metrics"
)

// SnapshotSource reports the currently published snapshot.
type SnapshotSource interface {
	Snapshot() *service.Snapshot
}

// HealthHandler handles health and readiness requests.
type HealthHandler struct {
	snapshots SnapshotSource
	metrics   http.Handler
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(snapshots SnapshotSource) *HealthHandler {
	return &HealthHandler{
		snapshots: snapshots,
		metrics:   promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}),
	}
}

// HandleHealth handles GET /healthz with the Prometheus exposition.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.metrics.ServeHTTP(w, r)
}

type readyResponse struct {
	Ready      bool   `json:"ready"`
	Generation string `json:"generation,omitempty"`
}

// HandleReady handles GET /readyz: 200 once ratings have been published.
func (h *HealthHandler) HandleReady(w http.ResponseWriter, _ *http.Request) {
	snap := h.snapshots.Snapshot()
	if snap == nil {
		writeJSON(w, http.StatusServiceUnavailable, readyResponse{Ready: false})
		return
	}
	writeJSON(w, http.StatusOK, readyResponse{Ready: true, Generation: snap.Generation.String()})
}
