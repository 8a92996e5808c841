package handler

import (
	"log/slog"
	"net/http"
)

// RefreshScheduler is the minimal scheduler view the refresh handler needs.
type RefreshScheduler interface {
	Running() bool
	Refresh() bool
}

// RefreshHandler exposes a manual refresh-cycle trigger, useful when the
// scheduled interval is long and an operator wants fresh data now.
type RefreshHandler struct {
	scheduler RefreshScheduler
	logger    *slog.Logger
}

// NewRefreshHandler creates a RefreshHandler.
func NewRefreshHandler(scheduler RefreshScheduler, logger *slog.Logger) *RefreshHandler {
	return &RefreshHandler{
		scheduler: scheduler,
		logger:    logger.With(slog.String("handler", "refresh")),
	}
}

// Trigger runs one refresh cycle out of band. The cycle serializes with the
// scheduler's own loop and runs asynchronously; the endpoint acknowledges the
// request immediately. An idle scheduler cannot be triggered.
// POST /api/refresh/trigger
func (h *RefreshHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	if !h.scheduler.Running() {
		writeError(w, http.StatusConflict, "scheduler is not running")
		return
	}

	go h.scheduler.Refresh()
	h.logger.InfoContext(r.Context(), "manual refresh triggered")
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":  "accepted",
		"running": true,
	})
}
