package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/triarb/internal/domain"
)

// ScanTrigger starts one scan cycle in the background. It returns
// domain.ErrScanInProgress when a cycle is already running.
type ScanTrigger interface {
	TriggerScan() error
}

// ScanHandler serves the manual scan trigger.
type ScanHandler struct {
	trigger ScanTrigger
	logger  *slog.Logger
}

// NewScanHandler creates a ScanHandler.
func NewScanHandler(trigger ScanTrigger, logger *slog.Logger) *ScanHandler {
	return &ScanHandler{trigger: trigger, logger: logger.With(slog.String("handler", "scan"))}
}

// TriggerScan starts a cycle and returns immediately.
// POST /api/scan
func (h *ScanHandler) TriggerScan(w http.ResponseWriter, r *http.Request) {
	err := h.trigger.TriggerScan()
	switch {
	case errors.Is(err, domain.ErrScanInProgress):
		writeError(w, http.StatusConflict, "scan already in progress")
		return
	case err != nil:
		h.logger.ErrorContext(r.Context(), "scan trigger failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to start scan")
		return
	}
	h.logger.InfoContext(r.Context(), "scan triggered")
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":       "accepted",
		"requested_at": time.Now().UTC().Format(time.RFC3339),
	})
}
