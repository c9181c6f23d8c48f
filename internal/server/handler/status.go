package handler

import (
	"net/http"

	"github.com/alanyoungcy/triarb/internal/scanner"
)

// StatusSource yields the scanner snapshot.
type StatusSource interface {
	Status() scanner.Status
}

// StatusHandler reports mode, dedup sizes, outcome counters and the last cycle.
type StatusHandler struct {
	mode   string
	source StatusSource
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(mode string, source StatusSource) *StatusHandler {
	return &StatusHandler{mode: mode, source: source}
}

type statusResponse struct {
	Mode string `json:"mode"`
	scanner.Status
}

// GetStatus responds with the current scanner status.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{Mode: h.mode, Status: h.source.Status()})
}
