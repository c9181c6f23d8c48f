package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/triarb/internal/domain"
)

// OpportunityFeed reads recently accepted opportunities, newest first.
type OpportunityFeed interface {
	Recent(ctx context.Context, count int64) ([]domain.Opportunity, error)
}

// OpportunityHandler serves the recent-opportunities endpoint.
type OpportunityHandler struct {
	feed   OpportunityFeed // optional; when nil ListRecent returns 501
	logger *slog.Logger
}

// NewOpportunityHandler creates an OpportunityHandler. feed may be nil.
func NewOpportunityHandler(feed OpportunityFeed, logger *slog.Logger) *OpportunityHandler {
	return &OpportunityHandler{feed: feed, logger: logger.With(slog.String("handler", "opportunities"))}
}

type listOpportunitiesResponse struct {
	Opportunities []domain.Opportunity `json:"opportunities"`
}

// ListRecent returns the most recent accepted opportunities.
// GET /api/opportunities/recent?limit=20
func (h *OpportunityHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	if h.feed == nil {
		writeError(w, http.StatusNotImplemented, "opportunity feed requires redis")
		return
	}
	limit := parseLimit(r, 20, 200)
	opps, err := h.feed.Recent(r.Context(), int64(limit))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list opportunities failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list opportunities")
		return
	}
	if opps == nil {
		opps = []domain.Opportunity{}
	}
	writeJSON(w, http.StatusOK, listOpportunitiesResponse{Opportunities: opps})
}
