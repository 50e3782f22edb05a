package http

import (
	"net/http"

	"nestegg/internal/domain/networth"
	"nestegg/internal/shared/middleware"
)

// NetWorthHandler serves the computed net-worth figures.
type NetWorthHandler struct {
	networthService *networth.Service
}

func NewNetWorthHandler(networthService *networth.Service) *NetWorthHandler {
	return &NetWorthHandler{networthService: networthService}
}

func (h *NetWorthHandler) HandleGetTimeSeries(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	points, err := h.networthService.GetTimeSeries(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, points)
}

func (h *NetWorthHandler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	summary, err := h.networthService.GetSummary(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
