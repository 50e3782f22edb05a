package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"nestegg/internal/domain/sync"
	"nestegg/internal/shared/middleware"
)

// SyncHandler starts sync passes.
type SyncHandler struct {
	orchestrator *sync.Orchestrator
}

func NewSyncHandler(orchestrator *sync.Orchestrator) *SyncHandler {
	return &SyncHandler{orchestrator: orchestrator}
}

// HandleSyncInstitution kicks off an async sync pass for one
// institution. The response reports what was enqueued, not the sync
// outcome; account statuses tell the rest of the story.
func (h *SyncHandler) HandleSyncInstitution(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	result, err := h.orchestrator.SyncInstitution(r.Context(), userID, chi.URLParam(r, "institutionId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, result)
}
