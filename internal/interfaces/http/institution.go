package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"nestegg/internal/domain/institution"
)

// InstitutionHandler serves the cached institution directory.
type InstitutionHandler struct {
	institutionService *institution.Service
}

func NewInstitutionHandler(institutionService *institution.Service) *InstitutionHandler {
	return &InstitutionHandler{institutionService: institutionService}
}

func (h *InstitutionHandler) HandleListInstitutions(w http.ResponseWriter, r *http.Request) {
	institutions, err := h.institutionService.GetInstitutions(r.Context(), r.URL.Query().Get("country"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, institutions)
}

func (h *InstitutionHandler) HandleGetInstitution(w http.ResponseWriter, r *http.Request) {
	inst, err := h.institutionService.GetInstitution(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inst)
}
