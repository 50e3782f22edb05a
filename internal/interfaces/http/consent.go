package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"nestegg/internal/domain/consent"
	"nestegg/internal/shared/middleware"
)

// ConsentHandler exposes agreement and requisition management.
type ConsentHandler struct {
	consentService *consent.Service
}

func NewConsentHandler(consentService *consent.Service) *ConsentHandler {
	return &ConsentHandler{consentService: consentService}
}

type createAgreementRequest struct {
	InstitutionID      string `json:"institutionId" validate:"required"`
	MaxHistoricalDays  *int   `json:"maxHistoricalDays,omitempty" validate:"omitempty,min=1"`
	AccessValidForDays *int   `json:"accessValidForDays,omitempty" validate:"omitempty,min=1"`
}

type createRequisitionRequest struct {
	InstitutionID string `json:"institutionId" validate:"required"`
	AgreementID   string `json:"agreementId" validate:"required"`
	RedirectURL   string `json:"redirectUrl" validate:"required,url"`
	Reference     string `json:"reference,omitempty"`
	UserLanguage  string `json:"userLanguage,omitempty"`
}

type linkAccountRequest struct {
	InstitutionID string `json:"institutionId" validate:"required"`
	RedirectURL   string `json:"redirectUrl" validate:"required,url"`
}

func (h *ConsentHandler) HandleCreateAgreement(w http.ResponseWriter, r *http.Request) {
	var req createAgreementRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	userID := middleware.UserID(r.Context())
	agreement, err := h.consentService.CreateAgreement(r.Context(), userID, req.InstitutionID, req.MaxHistoricalDays, req.AccessValidForDays)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, agreement)
}

func (h *ConsentHandler) HandleCreateRequisition(w http.ResponseWriter, r *http.Request) {
	var req createRequisitionRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	userID := middleware.UserID(r.Context())
	requisition, err := h.consentService.CreateRequisition(r.Context(), userID, consent.CreateRequisitionParams{
		RedirectURL:   req.RedirectURL,
		InstitutionID: req.InstitutionID,
		AgreementID:   req.AgreementID,
		Reference:     req.Reference,
		UserLanguage:  req.UserLanguage,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, requisition)
}

// HandleLinkAccount runs the composite link flow: reuse an existing
// consent when one is usable, otherwise create agreement plus
// requisition and hand back the bank's authentication link.
func (h *ConsentHandler) HandleLinkAccount(w http.ResponseWriter, r *http.Request) {
	var req linkAccountRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	userID := middleware.UserID(r.Context())
	result, err := h.consentService.LinkAccount(r.Context(), userID, req.InstitutionID, req.RedirectURL)
	if err != nil {
		writeError(w, r, err)
		return
	}

	status := http.StatusCreated
	if result.AlreadyLinked {
		status = http.StatusOK
	}
	writeJSON(w, status, result)
}

func (h *ConsentHandler) HandleGetRequisition(w http.ResponseWriter, r *http.Request) {
	requisition, err := h.consentService.GetRequisition(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, requisition)
}
