package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-playground/validator/v10"

	"nestegg/internal/domain/account"
	"nestegg/internal/domain/consent"
	"nestegg/internal/domain/institution"
	"nestegg/internal/domain/ledger"
	"nestegg/internal/domain/sync"
	"nestegg/internal/domain/user"
	"nestegg/internal/infrastructure/bankdata"
)

var validate = validator.New()

var errInvalidBody = errors.New("invalid JSON body")

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// writeError maps domain errors onto HTTP statuses. Upstream and
// internal failures are logged with detail but answered opaquely.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case isBadRequest(err):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case isNotFound(err):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, sync.ErrRelinkRequired), errors.Is(err, user.ErrEmailAlreadyTaken):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, user.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
	case isProviderError(err):
		log.Printf("%s %s: upstream error: %v", r.Method, r.URL.Path, err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "upstream provider error"})
	default:
		log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func isBadRequest(err error) bool {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return true
	}
	for _, target := range []error{
		errInvalidBody,
		consent.ErrInstitutionIDRequired,
		consent.ErrRedirectURLRequired,
		consent.ErrAgreementIDRequired,
		consent.ErrAgreementInstitutionMismatch,
		account.ErrAccountIDRequired,
		account.ErrInvalidCategory,
		ledger.ErrAccountIDRequired,
		ledger.ErrInvalidDate,
		ledger.ErrInvalidDateRange,
		sync.ErrInstitutionIDRequired,
		institution.ErrCountryCodeRequired,
		user.ErrEmailRequired,
		user.ErrPasswordRequired,
		user.ErrPasswordTooShort,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func isNotFound(err error) bool {
	for _, target := range []error{
		consent.ErrAgreementNotFound,
		consent.ErrRequisitionNotFound,
		account.ErrAccountNotFound,
		institution.ErrInstitutionNotFound,
		user.ErrUserNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func isProviderError(err error) bool {
	var perr *bankdata.ProviderError
	return errors.As(err, &perr)
}

// decodeAndValidate parses a JSON body and runs struct validation.
func decodeAndValidate(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errInvalidBody
	}
	return validate.Struct(v)
}
