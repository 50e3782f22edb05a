package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"nestegg/internal/domain/account"
	"nestegg/internal/domain/ledger"
	"nestegg/internal/shared/middleware"
)

// AccountHandler exposes linked accounts, their balance history and
// their ledger.
type AccountHandler struct {
	accountService *account.Service
	ledgerService  *ledger.Service
}

func NewAccountHandler(accountService *account.Service, ledgerService *ledger.Service) *AccountHandler {
	return &AccountHandler{accountService: accountService, ledgerService: ledgerService}
}

func (h *AccountHandler) HandleListAccounts(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	accounts, err := h.accountService.ListAccounts(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if accounts == nil {
		accounts = []*account.Account{}
	}
	writeJSON(w, http.StatusOK, accounts)
}

func (h *AccountHandler) HandleGetAccount(w http.ResponseWriter, r *http.Request) {
	acc, err := h.accountService.GetAccount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

type updateAccountRequest struct {
	DisplayName *string `json:"displayName"`
	Category    *string `json:"category" validate:"omitempty,oneof=spending savings investment credit"`
}

// HandleUpdateAccount sets the user-editable fields on an owned account.
func (h *AccountHandler) HandleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	var req updateAccountRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	acc, err := h.accountService.UpdateAccount(
		r.Context(),
		chi.URLParam(r, "id"),
		middleware.UserID(r.Context()),
		req.DisplayName,
		req.Category,
	)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

func (h *AccountHandler) HandleGetBalances(w http.ResponseWriter, r *http.Request) {
	balances, err := h.accountService.GetBalances(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if balances == nil {
		balances = []account.Balance{}
	}
	writeJSON(w, http.StatusOK, balances)
}

// HandleGetDetails reads account details live from the aggregator.
func (h *AccountHandler) HandleGetDetails(w http.ResponseWriter, r *http.Request) {
	details, err := h.accountService.GetDetails(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

// HandleListTransactions returns the local ledger for an account,
// newest first, including computed running balances.
func (h *AccountHandler) HandleListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.ledgerService.ListTransactions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if txs == nil {
		txs = []ledger.Transaction{}
	}
	writeJSON(w, http.StatusOK, txs)
}

// HandleGetLiveTransactions proxies a bounded transaction read straight
// to the aggregator, without touching the ledger.
func (h *AccountHandler) HandleGetLiveTransactions(w http.ResponseWriter, r *http.Request) {
	page, err := h.ledgerService.GetAccountTransactions(
		r.Context(),
		chi.URLParam(r, "id"),
		r.URL.Query().Get("dateFrom"),
		r.URL.Query().Get("dateTo"),
	)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}
