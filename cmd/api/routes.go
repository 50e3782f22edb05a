package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"nestegg/internal/shared/middleware"
)

// SetupRoutes configures all HTTP routes and returns the final handler.
func SetupRoutes(deps *Dependencies, telemetryEnabled bool) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logging)
	if telemetryEnabled {
		r.Use(middleware.Telemetry)
	}

	r.Get("/health", handleHealth)

	// Public routes
	r.Post("/api/auth/register", deps.UserHandler.HandleRegister)
	r.Post("/api/auth/login", deps.UserHandler.HandleLogin)

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth)

		r.Get("/api/users/me", deps.UserHandler.HandleGetProfile)
		r.Put("/api/users/me/device-token", deps.UserHandler.HandleSetDeviceToken)

		r.Post("/api/agreements", deps.ConsentHandler.HandleCreateAgreement)
		r.Post("/api/requisitions", deps.ConsentHandler.HandleCreateRequisition)
		r.Get("/api/requisitions/{id}", deps.ConsentHandler.HandleGetRequisition)
		r.Post("/api/link", deps.ConsentHandler.HandleLinkAccount)

		r.Get("/api/accounts", deps.AccountHandler.HandleListAccounts)
		r.Get("/api/accounts/{id}", deps.AccountHandler.HandleGetAccount)
		r.Put("/api/accounts/{id}", deps.AccountHandler.HandleUpdateAccount)
		r.Get("/api/accounts/{id}/balances", deps.AccountHandler.HandleGetBalances)
		r.Get("/api/accounts/{id}/details", deps.AccountHandler.HandleGetDetails)
		r.Get("/api/accounts/{id}/transactions", deps.AccountHandler.HandleListTransactions)
		r.Get("/api/accounts/{id}/transactions/live", deps.AccountHandler.HandleGetLiveTransactions)

		r.Post("/api/institutions/{institutionId}/sync", deps.SyncHandler.HandleSyncInstitution)

		r.Get("/api/institutions", deps.InstitutionHandler.HandleListInstitutions)
		r.Get("/api/institutions/{id}", deps.InstitutionHandler.HandleGetInstitution)

		r.Get("/api/net-worth/series", deps.NetWorthHandler.HandleGetTimeSeries)
		r.Get("/api/net-worth/summary", deps.NetWorthHandler.HandleGetSummary)
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
