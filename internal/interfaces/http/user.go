package http

import (
	"net/http"

	"nestegg/internal/domain/user"
	"nestegg/internal/shared/middleware"
)

// UserHandler exposes registration and profile management.
type UserHandler struct {
	userService *user.Service
}

func NewUserHandler(userService *user.Service) *UserHandler {
	return &UserHandler{userService: userService}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type deviceTokenRequest struct {
	Token *string `json:"token"`
}

func (h *UserHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req user.CreateUserParams
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	u, err := h.userService.Register(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (h *UserHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	u, err := h.userService.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *UserHandler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	u, err := h.userService.GetUser(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// HandleSetDeviceToken registers or clears the push target for the
// sync-completed notifications.
func (h *UserHandler) HandleSetDeviceToken(w http.ResponseWriter, r *http.Request) {
	var req deviceTokenRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	userID := middleware.UserID(r.Context())
	if err := h.userService.SetDeviceToken(r.Context(), userID, req.Token); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}
