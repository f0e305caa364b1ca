package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/learnify/internal/auth"
	"github.com/sakif/learnify/internal/service"
)

// UserHandler serves profile updates for the signed-in user.
type UserHandler struct {
	users  *service.AuthService
	logger *slog.Logger
}

func NewUserHandler(users *service.AuthService, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

type updateUserRequest struct {
	Name string `json:"name" validate:"required,max=255"`
}

// HandleUpdate renames the caller.
//
// HTTP: PATCH /user
// Auth: Required
func (h *UserHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.users.UpdateName(r.Context(), caller(r), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user.Public())
}

// caller returns the identity set by auth.Identify. Only call it behind
// auth.RequireIdentity.
func caller(r *http.Request) string {
	email, _ := auth.IdentityFromContext(r.Context())
	return email
}
