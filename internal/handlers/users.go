package handlers

import (
	"context"
	"net/http"

	"github.com/evotar/apiserver/internal/services"
	"github.com/evotar/apiserver/internal/session"
	"github.com/evotar/apiserver/types"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// UserManager is the user administration surface.
type UserManager interface {
	GetUser(ctx context.Context, actor session.Session, id uuid.UUID) (types.User, error)
	ListUsers(ctx context.Context, actor session.Session, role string, offset, limit int) ([]types.User, int, error)
	CreateUser(ctx context.Context, actor session.Session, in services.UserInput) (types.User, error)
	UpdateUser(ctx context.Context, actor session.Session, id uuid.UUID, patch services.UserPatch) (types.User, error)
	DeleteUser(ctx context.Context, actor session.Session, id uuid.UUID) error
}

// UserHandler provides HTTP handlers for users.
type UserHandler struct {
	users UserManager
}

func NewUserHandler(users UserManager) *UserHandler {
	return &UserHandler{users: users}
}

// UserRouter registers user routes. Every route needs a session.
func UserRouter(r chi.Router, h *UserHandler) {
	r.Use(RequireSession)
	r.Get("/", h.ListUsers)
	r.Post("/", h.CreateUser)
	r.Route("/{userID}", func(r chi.Router) {
		r.Get("/", h.GetUser)
		r.Put("/", h.UpdateUser)
		r.Delete("/", h.DeleteUser)
	})
}

func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, total, err := h.users.ListUsers(r.Context(), session.FromContext(r.Context()), r.URL.Query().Get("role"), offset, limit)
	if err != nil {
		writeServiceError(w, r, err, "Failed to list users")
		return
	}
	writeJSON(w, http.StatusOK, ListResponse[types.User]{Success: true, Items: items, Page: page, Limit: limit, Total: total})
}

func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	user, err := h.users.GetUser(r.Context(), session.FromContext(r.Context()), id)
	if err != nil {
		writeServiceError(w, r, err, "Failed to fetch user")
		return
	}
	writeOK(w, http.StatusOK, envelope{"user": user})
}

func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req services.UserInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	user, err := h.users.CreateUser(r.Context(), session.FromContext(r.Context()), req)
	if err != nil {
		writeServiceError(w, r, err, "Failed to create user")
		return
	}
	writeOK(w, http.StatusCreated, envelope{"user": user})
}

func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var patch services.UserPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	user, err := h.users.UpdateUser(r.Context(), session.FromContext(r.Context()), id, patch)
	if err != nil {
		writeServiceError(w, r, err, "Failed to update user")
		return
	}
	writeOK(w, http.StatusOK, envelope{"user": user})
}

func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.users.DeleteUser(r.Context(), session.FromContext(r.Context()), id); err != nil {
		writeServiceError(w, r, err, "Failed to delete user")
		return
	}
	writeOK(w, http.StatusOK, nil)
}
