package handlers

import (
	"context"
	"net/http"

	"github.com/evotar/apiserver/internal/session"
	"github.com/evotar/apiserver/types"
	"github.com/go-chi/chi/v5"
)

type LookupManager interface {
	ListDepartments(ctx context.Context) ([]types.Department, error)
	CreateDepartment(ctx context.Context, actor session.Session, name string) (types.Department, error)
	ListElectionTypes(ctx context.Context) ([]types.ElectionType, error)
	CreateElectionType(ctx context.Context, actor session.Session, in types.ElectionType) (types.ElectionType, error)
	CreatePosition(ctx context.Context, actor session.Session, in types.Position) (types.Position, error)
}

// LookupHandler serves departments, election types and positions.
type LookupHandler struct {
	lookups LookupManager
}

func NewLookupHandler(lookups LookupManager) *LookupHandler {
	return &LookupHandler{lookups: lookups}
}

func DepartmentRouter(r chi.Router, h *LookupHandler) {
	r.Get("/", h.ListDepartments)
	r.With(RequireSession).Post("/", h.CreateDepartment)
}

func ElectionTypeRouter(r chi.Router, h *LookupHandler) {
	r.Get("/", h.ListElectionTypes)
	r.With(RequireSession).Post("/", h.CreateElectionType)
	r.With(RequireSession).Post("/{typeID}/positions", h.CreatePosition)
}

func (h *LookupHandler) ListDepartments(w http.ResponseWriter, r *http.Request) {
	departments, err := h.lookups.ListDepartments(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "Failed to list departments")
		return
	}
	writeOK(w, http.StatusOK, envelope{"departments": departments})
}

type DepartmentRequest struct {
	Name string `json:"name"`
}

func (h *LookupHandler) CreateDepartment(w http.ResponseWriter, r *http.Request) {
	var req DepartmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	department, err := h.lookups.CreateDepartment(r.Context(), session.FromContext(r.Context()), req.Name)
	if err != nil {
		writeServiceError(w, r, err, "Failed to create department")
		return
	}
	writeOK(w, http.StatusCreated, envelope{"department": department})
}

func (h *LookupHandler) ListElectionTypes(w http.ResponseWriter, r *http.Request) {
	electionTypes, err := h.lookups.ListElectionTypes(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "Failed to list election types")
		return
	}
	writeOK(w, http.StatusOK, envelope{"election_types": electionTypes})
}

func (h *LookupHandler) CreateElectionType(w http.ResponseWriter, r *http.Request) {
	var req types.ElectionType
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	electionType, err := h.lookups.CreateElectionType(r.Context(), session.FromContext(r.Context()), req)
	if err != nil {
		writeServiceError(w, r, err, "Failed to create election type")
		return
	}
	writeOK(w, http.StatusCreated, envelope{"election_type": electionType})
}

func (h *LookupHandler) CreatePosition(w http.ResponseWriter, r *http.Request) {
	typeID, err := parseIntParam(r, "typeID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req types.Position
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.ElectionTypeID = typeID

	position, err := h.lookups.CreatePosition(r.Context(), session.FromContext(r.Context()), req)
	if err != nil {
		writeServiceError(w, r, err, "Failed to create position")
		return
	}
	writeOK(w, http.StatusCreated, envelope{"position": position})
}
