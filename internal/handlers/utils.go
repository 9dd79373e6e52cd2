package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/evotar/apiserver/internal/obs"
	"github.com/evotar/apiserver/internal/services"
	"github.com/evotar/apiserver/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

const (
	defaultPage  = 1
	defaultLimit = 20
	maxLimit     = 100
	maxBodyBytes = 1 << 20
)

// ErrorResponse is the failure envelope.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Field   string `json:"field,omitempty"`
}

// envelope is a success payload; writeOK adds "success": true.
type envelope map[string]any

// ListResponse is a page of items.
type ListResponse[T any] struct {
	Success bool `json:"success"`
	Items   []T  `json:"items"`
	Page    int  `json:"page"`
	Limit   int  `json:"limit"`
	Total   int  `json:"total"`
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeOK(w http.ResponseWriter, status int, body envelope) {
	if body == nil {
		body = envelope{}
	}
	body["success"] = true
	writeJSON(w, status, body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// serviceErrors maps service and store errors to their response status and
// the message shown to the client. Order matters for wrapped errors.
var serviceErrors = []struct {
	err     error
	status  int
	message string
}{
	{services.ErrUnauthorized, http.StatusUnauthorized, "Unauthorized"},
	{services.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid student ID or password"},
	{services.ErrForbidden, http.StatusForbidden, "Forbidden"},
	{services.ErrNotEligible, http.StatusForbidden, "You are not eligible to vote in this election"},
	{services.ErrResultsHidden, http.StatusForbidden, "Results are not available yet"},
	{store.ErrNotFound, http.StatusNotFound, "Not found"},
	{services.ErrLedgerDisabled, http.StatusNotFound, "Ballot ledger is disabled"},
	{services.ErrExportsDisabled, http.StatusNotFound, "Results exports are disabled"},
	{services.ErrUserExists, http.StatusConflict, "A user with this email or student ID already exists"},
	{services.ErrReferenced, http.StatusConflict, "User cannot be deleted while referenced by elections, votes or candidacies"},
	{services.ErrCandidateHasVotes, http.StatusConflict, "Candidate cannot be removed after votes were cast"},
	{services.ErrAlreadyVoted, http.StatusConflict, "You have already voted in this election"},
	{services.ErrElectionClosed, http.StatusConflict, "Election is not open for voting"},
	{store.ErrConflict, http.StatusConflict, "Conflict"},
	{store.ErrInvalid, http.StatusBadRequest, "Invalid reference"},
}

// writeServiceError maps service and store errors to a status code. Unknown
// errors are logged and reported with the generic fallback message.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var verr *services.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: verr.Error(), Field: verr.Field})
		return
	}
	for _, e := range serviceErrors {
		if errors.Is(err, e.err) {
			writeError(w, e.status, e.message)
			return
		}
	}
	obs.Logger().Error(fallback,
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("path", r.URL.Path),
		slog.Any("error", err),
	)
	writeError(w, http.StatusInternalServerError, fallback)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("Request body is empty")
		}
		return errors.New("Invalid request body")
	}
	return nil
}

func parsePagination(r *http.Request) (page, limit, offset int, err error) {
	page = defaultPage
	limit = defaultLimit

	if raw := strings.TrimSpace(r.URL.Query().Get("page")); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 1 {
			return 0, 0, 0, errors.New("Invalid page")
		}
	}

	rawLimit := strings.TrimSpace(r.URL.Query().Get("limit"))
	if rawLimit == "" {
		rawLimit = strings.TrimSpace(r.URL.Query().Get("pageSize"))
	}
	if rawLimit != "" {
		limit, err = strconv.Atoi(rawLimit)
		if err != nil || limit < 1 {
			return 0, 0, 0, errors.New("Invalid limit")
		}
	}

	if limit > maxLimit {
		limit = maxLimit
	}

	offset = (page - 1) * limit
	return page, limit, offset, nil
}

func parseUUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("Invalid %s", strings.TrimSuffix(name, "ID")+" id")
	}
	return id, nil
}

func parseIntParam(r *http.Request, name string) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || id < 1 {
		return 0, fmt.Errorf("Invalid %s", strings.TrimSuffix(name, "ID")+" id")
	}
	return id, nil
}

// Healthz reports liveness.
func Healthz(w http.ResponseWriter, r *http.Request) {
	writeOK(w, http.StatusOK, envelope{"status": "ok"})
}
