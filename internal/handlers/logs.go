package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/evotar/apiserver/internal/session"
	"github.com/evotar/apiserver/internal/syslog"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// LogSink records and pages system logs.
type LogSink interface {
	Log(ctx context.Context, event syslog.Event)
	List(ctx context.Context, page, pageSize int) (syslog.Page, error)
}

// LogHandler exposes the system log to administrators.
type LogHandler struct {
	sink LogSink
}

func NewLogHandler(sink LogSink) *LogHandler {
	return &LogHandler{sink: sink}
}

func LogRouter(r chi.Router, h *LogHandler) {
	r.Use(requireAdmin)
	r.Post("/", h.CreateLog)
	r.Get("/", h.ListLogs)
}

// requireAdmin answers 401 for anyone but an administrator.
func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !session.FromContext(r.Context()).IsAdmin() {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// LogRequest records an event. UserID defaults to the calling admin.
type LogRequest struct {
	Action      string         `json:"action"`
	Description string         `json:"description"`
	UserID      *uuid.UUID     `json:"userId"`
	Metadata    map[string]any `json:"metadata"`
}

func (h *LogHandler) CreateLog(w http.ResponseWriter, r *http.Request) {
	var req LogRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Action) == "" || strings.TrimSpace(req.Description) == "" {
		writeError(w, http.StatusBadRequest, "action and description are required")
		return
	}

	userID := req.UserID
	if userID == nil {
		self := session.FromContext(r.Context()).UserID
		userID = &self
	}
	h.sink.Log(r.Context(), syslog.Event{
		Action:      req.Action,
		Description: req.Description,
		UserID:      userID,
		Metadata:    req.Metadata,
	})
	writeOK(w, http.StatusOK, nil)
}

func (h *LogHandler) ListLogs(w http.ResponseWriter, r *http.Request) {
	page, limit, _, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := h.sink.List(r.Context(), page, limit)
	if err != nil {
		writeServiceError(w, r, err, "Failed to list logs")
		return
	}
	writeOK(w, http.StatusOK, envelope{
		"logs":       result.Logs,
		"total":      result.Total,
		"page":       result.Page,
		"pageSize":   result.PageSize,
		"totalPages": result.TotalPages,
	})
}
