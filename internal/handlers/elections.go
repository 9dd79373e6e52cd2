package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/evotar/apiserver/internal/ledger"
	"github.com/evotar/apiserver/internal/obs"
	"github.com/evotar/apiserver/internal/services"
	"github.com/evotar/apiserver/internal/session"
	"github.com/evotar/apiserver/types"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// ElectionManager covers the election lifecycle.
type ElectionManager interface {
	GetElection(ctx context.Context, id uuid.UUID) (types.Election, error)
	ListElections(ctx context.Context, status string, offset, limit int) ([]types.Election, int, error)
	CreateElection(ctx context.Context, actor session.Session, in services.ElectionInput) (types.Election, error)
	UpdateElection(ctx context.Context, actor session.Session, id uuid.UUID, patch services.ElectionPatch) (types.Election, error)
	UpdateElectionStatus(ctx context.Context, actor session.Session, id uuid.UUID, status string) (types.Election, error)
	ToggleResultVisibility(ctx context.Context, actor session.Session, id uuid.UUID, show bool) (types.Election, error)
}

type CandidateManager interface {
	ListCandidates(ctx context.Context, electionID uuid.UUID) ([]types.Candidate, error)
	AddCandidate(ctx context.Context, actor session.Session, in services.CandidateInput) (types.Candidate, error)
	RemoveCandidate(ctx context.Context, actor session.Session, electionID, candidateID uuid.UUID) error
}

type BallotBox interface {
	CastVote(ctx context.Context, sess session.Session, electionID uuid.UUID, choices []types.BallotChoice) ([]types.Vote, error)
	HasUserVoted(ctx context.Context, sess session.Session, electionID uuid.UUID) (bool, error)
}

type ResultsProvider interface {
	Tabulate(ctx context.Context, actor session.Session, electionID uuid.UUID) (services.ResultsReport, error)
	GetResults(ctx context.Context, viewer session.Session, electionID uuid.UUID) (services.ResultsReport, error)
	ListExports(ctx context.Context, actor session.Session, electionID uuid.UUID) ([]services.Export, error)
	OpenExport(ctx context.Context, actor session.Session, electionID uuid.UUID, name string) (io.ReadCloser, error)
}

type LedgerVerifier interface {
	VerifyChain(ctx context.Context, actor session.Session, electionID uuid.UUID) (ledger.Report, error)
}

// ElectionHandler provides HTTP handlers for elections and everything
// nested under them.
type ElectionHandler struct {
	elections  ElectionManager
	candidates CandidateManager
	ballots    BallotBox
	results    ResultsProvider
	ledger     LedgerVerifier
}

func NewElectionHandler(
	elections ElectionManager,
	candidates CandidateManager,
	ballots BallotBox,
	results ResultsProvider,
	ledger LedgerVerifier,
) *ElectionHandler {
	return &ElectionHandler{
		elections:  elections,
		candidates: candidates,
		ballots:    ballots,
		results:    results,
		ledger:     ledger,
	}
}

// ElectionRouter registers election routes. Reads are public; writes need a
// session and the services enforce roles.
func ElectionRouter(r chi.Router, h *ElectionHandler) {
	r.Get("/", h.ListElections)
	r.With(RequireSession).Post("/", h.CreateElection)
	r.Route("/{electionID}", func(r chi.Router) {
		r.Get("/", h.GetElection)
		r.Get("/candidates", h.ListCandidates)
		r.Get("/results", h.GetResults)

		r.Group(func(r chi.Router) {
			r.Use(RequireSession)
			r.Put("/", h.UpdateElection)
			r.Put("/status", h.UpdateStatus)
			r.Put("/results-visibility", h.UpdateResultsVisibility)
			r.Post("/candidates", h.AddCandidate)
			r.Delete("/candidates/{candidateID}", h.RemoveCandidate)
			r.Post("/votes", h.CastVote)
			r.Get("/votes/me", h.HasVoted)
			r.Post("/tabulate", h.Tabulate)
			r.Get("/results/exports", h.ListExports)
			r.Get("/results/exports/{name}", h.GetExport)
			r.Get("/ledger/verify", h.VerifyLedger)
		})
	})
}

func (h *ElectionHandler) ListElections(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, total, err := h.elections.ListElections(r.Context(), r.URL.Query().Get("status"), offset, limit)
	if err != nil {
		writeServiceError(w, r, err, "Failed to list elections")
		return
	}
	writeJSON(w, http.StatusOK, ListResponse[types.Election]{Success: true, Items: items, Page: page, Limit: limit, Total: total})
}

func (h *ElectionHandler) GetElection(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "electionID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	election, err := h.elections.GetElection(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, "Failed to fetch election")
		return
	}
	writeOK(w, http.StatusOK, envelope{"election": election})
}

func (h *ElectionHandler) CreateElection(w http.ResponseWriter, r *http.Request) {
	var req services.ElectionInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	election, err := h.elections.CreateElection(r.Context(), session.FromContext(r.Context()), req)
	if err != nil {
		writeServiceError(w, r, err, "Failed to create election")
		return
	}
	writeOK(w, http.StatusCreated, envelope{"election": election})
}

func (h *ElectionHandler) UpdateElection(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "electionID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var patch services.ElectionPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	election, err := h.elections.UpdateElection(r.Context(), session.FromContext(r.Context()), id, patch)
	if err != nil {
		writeServiceError(w, r, err, "Failed to update election")
		return
	}
	writeOK(w, http.StatusOK, envelope{"election": election})
}

type StatusRequest struct {
	Status string `json:"status"`
}

func (h *ElectionHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "electionID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req StatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	election, err := h.elections.UpdateElectionStatus(r.Context(), session.FromContext(r.Context()), id, req.Status)
	if err != nil {
		writeServiceError(w, r, err, "Failed to update election status")
		return
	}
	writeOK(w, http.StatusOK, envelope{"election": election})
}

type VisibilityRequest struct {
	ShowResults *bool `json:"show_results"`
}

func (h *ElectionHandler) UpdateResultsVisibility(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "electionID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req VisibilityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ShowResults == nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "show_results is required", Field: "show_results"})
		return
	}
	election, err := h.elections.ToggleResultVisibility(r.Context(), session.FromContext(r.Context()), id, *req.ShowResults)
	if err != nil {
		writeServiceError(w, r, err, "Failed to update result visibility")
		return
	}
	writeOK(w, http.StatusOK, envelope{"election": election})
}

func (h *ElectionHandler) ListCandidates(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "electionID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	candidates, err := h.candidates.ListCandidates(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, "Failed to list candidates")
		return
	}
	writeOK(w, http.StatusOK, envelope{"candidates": candidates})
}

func (h *ElectionHandler) AddCandidate(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "electionID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req services.CandidateInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.ElectionID = id

	candidate, err := h.candidates.AddCandidate(r.Context(), session.FromContext(r.Context()), req)
	if err != nil {
		writeServiceError(w, r, err, "Failed to add candidate")
		return
	}
	writeOK(w, http.StatusCreated, envelope{"candidate": candidate})
}

func (h *ElectionHandler) RemoveCandidate(w http.ResponseWriter, r *http.Request) {
	electionID, err := parseUUIDParam(r, "electionID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	candidateID, err := parseUUIDParam(r, "candidateID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.candidates.RemoveCandidate(r.Context(), session.FromContext(r.Context()), electionID, candidateID); err != nil {
		writeServiceError(w, r, err, "Failed to remove candidate")
		return
	}
	writeOK(w, http.StatusOK, nil)
}

type BallotRequest struct {
	Votes []types.BallotChoice `json:"votes"`
}

func (h *ElectionHandler) CastVote(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "electionID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req BallotRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	votes, err := h.ballots.CastVote(r.Context(), session.FromContext(r.Context()), id, req.Votes)
	if err != nil {
		writeServiceError(w, r, err, "Failed to cast vote")
		return
	}
	writeOK(w, http.StatusCreated, envelope{"votes": votes})
}

func (h *ElectionHandler) HasVoted(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "electionID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	voted, err := h.ballots.HasUserVoted(r.Context(), session.FromContext(r.Context()), id)
	if err != nil {
		writeServiceError(w, r, err, "Failed to check vote")
		return
	}
	writeOK(w, http.StatusOK, envelope{"has_voted": voted})
}

func (h *ElectionHandler) Tabulate(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "electionID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	report, err := h.results.Tabulate(r.Context(), session.FromContext(r.Context()), id)
	if err != nil {
		writeServiceError(w, r, err, "Failed to calculate results")
		return
	}
	writeOK(w, http.StatusOK, envelope{"report": report})
}

func (h *ElectionHandler) GetResults(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "electionID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	report, err := h.results.GetResults(r.Context(), session.FromContext(r.Context()), id)
	if err != nil {
		writeServiceError(w, r, err, "Failed to fetch results")
		return
	}
	writeOK(w, http.StatusOK, envelope{"report": report})
}

func (h *ElectionHandler) ListExports(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "electionID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	exports, err := h.results.ListExports(r.Context(), session.FromContext(r.Context()), id)
	if err != nil {
		writeServiceError(w, r, err, "Failed to list exports")
		return
	}
	writeOK(w, http.StatusOK, envelope{"exports": exports})
}

// GetExport streams an archived report as stored.
func (h *ElectionHandler) GetExport(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "electionID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rc, err := h.results.OpenExport(r.Context(), session.FromContext(r.Context()), id, chi.URLParam(r, "name"))
	if err != nil {
		writeServiceError(w, r, err, "Failed to fetch export")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		obs.Logger().Warn("stream results export", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
}

func (h *ElectionHandler) VerifyLedger(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "electionID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	report, err := h.ledger.VerifyChain(r.Context(), session.FromContext(r.Context()), id)
	if err != nil {
		writeServiceError(w, r, err, "Failed to verify ledger")
		return
	}
	writeOK(w, http.StatusOK, envelope{"report": report})
}
