package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/evotar/apiserver/internal/session"
	"github.com/evotar/apiserver/internal/store"
	"github.com/evotar/apiserver/internal/syslog"
	"github.com/evotar/apiserver/types"
	"github.com/google/uuid"
)

// ElectionRepository defines persistence operations for elections.
type ElectionRepository interface {
	Get(ctx context.Context, id uuid.UUID) (types.Election, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (types.Election, error)
	List(ctx context.Context, status string, offset, limit int) ([]types.Election, int, error)
	Create(ctx context.Context, election types.Election) (types.Election, error)
	Update(ctx context.Context, election types.Election) (types.Election, error)
}

// ElectionTypeReader loads election types.
type ElectionTypeReader interface {
	GetElectionType(ctx context.Context, id int) (types.ElectionType, error)
}

// TabulationTrigger starts a tabulation run for a completed election.
type TabulationTrigger interface {
	Enqueue(ctx context.Context, electionID uuid.UUID) error
}

// ElectionInput is the payload for creating an election.
type ElectionInput struct {
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	ElectionTypeID int       `json:"election_type_id"`
	DepartmentID   *int      `json:"department_id"`
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
	ShowResults    bool      `json:"show_results"`

	// Status is accepted for compatibility and ignored: new elections are
	// always drafts.
	Status string `json:"status"`
}

// ElectionPatch lists editable election fields. Nil fields are left alone.
type ElectionPatch struct {
	Title          *string    `json:"title"`
	Description    *string    `json:"description"`
	ElectionTypeID *int       `json:"election_type_id"`
	DepartmentID   *int       `json:"department_id"`
	StartDate      *time.Time `json:"start_date"`
	EndDate        *time.Time `json:"end_date"`
	Status         *string    `json:"status"`
	ShowResults    *bool      `json:"show_results"`
}

// ElectionService encapsulates the election lifecycle.
type ElectionService struct {
	tx        Transactor
	repo      ElectionRepository
	lookups   ElectionTypeReader
	tabulator TabulationTrigger
	events    EventLogger
}

func NewElectionService(tx Transactor, repo ElectionRepository, lookups ElectionTypeReader, events EventLogger) *ElectionService {
	if tx == nil {
		tx = noopTx{}
	}
	if events == nil {
		events = noopLogger{}
	}
	return &ElectionService{tx: tx, repo: repo, lookups: lookups, events: events}
}

// SetTabulator wires the tabulation trigger used when an election completes.
func (s *ElectionService) SetTabulator(t TabulationTrigger) {
	s.tabulator = t
}

func (s *ElectionService) GetElection(ctx context.Context, id uuid.UUID) (types.Election, error) {
	return s.repo.Get(ctx, id)
}

func (s *ElectionService) ListElections(ctx context.Context, status string, offset, limit int) ([]types.Election, int, error) {
	if status != "" && !types.ValidStatus(status) {
		return nil, 0, invalid("status", "status must be one of draft, active or completed")
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return s.repo.List(ctx, status, offset, limit)
}

func (s *ElectionService) CreateElection(ctx context.Context, actor session.Session, in ElectionInput) (types.Election, error) {
	if err := requireStaff(actor); err != nil {
		return types.Election{}, err
	}

	in.Title = strings.TrimSpace(in.Title)
	switch {
	case in.Title == "":
		return types.Election{}, required("title")
	case in.ElectionTypeID <= 0:
		return types.Election{}, required("election_type_id")
	case in.StartDate.IsZero():
		return types.Election{}, required("start_date")
	case in.EndDate.IsZero():
		return types.Election{}, required("end_date")
	}
	if err := validateWindow(in.StartDate, in.EndDate); err != nil {
		return types.Election{}, err
	}
	if _, err := s.lookups.GetElectionType(ctx, in.ElectionTypeID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Election{}, invalid("election_type_id", "election type does not exist")
		}
		return types.Election{}, err
	}

	election, err := s.repo.Create(ctx, types.Election{
		Title:          in.Title,
		Description:    strings.TrimSpace(in.Description),
		ElectionTypeID: in.ElectionTypeID,
		DepartmentID:   in.DepartmentID,
		StartDate:      in.StartDate.UTC(),
		EndDate:        in.EndDate.UTC(),
		Status:         types.StatusDraft,
		ShowResults:    in.ShowResults,
		CreatedBy:      actorID(actor),
	})
	if err != nil {
		return types.Election{}, err
	}

	s.events.Log(ctx, syslog.Event{
		Action:      "Election Created",
		Description: fmt.Sprintf("Election %q was created", election.Title),
		UserID:      actorID(actor),
		Metadata:    map[string]any{"electionId": election.ID.String()},
	})
	return election, nil
}

func (s *ElectionService) UpdateElection(ctx context.Context, actor session.Session, id uuid.UUID, patch ElectionPatch) (types.Election, error) {
	if err := requireStaff(actor); err != nil {
		return types.Election{}, err
	}

	var before, after types.Election
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		election, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		before = election
		if err := s.applyElectionPatch(ctx, &election, patch); err != nil {
			return err
		}
		after, err = s.repo.Update(ctx, election)
		return err
	})
	if err != nil {
		return types.Election{}, err
	}

	s.events.Log(ctx, syslog.Event{
		Action:      "Election Updated",
		Description: fmt.Sprintf("Election %q was updated", after.Title),
		UserID:      actorID(actor),
		Metadata:    map[string]any{"electionId": after.ID.String(), "status": after.Status},
	})
	s.afterStatusChange(ctx, before, after)
	return after, nil
}

func (s *ElectionService) applyElectionPatch(ctx context.Context, election *types.Election, patch ElectionPatch) error {
	if patch.Title != nil {
		v := strings.TrimSpace(*patch.Title)
		if v == "" {
			return required("title")
		}
		election.Title = v
	}
	if patch.Description != nil {
		election.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.ElectionTypeID != nil && *patch.ElectionTypeID != election.ElectionTypeID {
		if _, err := s.lookups.GetElectionType(ctx, *patch.ElectionTypeID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return invalid("election_type_id", "election type does not exist")
			}
			return err
		}
		election.ElectionTypeID = *patch.ElectionTypeID
	}
	if patch.DepartmentID != nil {
		if *patch.DepartmentID <= 0 {
			election.DepartmentID = nil
		} else {
			dept := *patch.DepartmentID
			election.DepartmentID = &dept
		}
	}
	if patch.StartDate != nil {
		election.StartDate = patch.StartDate.UTC()
	}
	if patch.EndDate != nil {
		election.EndDate = patch.EndDate.UTC()
	}
	if err := validateWindow(election.StartDate, election.EndDate); err != nil {
		return err
	}
	if patch.ShowResults != nil {
		election.ShowResults = *patch.ShowResults
	}
	if patch.Status != nil {
		if err := validateTransition(election.Status, *patch.Status); err != nil {
			return err
		}
		election.Status = *patch.Status
	}
	return nil
}

// UpdateElectionStatus moves an election along draft -> active -> completed.
func (s *ElectionService) UpdateElectionStatus(ctx context.Context, actor session.Session, id uuid.UUID, status string) (types.Election, error) {
	if err := requireStaff(actor); err != nil {
		return types.Election{}, err
	}
	if strings.TrimSpace(status) == "" {
		return types.Election{}, required("status")
	}

	var before, after types.Election
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		election, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		before = election
		if err := validateTransition(election.Status, status); err != nil {
			return err
		}
		election.Status = status
		after, err = s.repo.Update(ctx, election)
		return err
	})
	if err != nil {
		return types.Election{}, err
	}

	s.events.Log(ctx, syslog.Event{
		Action:      "Election Status Updated",
		Description: fmt.Sprintf("Election %q moved from %s to %s", after.Title, before.Status, after.Status),
		UserID:      actorID(actor),
		Metadata:    map[string]any{"electionId": after.ID.String(), "from": before.Status, "to": after.Status},
	})
	s.afterStatusChange(ctx, before, after)
	return after, nil
}

// ToggleResultVisibility publishes or hides results independent of status.
func (s *ElectionService) ToggleResultVisibility(ctx context.Context, actor session.Session, id uuid.UUID, show bool) (types.Election, error) {
	if err := requireStaff(actor); err != nil {
		return types.Election{}, err
	}

	var updated types.Election
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		election, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		election.ShowResults = show
		updated, err = s.repo.Update(ctx, election)
		return err
	})
	if err != nil {
		return types.Election{}, err
	}

	s.events.Log(ctx, syslog.Event{
		Action:      "Result Visibility Changed",
		Description: fmt.Sprintf("Results of %q are now %s", updated.Title, visibilityLabel(show)),
		UserID:      actorID(actor),
		Metadata:    map[string]any{"electionId": updated.ID.String(), "showResults": show},
	})
	return updated, nil
}

func (s *ElectionService) afterStatusChange(ctx context.Context, before, after types.Election) {
	if before.Status == types.StatusCompleted || after.Status != types.StatusCompleted || s.tabulator == nil {
		return
	}
	if err := s.tabulator.Enqueue(ctx, after.ID); err != nil {
		s.events.Log(ctx, syslog.Event{
			Action:      "Tabulation Failed",
			Description: fmt.Sprintf("Could not start tabulation for %q: %v", after.Title, err),
			Metadata:    map[string]any{"electionId": after.ID.String()},
		})
	}
}

// ResultsVisible reports whether viewer may see the election's results.
func ResultsVisible(election types.Election, viewer session.Session) bool {
	return election.ShowResults || election.Status == types.StatusCompleted || viewer.IsStaff()
}

func validateWindow(start, end time.Time) error {
	if !end.After(start) {
		return invalid("end_date", "end date must be after start date")
	}
	return nil
}

// validateTransition allows staying put or moving forward only.
func validateTransition(from, to string) error {
	if !types.ValidStatus(to) {
		return invalid("status", "status must be one of draft, active or completed")
	}
	if types.StatusRank(to) < types.StatusRank(from) {
		return invalid("status", "cannot change status from %s back to %s", from, to)
	}
	return nil
}

func visibilityLabel(show bool) string {
	if show {
		return "visible"
	}
	return "hidden"
}
