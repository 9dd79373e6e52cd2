package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/evotar/apiserver/internal/session"
	"github.com/evotar/apiserver/internal/store"
	"github.com/evotar/apiserver/internal/syslog"
	"github.com/evotar/apiserver/types"
	"github.com/google/uuid"
)

// CandidateRepository defines persistence operations for candidates.
type CandidateRepository interface {
	Get(ctx context.Context, id uuid.UUID) (types.Candidate, error)
	ListByElection(ctx context.Context, electionID uuid.UUID) ([]types.Candidate, error)
	Create(ctx context.Context, candidate types.Candidate) (types.Candidate, error)
	Delete(ctx context.Context, id uuid.UUID) error
	HasVotes(ctx context.Context, id uuid.UUID) (bool, error)
}

// PositionReader loads positions.
type PositionReader interface {
	GetPosition(ctx context.Context, id int) (types.Position, error)
}

// ElectionReader loads elections.
type ElectionReader interface {
	Get(ctx context.Context, id uuid.UUID) (types.Election, error)
}

// CandidateInput is the payload for adding a candidate. The person is
// identified by student id and gets a voter account if they have none.
type CandidateInput struct {
	Name         string    `json:"name"`
	StudentID    string    `json:"student_id"`
	ElectionID   uuid.UUID `json:"election_id"`
	PositionID   int       `json:"position_id"`
	DepartmentID *int      `json:"department_id"`
	Party        string    `json:"party"`
	Bio          string    `json:"bio"`
}

// CandidateService encapsulates candidate use-cases.
type CandidateService struct {
	tx        Transactor
	repo      CandidateRepository
	elections ElectionReader
	positions PositionReader
	users     *UserService
	events    EventLogger
}

func NewCandidateService(tx Transactor, repo CandidateRepository, elections ElectionReader, positions PositionReader, users *UserService, events EventLogger) *CandidateService {
	if tx == nil {
		tx = noopTx{}
	}
	if events == nil {
		events = noopLogger{}
	}
	return &CandidateService{
		tx:        tx,
		repo:      repo,
		elections: elections,
		positions: positions,
		users:     users,
		events:    events,
	}
}

func (s *CandidateService) ListCandidates(ctx context.Context, electionID uuid.UUID) ([]types.Candidate, error) {
	if _, err := s.elections.Get(ctx, electionID); err != nil {
		return nil, err
	}
	return s.repo.ListByElection(ctx, electionID)
}

// AddCandidate provisions the person's voter account when needed and links
// it to the election position. Both effects are logged separately.
func (s *CandidateService) AddCandidate(ctx context.Context, actor session.Session, in CandidateInput) (types.Candidate, error) {
	if err := requireStaff(actor); err != nil {
		return types.Candidate{}, err
	}

	in.Name = strings.TrimSpace(in.Name)
	in.StudentID = strings.TrimSpace(in.StudentID)
	switch {
	case in.Name == "":
		return types.Candidate{}, required("name")
	case in.StudentID == "":
		return types.Candidate{}, required("student_id")
	case in.PositionID <= 0:
		return types.Candidate{}, required("position_id")
	case in.ElectionID == uuid.Nil:
		return types.Candidate{}, required("election_id")
	}

	election, err := s.elections.Get(ctx, in.ElectionID)
	if err != nil {
		return types.Candidate{}, err
	}
	if election.Status == types.StatusCompleted {
		return types.Candidate{}, invalid("election_id", "candidates cannot be added to a completed election")
	}
	position, err := s.positions.GetPosition(ctx, in.PositionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Candidate{}, invalid("position_id", "position does not exist")
		}
		return types.Candidate{}, err
	}
	if position.ElectionTypeID != election.ElectionTypeID {
		return types.Candidate{}, invalid("position_id", "position does not belong to this election type")
	}

	var (
		user      types.User
		created   bool
		candidate types.Candidate
	)
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		user, created, err = s.users.ensureVoterAccount(ctx, in.StudentID, in.Name, in.DepartmentID)
		if err != nil {
			return err
		}
		candidate, err = s.repo.Create(ctx, types.Candidate{
			ElectionID:   in.ElectionID,
			PositionID:   in.PositionID,
			UserID:       user.ID,
			DepartmentID: in.DepartmentID,
			Party:        strings.TrimSpace(in.Party),
			Bio:          strings.TrimSpace(in.Bio),
		})
		if errors.Is(err, store.ErrConflict) {
			return invalid("student_id", "this person is already a candidate for the position")
		}
		return err
	})
	if err != nil {
		return types.Candidate{}, err
	}
	candidate.Name = user.Name
	candidate.StudentID = user.StudentID

	if created {
		s.users.logProvisioned(ctx, actor, user)
	}
	s.events.Log(ctx, syslog.Event{
		Action:      "Candidate Added",
		Description: fmt.Sprintf("%s was added as a candidate for %s in %q", user.Name, position.Name, election.Title),
		UserID:      actorID(actor),
		Metadata: map[string]any{
			"candidateId": candidate.ID.String(),
			"electionId":  election.ID.String(),
			"positionId":  position.ID,
			"userId":      user.ID.String(),
		},
	})
	return candidate, nil
}

// RemoveCandidate deletes a candidate that has not received votes.
func (s *CandidateService) RemoveCandidate(ctx context.Context, actor session.Session, electionID, candidateID uuid.UUID) error {
	if err := requireStaff(actor); err != nil {
		return err
	}

	var removed types.Candidate
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		candidate, err := s.repo.Get(ctx, candidateID)
		if err != nil {
			return err
		}
		if candidate.ElectionID != electionID {
			return store.ErrNotFound
		}
		hasVotes, err := s.repo.HasVotes(ctx, candidateID)
		if err != nil {
			return err
		}
		if hasVotes {
			return ErrCandidateHasVotes
		}
		removed = candidate
		return s.repo.Delete(ctx, candidateID)
	})
	if err != nil {
		return err
	}

	s.events.Log(ctx, syslog.Event{
		Action:      "Candidate Removed",
		Description: fmt.Sprintf("%s was removed as a candidate", removed.Name),
		UserID:      actorID(actor),
		Metadata:    map[string]any{"candidateId": removed.ID.String(), "electionId": electionID.String()},
	})
	return nil
}
