package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/evotar/apiserver/internal/obs"
	"github.com/evotar/apiserver/internal/session"
	"github.com/evotar/apiserver/internal/store"
	"github.com/evotar/apiserver/internal/syslog"
	"github.com/evotar/apiserver/types"
	"github.com/google/uuid"
)

// VoteRepository defines persistence operations for votes.
type VoteRepository interface {
	Create(ctx context.Context, vote types.Vote) (types.Vote, error)
	HasUserVoted(ctx context.Context, userID, electionID uuid.UUID) (bool, error)
	LockBallot(ctx context.Context, userID, electionID uuid.UUID) error
}

// VoterReader loads the voter casting a ballot.
type VoterReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (types.User, error)
}

// CandidateLister lists an election's candidates.
type CandidateLister interface {
	ListByElection(ctx context.Context, electionID uuid.UUID) ([]types.Candidate, error)
}

// BallotLedger chains stored votes onto the ballot ledger.
type BallotLedger interface {
	AppendVotes(ctx context.Context, userID uuid.UUID, votes []types.Vote) error
}

// VoteService records ballots.
type VoteService struct {
	tx         Transactor
	votes      VoteRepository
	elections  ElectionRepository
	candidates CandidateLister
	voters     VoterReader
	ledger     BallotLedger
	events     EventLogger
	now        func() time.Time
}

// NewVoteService builds the service. ledger may be nil.
func NewVoteService(tx Transactor, votes VoteRepository, elections ElectionRepository, candidates CandidateLister, voters VoterReader, ledger BallotLedger, events EventLogger) *VoteService {
	if tx == nil {
		tx = noopTx{}
	}
	if events == nil {
		events = noopLogger{}
	}
	return &VoteService{
		tx:         tx,
		votes:      votes,
		elections:  elections,
		candidates: candidates,
		voters:     voters,
		ledger:     ledger,
		events:     events,
		now:        time.Now,
	}
}

// CastVote stores one ballot: at most one choice per position, all in one
// transaction. A voter gets a single ballot per election.
func (s *VoteService) CastVote(ctx context.Context, sess session.Session, electionID uuid.UUID, choices []types.BallotChoice) ([]types.Vote, error) {
	if err := requireLogin(sess); err != nil {
		return nil, err
	}
	if len(choices) == 0 {
		return nil, required("votes")
	}
	seen := make(map[int]struct{}, len(choices))
	for _, c := range choices {
		if c.PositionID <= 0 {
			return nil, required("position_id")
		}
		if c.CandidateID == uuid.Nil {
			return nil, required("candidate_id")
		}
		if _, dup := seen[c.PositionID]; dup {
			return nil, invalid("position_id", "only one vote per position is allowed")
		}
		seen[c.PositionID] = struct{}{}
	}
	sorted := append([]types.BallotChoice(nil), choices...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PositionID < sorted[j].PositionID })

	var (
		stored   []types.Vote
		election types.Election
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		election, err = s.elections.Get(ctx, electionID)
		if err != nil {
			return err
		}
		now := s.now()
		if election.Status != types.StatusActive || now.Before(election.StartDate) || now.After(election.EndDate) {
			return ErrElectionClosed
		}

		voter, err := s.voters.GetByID(ctx, sess.UserID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrUnauthorized
			}
			return err
		}
		if election.DepartmentID != nil && (voter.DepartmentID == nil || *voter.DepartmentID != *election.DepartmentID) {
			return ErrNotEligible
		}

		if err := s.votes.LockBallot(ctx, voter.ID, electionID); err != nil {
			return err
		}
		voted, err := s.votes.HasUserVoted(ctx, voter.ID, electionID)
		if err != nil {
			return err
		}
		if voted {
			return ErrAlreadyVoted
		}

		candidates, err := s.candidates.ListByElection(ctx, electionID)
		if err != nil {
			return err
		}
		byID := make(map[uuid.UUID]types.Candidate, len(candidates))
		for _, c := range candidates {
			byID[c.ID] = c
		}

		stored = stored[:0]
		for _, choice := range sorted {
			candidate, ok := byID[choice.CandidateID]
			if !ok || candidate.PositionID != choice.PositionID {
				return invalid("candidate_id", "candidate is not running for this position")
			}
			vote, err := s.votes.Create(ctx, types.Vote{
				UserID:       voter.ID,
				ElectionID:   electionID,
				PositionID:   choice.PositionID,
				CandidateID:  choice.CandidateID,
				DepartmentID: voter.DepartmentID,
			})
			if errors.Is(err, store.ErrConflict) {
				return ErrAlreadyVoted
			}
			if err != nil {
				return err
			}
			stored = append(stored, vote)
		}

		if s.ledger != nil {
			return s.ledger.AppendVotes(ctx, voter.ID, stored)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	obs.VotesCast.Add(float64(len(stored)))
	s.events.Log(ctx, syslog.Event{
		Action:      "Vote Cast",
		Description: fmt.Sprintf("User %s voted in %q", sess.Name, election.Title),
		UserID:      actorID(sess),
		Metadata:    map[string]any{"electionId": electionID.String(), "positions": len(stored)},
	})
	return stored, nil
}

func (s *VoteService) HasUserVoted(ctx context.Context, sess session.Session, electionID uuid.UUID) (bool, error) {
	if err := requireLogin(sess); err != nil {
		return false, err
	}
	return s.votes.HasUserVoted(ctx, sess.UserID, electionID)
}
