package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/evotar/apiserver/types"
	"github.com/google/uuid"
)

// VoteRepository handles persistence for votes.
type VoteRepository struct {
	db *sql.DB
}

func NewVoteRepository(db *sql.DB) *VoteRepository {
	return &VoteRepository{db: db}
}

// Create inserts a vote. A second vote for the same election and position by
// the same user returns ErrConflict.
func (r *VoteRepository) Create(ctx context.Context, vote types.Vote) (types.Vote, error) {
	vote.CreatedAt = time.Now().UTC()
	if vote.ID == uuid.Nil {
		vote.ID = uuid.New()
	}

	const query = `
		INSERT INTO votes (id, user_id, election_id, position_id, candidate_id, department_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := conn(ctx, r.db).ExecContext(
		ctx,
		query,
		vote.ID,
		vote.UserID,
		vote.ElectionID,
		vote.PositionID,
		vote.CandidateID,
		nullInt(vote.DepartmentID),
		vote.CreatedAt,
	); err != nil {
		return types.Vote{}, mapError(err)
	}
	return vote, nil
}

func (r *VoteRepository) Get(ctx context.Context, id uuid.UUID) (types.Vote, error) {
	const query = `
		SELECT id, user_id, election_id, position_id, candidate_id, department_id, created_at
		FROM votes
		WHERE id = $1`
	vote, err := scanVote(conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Vote{}, ErrNotFound
		}
		return types.Vote{}, err
	}
	return vote, nil
}

// ListByElection returns the election's votes in insertion order.
func (r *VoteRepository) ListByElection(ctx context.Context, electionID uuid.UUID) ([]types.Vote, error) {
	const query = `
		SELECT id, user_id, election_id, position_id, candidate_id, department_id, created_at
		FROM votes
		WHERE election_id = $1
		ORDER BY created_at, id`
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, electionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	votes := []types.Vote{}
	for rows.Next() {
		vote, err := scanVote(rows)
		if err != nil {
			return nil, err
		}
		votes = append(votes, vote)
	}
	return votes, rows.Err()
}

// LockBallot takes a transaction-scoped advisory lock on the voter's ballot
// for the election. Concurrent ballots by the same voter serialize on it
// until the surrounding transaction ends.
func (r *VoteRepository) LockBallot(ctx context.Context, userID, electionID uuid.UUID) error {
	const query = `SELECT pg_advisory_xact_lock(hashtext($1), hashtext($2))`
	if _, err := conn(ctx, r.db).ExecContext(ctx, query, userID.String(), electionID.String()); err != nil {
		return err
	}
	return nil
}

func (r *VoteRepository) HasUserVoted(ctx context.Context, userID, electionID uuid.UUID) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM votes WHERE user_id = $1 AND election_id = $2)`
	var exists bool
	if err := conn(ctx, r.db).QueryRowContext(ctx, query, userID, electionID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// CountByCandidate groups an election's votes by position, candidate and
// voter department in a single query.
func (r *VoteRepository) CountByCandidate(ctx context.Context, electionID uuid.UUID) ([]types.VoteCount, error) {
	const query = `
		SELECT position_id, candidate_id, department_id, COUNT(1)
		FROM votes
		WHERE election_id = $1
		GROUP BY position_id, candidate_id, department_id`
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, electionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := []types.VoteCount{}
	for rows.Next() {
		var count types.VoteCount
		var department sql.NullInt64
		if err := rows.Scan(&count.PositionID, &count.CandidateID, &department, &count.Votes); err != nil {
			return nil, err
		}
		count.DepartmentID = intPtr(department)
		counts = append(counts, count)
	}
	return counts, rows.Err()
}

func scanVote(row rowScanner) (types.Vote, error) {
	var vote types.Vote
	var department sql.NullInt64
	err := row.Scan(
		&vote.ID,
		&vote.UserID,
		&vote.ElectionID,
		&vote.PositionID,
		&vote.CandidateID,
		&department,
		&vote.CreatedAt,
	)
	if err != nil {
		return types.Vote{}, err
	}
	vote.DepartmentID = intPtr(department)
	return vote, nil
}
