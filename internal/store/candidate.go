package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/evotar/apiserver/types"
	"github.com/google/uuid"
)

const candidateColumns = `c.id, c.election_id, c.position_id, c.user_id, c.department_id, c.party, c.bio,
		c.created_at, u.name, u.student_id`

// CandidateRepository handles persistence for candidates.
type CandidateRepository struct {
	db *sql.DB
}

func NewCandidateRepository(db *sql.DB) *CandidateRepository {
	return &CandidateRepository{db: db}
}

func (r *CandidateRepository) Get(ctx context.Context, id uuid.UUID) (types.Candidate, error) {
	const query = `
		SELECT ` + candidateColumns + `
		FROM candidates c
		JOIN users u ON u.id = c.user_id
		WHERE c.id = $1`
	return scanCandidate(conn(ctx, r.db).QueryRowContext(ctx, query, id))
}

// ListByElection returns candidates ordered by registration time.
func (r *CandidateRepository) ListByElection(ctx context.Context, electionID uuid.UUID) ([]types.Candidate, error) {
	const query = `
		SELECT ` + candidateColumns + `
		FROM candidates c
		JOIN users u ON u.id = c.user_id
		WHERE c.election_id = $1
		ORDER BY c.position_id, c.created_at, c.id`
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, electionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	candidates := []types.Candidate{}
	for rows.Next() {
		candidate, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, candidate)
	}
	return candidates, rows.Err()
}

func (r *CandidateRepository) Create(ctx context.Context, candidate types.Candidate) (types.Candidate, error) {
	candidate.CreatedAt = time.Now().UTC()
	if candidate.ID == uuid.Nil {
		candidate.ID = uuid.New()
	}

	const query = `
		INSERT INTO candidates (id, election_id, position_id, user_id, department_id, party, bio, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := conn(ctx, r.db).ExecContext(
		ctx,
		query,
		candidate.ID,
		candidate.ElectionID,
		candidate.PositionID,
		candidate.UserID,
		nullInt(candidate.DepartmentID),
		candidate.Party,
		candidate.Bio,
		candidate.CreatedAt,
	); err != nil {
		return types.Candidate{}, mapError(err)
	}
	return candidate, nil
}

func (r *CandidateRepository) Delete(ctx context.Context, id uuid.UUID) error {
	const query = `DELETE FROM candidates WHERE id = $1`
	result, err := conn(ctx, r.db).ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// HasVotes reports whether any vote references the candidate.
func (r *CandidateRepository) HasVotes(ctx context.Context, id uuid.UUID) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM votes WHERE candidate_id = $1)`
	var exists bool
	if err := conn(ctx, r.db).QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func scanCandidate(row rowScanner) (types.Candidate, error) {
	var candidate types.Candidate
	var department sql.NullInt64
	err := row.Scan(
		&candidate.ID,
		&candidate.ElectionID,
		&candidate.PositionID,
		&candidate.UserID,
		&department,
		&candidate.Party,
		&candidate.Bio,
		&candidate.CreatedAt,
		&candidate.Name,
		&candidate.StudentID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Candidate{}, ErrNotFound
		}
		return types.Candidate{}, err
	}
	candidate.DepartmentID = intPtr(department)
	return candidate, nil
}
