package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/evotar/apiserver/types"
	"github.com/google/uuid"
)

const electionColumns = `id, title, description, election_type_id, department_id, start_date, end_date,
		status, show_results, created_by, created_at, updated_at`

// ElectionRepository handles persistence for elections.
type ElectionRepository struct {
	db *sql.DB
}

func NewElectionRepository(db *sql.DB) *ElectionRepository {
	return &ElectionRepository{db: db}
}

func (r *ElectionRepository) Get(ctx context.Context, id uuid.UUID) (types.Election, error) {
	const query = `SELECT ` + electionColumns + ` FROM elections WHERE id = $1`
	return scanElection(conn(ctx, r.db).QueryRowContext(ctx, query, id))
}

// GetForUpdate locks the election row for the rest of the transaction.
func (r *ElectionRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (types.Election, error) {
	const query = `SELECT ` + electionColumns + ` FROM elections WHERE id = $1 FOR UPDATE`
	return scanElection(conn(ctx, r.db).QueryRowContext(ctx, query, id))
}

func (r *ElectionRepository) List(ctx context.Context, status string, offset, limit int) ([]types.Election, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	const countQuery = `SELECT COUNT(1) FROM elections WHERE ($1 = '' OR status = $1)`
	var total int
	if err := conn(ctx, r.db).QueryRowContext(ctx, countQuery, status).Scan(&total); err != nil {
		return nil, 0, err
	}

	const listQuery = `
		SELECT ` + electionColumns + `
		FROM elections
		WHERE ($1 = '' OR status = $1)
		ORDER BY start_date DESC, id
		OFFSET $2 LIMIT $3`
	rows, err := conn(ctx, r.db).QueryContext(ctx, listQuery, status, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	elections := make([]types.Election, 0, limit)
	for rows.Next() {
		election, err := scanElection(rows)
		if err != nil {
			return nil, 0, err
		}
		elections = append(elections, election)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return elections, total, nil
}

func (r *ElectionRepository) Create(ctx context.Context, election types.Election) (types.Election, error) {
	now := time.Now().UTC()
	election.CreatedAt = now
	election.UpdatedAt = now
	if election.ID == uuid.Nil {
		election.ID = uuid.New()
	}

	const query = `
		INSERT INTO elections (id, title, description, election_type_id, department_id, start_date, end_date,
			status, show_results, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	if _, err := conn(ctx, r.db).ExecContext(
		ctx,
		query,
		election.ID,
		election.Title,
		election.Description,
		election.ElectionTypeID,
		nullInt(election.DepartmentID),
		election.StartDate,
		election.EndDate,
		election.Status,
		election.ShowResults,
		nullUUID(election.CreatedBy),
		election.CreatedAt,
		election.UpdatedAt,
	); err != nil {
		return types.Election{}, mapError(err)
	}
	return election, nil
}

func (r *ElectionRepository) Update(ctx context.Context, election types.Election) (types.Election, error) {
	election.UpdatedAt = time.Now().UTC()

	const query = `
		UPDATE elections
		SET title = $1,
			description = $2,
			election_type_id = $3,
			department_id = $4,
			start_date = $5,
			end_date = $6,
			status = $7,
			show_results = $8,
			updated_at = $9
		WHERE id = $10`
	result, err := conn(ctx, r.db).ExecContext(
		ctx,
		query,
		election.Title,
		election.Description,
		election.ElectionTypeID,
		nullInt(election.DepartmentID),
		election.StartDate,
		election.EndDate,
		election.Status,
		election.ShowResults,
		election.UpdatedAt,
		election.ID,
	)
	if err != nil {
		return types.Election{}, mapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Election{}, err
	}
	if affected == 0 {
		return types.Election{}, ErrNotFound
	}
	return election, nil
}

func scanElection(row rowScanner) (types.Election, error) {
	var election types.Election
	var department sql.NullInt64
	var createdBy uuid.NullUUID
	err := row.Scan(
		&election.ID,
		&election.Title,
		&election.Description,
		&election.ElectionTypeID,
		&department,
		&election.StartDate,
		&election.EndDate,
		&election.Status,
		&election.ShowResults,
		&createdBy,
		&election.CreatedAt,
		&election.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Election{}, ErrNotFound
		}
		return types.Election{}, err
	}
	election.DepartmentID = intPtr(department)
	election.CreatedBy = uuidPtr(createdBy)
	return election, nil
}
