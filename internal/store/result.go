package store

import (
	"context"
	"database/sql"

	"github.com/evotar/apiserver/types"
	"github.com/google/uuid"
)

// ResultRepository handles the derived election_results rows.
type ResultRepository struct {
	db *sql.DB
}

func NewResultRepository(db *sql.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

// Replace swaps the election's result rows for the given set. Callers run it
// inside a transaction so readers never see a partial run.
func (r *ResultRepository) Replace(ctx context.Context, electionID uuid.UUID, results []types.ElectionResult) error {
	db := conn(ctx, r.db)

	const deleteQuery = `DELETE FROM election_results WHERE election_id = $1`
	if _, err := db.ExecContext(ctx, deleteQuery, electionID); err != nil {
		return err
	}

	const insertQuery = `
		INSERT INTO election_results (
			election_id, position_id, candidate_id, department_key, department_id,
			total_votes, eligible_voters, percentage, departments_won, is_winner, calculated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	for _, result := range results {
		departmentKey := 0
		if result.DepartmentID != nil {
			departmentKey = *result.DepartmentID
		}
		if _, err := db.ExecContext(
			ctx,
			insertQuery,
			electionID,
			result.PositionID,
			result.CandidateID,
			departmentKey,
			nullInt(result.DepartmentID),
			result.TotalVotes,
			result.EligibleVoters,
			result.Percentage,
			result.DepartmentsWon,
			result.IsWinner,
			result.CalculatedAt,
		); err != nil {
			return err
		}
	}
	return nil
}

func (r *ResultRepository) ListByElection(ctx context.Context, electionID uuid.UUID) ([]types.ElectionResult, error) {
	const query = `
		SELECT election_id, position_id, candidate_id, department_id, total_votes, eligible_voters,
			percentage, departments_won, is_winner, calculated_at
		FROM election_results
		WHERE election_id = $1
		ORDER BY position_id, department_key, total_votes DESC, candidate_id`
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, electionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []types.ElectionResult{}
	for rows.Next() {
		var result types.ElectionResult
		var department sql.NullInt64
		if err := rows.Scan(
			&result.ElectionID,
			&result.PositionID,
			&result.CandidateID,
			&department,
			&result.TotalVotes,
			&result.EligibleVoters,
			&result.Percentage,
			&result.DepartmentsWon,
			&result.IsWinner,
			&result.CalculatedAt,
		); err != nil {
			return nil, err
		}
		result.DepartmentID = intPtr(department)
		results = append(results, result)
	}
	return results, rows.Err()
}
