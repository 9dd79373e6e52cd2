package types

import (
	"time"

	"github.com/google/uuid"
)

// ElectionResult is a derived row of vote counts for one candidate, either
// overall (DepartmentID nil) or within one department for executive
// elections. Rows are fully recomputed by each tabulation run.
type ElectionResult struct {
	ElectionID  uuid.UUID `json:"election_id" db:"election_id"`
	PositionID  int       `json:"position_id" db:"position_id"`
	CandidateID uuid.UUID `json:"candidate_id" db:"candidate_id"`

	// DepartmentID is set on per-department rows of executive elections.
	DepartmentID *int `json:"department_id,omitempty" db:"department_id"`

	// TotalVotes is the number of votes counted for this row.
	TotalVotes int `json:"total_votes" db:"total_votes"`

	// EligibleVoters and Percentage are only meaningful on per-department rows.
	EligibleVoters int     `json:"eligible_voters" db:"eligible_voters"`
	Percentage     float64 `json:"percentage" db:"percentage"`

	// DepartmentsWon is set on the overall row of executive elections.
	DepartmentsWon int `json:"departments_won" db:"departments_won"`

	// IsWinner marks the position winner on overall rows and the department
	// winner on per-department rows.
	IsWinner bool `json:"is_winner" db:"is_winner"`

	CalculatedAt time.Time `json:"calculated_at" db:"calculated_at"`
}

// VoteCount is the number of votes a candidate received, grouped by the
// voter's department.
type VoteCount struct {
	PositionID   int       `json:"position_id"`
	CandidateID  uuid.UUID `json:"candidate_id"`
	DepartmentID *int      `json:"department_id,omitempty"`
	Votes        int       `json:"votes"`
}
