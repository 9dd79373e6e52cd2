package types

import (
	"time"

	"github.com/google/uuid"
)

// Vote is one ballot choice: a user's vote for a candidate in one position.
type Vote struct {
	ID           uuid.UUID `json:"id" db:"id"`
	UserID       uuid.UUID `json:"user_id" db:"user_id"`
	ElectionID   uuid.UUID `json:"election_id" db:"election_id"`
	PositionID   int       `json:"position_id" db:"position_id"`
	CandidateID  uuid.UUID `json:"candidate_id" db:"candidate_id"`
	DepartmentID *int      `json:"department_id,omitempty" db:"department_id"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// BallotChoice is a single selection submitted by a voter.
type BallotChoice struct {
	PositionID  int       `json:"position_id"`
	CandidateID uuid.UUID `json:"candidate_id"`
}
