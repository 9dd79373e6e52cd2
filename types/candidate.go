package types

import (
	"time"

	"github.com/google/uuid"
)

// Candidate links a User to an Election and Position.
type Candidate struct {
	ID           uuid.UUID `json:"id" db:"id"`
	ElectionID   uuid.UUID `json:"election_id" db:"election_id"`
	PositionID   int       `json:"position_id" db:"position_id"`
	UserID       uuid.UUID `json:"user_id" db:"user_id"`
	DepartmentID *int      `json:"department_id,omitempty" db:"department_id"`
	Party        string    `json:"party,omitempty" db:"party"`
	Bio          string    `json:"bio,omitempty" db:"bio"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`

	// Name and StudentID are joined from the linked user for listings.
	Name      string `json:"name,omitempty"`
	StudentID string `json:"student_id,omitempty"`
}
