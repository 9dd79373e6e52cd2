package types

import (
	"time"

	"github.com/google/uuid"
)

// Election status values.
const (
	StatusDraft     = "draft"
	StatusActive    = "active"
	StatusCompleted = "completed"
)

// Election represents a single contest run for an ElectionType.
type Election struct {
	// ID is the unique identifier of the election.
	ID uuid.UUID `json:"id" db:"id"`

	// Title is the human-readable name of the election.
	Title string `json:"title" db:"title"`

	// Description is free-form text shown to voters.
	Description string `json:"description" db:"description"`

	// ElectionTypeID selects the positions and the tabulation strategy.
	ElectionTypeID int `json:"election_type_id" db:"election_type_id"`

	// DepartmentID optionally scopes the election to one department.
	DepartmentID *int `json:"department_id,omitempty" db:"department_id"`

	// StartDate and EndDate bound the voting window. EndDate is always
	// strictly after StartDate.
	StartDate time.Time `json:"start_date" db:"start_date"`
	EndDate   time.Time `json:"end_date" db:"end_date"`

	// Status is one of "draft", "active" or "completed".
	Status string `json:"status" db:"status"`

	// ShowResults publishes results before the election is completed.
	ShowResults bool `json:"show_results" db:"show_results"`

	// CreatedBy references the staff member who created the election. It is
	// nil only for elections imported without an owner.
	CreatedBy *uuid.UUID `json:"created_by,omitempty" db:"created_by"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ValidStatus reports whether status is a known election status.
func ValidStatus(status string) bool {
	switch status {
	case StatusDraft, StatusActive, StatusCompleted:
		return true
	}
	return false
}

// StatusRank orders statuses along the lifecycle draft -> active -> completed.
func StatusRank(status string) int {
	switch status {
	case StatusDraft:
		return 0
	case StatusActive:
		return 1
	case StatusCompleted:
		return 2
	}
	return -1
}
