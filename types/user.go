package types

import (
	"time"

	"github.com/google/uuid"
)

// Role values accepted for User.Role.
const (
	RoleVoter = "voter"
	RoleStaff = "staff"
	RoleAdmin = "admin"
)

// User represents an account in the system.
// It contains identity, role, and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID uuid.UUID `json:"id" db:"id"`

	// StudentID is the institutional identifier used to log in.
	StudentID string `json:"student_id" db:"student_id"`

	// Name is the user's display or full name.
	Name string `json:"name" db:"name"`

	// Email is the user's email address.
	Email string `json:"email" db:"email"`

	// Role indicates the user's authorization level within the system
	// ("voter", "staff" or "admin").
	Role string `json:"role" db:"role"`

	// DepartmentID optionally links the user to a department. Executive
	// elections count eligible voters per department through this field.
	DepartmentID *int `json:"department_id,omitempty" db:"department_id"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsStaff reports whether the role may manage elections and candidates.
func IsStaff(role string) bool {
	return role == RoleStaff || role == RoleAdmin
}

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	switch role {
	case RoleVoter, RoleStaff, RoleAdmin:
		return true
	}
	return false
}
