package types

import (
	"time"

	"github.com/google/uuid"
)

// SystemLog is an append-only record of a notable action.
type SystemLog struct {
	ID          int64          `json:"id" db:"id"`
	Action      string         `json:"action" db:"action"`
	Description string         `json:"description" db:"description"`
	UserID      *uuid.UUID     `json:"user_id,omitempty" db:"user_id"`
	UserName    string         `json:"user_name,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty" db:"metadata"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
}
