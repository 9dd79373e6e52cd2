package store

import (
	"database/sql"

	"github.com/google/uuid"
)

func nullInt(value *int) any {
	if value == nil {
		return nil
	}
	return int64(*value)
}

func intPtr(value sql.NullInt64) *int {
	if !value.Valid {
		return nil
	}
	v := int(value.Int64)
	return &v
}

func nullUUID(value *uuid.UUID) any {
	if value == nil {
		return nil
	}
	return value.String()
}

func uuidPtr(value uuid.NullUUID) *uuid.UUID {
	if !value.Valid {
		return nil
	}
	v := value.UUID
	return &v
}
