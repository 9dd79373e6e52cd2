package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/evotar/apiserver/types"
	"github.com/google/uuid"
)

// SystemLogRepository handles persistence for system logs.
type SystemLogRepository struct {
	db *sql.DB
}

func NewSystemLogRepository(db *sql.DB) *SystemLogRepository {
	return &SystemLogRepository{db: db}
}

func (r *SystemLogRepository) Insert(ctx context.Context, entry types.SystemLog) (types.SystemLog, error) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	metadata := entry.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return types.SystemLog{}, fmt.Errorf("%w: metadata: %v", ErrInvalid, err)
	}

	// Log rows never join a caller's transaction: a failed insert must not
	// abort the operation being logged.
	const query = `
		INSERT INTO system_logs (action, description, user_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		entry.Action,
		entry.Description,
		nullUUID(entry.UserID),
		string(metadataJSON),
		entry.CreatedAt,
	).Scan(&entry.ID); err != nil {
		return types.SystemLog{}, mapError(err)
	}
	return entry, nil
}

// List returns logs newest first, joined with the acting user's name.
func (r *SystemLogRepository) List(ctx context.Context, offset, limit int) ([]types.SystemLog, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	const countQuery = `SELECT COUNT(1) FROM system_logs`
	var total int
	if err := conn(ctx, r.db).QueryRowContext(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, err
	}

	const listQuery = `
		SELECT l.id, l.action, l.description, l.user_id, COALESCE(u.name, ''), l.metadata, l.created_at
		FROM system_logs l
		LEFT JOIN users u ON u.id = l.user_id
		ORDER BY l.created_at DESC, l.id DESC
		OFFSET $1 LIMIT $2`
	rows, err := conn(ctx, r.db).QueryContext(ctx, listQuery, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	logs := make([]types.SystemLog, 0, limit)
	for rows.Next() {
		var entry types.SystemLog
		var userID uuid.NullUUID
		var metadataJSON []byte
		if err := rows.Scan(
			&entry.ID,
			&entry.Action,
			&entry.Description,
			&userID,
			&entry.UserName,
			&metadataJSON,
			&entry.CreatedAt,
		); err != nil {
			return nil, 0, err
		}
		entry.UserID = uuidPtr(userID)
		_ = json.Unmarshal(metadataJSON, &entry.Metadata)
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}

// DetachUser nulls the user reference on that user's logs, keeping history.
func (r *SystemLogRepository) DetachUser(ctx context.Context, userID uuid.UUID) error {
	const query = `UPDATE system_logs SET user_id = NULL WHERE user_id = $1`
	_, err := conn(ctx, r.db).ExecContext(ctx, query, userID)
	return err
}
