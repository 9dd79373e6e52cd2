package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/evotar/apiserver/types"
	"github.com/google/uuid"
)

const userColumns = `id, student_id, name, email, role, department_id, password_hash, created_at, updated_at`

// UserReferences reports which records still point at a user.
type UserReferences struct {
	CreatedElections bool
	CastVotes        bool
	Candidacies      bool
}

// Any reports whether at least one reference exists.
func (r UserReferences) Any() bool {
	return r.CreatedElections || r.CastVotes || r.Candidacies
}

// UserRepository handles persistence for users.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (types.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(conn(ctx, r.db).QueryRowContext(ctx, query, id))
}

func (r *UserRepository) GetByStudentID(ctx context.Context, studentID string) (types.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE student_id = $1`
	return scanUser(conn(ctx, r.db).QueryRowContext(ctx, query, studentID))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`
	return scanUser(conn(ctx, r.db).QueryRowContext(ctx, query, email))
}

func (r *UserRepository) List(ctx context.Context, role string, offset, limit int) ([]types.User, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	const countQuery = `SELECT COUNT(1) FROM users WHERE ($1 = '' OR role = $1)`
	var total int
	if err := conn(ctx, r.db).QueryRowContext(ctx, countQuery, role).Scan(&total); err != nil {
		return nil, 0, err
	}

	const listQuery = `
		SELECT ` + userColumns + `
		FROM users
		WHERE ($1 = '' OR role = $1)
		ORDER BY name, id
		OFFSET $2 LIMIT $3`
	rows, err := conn(ctx, r.db).QueryContext(ctx, listQuery, role, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users := make([]types.User, 0, limit)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}

	const query = `
		INSERT INTO users (id, student_id, name, email, role, department_id, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if _, err := conn(ctx, r.db).ExecContext(
		ctx,
		query,
		user.ID,
		user.StudentID,
		user.Name,
		user.Email,
		user.Role,
		nullInt(user.DepartmentID),
		user.PasswordHash,
		user.CreatedAt,
		user.UpdatedAt,
	); err != nil {
		return types.User{}, mapError(err)
	}
	return user, nil
}

func (r *UserRepository) Update(ctx context.Context, user types.User) (types.User, error) {
	user.UpdatedAt = time.Now().UTC()

	const query = `
		UPDATE users
		SET student_id = $1,
			name = $2,
			email = $3,
			role = $4,
			department_id = $5,
			password_hash = $6,
			updated_at = $7
		WHERE id = $8`
	result, err := conn(ctx, r.db).ExecContext(
		ctx,
		query,
		user.StudentID,
		user.Name,
		user.Email,
		user.Role,
		nullInt(user.DepartmentID),
		user.PasswordHash,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return types.User{}, mapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.User{}, err
	}
	if affected == 0 {
		return types.User{}, ErrNotFound
	}
	return user, nil
}

func (r *UserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	const query = `DELETE FROM users WHERE id = $1`
	result, err := conn(ctx, r.db).ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// References checks the rows that block deleting a user.
func (r *UserRepository) References(ctx context.Context, id uuid.UUID) (UserReferences, error) {
	const query = `
		SELECT
			EXISTS (SELECT 1 FROM elections WHERE created_by = $1),
			EXISTS (SELECT 1 FROM votes WHERE user_id = $1),
			EXISTS (SELECT 1 FROM candidates WHERE user_id = $1)`
	var refs UserReferences
	if err := conn(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&refs.CreatedElections,
		&refs.CastVotes,
		&refs.Candidacies,
	); err != nil {
		return UserReferences{}, err
	}
	return refs, nil
}

// CountVotersByDepartment returns the number of accounts per department. Every
// role can cast a ballot, so every role is counted.
func (r *UserRepository) CountVotersByDepartment(ctx context.Context) (map[int]int, error) {
	const query = `
		SELECT department_id, COUNT(1)
		FROM users
		WHERE department_id IS NOT NULL
		GROUP BY department_id`
	rows, err := conn(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[int]int)
	for rows.Next() {
		var departmentID, count int
		if err := rows.Scan(&departmentID, &count); err != nil {
			return nil, err
		}
		counts[departmentID] = count
	}
	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (types.User, error) {
	var user types.User
	var department sql.NullInt64
	err := row.Scan(
		&user.ID,
		&user.StudentID,
		&user.Name,
		&user.Email,
		&user.Role,
		&department,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	user.DepartmentID = intPtr(department)
	return user, nil
}
