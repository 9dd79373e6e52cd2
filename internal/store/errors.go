package store

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write violates a unique constraint.
var ErrConflict = errors.New("conflict")

// ErrInvalid is returned when a write can never succeed as given: a foreign
// key, check or not-null violation, or a value that cannot be encoded.
var ErrInvalid = errors.New("invalid record")

const uniqueViolation = "23505"

var integrityViolations = map[string]bool{
	"23502": true, // not_null_violation
	"23503": true, // foreign_key_violation
	"23514": true, // check_violation
	"22P02": true, // invalid_text_representation
}

// mapError translates driver errors into store sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	code := sqlState(err)
	switch {
	case code == uniqueViolation:
		return ErrConflict
	case integrityViolations[code]:
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return err
}

func sqlState(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
