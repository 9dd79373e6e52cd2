package services

import (
	"errors"
	"fmt"

	"github.com/evotar/apiserver/internal/session"
)

// ValidationError reports a missing or invalid input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s is required", e.Field)
}

func required(field string) error {
	return &ValidationError{Field: field}
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidCredentials = errors.New("invalid student id or password")
	ErrUserExists         = errors.New("user already exists")
	ErrReferenced         = errors.New("user is referenced by elections, votes or candidacies")
	ErrCandidateHasVotes  = errors.New("candidate has votes")
	ErrAlreadyVoted       = errors.New("already voted in election")
	ErrElectionClosed     = errors.New("election is not open for voting")
	ErrNotEligible        = errors.New("not eligible for election")
	ErrResultsHidden      = errors.New("results are not published")
	ErrLedgerDisabled     = errors.New("ballot ledger is disabled")
	ErrExportsDisabled    = errors.New("results exports are disabled")
)

func requireLogin(actor session.Session) error {
	if !actor.IsLoggedIn {
		return ErrUnauthorized
	}
	return nil
}

func requireStaff(actor session.Session) error {
	if !actor.IsLoggedIn {
		return ErrUnauthorized
	}
	if !actor.IsStaff() {
		return ErrForbidden
	}
	return nil
}

func requireAdmin(actor session.Session) error {
	if !actor.IsLoggedIn {
		return ErrUnauthorized
	}
	if !actor.IsAdmin() {
		return ErrForbidden
	}
	return nil
}
