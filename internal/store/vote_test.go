package store

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/evotar/apiserver/types"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVoteCreateDuplicateIsConflict(t *testing.T) {
	db, mock := newMock(t)
	repo := NewVoteRepository(db)

	mock.ExpectExec("INSERT INTO votes").WillReturnError(&pq.Error{Code: "23505"})

	_, err := repo.Create(context.Background(), types.Vote{UserID: uuid.New(), ElectionID: uuid.New()})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestVoteCountByCandidate(t *testing.T) {
	db, mock := newMock(t)
	repo := NewVoteRepository(db)
	electionID := uuid.New()
	a, b := uuid.New(), uuid.New()

	mock.ExpectQuery("SELECT position_id, candidate_id, department_id, COUNT\\(1\\)\\s+FROM votes").
		WithArgs(electionID.String()).
		WillReturnRows(sqlmock.NewRows([]string{"position_id", "candidate_id", "department_id", "count"}).
			AddRow(int64(1), a.String(), int64(7), int64(3)).
			AddRow(int64(1), b.String(), nil, int64(2)))

	counts, err := repo.CountByCandidate(context.Background(), electionID)
	require.NoError(t, err)
	require.Len(t, counts, 2)
	assert.Equal(t, a, counts[0].CandidateID)
	require.NotNil(t, counts[0].DepartmentID)
	assert.Equal(t, 7, *counts[0].DepartmentID)
	assert.Equal(t, 3, counts[0].Votes)
	assert.Nil(t, counts[1].DepartmentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHasUserVoted(t *testing.T) {
	db, mock := newMock(t)
	repo := NewVoteRepository(db)
	userID, electionID := uuid.New(), uuid.New()

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(userID.String(), electionID.String()).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	voted, err := repo.HasUserVoted(context.Background(), userID, electionID)
	require.NoError(t, err)
	assert.True(t, voted)
}

func TestLockBallot(t *testing.T) {
	db, mock := newMock(t)
	repo := NewVoteRepository(db)
	userID, electionID := uuid.New(), uuid.New()

	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs(userID.String(), electionID.String()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.LockBallot(context.Background(), userID, electionID))
	assert.NoError(t, mock.ExpectationsWereMet())
}
