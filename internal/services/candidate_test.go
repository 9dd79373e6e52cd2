package services

import (
	"context"
	"testing"

	"github.com/evotar/apiserver/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddCandidateProvisionsOneVoter(t *testing.T) {
	w := newWorld(t, false)
	staff := w.sessionFor(w.addUser(t, "ST-1", types.RoleStaff, nil))
	election := w.addElection(t, 1, nil)
	usersBefore := len(w.m.users)

	candidate, err := w.candidates.AddCandidate(context.Background(), staff, CandidateInput{
		Name:       "Dana",
		StudentID:  "2024-200",
		ElectionID: election.ID,
		PositionID: 1,
		Party:      "Blue",
	})
	require.NoError(t, err)

	require.Len(t, w.m.users, usersBefore+1)
	require.Len(t, w.m.candidates, 1)
	user := w.m.users[candidate.UserID]
	assert.Equal(t, types.RoleVoter, user.Role)
	assert.Equal(t, VoterEmail("2024-200"), user.Email)
	assert.Equal(t, "Dana", candidate.Name)
	assert.Equal(t, []string{"Voter Account Provisioned", "Candidate Added"}, w.events.actions())

	_, err = w.candidates.AddCandidate(context.Background(), staff, CandidateInput{
		Name:       "Dana",
		StudentID:  "2024-200",
		ElectionID: election.ID,
		PositionID: 2,
	})
	require.NoError(t, err)
	assert.Len(t, w.m.users, usersBefore+1)
	assert.Len(t, w.m.candidates, 2)
	assert.Equal(t, 1, w.events.count("Voter Account Provisioned"))
}

func TestAddCandidateTwiceForPosition(t *testing.T) {
	w := newWorld(t, false)
	staff := w.sessionFor(w.addUser(t, "ST-1", types.RoleStaff, nil))
	election := w.addElection(t, 1, nil)
	in := CandidateInput{Name: "Eli", StudentID: "2024-201", ElectionID: election.ID, PositionID: 1}

	_, err := w.candidates.AddCandidate(context.Background(), staff, in)
	require.NoError(t, err)
	_, err = w.candidates.AddCandidate(context.Background(), staff, in)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, w.m.candidates, 1)
}

func TestAddCandidateValidation(t *testing.T) {
	w := newWorld(t, false)
	staff := w.sessionFor(w.addUser(t, "ST-1", types.RoleStaff, nil))
	election := w.addElection(t, 1, nil)

	cases := []struct {
		name  string
		in    CandidateInput
		field string
	}{
		{"missing name", CandidateInput{StudentID: "1", ElectionID: election.ID, PositionID: 1}, "name"},
		{"missing student id", CandidateInput{Name: "A", ElectionID: election.ID, PositionID: 1}, "student_id"},
		{"missing position", CandidateInput{Name: "A", StudentID: "1", ElectionID: election.ID}, "position_id"},
		{"missing election", CandidateInput{Name: "A", StudentID: "1", PositionID: 1}, "election_id"},
		{"position of another type", CandidateInput{Name: "A", StudentID: "1", ElectionID: election.ID, PositionID: 3}, "position_id"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := w.candidates.AddCandidate(context.Background(), staff, tc.in)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
		})
	}
	assert.Empty(t, w.m.candidates)
}

func TestRemoveCandidate(t *testing.T) {
	w := newWorld(t, false)
	staff := w.sessionFor(w.addUser(t, "ST-1", types.RoleStaff, nil))
	election := w.addElection(t, 1, nil)
	voted := w.addCandidate(t, election.ID, 1, w.addUser(t, "C-1", types.RoleVoter, nil))
	idle := w.addCandidate(t, election.ID, 1, w.addUser(t, "C-2", types.RoleVoter, nil))
	w.m.votes = append(w.m.votes, types.Vote{ID: uuid.New(), ElectionID: election.ID, PositionID: 1, CandidateID: voted.ID, UserID: uuid.New()})

	err := w.candidates.RemoveCandidate(context.Background(), staff, election.ID, voted.ID)
	assert.ErrorIs(t, err, ErrCandidateHasVotes)

	require.NoError(t, w.candidates.RemoveCandidate(context.Background(), staff, election.ID, idle.ID))
	assert.NotContains(t, w.m.candidates, idle.ID)
	assert.Contains(t, w.m.candidates, voted.ID)
}
