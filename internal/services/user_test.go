package services

import (
	"context"
	"testing"

	"github.com/evotar/apiserver/internal/session"
	"github.com/evotar/apiserver/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateUserRequiresAdmin(t *testing.T) {
	w := newWorld(t, false)
	in := UserInput{StudentID: "S-1", Name: "Ana", Email: "ana@example.edu", Password: "pw"}

	_, err := w.users.CreateUser(context.Background(), session.Session{}, in)
	assert.ErrorIs(t, err, ErrUnauthorized)

	staff := w.sessionFor(w.addUser(t, "ST-1", types.RoleStaff, nil))
	_, err = w.users.CreateUser(context.Background(), staff, in)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestCreateUserValidation(t *testing.T) {
	w := newWorld(t, false)
	admin := w.admin(t)

	cases := []struct {
		name  string
		in    UserInput
		field string
	}{
		{"missing student id", UserInput{Name: "A", Email: "a@x.io", Password: "pw"}, "student_id"},
		{"missing name", UserInput{StudentID: "1", Email: "a@x.io", Password: "pw"}, "name"},
		{"missing email", UserInput{StudentID: "1", Name: "A", Password: "pw"}, "email"},
		{"missing password", UserInput{StudentID: "1", Name: "A", Email: "a@x.io"}, "password"},
		{"bad email", UserInput{StudentID: "1", Name: "A", Email: "nope", Password: "pw"}, "email"},
		{"bad role", UserInput{StudentID: "1", Name: "A", Email: "a@x.io", Password: "pw", Role: "root"}, "role"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := w.users.CreateUser(context.Background(), admin, tc.in)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestCreateUserHashesAndRejectsDuplicates(t *testing.T) {
	w := newWorld(t, false)
	admin := w.admin(t)
	in := UserInput{StudentID: "2024-001", Name: "Ana", Email: "ana@example.edu", Password: "secret"}

	user, err := w.users.CreateUser(context.Background(), admin, in)
	require.NoError(t, err)
	assert.Equal(t, types.RoleVoter, user.Role)
	assert.NotEqual(t, "secret", user.PasswordHash)
	assert.NoError(t, VerifyPassword(user.PasswordHash, "secret"))
	assert.Equal(t, 1, w.events.count("User Created"))

	in.Email = "other@example.edu"
	_, err = w.users.CreateUser(context.Background(), admin, in)
	assert.ErrorIs(t, err, ErrUserExists)

	in.StudentID = "2024-002"
	in.Email = "ANA@example.edu"
	_, err = w.users.CreateUser(context.Background(), admin, in)
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestRegisterAlwaysCreatesVoter(t *testing.T) {
	w := newWorld(t, false)
	user, err := w.users.Register(context.Background(), UserInput{
		StudentID: "2024-010", Name: "Ben", Email: "ben@example.edu", Password: "pw", Role: types.RoleAdmin,
	})
	require.NoError(t, err)
	assert.Equal(t, types.RoleVoter, user.Role)
	assert.Equal(t, []string{"User Registered"}, w.events.actions())
}

func TestUpdateUserPatchesFields(t *testing.T) {
	w := newWorld(t, false)
	admin := w.admin(t)
	user := w.addUser(t, "2024-020", types.RoleVoter, nil)
	other := w.addUser(t, "2024-021", types.RoleVoter, nil)

	name := "Renamed"
	role := types.RoleStaff
	dept := 2
	updated, err := w.users.UpdateUser(context.Background(), admin, user.ID, UserPatch{Name: &name, Role: &role, DepartmentID: &dept})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, types.RoleStaff, updated.Role)
	require.NotNil(t, updated.DepartmentID)
	assert.Equal(t, 2, *updated.DepartmentID)

	taken := other.StudentID
	_, err = w.users.UpdateUser(context.Background(), admin, user.ID, UserPatch{StudentID: &taken})
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestDeleteUserRefusedWhileReferenced(t *testing.T) {
	cases := []struct {
		name  string
		setup func(t *testing.T, w *world, user types.User)
	}{
		{"created an election", func(t *testing.T, w *world, user types.User) {
			e := w.addElection(t, 1, nil)
			e.CreatedBy = &user.ID
			w.m.elections[e.ID] = e
		}},
		{"cast a vote", func(t *testing.T, w *world, user types.User) {
			e := w.addElection(t, 1, nil)
			w.m.votes = append(w.m.votes, types.Vote{ID: uuid.New(), UserID: user.ID, ElectionID: e.ID, PositionID: 1, CandidateID: uuid.New()})
		}},
		{"is a candidate", func(t *testing.T, w *world, user types.User) {
			e := w.addElection(t, 1, nil)
			w.addCandidate(t, e.ID, 1, user)
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := newWorld(t, false)
			admin := w.admin(t)
			user := w.addUser(t, "2024-030", types.RoleVoter, nil)
			tc.setup(t, w, user)

			err := w.users.DeleteUser(context.Background(), admin, user.ID)
			assert.ErrorIs(t, err, ErrReferenced)
			assert.Contains(t, w.m.users, user.ID)
			assert.Empty(t, w.m.detached)
		})
	}
}

func TestDeleteUserDetachesLogsAndWallet(t *testing.T) {
	w := newWorld(t, false)
	admin := w.admin(t)
	user := w.addUser(t, "2024-040", types.RoleVoter, nil)
	w.m.wallets[user.ID] = types.Wallet{UserID: user.ID, Address: "0xabc"}

	require.NoError(t, w.users.DeleteUser(context.Background(), admin, user.ID))

	assert.NotContains(t, w.m.users, user.ID)
	assert.NotContains(t, w.m.wallets, user.ID)
	assert.Equal(t, []uuid.UUID{user.ID}, w.m.detached)
	assert.Equal(t, 1, w.events.count("User Deleted"))
}

func TestEnsureVoterAccountIsIdempotent(t *testing.T) {
	w := newWorld(t, false)
	staff := w.sessionFor(w.addUser(t, "ST-2", types.RoleStaff, nil))

	first, created, err := w.users.EnsureVoterAccount(context.Background(), staff, "2024-050", "Cy", intp(1))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, types.RoleVoter, first.Role)
	assert.Equal(t, "2024-050@"+VoterEmailDomain, first.Email)

	second, created, err := w.users.EnsureVoterAccount(context.Background(), staff, "2024-050", "Cy", intp(1))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, w.events.count("Voter Account Provisioned"))
}

func TestVoterEmail(t *testing.T) {
	assert.Equal(t, "2024-001@students.evotar.local", VoterEmail("2024-001"))
	assert.Equal(t, "ab-c@students.evotar.local", VoterEmail("AB c"))
}
