package services

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/evotar/apiserver/internal/mq"
	"github.com/evotar/apiserver/internal/session"
	"github.com/evotar/apiserver/internal/store"
	"github.com/evotar/apiserver/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func castFor(t *testing.T, w *world, election types.Election, choices ...types.BallotChoice) {
	t.Helper()
	voter := w.sessionFor(w.addUser(t, "V-"+uuid.NewString()[:8], types.RoleVoter, intp(1)))
	_, err := w.votes.CastVote(context.Background(), voter, election.ID, choices)
	require.NoError(t, err)
}

func TestTabulateStandardIsIdempotent(t *testing.T) {
	w := newWorld(t, false)
	ctx := context.Background()
	staff := w.sessionFor(w.addUser(t, "ST-1", types.RoleStaff, nil))
	election := w.addElection(t, 1, nil)
	alice := w.addCandidate(t, election.ID, 1, w.addUser(t, "C-1", types.RoleVoter, nil))
	bob := w.addCandidate(t, election.ID, 1, w.addUser(t, "C-2", types.RoleVoter, nil))

	castFor(t, w, election, types.BallotChoice{PositionID: 1, CandidateID: bob.ID})
	castFor(t, w, election, types.BallotChoice{PositionID: 1, CandidateID: bob.ID})
	castFor(t, w, election, types.BallotChoice{PositionID: 1, CandidateID: alice.ID})

	first, err := w.tabulation.Tabulate(ctx, staff, election.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StrategyStandard, first.Strategy)
	require.Len(t, first.Results, 2)

	winners := map[uuid.UUID]int{}
	for _, r := range first.Results {
		if r.IsWinner {
			winners[r.CandidateID] = r.TotalVotes
		}
	}
	assert.Equal(t, map[uuid.UUID]int{bob.ID: 2}, winners)

	second, err := w.tabulation.Tabulate(ctx, staff, election.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Results, second.Results)
	assert.Equal(t, 2, w.result.calls)
	assert.Len(t, w.m.results[election.ID], 2)
}

func TestTabulateRequiresStaff(t *testing.T) {
	w := newWorld(t, false)
	election := w.addElection(t, 1, nil)
	voter := w.sessionFor(w.addUser(t, "V-1", types.RoleVoter, nil))

	_, err := w.tabulation.Tabulate(context.Background(), voter, election.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Zero(t, w.result.calls)
}

func TestTabulateExecutiveUsesEligibleVoters(t *testing.T) {
	w := newWorld(t, false)
	election := w.addElection(t, 2, nil)
	alice := w.addCandidate(t, election.ID, 3, w.addUser(t, "C-1", types.RoleStaff, nil))
	w.addCandidate(t, election.ID, 3, w.addUser(t, "C-2", types.RoleStaff, nil))

	castFor(t, w, election, types.BallotChoice{PositionID: 3, CandidateID: alice.ID})
	w.addUser(t, "V-idle", types.RoleVoter, intp(1))

	report, err := w.tabulation.Run(context.Background(), election.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StrategyExecutive, report.Strategy)

	var dept *types.ElectionResult
	for i, r := range report.Results {
		if r.DepartmentID != nil && *r.DepartmentID == 1 && r.CandidateID == alice.ID {
			dept = &report.Results[i]
		}
	}
	require.NotNil(t, dept)
	assert.Equal(t, 1, dept.TotalVotes)
	assert.Equal(t, 2, dept.EligibleVoters)
	assert.InDelta(t, 50.0, dept.Percentage, 0.001)
	assert.True(t, dept.IsWinner)
}

func TestTabulateExecutiveCountsStaffBallots(t *testing.T) {
	w := newWorld(t, false)
	ctx := context.Background()
	election := w.addElection(t, 2, nil)
	alice := w.addCandidate(t, election.ID, 3, w.addUser(t, "C-1", types.RoleStaff, nil))

	staff := w.sessionFor(w.addUser(t, "ST-1", types.RoleStaff, intp(1)))
	_, err := w.votes.CastVote(ctx, staff, election.ID, []types.BallotChoice{{PositionID: 3, CandidateID: alice.ID}})
	require.NoError(t, err)

	report, err := w.tabulation.Run(ctx, election.ID)
	require.NoError(t, err)
	for _, r := range report.Results {
		if r.DepartmentID == nil {
			continue
		}
		assert.Equal(t, 1, r.EligibleVoters)
		assert.LessOrEqual(t, r.Percentage, 100.0)
	}
}

func TestEnqueuePublishesJob(t *testing.T) {
	w := newWorld(t, false)
	ctx := context.Background()
	pub := &fakePublisher{}
	w.tabulation.SetPublisher(pub, "evotar.tabulate")
	election := w.addElection(t, 1, nil)
	w.addCandidate(t, election.ID, 1, w.addUser(t, "C-1", types.RoleVoter, nil))

	require.NoError(t, w.tabulation.Enqueue(ctx, election.ID))
	require.Len(t, pub.messages, 1)
	assert.Empty(t, w.m.results[election.ID])

	msg := pub.messages[0]
	assert.Equal(t, "evotar.tabulate", msg.channel)
	assert.Equal(t, "tabulate", msg.attrs["type"])

	var job TabulationJob
	require.NoError(t, json.Unmarshal(msg.data, &job))
	assert.Equal(t, election.ID, job.ElectionID)
	assert.Len(t, job.JobID, 26)
	assert.True(t, w.now.Equal(job.RequestedAt))

	require.NoError(t, w.tabulation.RunJob(ctx, mq.Message{ID: "1", Data: msg.data}))
	assert.Len(t, w.m.results[election.ID], 1)
}

func TestRunJobRejectsBadPayload(t *testing.T) {
	w := newWorld(t, false)
	ctx := context.Background()

	err := w.tabulation.RunJob(ctx, mq.Message{ID: "1", Data: []byte("{")})
	assert.True(t, mq.IsPermanent(err))
	err = w.tabulation.RunJob(ctx, mq.Message{ID: "2", Data: []byte(`{"job_id":"x"}`)})
	assert.True(t, mq.IsPermanent(err))

	missing, err := json.Marshal(TabulationJob{ElectionID: uuid.New(), JobID: "x"})
	require.NoError(t, err)
	err = w.tabulation.RunJob(ctx, mq.Message{ID: "3", Data: missing})
	assert.True(t, mq.IsPermanent(err))
}

func TestRunExportsReport(t *testing.T) {
	w := newWorld(t, false)
	archive := &fakeArchive{}
	w.tabulation.SetArchive(archive)
	election := w.addElection(t, 1, nil)
	w.addCandidate(t, election.ID, 1, w.addUser(t, "C-1", types.RoleVoter, nil))

	_, err := w.tabulation.Run(context.Background(), election.ID)
	require.NoError(t, err)

	require.Len(t, archive.objects, 1)
	for key, data := range archive.objects {
		assert.True(t, strings.HasPrefix(key, "results/"+election.ID.String()+"/"))
		assert.True(t, strings.HasSuffix(key, ".json"))
		assert.Equal(t, election.ID.String(), archive.meta[key]["election-id"])

		var report ResultsReport
		require.NoError(t, json.Unmarshal(data, &report))
		assert.Equal(t, election.ID, report.Election.ID)
		assert.Len(t, report.Results, 1)
	}
}

func TestExportsListAndOpen(t *testing.T) {
	w := newWorld(t, false)
	ctx := context.Background()
	archive := &fakeArchive{}
	w.tabulation.SetArchive(archive)
	election := w.addElection(t, 1, nil)
	w.addCandidate(t, election.ID, 1, w.addUser(t, "C-1", types.RoleVoter, nil))
	admin := w.admin(t)

	_, err := w.tabulation.Run(ctx, election.ID)
	require.NoError(t, err)
	_, err = w.tabulation.Run(ctx, election.ID)
	require.NoError(t, err)

	exports, err := w.tabulation.ListExports(ctx, admin, election.ID)
	require.NoError(t, err)
	require.Len(t, exports, 2)
	assert.Greater(t, exports[0].Name, exports[1].Name)

	rc, err := w.tabulation.OpenExport(ctx, admin, election.ID, exports[0].Name)
	require.NoError(t, err)
	defer rc.Close()
	var report ResultsReport
	require.NoError(t, json.NewDecoder(rc).Decode(&report))
	assert.Equal(t, election.ID, report.Election.ID)

	_, err = w.tabulation.OpenExport(ctx, admin, election.ID, "../secrets.json")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = w.tabulation.OpenExport(ctx, admin, uuid.New(), exports[0].Name)
	assert.ErrorIs(t, err, store.ErrNotFound)

	voter := w.sessionFor(w.addUser(t, "V-1", types.RoleVoter, nil))
	_, err = w.tabulation.ListExports(ctx, voter, election.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = w.tabulation.ListExports(ctx, admin, uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestExportsDisabled(t *testing.T) {
	w := newWorld(t, false)
	election := w.addElection(t, 1, nil)

	_, err := w.tabulation.ListExports(context.Background(), w.admin(t), election.ID)
	assert.ErrorIs(t, err, ErrExportsDisabled)
	_, err = w.tabulation.OpenExport(context.Background(), w.admin(t), election.ID, "x.json")
	assert.ErrorIs(t, err, ErrExportsDisabled)
}

func TestGetResultsVisibility(t *testing.T) {
	w := newWorld(t, false)
	ctx := context.Background()
	election := w.addElection(t, 1, nil)
	w.addCandidate(t, election.ID, 1, w.addUser(t, "C-1", types.RoleVoter, nil))
	_, err := w.tabulation.Run(ctx, election.ID)
	require.NoError(t, err)

	voter := w.sessionFor(w.addUser(t, "V-1", types.RoleVoter, nil))
	_, err = w.tabulation.GetResults(ctx, voter, election.ID)
	assert.ErrorIs(t, err, ErrResultsHidden)
	_, err = w.tabulation.GetResults(ctx, session.Session{}, election.ID)
	assert.ErrorIs(t, err, ErrResultsHidden)

	staff := w.sessionFor(w.addUser(t, "ST-1", types.RoleStaff, nil))
	report, err := w.tabulation.GetResults(ctx, staff, election.ID)
	require.NoError(t, err)
	assert.Len(t, report.Results, 1)

	e := w.m.elections[election.ID]
	e.ShowResults = true
	w.m.elections[e.ID] = e
	report, err = w.tabulation.GetResults(ctx, voter, election.ID)
	require.NoError(t, err)
	assert.Len(t, report.Results, 1)
}
