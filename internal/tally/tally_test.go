package tally

import (
	"testing"
	"time"

	"github.com/evotar/apiserver/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

func candidate(position int, registered time.Duration) types.Candidate {
	return types.Candidate{ID: uuid.New(), PositionID: position, CreatedAt: base.Add(registered)}
}

func dept(id int) *int { return &id }

func winners(results []types.ElectionResult, aggregateOnly bool) []types.ElectionResult {
	var out []types.ElectionResult
	for _, r := range results {
		if r.IsWinner && (!aggregateOnly || r.DepartmentID == nil) {
			out = append(out, r)
		}
	}
	return out
}

func TestStandardSingleWinnerWithMaxVotes(t *testing.T) {
	a, b, c := candidate(1, 0), candidate(1, time.Minute), candidate(1, 2*time.Minute)
	in := Input{
		ElectionID: uuid.New(),
		Candidates: []types.Candidate{a, b, c},
		Counts: []types.VoteCount{
			{PositionID: 1, CandidateID: a.ID, DepartmentID: dept(1), Votes: 3},
			{PositionID: 1, CandidateID: b.ID, DepartmentID: dept(1), Votes: 4},
			{PositionID: 1, CandidateID: b.ID, DepartmentID: dept(2), Votes: 2},
			{PositionID: 1, CandidateID: c.ID, Votes: 5},
		},
	}

	results := Standard(in)
	require.Len(t, results, 3)
	won := winners(results, false)
	require.Len(t, won, 1)
	assert.Equal(t, b.ID, won[0].CandidateID)
	assert.Equal(t, 6, won[0].TotalVotes)
}

func TestStandardIsIdempotent(t *testing.T) {
	a, b := candidate(1, 0), candidate(1, time.Minute)
	in := Input{
		Candidates: []types.Candidate{b, a},
		Counts: []types.VoteCount{
			{PositionID: 1, CandidateID: a.ID, Votes: 2},
			{PositionID: 1, CandidateID: b.ID, Votes: 7},
		},
		CalculatedAt: base,
	}
	assert.Equal(t, Standard(in), Standard(in))
}

func TestStandardTieBreak(t *testing.T) {
	early, late := candidate(1, 0), candidate(1, time.Hour)
	in := Input{
		Candidates: []types.Candidate{late, early},
		Counts: []types.VoteCount{
			{PositionID: 1, CandidateID: early.ID, Votes: 4},
			{PositionID: 1, CandidateID: late.ID, Votes: 4},
		},
	}
	won := winners(Standard(in), false)
	require.Len(t, won, 1)
	assert.Equal(t, early.ID, won[0].CandidateID)

	// Same registration time falls back to the lowest id.
	x, y := candidate(2, 0), candidate(2, 0)
	lowest := x.ID
	if y.ID.String() < x.ID.String() {
		lowest = y.ID
	}
	won = winners(Standard(Input{Candidates: []types.Candidate{x, y}}), false)
	require.Len(t, won, 1)
	assert.Equal(t, lowest, won[0].CandidateID)
}

func TestStandardOneWinnerPerPosition(t *testing.T) {
	president, vice := candidate(1, 0), candidate(2, 0)
	results := Standard(Input{Candidates: []types.Candidate{president, vice}})
	won := winners(results, false)
	require.Len(t, won, 2)
	assert.Equal(t, 1, won[0].PositionID)
	assert.Equal(t, 2, won[1].PositionID)
}

func TestExecutiveDepartmentsBeatRawVotes(t *testing.T) {
	a, b := candidate(1, 0), candidate(1, time.Minute)
	in := Input{
		ElectionID: uuid.New(),
		Candidates: []types.Candidate{a, b},
		Counts: []types.VoteCount{
			{PositionID: 1, CandidateID: a.ID, DepartmentID: dept(1), Votes: 50},
			{PositionID: 1, CandidateID: a.ID, DepartmentID: dept(2), Votes: 1},
			{PositionID: 1, CandidateID: a.ID, DepartmentID: dept(3), Votes: 1},
			{PositionID: 1, CandidateID: b.ID, DepartmentID: dept(2), Votes: 5},
			{PositionID: 1, CandidateID: b.ID, DepartmentID: dept(3), Votes: 5},
		},
		EligibleByDepartment: map[int]int{1: 100, 2: 100, 3: 100},
	}

	results := Executive(in)
	overall := winners(results, true)
	require.Len(t, overall, 1)
	assert.Equal(t, b.ID, overall[0].CandidateID)
	assert.Equal(t, 2, overall[0].DepartmentsWon)
	assert.Equal(t, 10, overall[0].TotalVotes)

	for _, r := range results {
		if r.DepartmentID == nil && r.CandidateID == a.ID {
			assert.Equal(t, 52, r.TotalVotes)
			assert.Equal(t, 1, r.DepartmentsWon)
			assert.False(t, r.IsWinner)
		}
		if r.DepartmentID != nil && *r.DepartmentID == 1 && r.CandidateID == a.ID {
			assert.InDelta(t, 50.0, r.Percentage, 0.001)
			assert.Equal(t, 100, r.EligibleVoters)
			assert.True(t, r.IsWinner)
		}
	}
}

func TestExecutiveZeroVoteDepartmentAwardsNobody(t *testing.T) {
	a, b := candidate(1, 0), candidate(1, time.Minute)
	in := Input{
		Candidates: []types.Candidate{a, b},
		Counts: []types.VoteCount{
			{PositionID: 1, CandidateID: b.ID, DepartmentID: dept(1), Votes: 1},
		},
		EligibleByDepartment: map[int]int{1: 10, 2: 10},
	}

	results := Executive(in)
	for _, r := range results {
		if r.DepartmentID != nil && *r.DepartmentID == 2 {
			assert.False(t, r.IsWinner)
		}
	}
	overall := winners(results, true)
	require.Len(t, overall, 1)
	assert.Equal(t, b.ID, overall[0].CandidateID)
	assert.Equal(t, 1, overall[0].DepartmentsWon)
}

func TestExecutiveTiedDepartmentsFallBackToRawVotes(t *testing.T) {
	a, b := candidate(1, 0), candidate(1, time.Minute)
	in := Input{
		Candidates: []types.Candidate{a, b},
		Counts: []types.VoteCount{
			{PositionID: 1, CandidateID: a.ID, DepartmentID: dept(1), Votes: 3},
			{PositionID: 1, CandidateID: b.ID, DepartmentID: dept(2), Votes: 9},
		},
		EligibleByDepartment: map[int]int{1: 10, 2: 10},
	}
	overall := winners(Executive(in), true)
	require.Len(t, overall, 1)
	assert.Equal(t, b.ID, overall[0].CandidateID)
}

func TestRunUnknownStrategy(t *testing.T) {
	_, err := Run("ranked", Input{})
	assert.Error(t, err)

	results, err := Run(types.StrategyStandard, Input{Candidates: []types.Candidate{candidate(1, 0)}})
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestPercentage(t *testing.T) {
	assert.Equal(t, 0.0, percentage(5, 0))
	assert.InDelta(t, 33.33, percentage(1, 3), 0.0001)
}
