// Package tally turns grouped vote counts into election result rows. It does
// no I/O; callers load the counts and persist the rows.
package tally

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/evotar/apiserver/types"
	"github.com/google/uuid"
)

// Input is everything a strategy needs to compute one election's results.
type Input struct {
	ElectionID uuid.UUID
	Candidates []types.Candidate
	Counts     []types.VoteCount

	// EligibleByDepartment is the number of registered accounts per department.
	// Only the executive strategy reads it.
	EligibleByDepartment map[int]int

	CalculatedAt time.Time
}

// Run dispatches to the strategy named by an election type.
func Run(strategy string, in Input) ([]types.ElectionResult, error) {
	switch strategy {
	case types.StrategyStandard:
		return Standard(in), nil
	case types.StrategyExecutive:
		return Executive(in), nil
	}
	return nil, fmt.Errorf("unknown tabulation strategy %q", strategy)
}

// Standard marks, per position, the candidate with the most votes.
func Standard(in Input) []types.ElectionResult {
	totals := make(map[uuid.UUID]int)
	for _, c := range in.Counts {
		totals[c.CandidateID] += c.Votes
	}

	var results []types.ElectionResult
	for _, group := range byPosition(in.Candidates) {
		winner := best(group, func(c types.Candidate) []int {
			return []int{totals[c.ID]}
		})
		for _, c := range group {
			results = append(results, types.ElectionResult{
				ElectionID:   in.ElectionID,
				PositionID:   c.PositionID,
				CandidateID:  c.ID,
				TotalVotes:   totals[c.ID],
				IsWinner:     c.ID == winner,
				CalculatedAt: in.CalculatedAt,
			})
		}
	}
	return results
}

// Executive awards each department to the candidate with the highest turnout
// share there, then awards the position to whoever won the most departments.
// Raw vote totals only break ties.
func Executive(in Input) []types.ElectionResult {
	type key struct {
		candidate  uuid.UUID
		department int
	}
	perDept := make(map[key]int)
	totals := make(map[uuid.UUID]int)
	deptSet := make(map[int]struct{})
	for dept := range in.EligibleByDepartment {
		deptSet[dept] = struct{}{}
	}
	for _, c := range in.Counts {
		totals[c.CandidateID] += c.Votes
		if c.DepartmentID == nil {
			continue
		}
		perDept[key{c.CandidateID, *c.DepartmentID}] += c.Votes
		deptSet[*c.DepartmentID] = struct{}{}
	}
	departments := make([]int, 0, len(deptSet))
	for dept := range deptSet {
		departments = append(departments, dept)
	}
	sort.Ints(departments)

	var results []types.ElectionResult
	for _, group := range byPosition(in.Candidates) {
		won := make(map[uuid.UUID]int)

		for _, dept := range departments {
			eligible := in.EligibleByDepartment[dept]
			winner := best(group, func(c types.Candidate) []int {
				return []int{perDept[key{c.ID, dept}]}
			})
			if perDept[key{winner, dept}] == 0 {
				winner = uuid.Nil
			}
			if winner != uuid.Nil {
				won[winner]++
			}
			for _, c := range group {
				votes := perDept[key{c.ID, dept}]
				results = append(results, types.ElectionResult{
					ElectionID:     in.ElectionID,
					PositionID:     c.PositionID,
					CandidateID:    c.ID,
					DepartmentID:   &dept,
					TotalVotes:     votes,
					EligibleVoters: eligible,
					Percentage:     percentage(votes, eligible),
					IsWinner:       c.ID == winner,
					CalculatedAt:   in.CalculatedAt,
				})
			}
		}

		overall := best(group, func(c types.Candidate) []int {
			return []int{won[c.ID], totals[c.ID]}
		})
		for _, c := range group {
			results = append(results, types.ElectionResult{
				ElectionID:     in.ElectionID,
				PositionID:     c.PositionID,
				CandidateID:    c.ID,
				TotalVotes:     totals[c.ID],
				DepartmentsWon: won[c.ID],
				IsWinner:       c.ID == overall,
				CalculatedAt:   in.CalculatedAt,
			})
		}
	}
	return results
}

// best picks the candidate with the highest score vector, compared
// lexicographically. Remaining ties go to the earliest-registered candidate,
// then the lowest id. It returns uuid.Nil for an empty group.
func best(group []types.Candidate, score func(types.Candidate) []int) uuid.UUID {
	var (
		winner     types.Candidate
		winnerKeys []int
		found      bool
	)
	for _, c := range group {
		keys := score(c)
		if !found || beats(c, keys, winner, winnerKeys) {
			winner, winnerKeys, found = c, keys, true
		}
	}
	if !found {
		return uuid.Nil
	}
	return winner.ID
}

func beats(a types.Candidate, aKeys []int, b types.Candidate, bKeys []int) bool {
	for i := range aKeys {
		if aKeys[i] != bKeys[i] {
			return aKeys[i] > bKeys[i]
		}
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return bytes.Compare(a.ID[:], b.ID[:]) < 0
}

// byPosition groups candidates by position in ascending position order,
// keeping registration order inside each group.
func byPosition(candidates []types.Candidate) [][]types.Candidate {
	sorted := append([]types.Candidate(nil), candidates...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].PositionID != sorted[j].PositionID {
			return sorted[i].PositionID < sorted[j].PositionID
		}
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return bytes.Compare(sorted[i].ID[:], sorted[j].ID[:]) < 0
	})

	var groups [][]types.Candidate
	for i, c := range sorted {
		if i == 0 || c.PositionID != sorted[i-1].PositionID {
			groups = append(groups, nil)
		}
		groups[len(groups)-1] = append(groups[len(groups)-1], c)
	}
	return groups
}

func percentage(votes, eligible int) float64 {
	if eligible <= 0 {
		return 0
	}
	return math.Round(float64(votes)*10000/float64(eligible)) / 100
}
