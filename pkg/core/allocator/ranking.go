package allocator

import (
	"cmp"
	"slices"
)

// Candidate is an employee who passed every hard filter for a task
type Candidate struct {
	EmployeeID string `json:"employeeId"`
	SkillScore int    `json:"skillScore"`
	Priority   int    `json:"priority"`
	Borrowed   bool   `json:"borrowed"`
}

// RankCandidates returns the employees eligible for a task, best first.
//
// Ordering (descending preference):
//  1. employee-skill priority score for the slot's skill
//  2. global employee priority score
//  3. locality: home-store employees before borrowed ones
//  4. employee id ascending, so identical input always gives identical output
//
// The function has no side effects.
func RankCandidates(state *RotaState, task *Task, criteria []Criterion) []Candidate {
	candidates := make([]Candidate, 0)

	for _, employeeID := range state.Index.EmployeeIDs() {
		if !IsCandidateValid(state, task, employeeID, criteria) {
			continue
		}

		emp, _ := state.Index.Employee(employeeID)
		score, _ := state.Index.SkillScore(employeeID, task.Slot.SkillID)

		candidates = append(candidates, Candidate{
			EmployeeID: employeeID,
			SkillScore: score,
			Priority:   emp.Priority,
			Borrowed:   emp.HomeStoreID != task.Slot.StoreID,
		})
	}

	slices.SortFunc(candidates, compareCandidates)
	return candidates
}

// compareCandidates orders a before b when a is the better pick
func compareCandidates(a, b Candidate) int {
	if c := cmp.Compare(b.SkillScore, a.SkillScore); c != 0 {
		return c
	}
	if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
		return c
	}
	if a.Borrowed != b.Borrowed {
		if a.Borrowed {
			return 1
		}
		return -1
	}
	return cmp.Compare(a.EmployeeID, b.EmployeeID)
}

// ExplainIneligibility returns why an employee is not a candidate for a task.
// The second return value is false when the employee is eligible.
func ExplainIneligibility(state *RotaState, task *Task, employeeID string, criteria []Criterion) (string, bool) {
	criterion, failed := FirstFailingCriterion(state, task, employeeID, criteria)
	if !failed {
		return "", false
	}
	return criterion.Explanation(), true
}
