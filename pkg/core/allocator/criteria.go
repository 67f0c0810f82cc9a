package allocator

import (
	"fmt"

	"github.com/jakechorley/store-roster/pkg/core/model"
)

// Criterion is a hard filter a candidate must pass for a task.
// Criteria are pure predicates over the index and the provisional assignment set.
type Criterion interface {
	// Name returns a human-readable identifier for this criterion
	Name() string

	// Explanation is shown to users when this criterion rejects an employee
	Explanation() string

	// IsCandidateValid determines if the employee may hold the task.
	// This acts as a veto - if ANY criterion returns false, the employee is not a candidate.
	IsCandidateValid(state *RotaState, task *Task, employeeID string) bool

	// ValidateRotaState checks every filled task in the final state against this criterion.
	// Returns a slice of validation errors (empty if all valid).
	ValidateRotaState(state *RotaState) []TaskValidationError
}

// DefaultCriteria returns the hard filters in the order they are applied:
// active, skill, leave, availability, overlap, borrowing.
func DefaultCriteria() []Criterion {
	return []Criterion{
		NewActiveCriterion(),
		NewSkillCriterion(),
		NewLeaveCriterion(),
		NewAvailabilityCriterion(),
		NewNoOverlapCriterion(),
		NewBorrowingCriterion(),
	}
}

// IsCandidateValid checks the employee against every criterion
func IsCandidateValid(state *RotaState, task *Task, employeeID string, criteria []Criterion) bool {
	_, ok := FirstFailingCriterion(state, task, employeeID, criteria)
	return !ok
}

// FirstFailingCriterion returns the first criterion, in order, that rejects the employee
func FirstFailingCriterion(state *RotaState, task *Task, employeeID string, criteria []Criterion) (Criterion, bool) {
	for _, criterion := range criteria {
		if !criterion.IsCandidateValid(state, task, employeeID) {
			return criterion, true
		}
	}
	return nil, false
}

// validateFilledTasks re-runs a criterion against every filled task
func validateFilledTasks(state *RotaState, c Criterion) []TaskValidationError {
	var errors []TaskValidationError

	for _, task := range state.Tasks {
		if !task.IsFilled() {
			continue
		}
		if !c.IsCandidateValid(state, task, task.Assigned) {
			errors = append(errors, TaskValidationError{
				TaskIndex:     task.Index,
				SlotID:        task.Slot.ID,
				Date:          model.DateKey(task.Slot.Date),
				EmployeeID:    task.Assigned,
				CriterionName: c.Name(),
				Description:   fmt.Sprintf("Employee %s %s", task.Assigned, c.Explanation()),
			})
		}
	}

	return errors
}
