package allocator

// NoOverlapCriterion prevents an employee holding two tasks whose shifts overlap in time.
//
// Validity:
//   - Returns false if the employee already holds another task whose span overlaps
//     this task's span, including cross-midnight shifts from the previous date
//   - Back-to-back shifts (one ends when the next starts) are allowed
type NoOverlapCriterion struct{}

// NewNoOverlapCriterion creates a new NoOverlapCriterion
func NewNoOverlapCriterion() *NoOverlapCriterion {
	return &NoOverlapCriterion{}
}

func (c *NoOverlapCriterion) Name() string {
	return "NoOverlap"
}

func (c *NoOverlapCriterion) Explanation() string {
	return "is already working an overlapping shift"
}

func (c *NoOverlapCriterion) IsCandidateValid(state *RotaState, task *Task, employeeID string) bool {
	return len(state.OverlappingTasks(employeeID, task)) == 0
}

func (c *NoOverlapCriterion) ValidateRotaState(state *RotaState) []TaskValidationError {
	return validateFilledTasks(state, c)
}
