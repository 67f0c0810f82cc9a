package allocator

// ActiveCriterion rejects employees who are inactive or unknown to the index.
//
// Validity:
//   - Returns false if the employee is not in the index or is marked inactive
type ActiveCriterion struct{}

// NewActiveCriterion creates a new ActiveCriterion
func NewActiveCriterion() *ActiveCriterion {
	return &ActiveCriterion{}
}

func (c *ActiveCriterion) Name() string {
	return "Active"
}

func (c *ActiveCriterion) Explanation() string {
	return "is not an active employee"
}

func (c *ActiveCriterion) IsCandidateValid(state *RotaState, task *Task, employeeID string) bool {
	emp, ok := state.Index.Employee(employeeID)
	return ok && emp.Active
}

func (c *ActiveCriterion) ValidateRotaState(state *RotaState) []TaskValidationError {
	return validateFilledTasks(state, c)
}
