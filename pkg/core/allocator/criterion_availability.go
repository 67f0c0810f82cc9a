package allocator

// AvailabilityCriterion requires the employee's weekly windows to cover the whole shift.
//
// Validity:
//   - Returns false if any minute of the shift, split at midnight, falls outside
//     the windows of the weekday it lands on
//   - Returns false if any part of the shift falls on a rest day
type AvailabilityCriterion struct{}

// NewAvailabilityCriterion creates a new AvailabilityCriterion
func NewAvailabilityCriterion() *AvailabilityCriterion {
	return &AvailabilityCriterion{}
}

func (c *AvailabilityCriterion) Name() string {
	return "Availability"
}

func (c *AvailabilityCriterion) Explanation() string {
	return "is not available for the whole shift"
}

func (c *AvailabilityCriterion) IsCandidateValid(state *RotaState, task *Task, employeeID string) bool {
	return state.Index.IsAvailableFor(employeeID, task.Slot.Date, task.Shift)
}

func (c *AvailabilityCriterion) ValidateRotaState(state *RotaState) []TaskValidationError {
	return validateFilledTasks(state, c)
}
