package allocator

// LeaveCriterion removes employees with locked leave from candidacy.
//
// Validity:
//   - Returns false if a locked leave day covers the task's date
//   - For cross-midnight shifts at stores attributing hours by calendar day,
//     locked leave on the following date also blocks
//   - Submitted and cancelled leave never block
type LeaveCriterion struct{}

// NewLeaveCriterion creates a new LeaveCriterion
func NewLeaveCriterion() *LeaveCriterion {
	return &LeaveCriterion{}
}

func (c *LeaveCriterion) Name() string {
	return "Leave"
}

func (c *LeaveCriterion) Explanation() string {
	return "is on locked leave"
}

func (c *LeaveCriterion) IsCandidateValid(state *RotaState, task *Task, employeeID string) bool {
	return !state.Index.IsBlockedByLeave(employeeID, task.Slot.StoreID, task.Slot.Date, task.Shift)
}

func (c *LeaveCriterion) ValidateRotaState(state *RotaState) []TaskValidationError {
	return validateFilledTasks(state, c)
}
