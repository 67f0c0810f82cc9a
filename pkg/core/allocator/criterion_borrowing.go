package allocator

// BorrowingCriterion restricts who may work away from their home store.
//
// Validity:
//   - Home-store employees always pass
//   - Anyone else needs an explicit access grant for the slot's store AND the slot's
//     store must hold an active support grant naming the employee's home store
type BorrowingCriterion struct{}

// NewBorrowingCriterion creates a new BorrowingCriterion
func NewBorrowingCriterion() *BorrowingCriterion {
	return &BorrowingCriterion{}
}

func (c *BorrowingCriterion) Name() string {
	return "Borrowing"
}

func (c *BorrowingCriterion) Explanation() string {
	return "may not be borrowed by this store"
}

func (c *BorrowingCriterion) IsCandidateValid(state *RotaState, task *Task, employeeID string) bool {
	return state.Index.CanWorkAt(employeeID, task.Slot.StoreID)
}

func (c *BorrowingCriterion) ValidateRotaState(state *RotaState) []TaskValidationError {
	return validateFilledTasks(state, c)
}
