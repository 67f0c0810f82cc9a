package allocator

import (
	"fmt"

	"github.com/jakechorley/store-roster/pkg/core/model"
)

// ValidateRotaState runs every criterion's validation over the final state and
// checks that no slot holds more people than it requires or the same person twice.
func ValidateRotaState(state *RotaState, criteria []Criterion) []TaskValidationError {
	var errors []TaskValidationError

	for _, criterion := range criteria {
		errors = append(errors, criterion.ValidateRotaState(state)...)
	}

	filled := make(map[string]int)
	holders := make(map[string]map[string]bool)
	for _, task := range state.Tasks {
		if !task.IsFilled() {
			continue
		}
		slotID := task.Slot.ID
		filled[slotID]++

		if filled[slotID] > task.Slot.Required {
			errors = append(errors, TaskValidationError{
				TaskIndex:     task.Index,
				SlotID:        slotID,
				Date:          model.DateKey(task.Slot.Date),
				EmployeeID:    task.Assigned,
				CriterionName: "SlotSize",
				Description:   fmt.Sprintf("Slot requires %d but has %d filled", task.Slot.Required, filled[slotID]),
			})
		}

		if holders[slotID] == nil {
			holders[slotID] = make(map[string]bool)
		}
		if holders[slotID][task.Assigned] {
			errors = append(errors, TaskValidationError{
				TaskIndex:     task.Index,
				SlotID:        slotID,
				Date:          model.DateKey(task.Slot.Date),
				EmployeeID:    task.Assigned,
				CriterionName: "SlotSize",
				Description:   fmt.Sprintf("Employee %s holds more than one position in the slot", task.Assigned),
			})
		}
		holders[slotID][task.Assigned] = true
	}

	return errors
}
