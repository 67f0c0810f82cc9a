package allocator

import (
	"cmp"
	"slices"

	"github.com/jakechorley/store-roster/pkg/core/constraints"
	"github.com/jakechorley/store-roster/pkg/core/model"
)

// InitRotaState expands the index's demand slots into ordered tasks.
//
// Slots whose shift is closed by a store event are returned separately and
// produce no tasks. Remaining tasks are ordered by date, store id, shift start
// time and skill id, with slot id and sequence as the final tie-breaks.
func InitRotaState(ix *constraints.Index) (*RotaState, []model.DemandSlot, error) {
	state := NewRotaState(ix)
	suppressed := make([]model.DemandSlot, 0)

	slots := slices.Clone(ix.DemandSlots())
	slices.SortFunc(slots, func(a, b model.DemandSlot) int {
		return compareSlots(ix, &a, &b)
	})

	for i := range slots {
		slot := &slots[i]
		shift, _ := ix.Shift(slot.ShiftID)
		if ix.IsClosedFor(slot.StoreID, slot.Date, shift) {
			suppressed = append(suppressed, *slot)
			continue
		}
		for seq := 0; seq < slot.Required; seq++ {
			if _, err := state.AddTask(slot, seq, ""); err != nil {
				return nil, nil, err
			}
		}
	}

	return state, suppressed, nil
}

func compareSlots(ix *constraints.Index, a, b *model.DemandSlot) int {
	if c := a.Date.Compare(b.Date); c != 0 {
		return c
	}
	if c := cmp.Compare(a.StoreID, b.StoreID); c != 0 {
		return c
	}
	shiftA, _ := ix.Shift(a.ShiftID)
	shiftB, _ := ix.Shift(b.ShiftID)
	if c := cmp.Compare(shiftA.Start, shiftB.Start); c != 0 {
		return c
	}
	if c := cmp.Compare(a.SkillID, b.SkillID); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}
