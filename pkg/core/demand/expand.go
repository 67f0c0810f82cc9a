package demand

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/jakechorley/store-roster/pkg/core/model"
)

// slotNamespace seeds the deterministic ids of template-generated slots
var slotNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("store-roster/demand-slot"))

// SlotID returns the stable id of the template slot for (store, date, shift, skill).
// Expanding the same templates twice always yields the same ids.
func SlotID(storeID string, date time.Time, shiftID, skillID string) string {
	key := slotKey(storeID, model.DateKey(date), shiftID, skillID)
	return uuid.NewSHA1(slotNamespace, []byte(key)).String()
}

// DroppedSlot is an explicit slot left out of the expansion
type DroppedSlot struct {
	Slot   model.DemandSlot
	Reason string
}

// Expand turns the snapshot's requirement templates into demand slots for every
// date of the scope and merges them with the explicit slots. An explicit slot
// replaces the template slot with the same store, date, shift and skill.
//
// Templates are skipped when inactive, when their store is out of scope or
// inactive, or when their shift is inactive. Explicit slots on an inactive store
// or shift are returned as dropped. The result is sorted by date, store, shift,
// skill and id.
func Expand(snapshot *model.Snapshot, cal *Calendar) ([]model.DemandSlot, []DroppedSlot, error) {
	dayTypes, err := cal.Classify(snapshot.Scope.Range)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to classify dates: %w", err)
	}

	// Unknown ids are absent from both maps and left for the index to reject
	activeStores := make(map[string]bool, len(snapshot.Stores))
	for _, store := range snapshot.Stores {
		activeStores[store.ID] = store.Active
	}
	activeShifts := make(map[string]bool, len(snapshot.Shifts))
	for _, shift := range snapshot.Shifts {
		activeShifts[shift.ID] = shift.Active
	}

	slots := make([]model.DemandSlot, 0, len(snapshot.DemandSlots))
	explicit := make(map[string]bool, len(snapshot.DemandSlots))
	var dropped []DroppedSlot
	for _, slot := range snapshot.DemandSlots {
		explicit[slotKey(slot.StoreID, model.DateKey(slot.Date), slot.ShiftID, slot.SkillID)] = true
		if active, known := activeStores[slot.StoreID]; known && !active {
			dropped = append(dropped, DroppedSlot{Slot: slot, Reason: fmt.Sprintf("store %s is inactive", slot.StoreID)})
			continue
		}
		if active, known := activeShifts[slot.ShiftID]; known && !active {
			dropped = append(dropped, DroppedSlot{Slot: slot, Reason: fmt.Sprintf("shift %s is inactive", slot.ShiftID)})
			continue
		}
		slots = append(slots, slot)
	}

	for _, date := range snapshot.Scope.Range.Days() {
		dateKey := model.DateKey(date)
		for _, tpl := range snapshot.RequirementTemplates {
			if !tpl.Active || tpl.DayType != dayTypes[dateKey] {
				continue
			}
			if !snapshot.Scope.IncludesStore(tpl.StoreID) || !activeStores[tpl.StoreID] || !activeShifts[tpl.ShiftID] {
				continue
			}
			if explicit[slotKey(tpl.StoreID, dateKey, tpl.ShiftID, tpl.SkillID)] {
				continue
			}
			slots = append(slots, model.DemandSlot{
				ID:       SlotID(tpl.StoreID, date, tpl.ShiftID, tpl.SkillID),
				StoreID:  tpl.StoreID,
				Date:     date,
				ShiftID:  tpl.ShiftID,
				SkillID:  tpl.SkillID,
				Required: tpl.Required,
			})
		}
	}

	slices.SortFunc(slots, func(a, b model.DemandSlot) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		if c := cmp.Compare(a.StoreID, b.StoreID); c != 0 {
			return c
		}
		if c := cmp.Compare(a.ShiftID, b.ShiftID); c != 0 {
			return c
		}
		if c := cmp.Compare(a.SkillID, b.SkillID); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	return slots, dropped, nil
}

func slotKey(storeID, dateKey, shiftID, skillID string) string {
	return storeID + "|" + dateKey + "|" + shiftID + "|" + skillID
}
