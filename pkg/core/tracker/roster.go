package tracker

import (
	"cmp"
	"slices"
	"time"

	"github.com/jakechorley/store-roster/pkg/core/model"
	"github.com/jakechorley/store-roster/pkg/db"
)

// RosterEntry is one position of the effective roster: a base assignment or a
// temporary addition with its modification chain folded in
type RosterEntry struct {
	AssignmentID string    `json:"assignmentId"`
	BatchID      string    `json:"batchId"`
	SlotID       string    `json:"slotId"`
	Sequence     int       `json:"sequence"`
	StoreID      string    `json:"storeId"`
	Date         time.Time `json:"date"`
	ShiftID      string    `json:"shiftId"`
	SkillID      string    `json:"skillId"`

	// EmployeeID is who currently holds the position ("" when unfilled)
	EmployeeID string `json:"employeeId,omitempty"`

	// BaseEmployeeID is who the batch assigned ("" for temporary additions and gaps)
	BaseEmployeeID string `json:"baseEmployeeId,omitempty"`

	// RegularEmployeeID works the parts of the shift outside a substitute Window.
	// It equals EmployeeID when there is no window.
	RegularEmployeeID string `json:"regularEmployeeId,omitempty"`

	// Window is set when the latest change is a substitution for part of the shift
	Window *model.Span `json:"window,omitempty"`

	Temporary      bool                       `json:"temporary"`
	Modified       bool                       `json:"modified"`
	Chain          []model.ModificationRecord `json:"chain,omitempty"`
	LatestSequence int64                      `json:"latestSequence"`
}

// Fold computes the effective roster from persisted batches and modification chains.
//
// Only the most recent batch containing a slot is authoritative for it; older
// batches and their chains are kept for history but ignored here. Each chain is
// applied in sequence order and the latest record wins.
func Fold(slots []db.BatchSlot, assignments []model.Assignment, records []model.ModificationRecord) []RosterEntry {
	latest := latestBatchSlots(slots)

	chains := make(map[string][]model.ModificationRecord)
	for _, r := range records {
		chains[r.AssignmentID] = append(chains[r.AssignmentID], r)
	}
	for id := range chains {
		slices.SortFunc(chains[id], func(a, b model.ModificationRecord) int {
			return cmp.Compare(a.Sequence, b.Sequence)
		})
	}

	entries := make([]RosterEntry, 0, len(assignments))
	seen := make(map[string]bool, len(assignments))

	for _, a := range assignments {
		bs, ok := latest[a.SlotID]
		if !ok || bs.BatchID != a.BatchID {
			continue
		}
		seen[a.ID] = true
		entry := RosterEntry{
			AssignmentID:      a.ID,
			BatchID:           a.BatchID,
			SlotID:            a.SlotID,
			Sequence:          a.Sequence,
			StoreID:           a.StoreID,
			Date:              a.Date,
			ShiftID:           a.ShiftID,
			SkillID:           a.SkillID,
			EmployeeID:        a.EmployeeID,
			BaseEmployeeID:    a.EmployeeID,
			RegularEmployeeID: a.EmployeeID,
		}
		entries = append(entries, applyChain(entry, chains[a.ID]))
	}

	for id, chain := range chains {
		if seen[id] || chain[0].Kind != model.ChangeTemporaryAdd {
			continue
		}
		bs, ok := latest[chain[0].SlotID]
		if !ok || bs.BatchID != chain[0].BatchID {
			continue
		}
		entry := RosterEntry{
			AssignmentID: id,
			BatchID:      bs.BatchID,
			SlotID:       bs.Slot.ID,
			Sequence:     bs.Slot.Required,
			StoreID:      bs.Slot.StoreID,
			Date:         bs.Slot.Date,
			ShiftID:      bs.Slot.ShiftID,
			SkillID:      bs.Slot.SkillID,
			Temporary:    true,
		}
		entries = append(entries, applyChain(entry, chain))
	}

	slices.SortFunc(entries, compareEntries)
	return entries
}

func applyChain(entry RosterEntry, chain []model.ModificationRecord) RosterEntry {
	for _, r := range chain {
		switch r.Kind {
		case model.ChangeSubstitute:
			entry.EmployeeID = r.NewEmployeeID
			entry.Window = r.Window
			if r.Window == nil {
				entry.RegularEmployeeID = r.NewEmployeeID
			}
		default:
			entry.EmployeeID = r.NewEmployeeID
			entry.RegularEmployeeID = r.NewEmployeeID
			entry.Window = nil
		}
		entry.LatestSequence = r.Sequence
	}
	if len(chain) > 0 {
		entry.Chain = chain
		entry.Modified = !entry.Temporary || len(chain) > 1
	}
	return entry
}

// latestBatchSlots picks, for every slot id, the entry from the most recently created batch
func latestBatchSlots(slots []db.BatchSlot) map[string]db.BatchSlot {
	latest := make(map[string]db.BatchSlot, len(slots))
	for _, bs := range slots {
		current, ok := latest[bs.Slot.ID]
		if !ok || bs.Supersedes(current) {
			latest[bs.Slot.ID] = bs
		}
	}
	return latest
}

func compareEntries(a, b RosterEntry) int {
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
	if c := cmp.Compare(a.SlotID, b.SlotID); c != 0 {
		return c
	}
	if a.Temporary != b.Temporary {
		if a.Temporary {
			return 1
		}
		return -1
	}
	if c := cmp.Compare(a.Sequence, b.Sequence); c != 0 {
		return c
	}
	return cmp.Compare(a.AssignmentID, b.AssignmentID)
}

// OnDuty returns the employees working the position, including the regular
// employee outside a partial substitution
func (e *RosterEntry) OnDuty() []string {
	var ids []string
	if e.EmployeeID != "" {
		ids = append(ids, e.EmployeeID)
	}
	if e.Window != nil && e.RegularEmployeeID != "" && e.RegularEmployeeID != e.EmployeeID {
		ids = append(ids, e.RegularEmployeeID)
	}
	return ids
}

// slot rebuilds the demand slot the entry fills
func (e *RosterEntry) slot() model.DemandSlot {
	return model.DemandSlot{
		ID:       e.SlotID,
		StoreID:  e.StoreID,
		Date:     e.Date,
		ShiftID:  e.ShiftID,
		SkillID:  e.SkillID,
		Required: 1,
	}
}
