package constraints

import (
	"fmt"
	"slices"
	"sort"

	"github.com/jakechorley/store-roster/pkg/core/model"
)

// leaveRank orders statuses so the strongest one wins when several locks share a date
var leaveRank = map[model.LeaveStatus]int{
	model.LeaveCancelled: 0,
	model.LeaveSubmitted: 1,
	model.LeaveLocked:    2,
}

// BuildIndex scans the snapshot once and returns the lookup index.
//
// Malformed input is rejected here with a *model.DataIntegrityError so the
// solver never has to deal with it:
//   - shift breaks outside the shift span, empty or overlapping each other
//   - availability windows with an invalid weekday, start >= end, or overlapping
//     another window of the same employee and weekday
//   - demand slots with a negative count or referencing unknown stores, shifts or skills
func BuildIndex(snapshot *model.Snapshot, opts Options) (*Index, error) {
	if snapshot == nil {
		return nil, fmt.Errorf("snapshot is required")
	}

	defaultRule := opts.DefaultCrossDayRule
	if !defaultRule.IsValid() {
		defaultRule = model.CrossDayByShiftStart
	}

	ix := &Index{
		scope:        snapshot.Scope,
		defaultRule:  defaultRule,
		stores:       make(map[string]*model.Store, len(snapshot.Stores)),
		shifts:       make(map[string]*model.Shift, len(snapshot.Shifts)),
		skills:       make(map[string]*model.Skill, len(snapshot.Skills)),
		employees:    make(map[string]*model.Employee, len(snapshot.Employees)),
		availability: make(map[string]map[model.Weekday][]model.Span, len(snapshot.Employees)),
		restDays:     make(map[string]map[model.Weekday]bool),
		leave:        make(map[string]map[string]model.LeaveStatus),
		closures:     make(map[string]map[string][]model.Span),
		support:      make(map[string][]string),
		access:       make(map[string]map[string]bool),
	}

	for i := range snapshot.Stores {
		store := &snapshot.Stores[i]
		ix.stores[store.ID] = store
	}

	for i := range snapshot.Skills {
		skill := &snapshot.Skills[i]
		ix.skills[skill.ID] = skill
	}

	for i := range snapshot.Shifts {
		shift := &snapshot.Shifts[i]
		if err := validateBreaks(shift); err != nil {
			return nil, err
		}
		ix.shifts[shift.ID] = shift
	}

	for i := range snapshot.Employees {
		emp := &snapshot.Employees[i]
		windows, err := indexAvailability(emp)
		if err != nil {
			return nil, err
		}
		ix.employees[emp.ID] = emp
		ix.employeeIDs = append(ix.employeeIDs, emp.ID)
		ix.availability[emp.ID] = windows

		if len(emp.RestDays) > 0 {
			rest := make(map[model.Weekday]bool, len(emp.RestDays))
			for _, wd := range emp.RestDays {
				rest[wd] = true
			}
			ix.restDays[emp.ID] = rest
		}
	}
	sort.Strings(ix.employeeIDs)

	for _, lock := range snapshot.LeaveLocks {
		byDate, ok := ix.leave[lock.EmployeeID]
		if !ok {
			byDate = make(map[string]model.LeaveStatus)
			ix.leave[lock.EmployeeID] = byDate
		}
		key := model.DateKey(lock.Date)
		if current, exists := byDate[key]; !exists || leaveRank[lock.Status] > leaveRank[current] {
			byDate[key] = lock.Status
		}
	}

	for _, event := range snapshot.StoreEvents {
		closed, ok := event.Kind.Span()
		if !ok {
			return nil, &model.DataIntegrityError{
				Entity: "store_event",
				ID:     event.StoreID + "/" + model.DateKey(event.Date),
				Reason: fmt.Sprintf("unknown closure kind %q", event.Kind),
			}
		}
		byDate, ok := ix.closures[event.StoreID]
		if !ok {
			byDate = make(map[string][]model.Span)
			ix.closures[event.StoreID] = byDate
		}
		key := model.DateKey(event.Date)
		byDate[key] = append(byDate[key], closed)
	}

	for _, grant := range snapshot.SupportGrants {
		if !grant.Active {
			continue
		}
		supporters := ix.support[grant.RequestingStoreID]
		if !slices.Contains(supporters, grant.SupportingStoreID) {
			ix.support[grant.RequestingStoreID] = append(supporters, grant.SupportingStoreID)
		}
	}
	for storeID := range ix.support {
		sort.Strings(ix.support[storeID])
	}

	for _, grant := range snapshot.AccessGrants {
		stores, ok := ix.access[grant.EmployeeID]
		if !ok {
			stores = make(map[string]bool)
			ix.access[grant.EmployeeID] = stores
		}
		stores[grant.StoreID] = true
	}

	for _, slot := range snapshot.DemandSlots {
		if err := ix.validateSlot(slot); err != nil {
			return nil, err
		}
		ix.demandSlots = append(ix.demandSlots, slot)
	}

	return ix, nil
}

// validateBreaks checks every break lies inside the shift and none overlap
func validateBreaks(shift *model.Shift) error {
	span := shift.Span()
	breaks := shift.BreakSpans()

	for i, b := range breaks {
		if b.IsEmpty() {
			return &model.DataIntegrityError{
				Entity: "shift",
				ID:     shift.ID,
				Reason: fmt.Sprintf("break %d is empty", i),
			}
		}
		if !span.Contains(b) {
			return &model.DataIntegrityError{
				Entity: "shift",
				ID:     shift.ID,
				Reason: fmt.Sprintf("break %s is outside shift %s", b, span),
			}
		}
	}

	sorted := slices.Clone(breaks)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })
	for i := 1; i < len(sorted); i++ {
		if sorted[i-1].Overlaps(sorted[i]) {
			return &model.DataIntegrityError{
				Entity: "shift",
				ID:     shift.ID,
				Reason: fmt.Sprintf("breaks %s and %s overlap", sorted[i-1], sorted[i]),
			}
		}
	}
	return nil
}

// indexAvailability validates an employee's windows and groups them by weekday.
// Touching windows (09:00-12:00, 12:00-17:00) are merged so a shift spanning
// both counts as covered.
func indexAvailability(emp *model.Employee) (map[model.Weekday][]model.Span, error) {
	byDay := make(map[model.Weekday][]model.Span)

	for _, w := range emp.Availability {
		if !w.Weekday.IsValid() {
			return nil, &model.DataIntegrityError{
				Entity: "employee",
				ID:     emp.ID,
				Reason: fmt.Sprintf("availability weekday %d is not within 1..7", w.Weekday),
			}
		}
		if w.Start >= w.End || w.End > model.MinutesPerDay {
			return nil, &model.DataIntegrityError{
				Entity: "employee",
				ID:     emp.ID,
				Reason: fmt.Sprintf("availability window %s-%s on weekday %d is invalid", w.Start, w.End, w.Weekday),
			}
		}
		byDay[w.Weekday] = append(byDay[w.Weekday], w.Span())
	}

	for wd, spans := range byDay {
		sort.Slice(spans, func(i, j int) bool { return spans[i].Start < spans[j].Start })

		merged := []model.Span{spans[0]}
		for _, s := range spans[1:] {
			last := &merged[len(merged)-1]
			if last.Overlaps(s) {
				return nil, &model.DataIntegrityError{
					Entity: "employee",
					ID:     emp.ID,
					Reason: fmt.Sprintf("availability windows %s and %s overlap on weekday %d", *last, s, wd),
				}
			}
			if last.End == s.Start {
				last.End = s.End
				continue
			}
			merged = append(merged, s)
		}
		byDay[wd] = merged
	}

	return byDay, nil
}

func (ix *Index) validateSlot(slot model.DemandSlot) error {
	integrity := func(reason string) error {
		return &model.DataIntegrityError{Entity: "demand_slot", ID: slot.ID, Reason: reason}
	}

	if slot.Required < 0 {
		return integrity(fmt.Sprintf("required count %d is negative", slot.Required))
	}
	if _, ok := ix.stores[slot.StoreID]; !ok {
		return integrity(fmt.Sprintf("unknown store %q", slot.StoreID))
	}
	shift, ok := ix.shifts[slot.ShiftID]
	if !ok {
		return integrity(fmt.Sprintf("unknown shift %q", slot.ShiftID))
	}
	if shift.StoreID != slot.StoreID {
		return integrity(fmt.Sprintf("shift %q belongs to store %q, not %q", shift.ID, shift.StoreID, slot.StoreID))
	}
	if _, ok := ix.skills[slot.SkillID]; !ok {
		return integrity(fmt.Sprintf("unknown skill %q", slot.SkillID))
	}
	return nil
}
