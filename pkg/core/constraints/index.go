package constraints

import (
	"slices"
	"time"

	"github.com/jakechorley/store-roster/pkg/core/model"
)

// Options controls how the index interprets the snapshot
type Options struct {
	// DefaultCrossDayRule applies to stores that do not set their own rule
	DefaultCrossDayRule model.CrossDayRule
}

// Index is the read-only lookup structure the ranker and solver work against.
// It is built once per run and never mutated afterwards, so it is safe for
// concurrent readers.
type Index struct {
	scope       model.Scope
	defaultRule model.CrossDayRule

	stores    map[string]*model.Store
	shifts    map[string]*model.Shift
	skills    map[string]*model.Skill
	employees map[string]*model.Employee

	// employeeIDs is sorted ascending so iteration is deterministic
	employeeIDs []string

	// employee -> weekday -> merged, sorted availability spans
	availability map[string]map[model.Weekday][]model.Span
	restDays     map[string]map[model.Weekday]bool

	// employee -> date key -> strongest leave status for that date
	leave map[string]map[string]model.LeaveStatus

	// store -> date key -> closed spans on that date
	closures map[string]map[string][]model.Span

	// requesting store -> sorted supporting stores
	support map[string][]string

	// employee -> stores they hold an access grant for
	access map[string]map[string]bool

	demandSlots []model.DemandSlot
}

// Scope returns the scope the index was built for
func (ix *Index) Scope() model.Scope {
	return ix.scope
}

func (ix *Index) Store(id string) (*model.Store, bool) {
	s, ok := ix.stores[id]
	return s, ok
}

func (ix *Index) Shift(id string) (*model.Shift, bool) {
	s, ok := ix.shifts[id]
	return s, ok
}

func (ix *Index) Skill(id string) (*model.Skill, bool) {
	s, ok := ix.skills[id]
	return s, ok
}

func (ix *Index) Employee(id string) (*model.Employee, bool) {
	e, ok := ix.employees[id]
	return e, ok
}

// EmployeeIDs returns every indexed employee id in ascending order
func (ix *Index) EmployeeIDs() []string {
	return ix.employeeIDs
}

// DemandSlots returns the validated demand slots of the snapshot
func (ix *Index) DemandSlots() []model.DemandSlot {
	return ix.demandSlots
}

// CrossDayRule returns the attribution rule in force for a store
func (ix *Index) CrossDayRule(storeID string) model.CrossDayRule {
	if store, ok := ix.stores[storeID]; ok && store.CrossDayRule.IsValid() {
		return store.CrossDayRule
	}
	return ix.defaultRule
}

// LeaveStatus returns the strongest leave status recorded for the employee on date
func (ix *Index) LeaveStatus(employeeID string, date time.Time) (model.LeaveStatus, bool) {
	status, ok := ix.leave[employeeID][model.DateKey(date)]
	return status, ok
}

// IsOnLeave reports whether the employee holds a locked leave day on date
func (ix *Index) IsOnLeave(employeeID string, date time.Time) bool {
	status, ok := ix.LeaveStatus(employeeID, date)
	return ok && status == model.LeaveLocked
}

// LeaveDates returns the calendar dates whose leave blocks a shift starting on date.
//
// Under by_shift_start a shift belongs entirely to its start date. Under
// by_calendar_day a cross-midnight shift also counts against the next date.
func (ix *Index) LeaveDates(storeID string, date time.Time, shift *model.Shift) []time.Time {
	date = model.NormalizeDate(date)
	dates := []time.Time{date}
	if shift.Span().End > model.MinutesPerDay && ix.CrossDayRule(storeID) == model.CrossDayByCalendarDay {
		dates = append(dates, date.AddDate(0, 0, 1))
	}
	return dates
}

// IsBlockedByLeave reports whether locked leave prevents the employee working the shift
func (ix *Index) IsBlockedByLeave(employeeID, storeID string, date time.Time, shift *model.Shift) bool {
	for _, d := range ix.LeaveDates(storeID, date, shift) {
		if ix.IsOnLeave(employeeID, d) {
			return true
		}
	}
	return false
}

// HasSubmittedLeave reports whether an unapproved leave application touches the shift
func (ix *Index) HasSubmittedLeave(employeeID, storeID string, date time.Time, shift *model.Shift) bool {
	for _, d := range ix.LeaveDates(storeID, date, shift) {
		if status, ok := ix.LeaveStatus(employeeID, d); ok && status == model.LeaveSubmitted {
			return true
		}
	}
	return false
}

// IsRestDay reports whether date falls on one of the employee's weekly rest days
func (ix *Index) IsRestDay(employeeID string, date time.Time) bool {
	return ix.restDays[employeeID][model.WeekdayOf(date)]
}

// IsAvailableFor reports whether the employee's weekly windows cover the whole shift.
// A cross-midnight shift is split at midnight and each portion is checked against
// the windows of the weekday it falls on. Rest days are never available.
func (ix *Index) IsAvailableFor(employeeID string, date time.Time, shift *model.Shift) bool {
	windows, ok := ix.availability[employeeID]
	if !ok {
		return false
	}

	date = model.NormalizeDate(date)
	for _, portion := range shift.Span().SplitByDay() {
		day := date.AddDate(0, 0, portion.DayOffset)
		if ix.IsRestDay(employeeID, day) {
			return false
		}
		covered := false
		for _, w := range windows[model.WeekdayOf(day)] {
			if w.Contains(portion.Span) {
				covered = true
				break
			}
		}
		if !covered {
			return false
		}
	}
	return true
}

// SkillScore returns the employee's priority score for a skill and whether they hold it.
// Inactive skills are never held.
func (ix *Index) SkillScore(employeeID, skillID string) (int, bool) {
	if skill, ok := ix.skills[skillID]; ok && !skill.Active {
		return 0, false
	}
	emp, ok := ix.employees[employeeID]
	if !ok {
		return 0, false
	}
	score, ok := emp.Skills[skillID]
	return score, ok
}

// IsClosedFor reports whether a store event closes any part of the shift.
// Events on the following date are checked too, for cross-midnight shifts.
func (ix *Index) IsClosedFor(storeID string, date time.Time, shift *model.Shift) bool {
	byDate, ok := ix.closures[storeID]
	if !ok {
		return false
	}

	date = model.NormalizeDate(date)
	span := shift.Span()
	for offset := 0; offset*model.MinutesPerDay < span.End; offset++ {
		for _, closed := range byDate[model.DateKey(date.AddDate(0, 0, offset))] {
			if closed.ShiftDays(offset).Overlaps(span) {
				return true
			}
		}
	}
	return false
}

// SupportStores returns the stores the given store may borrow staff from, sorted by id
func (ix *Index) SupportStores(storeID string) []string {
	return ix.support[storeID]
}

// HasAccess reports whether the employee holds an explicit access grant for the store
func (ix *Index) HasAccess(employeeID, storeID string) bool {
	return ix.access[employeeID][storeID]
}

// IsBorrowed reports whether working at storeID would make the employee a borrowed worker
func (ix *Index) IsBorrowed(employeeID, storeID string) bool {
	emp, ok := ix.employees[employeeID]
	return !ok || emp.HomeStoreID != storeID
}

// CanWorkAt reports whether the employee may be rostered at the store: either it is
// their home store, or they hold an access grant for it and the store has an active
// support grant naming their home store.
func (ix *Index) CanWorkAt(employeeID, storeID string) bool {
	emp, ok := ix.employees[employeeID]
	if !ok {
		return false
	}
	if emp.HomeStoreID == storeID {
		return true
	}
	if !ix.HasAccess(employeeID, storeID) {
		return false
	}
	_, found := slices.BinarySearch(ix.support[storeID], emp.HomeStoreID)
	return found
}

// SpanOn places a shift starting on date onto the index's axis, where minute 0 is
// midnight of the first day in scope. Spans from different dates are directly comparable.
func (ix *Index) SpanOn(date time.Time, shift *model.Shift) model.Span {
	return shift.Span().ShiftDays(model.DaysBetween(ix.scope.Range.Start, date))
}
