package model

import (
	"time"
)

// CrossDayRule decides which calendar date a cross-midnight shift's hours count against
type CrossDayRule string

const (
	CrossDayByShiftStart  CrossDayRule = "by_shift_start"
	CrossDayByCalendarDay CrossDayRule = "by_calendar_day"
)

func (r CrossDayRule) IsValid() bool {
	return r == CrossDayByShiftStart || r == CrossDayByCalendarDay
}

// EmploymentType classifies an employee's contract
type EmploymentType string

const (
	EmploymentFullTime EmploymentType = "full_time"
	EmploymentPartTime EmploymentType = "part_time"
)

// LeaveStatus is the outcome of a leave application as seen by the roster engine
type LeaveStatus string

const (
	LeaveSubmitted LeaveStatus = "submitted"
	LeaveLocked    LeaveStatus = "locked"
	LeaveCancelled LeaveStatus = "cancelled"
)

// ClosureKind is the part of a day a store event closes
type ClosureKind string

const (
	ClosureFullDay   ClosureKind = "full_day"
	ClosureMorning   ClosureKind = "morning"
	ClosureAfternoon ClosureKind = "afternoon"
)

// Span returns the closed portion of the event date
func (k ClosureKind) Span() (Span, bool) {
	switch k {
	case ClosureFullDay:
		return Span{Start: 0, End: MinutesPerDay}, true
	case ClosureMorning:
		return Span{Start: 0, End: MinutesPerDay / 2}, true
	case ClosureAfternoon:
		return Span{Start: MinutesPerDay / 2, End: MinutesPerDay}, true
	}
	return Span{}, false
}

// DayType classifies a calendar date for requirement templates
type DayType string

const (
	DayTypeWeekday DayType = "weekday"
	DayTypeHoliday DayType = "holiday"
	DayTypeSpecial DayType = "special"
)

// Store is a physical shop or restaurant
type Store struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	CrossDayRule CrossDayRule `json:"crossDayRule"`
	Active       bool         `json:"active"`
}

// Break is an unpaid interval inside a shift
type Break struct {
	Start ClockTime `json:"start"`
	End   ClockTime `json:"end"`
}

// ClockWindow is a start and end clock time not yet placed on a shift's axis
type ClockWindow struct {
	Start ClockTime `json:"start"`
	End   ClockTime `json:"end"`
}

// Shift is a named working period defined by a store
type Shift struct {
	ID       string    `json:"id"`
	StoreID  string    `json:"storeId"`
	Name     string    `json:"name"`
	Code     string    `json:"code,omitempty"`
	Start    ClockTime `json:"start"`
	End      ClockTime `json:"end"`
	CrossDay bool      `json:"crossDay"`
	Breaks   []Break   `json:"breaks,omitempty"`
	Active   bool      `json:"active"`
}

// Span returns the shift interval relative to midnight of its start date
func (s *Shift) Span() Span {
	return NewSpan(s.Start, s.End, s.CrossDay)
}

// Wraps reports whether the shift runs past midnight of its start date
func (s *Shift) Wraps() bool {
	return s.Span().End > MinutesPerDay
}

// WindowSpan places a clock-time window inside the shift on the same axis as Span.
// On a shift that wraps, a window starting before the shift's start clock time
// belongs to the next day.
func (s *Shift) WindowSpan(w ClockWindow) Span {
	span := NewSpan(w.Start, w.End, false)
	if s.Wraps() && w.Start < s.Start {
		span = span.ShiftDays(1)
	}
	return span
}

// BreakSpans returns the breaks on the same axis as Span
func (s *Shift) BreakSpans() []Span {
	spans := make([]Span, 0, len(s.Breaks))
	for _, b := range s.Breaks {
		spans = append(spans, s.WindowSpan(ClockWindow{Start: b.Start, End: b.End}))
	}
	return spans
}

// WorkedMinutes returns the shift length minus breaks
func (s *Shift) WorkedMinutes() int {
	total := s.Span().Duration()
	for _, b := range s.BreakSpans() {
		total -= b.Duration()
	}
	return total
}

// Skill is a role an employee can fill (cashier, cook, host ...)
type Skill struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// AvailabilityWindow is a weekly recurring period an employee can work
type AvailabilityWindow struct {
	Weekday Weekday   `json:"weekday"`
	Start   ClockTime `json:"start"`
	End     ClockTime `json:"end"`
}

// Span returns the window on its own weekday's axis
func (w AvailabilityWindow) Span() Span {
	return Span{Start: int(w.Start), End: int(w.End)}
}

// Employee is a member of staff together with everything the solver needs to know about them
type Employee struct {
	ID           string               `json:"id"`
	Name         string               `json:"name"`
	Type         EmploymentType       `json:"type"`
	HomeStoreID  string               `json:"homeStoreId"`
	Priority     int                  `json:"priority"`
	Active       bool                 `json:"active"`
	Skills       map[string]int       `json:"skills"` // skill id -> priority score
	Availability []AvailabilityWindow `json:"availability"`
	RestDays     []Weekday            `json:"restDays,omitempty"`
}

// LeaveLock is the outcome of a leave application for a single date
type LeaveLock struct {
	EmployeeID string      `json:"employeeId"`
	Date       time.Time   `json:"date"`
	Status     LeaveStatus `json:"status"`
}

// StoreEvent closes a store for all or part of a date
type StoreEvent struct {
	StoreID     string      `json:"storeId"`
	Date        time.Time   `json:"date"`
	Kind        ClosureKind `json:"kind"`
	Description string      `json:"description,omitempty"`
}

// SupportGrant allows RequestingStoreID to borrow staff whose home is SupportingStoreID
type SupportGrant struct {
	RequestingStoreID string `json:"requestingStoreId"`
	SupportingStoreID string `json:"supportingStoreId"`
	Active            bool   `json:"active"`
}

// AccessGrant allows an employee to work at a store other than their home store
type AccessGrant struct {
	EmployeeID string `json:"employeeId"`
	StoreID    string `json:"storeId"`
}

// DemandSlot is a staffing need: Required people with SkillID on ShiftID at StoreID on Date
type DemandSlot struct {
	ID       string    `json:"id"`
	StoreID  string    `json:"storeId"`
	Date     time.Time `json:"date"`
	ShiftID  string    `json:"shiftId"`
	SkillID  string    `json:"skillId"`
	Required int       `json:"required"`
}

// RequirementTemplate is a recurring staffing need applied to every date of a day type
type RequirementTemplate struct {
	ID       string  `json:"id"`
	StoreID  string  `json:"storeId"`
	DayType  DayType `json:"dayType"`
	ShiftID  string  `json:"shiftId"`
	SkillID  string  `json:"skillId"`
	Required int     `json:"required"`
	Active   bool    `json:"active"`
}

// Scope is the set of stores and dates a generation run covers.
// An empty StoreIDs means every active store.
type Scope struct {
	StoreIDs []string  `json:"storeIds,omitempty"`
	Range    DateRange `json:"range"`
}

// IncludesStore reports whether the store is inside the scope
func (s Scope) IncludesStore(storeID string) bool {
	if len(s.StoreIDs) == 0 {
		return true
	}
	for _, id := range s.StoreIDs {
		if id == storeID {
			return true
		}
	}
	return false
}

// Overlaps reports whether two scopes could produce assignments for the same slot
func (s Scope) Overlaps(other Scope) bool {
	if !s.Range.Overlaps(other.Range) {
		return false
	}
	if len(s.StoreIDs) == 0 || len(other.StoreIDs) == 0 {
		return true
	}
	for _, id := range s.StoreIDs {
		if other.IncludesStore(id) {
			return true
		}
	}
	return false
}

// BatchStatus is the terminal state of a generation run
type BatchStatus string

const (
	BatchCompleted         BatchStatus = "completed"
	BatchCompletedWithGaps BatchStatus = "completed_with_gaps"
)

// Batch is the header for the assignments produced by one generation run
type Batch struct {
	ID             string      `json:"id"`
	Scope          Scope       `json:"scope"`
	Status         BatchStatus `json:"status"`
	BacktrackCount int         `json:"backtrackCount"`
	CreatedAt      time.Time   `json:"createdAt"`
}

// Assignment is one atomic position of a demand slot within a batch.
// An empty EmployeeID marks an unfilled position (a gap).
type Assignment struct {
	ID         string    `json:"id"`
	BatchID    string    `json:"batchId"`
	SlotID     string    `json:"slotId"`
	Sequence   int       `json:"sequence"`
	StoreID    string    `json:"storeId"`
	Date       time.Time `json:"date"`
	ShiftID    string    `json:"shiftId"`
	SkillID    string    `json:"skillId"`
	EmployeeID string    `json:"employeeId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// IsFilled reports whether the assignment has an employee
func (a *Assignment) IsFilled() bool {
	return a.EmployeeID != ""
}

// ChangeKind is the variant of a modification record
type ChangeKind string

const (
	ChangeSwap         ChangeKind = "swap"
	ChangeSubstitute   ChangeKind = "substitute"
	ChangeTemporaryAdd ChangeKind = "temporary_add"
)

func (k ChangeKind) IsValid() bool {
	return k == ChangeSwap || k == ChangeSubstitute || k == ChangeTemporaryAdd
}

// ModificationRecord is one append-only entry in an assignment's change chain.
//
// For temporary additions AssignmentID names a new chain that has no base
// assignment; SlotID and BatchID tie it back to the slot it was added to.
type ModificationRecord struct {
	ID                 string     `json:"id"`
	AssignmentID       string     `json:"assignmentId"`
	Sequence           int64      `json:"sequence"`
	Kind               ChangeKind `json:"kind"`
	BatchID            string     `json:"batchId"`
	SlotID             string     `json:"slotId"`
	OriginalEmployeeID string     `json:"originalEmployeeId,omitempty"`
	NewEmployeeID      string     `json:"newEmployeeId,omitempty"`
	Window             *Span      `json:"window,omitempty"`
	ActingUserID       string     `json:"actingUserId"`
	Reason             string     `json:"reason,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
}

// Snapshot is a consistent read of every demand and supply record a run needs
type Snapshot struct {
	Scope                Scope
	Stores               []Store
	Shifts               []Shift
	Skills               []Skill
	Employees            []Employee
	LeaveLocks           []LeaveLock
	StoreEvents          []StoreEvent
	SupportGrants        []SupportGrant
	AccessGrants         []AccessGrant
	DemandSlots          []DemandSlot
	RequirementTemplates []RequirementTemplate
}
