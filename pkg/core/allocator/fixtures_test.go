package allocator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jakechorley/store-roster/pkg/core/constraints"
	"github.com/jakechorley/store-roster/pkg/core/model"
)

// 2025-09-01 is a Monday
const monday = "2025-09-01"

type fixture struct {
	snapshot *model.Snapshot
}

func newFixture() *fixture {
	ct := model.MustClockTime
	return &fixture{snapshot: &model.Snapshot{
		Scope: model.Scope{Range: model.NewDateRange(model.MustDate("2025-09-01"), model.MustDate("2025-09-07"))},
		Stores: []model.Store{
			{ID: "s1", Name: "High Street", CrossDayRule: model.CrossDayByShiftStart, Active: true},
			{ID: "s2", Name: "Station", CrossDayRule: model.CrossDayByShiftStart, Active: true},
		},
		Shifts: []model.Shift{
			{ID: "day", StoreID: "s1", Name: "Day", Start: ct("09:00"), End: ct("17:00"), Active: true},
			{ID: "mid", StoreID: "s1", Name: "Mid", Start: ct("12:00"), End: ct("20:00"), Active: true},
			{ID: "late", StoreID: "s1", Name: "Late", Start: ct("17:00"), End: ct("24:00"), Active: true},
			{ID: "night", StoreID: "s1", Name: "Night", Start: ct("22:00"), End: ct("06:00"), CrossDay: true, Active: true},
			{ID: "early", StoreID: "s1", Name: "Early", Start: ct("05:00"), End: ct("13:00"), Active: true},
			{ID: "s2day", StoreID: "s2", Name: "Day", Start: ct("09:00"), End: ct("17:00"), Active: true},
		},
		Skills: []model.Skill{
			{ID: "cashier", Name: "Cashier", Active: true},
			{ID: "cook", Name: "Cook", Active: true},
		},
	}}
}

// allWeek returns round-the-clock availability for every weekday
func allWeek() []model.AvailabilityWindow {
	var windows []model.AvailabilityWindow
	for wd := model.Monday; wd <= model.Sunday; wd++ {
		windows = append(windows, model.AvailabilityWindow{Weekday: wd, Start: 0, End: model.MinutesPerDay})
	}
	return windows
}

func (f *fixture) employee(id, home string, priority int, skills map[string]int) *fixture {
	f.snapshot.Employees = append(f.snapshot.Employees, model.Employee{
		ID:           id,
		Name:         id,
		Type:         model.EmploymentFullTime,
		HomeStoreID:  home,
		Priority:     priority,
		Active:       true,
		Skills:       skills,
		Availability: allWeek(),
	})
	return f
}

func (f *fixture) lastEmployee() *model.Employee {
	return &f.snapshot.Employees[len(f.snapshot.Employees)-1]
}

func (f *fixture) slot(id, store, date, shift, skill string, required int) *fixture {
	f.snapshot.DemandSlots = append(f.snapshot.DemandSlots, model.DemandSlot{
		ID:       id,
		StoreID:  store,
		Date:     model.MustDate(date),
		ShiftID:  shift,
		SkillID:  skill,
		Required: required,
	})
	return f
}

func (f *fixture) leave(employeeID, date string, status model.LeaveStatus) *fixture {
	f.snapshot.LeaveLocks = append(f.snapshot.LeaveLocks, model.LeaveLock{
		EmployeeID: employeeID,
		Date:       model.MustDate(date),
		Status:     status,
	})
	return f
}

func (f *fixture) index(t *testing.T) *constraints.Index {
	t.Helper()
	ix, err := constraints.BuildIndex(f.snapshot, constraints.Options{})
	require.NoError(t, err)
	return ix
}

// assignedBySlot returns slot id -> employees holding it, in sequence order
func assignedBySlot(outcome *AllocationOutcome) map[string][]string {
	result := make(map[string][]string)
	for _, task := range outcome.State.Tasks {
		result[task.Slot.ID] = append(result[task.Slot.ID], task.Assigned)
	}
	return result
}
