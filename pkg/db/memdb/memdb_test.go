package memdb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jakechorley/store-roster/pkg/core/demand"
	"github.com/jakechorley/store-roster/pkg/core/model"
)

func loadTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := LoadFile("testdata/roster.yaml")
	require.NoError(t, err)
	return d
}

func TestLoadFile(t *testing.T) {
	d := loadTestDB(t)

	require.Len(t, d.data.Stores, 2)
	assert.Equal(t, model.CrossDayByCalendarDay, d.data.Stores[1].CrossDayRule)

	require.Len(t, d.data.Shifts, 2)
	day := d.data.Shifts[0]
	assert.Equal(t, model.MustClockTime("09:00"), day.Start)
	require.Len(t, day.Breaks, 1)
	assert.Equal(t, model.MustClockTime("12:30"), day.Breaks[0].End)
	assert.True(t, d.data.Shifts[1].CrossDay)

	require.Len(t, d.data.Employees, 2)
	e1 := d.data.Employees[0]
	assert.Equal(t, 90, e1.Skills["cashier"])
	assert.Len(t, e1.Availability, 5, "one window per listed weekday")
	assert.Equal(t, []model.Weekday{7}, e1.RestDays)
	assert.Equal(t, model.MustClockTime("24:00"), d.data.Employees[1].Availability[0].End)

	require.Len(t, d.data.DemandSlots, 1)
	slot := d.data.DemandSlots[0]
	assert.Equal(t, demand.SlotID("s1", model.MustDate("2025-09-01"), "day", "cashier"), slot.ID)
	assert.Equal(t, 2, slot.Required)

	require.Len(t, d.data.RequirementTemplates, 1)
	assert.Equal(t, model.DayTypeWeekday, d.data.RequirementTemplates[0].DayType)
}

func TestParseData_InvalidTime(t *testing.T) {
	_, err := ParseData([]byte(`
shifts:
  - id: bad
    start: "9am"
    end: "17:00"
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shift bad")
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile("testdata/does-not-exist.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read data file")
}

func TestReadSnapshot(t *testing.T) {
	d := loadTestDB(t)
	ctx := context.Background()

	scope := model.Scope{
		StoreIDs: []string{"s1"},
		Range:    model.NewDateRange(model.MustDate("2025-09-01"), model.MustDate("2025-09-01")),
	}
	snap, err := d.ReadSnapshot(ctx, scope)
	require.NoError(t, err)

	assert.Equal(t, scope, snap.Scope)
	assert.Len(t, snap.Stores, 2, "every store is needed to resolve borrowers")

	ids := make([]string, 0, len(snap.Employees))
	for _, e := range snap.Employees {
		ids = append(ids, e.ID)
	}
	assert.ElementsMatch(t, []string{"e1", "e2"}, ids, "e2 holds an access grant for s1")

	assert.Len(t, snap.DemandSlots, 1)
	require.Len(t, snap.LeaveLocks, 1, "leave on the day after the range is included")
	assert.Empty(t, snap.StoreEvents)
	require.Len(t, snap.RequirementTemplates, 0)
}

func TestReadSnapshot_Cancelled(t *testing.T) {
	d := loadTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.ReadSnapshot(ctx, model.Scope{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestListEmployees(t *testing.T) {
	d := loadTestDB(t)
	ctx := context.Background()

	got, err := d.ListEmployees(ctx, []string{"s2"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "e2", got[0].ID)

	all, err := d.ListEmployees(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestRunGuard(t *testing.T) {
	d := New(Data{})
	ctx := context.Background()

	week := model.NewDateRange(model.MustDate("2025-09-01"), model.MustDate("2025-09-07"))
	nextWeek := model.NewDateRange(model.MustDate("2025-09-08"), model.MustDate("2025-09-14"))

	first, err := d.BeginRun(ctx, model.Scope{StoreIDs: []string{"s1"}, Range: week})
	require.NoError(t, err)

	t.Run("overlapping scope is rejected", func(t *testing.T) {
		_, err := d.BeginRun(ctx, model.Scope{Range: week})
		assert.ErrorIs(t, err, model.ErrOverlappingRun)
	})

	t.Run("other store is allowed", func(t *testing.T) {
		id, err := d.BeginRun(ctx, model.Scope{StoreIDs: []string{"s2"}, Range: week})
		require.NoError(t, err)
		require.NoError(t, d.EndRun(ctx, id))
	})

	t.Run("disjoint dates are allowed", func(t *testing.T) {
		id, err := d.BeginRun(ctx, model.Scope{StoreIDs: []string{"s1"}, Range: nextWeek})
		require.NoError(t, err)
		require.NoError(t, d.EndRun(ctx, id))
	})

	require.NoError(t, d.EndRun(ctx, first))

	_, err = d.BeginRun(ctx, model.Scope{Range: week})
	assert.NoError(t, err, "scope is free once the run ends")

	assert.ErrorIs(t, d.EndRun(ctx, "unknown"), model.ErrNotFound)
}

func TestPersistBatchAndReads(t *testing.T) {
	d := New(Data{})
	ctx := context.Background()

	monday := model.MustDate("2025-09-01")
	slot := model.DemandSlot{ID: "slot-1", StoreID: "s1", Date: monday, ShiftID: "day", SkillID: "cashier", Required: 1}
	first := model.Batch{ID: "b1", Scope: model.Scope{Range: model.NewDateRange(monday, monday)}, CreatedAt: time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)}
	second := model.Batch{ID: "b2", Scope: first.Scope, CreatedAt: first.CreatedAt.Add(time.Hour)}

	require.NoError(t, d.PersistBatch(ctx, first, []model.DemandSlot{slot}, []model.Assignment{
		{ID: "a1", BatchID: "b1", SlotID: "slot-1", StoreID: "s1", Date: monday, ShiftID: "day", SkillID: "cashier", EmployeeID: "e1"},
	}))
	require.NoError(t, d.PersistBatch(ctx, second, []model.DemandSlot{slot}, []model.Assignment{
		{ID: "a2", BatchID: "b2", SlotID: "slot-1", StoreID: "s1", Date: monday, ShiftID: "day", SkillID: "cashier"},
	}))

	err := d.PersistBatch(ctx, first, nil, nil)
	assert.Error(t, err, "batch ids are unique")

	a, err := d.GetAssignment(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "e1", a.EmployeeID)

	_, err = d.GetAssignment(ctx, "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)

	bs, err := d.GetDemandSlot(ctx, "slot-1")
	require.NoError(t, err)
	assert.Equal(t, "b2", bs.BatchID, "latest batch wins")

	batches, err := d.ListBatches(ctx, model.NewDateRange(monday, monday))
	require.NoError(t, err)
	require.Len(t, batches, 2)
	assert.Equal(t, "b1", batches[0].ID)

	assignments, err := d.ListAssignments(ctx, model.NewDateRange(monday.AddDate(0, 0, 1), monday.AddDate(0, 0, 2)))
	require.NoError(t, err)
	assert.Empty(t, assignments)
}

func TestGetDemandSlot_SameInstantBatches(t *testing.T) {
	d := New(Data{})
	ctx := context.Background()

	monday := model.MustDate("2025-09-01")
	slot := model.DemandSlot{ID: "slot-1", StoreID: "s1", Date: monday, ShiftID: "day", SkillID: "cashier", Required: 1}
	at := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)

	for _, id := range []string{"b2", "b1"} {
		batch := model.Batch{ID: id, Scope: model.Scope{Range: model.NewDateRange(monday, monday)}, CreatedAt: at}
		require.NoError(t, d.PersistBatch(ctx, batch, []model.DemandSlot{slot}, nil))
	}

	bs, err := d.GetDemandSlot(ctx, "slot-1")
	require.NoError(t, err)
	assert.Equal(t, "b2", bs.BatchID)
}

func TestAppendModification(t *testing.T) {
	d := New(Data{})
	ctx := context.Background()

	monday := model.MustDate("2025-09-01")
	slot := model.DemandSlot{ID: "slot-1", StoreID: "s1", Date: monday, ShiftID: "day", SkillID: "cashier", Required: 1}
	require.NoError(t, d.PersistBatch(ctx, model.Batch{ID: "b1"}, []model.DemandSlot{slot}, nil))

	record := model.ModificationRecord{ID: "m1", AssignmentID: "a1", Sequence: 1, Kind: model.ChangeSwap, BatchID: "b1", SlotID: "slot-1"}
	require.NoError(t, d.AppendModification(ctx, record, 0))

	t.Run("stale expected sequence", func(t *testing.T) {
		stale := record
		stale.ID = "m2"
		err := d.AppendModification(ctx, stale, 0)
		assert.ErrorIs(t, err, model.ErrConcurrentModification)
	})

	t.Run("sequence must follow expected", func(t *testing.T) {
		skipped := record
		skipped.ID = "m3"
		skipped.Sequence = 5
		err := d.AppendModification(ctx, skipped, 1)
		assert.ErrorIs(t, err, model.ErrConcurrentModification)
	})

	next := record
	next.ID = "m4"
	next.Sequence = 2
	require.NoError(t, d.AppendModification(ctx, next, 1))

	seq, err := d.LatestSequence(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), seq)

	chain, err := d.ListModificationsForAssignment(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, "m4", chain[1].ID)

	inRange, err := d.ListModifications(ctx, model.NewDateRange(monday, monday))
	require.NoError(t, err)
	assert.Len(t, inRange, 2)

	outOfRange, err := d.ListModifications(ctx, model.NewDateRange(monday.AddDate(0, 0, 7), monday.AddDate(0, 0, 7)))
	require.NoError(t, err)
	assert.Empty(t, outOfRange)
}
