package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jakechorley/store-roster/pkg/core/model"
	"github.com/jakechorley/store-roster/pkg/db"
	"github.com/jakechorley/store-roster/pkg/db/memdb"
)

var monday = model.MustDate("2025-09-01")

func allWeek() []model.AvailabilityWindow {
	windows := make([]model.AvailabilityWindow, 0, 7)
	for wd := model.Weekday(1); wd <= 7; wd++ {
		windows = append(windows, model.AvailabilityWindow{Weekday: wd, Start: 0, End: model.MinutesPerDay})
	}
	return windows
}

func employee(id string, skills map[string]int) model.Employee {
	return model.Employee{
		ID:           id,
		Name:         id,
		Type:         model.EmploymentFullTime,
		HomeStoreID:  "s1",
		Active:       true,
		Skills:       skills,
		Availability: allWeek(),
	}
}

type fixture struct {
	store   *memdb.DB
	tracker *Tracker
	dayID   string
	nightID string
}

// newFixture persists one batch for monday:
//
//	slot-day   (09:00-17:00 cashier x2): a1 = e1, a2 = e2
//	slot-night (22:00-06:00 cashier x1): a3 = e3
func newFixture(t *testing.T) *fixture {
	t.Helper()

	cashier := map[string]int{"cashier": 50}
	store := memdb.New(memdb.Data{
		Stores: []model.Store{{ID: "s1", Name: "High Street", Active: true}},
		Shifts: []model.Shift{
			{ID: "day", StoreID: "s1", Name: "Day", Start: model.MustClockTime("09:00"), End: model.MustClockTime("17:00"), Active: true},
			{ID: "night", StoreID: "s1", Name: "Night", Start: model.MustClockTime("22:00"), End: model.MustClockTime("06:00"), CrossDay: true, Active: true},
		},
		Skills: []model.Skill{{ID: "cashier", Name: "Cashier", Active: true}},
		Employees: []model.Employee{
			employee("e1", map[string]int{"cashier": 90}),
			employee("e2", map[string]int{"cashier": 80}),
			employee("e3", map[string]int{"cashier": 70}),
			employee("e4", nil),
			employee("e5", cashier),
		},
		LeaveLocks: []model.LeaveLock{{EmployeeID: "e5", Date: monday, Status: model.LeaveLocked}},
	})

	daySlot := model.DemandSlot{ID: "slot-day", StoreID: "s1", Date: monday, ShiftID: "day", SkillID: "cashier", Required: 2}
	nightSlot := model.DemandSlot{ID: "slot-night", StoreID: "s1", Date: monday, ShiftID: "night", SkillID: "cashier", Required: 1}
	batch := model.Batch{
		ID:        "b1",
		Scope:     model.Scope{Range: model.NewDateRange(monday, monday)},
		Status:    model.BatchCompleted,
		CreatedAt: time.Date(2025, 8, 20, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.PersistBatch(context.Background(), batch, []model.DemandSlot{daySlot, nightSlot}, []model.Assignment{
		assignment("a1", "b1", daySlot, 0, "e1"),
		assignment("a2", "b1", daySlot, 1, "e2"),
		assignment("a3", "b1", nightSlot, 0, "e3"),
	}))

	var next int
	tr := New(store, zap.NewNop(), Options{
		Now: func() time.Time { return time.Date(2025, 8, 25, 12, 0, 0, 0, time.UTC) },
		NewID: func() string {
			next++
			return fmt.Sprintf("id-%d", next)
		},
	})
	return &fixture{store: store, tracker: tr, dayID: daySlot.ID, nightID: nightSlot.ID}
}

func assignment(id, batchID string, slot model.DemandSlot, seq int, employeeID string) model.Assignment {
	return model.Assignment{
		ID:         id,
		BatchID:    batchID,
		SlotID:     slot.ID,
		Sequence:   seq,
		StoreID:    slot.StoreID,
		Date:       slot.Date,
		ShiftID:    slot.ShiftID,
		SkillID:    slot.SkillID,
		EmployeeID: employeeID,
	}
}

func entryByID(entries []RosterEntry, id string) *RosterEntry {
	for i := range entries {
		if entries[i].AssignmentID == id {
			return &entries[i]
		}
	}
	return nil
}

func change(employeeID string) Change {
	return Change{EmployeeID: employeeID, ActingUserID: "manager", Reason: "cover", ExpectedSequence: AnySequence}
}

func TestRecordSwap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	record, err := f.tracker.RecordSwap(ctx, "a1", Change{EmployeeID: "e3", ActingUserID: "manager", Reason: "cover", ExpectedSequence: 0})
	require.NoError(t, err)
	assert.Equal(t, int64(1), record.Sequence)
	assert.Equal(t, model.ChangeSwap, record.Kind)
	assert.Equal(t, "e1", record.OriginalEmployeeID)
	assert.Equal(t, "e3", record.NewEmployeeID)
	assert.Equal(t, "b1", record.BatchID)
	assert.Equal(t, f.dayID, record.SlotID)

	roster, err := f.tracker.EffectiveRosterFor(ctx, monday)
	require.NoError(t, err)
	require.Len(t, roster, 3)

	entry := entryByID(roster, "a1")
	require.NotNil(t, entry)
	assert.Equal(t, "e3", entry.EmployeeID)
	assert.Equal(t, "e1", entry.BaseEmployeeID)
	assert.True(t, entry.Modified)
	assert.Equal(t, int64(1), entry.LatestSequence)
	require.Len(t, entry.Chain, 1)

	// The original assignment is still intact in history
	history, err := f.tracker.History(ctx, model.NewDateRange(monday, monday))
	require.NoError(t, err)
	require.Len(t, history, 1)
	original := history[0].Assignments
	require.Len(t, original, 3)
	for _, a := range original {
		if a.ID == "a1" {
			assert.Equal(t, "e1", a.EmployeeID)
		}
	}
	require.Len(t, history[0].Modifications, 1)
	assert.Equal(t, "e3", history[0].Modifications[0].NewEmployeeID)
}

func TestRecordSwap_Ineligible(t *testing.T) {
	tests := []struct {
		name       string
		employeeID string
		reason     string
	}{
		{name: "already on the same shift", employeeID: "e2", reason: "is already working an overlapping shift"},
		{name: "missing skill", employeeID: "e4", reason: "does not hold the required skill"},
		{name: "locked leave", employeeID: "e5", reason: "is on locked leave"},
		{name: "unknown employee", employeeID: "nobody", reason: "is not an active employee"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.tracker.RecordSwap(context.Background(), "a1", change(tt.employeeID))
			require.Error(t, err)
			assert.ErrorIs(t, err, model.ErrIneligibleSubstitute)

			var ineligible *model.IneligibleError
			require.True(t, errors.As(err, &ineligible))
			assert.Equal(t, tt.employeeID, ineligible.EmployeeID)
			assert.Equal(t, tt.reason, ineligible.Reason)

			seq, err := f.store.LatestSequence(context.Background(), "a1")
			require.NoError(t, err)
			assert.Equal(t, int64(0), seq, "nothing is appended on rejection")
		})
	}
}

func TestRecordSwap_InvalidRequests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.tracker.RecordSwap(ctx, "a1", change(""))
	assert.ErrorIs(t, err, ErrInvalidModification)

	_, err = f.tracker.RecordSwap(ctx, "a1", change("e1"))
	assert.ErrorIs(t, err, ErrInvalidModification, "employee already holds it")

	_, err = f.tracker.RecordSwap(ctx, "a1", Change{EmployeeID: "e3", ExpectedSequence: AnySequence})
	assert.ErrorIs(t, err, ErrInvalidModification, "acting user is required")

	_, err = f.tracker.RecordSwap(ctx, "missing", change("e3"))
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestRecordSwap_StaleSequence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.tracker.RecordSwap(ctx, "a1", Change{EmployeeID: "e3", ActingUserID: "manager", ExpectedSequence: 0})
	require.NoError(t, err)

	// A second caller who read the chain before the first swap
	_, err = f.tracker.RecordRemoval(ctx, "a1", Change{ActingUserID: "other", ExpectedSequence: 0})
	assert.ErrorIs(t, err, model.ErrConcurrentModification)

	// After re-reading it succeeds
	_, err = f.tracker.RecordRemoval(ctx, "a1", Change{ActingUserID: "other", ExpectedSequence: 1})
	assert.NoError(t, err)
}

func TestRecordRemoval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	record, err := f.tracker.RecordRemoval(ctx, "a2", change(""))
	require.NoError(t, err)
	assert.Equal(t, model.ChangeSwap, record.Kind)
	assert.Equal(t, "e2", record.OriginalEmployeeID)
	assert.Empty(t, record.NewEmployeeID)

	roster, err := f.tracker.EffectiveRosterFor(ctx, monday)
	require.NoError(t, err)
	entry := entryByID(roster, "a2")
	require.NotNil(t, entry)
	assert.Empty(t, entry.EmployeeID)
	assert.True(t, entry.Modified)

	_, err = f.tracker.RecordRemoval(ctx, "a2", change(""))
	assert.ErrorIs(t, err, ErrInvalidModification, "already unfilled")

	// A removed position can be refilled by a swap
	_, err = f.tracker.RecordSwap(ctx, "a2", change("e2"))
	assert.NoError(t, err)
}

func TestRecordSubstitute(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	window := model.ClockWindow{Start: model.MustClockTime("10:00"), End: model.MustClockTime("12:00")}
	record, err := f.tracker.RecordSubstitute(ctx, "a1", &window, change("e3"))
	require.NoError(t, err)
	assert.Equal(t, model.ChangeSubstitute, record.Kind)
	require.NotNil(t, record.Window)
	assert.Equal(t, model.Span{Start: 600, End: 720}, *record.Window)

	roster, err := f.tracker.EffectiveRosterFor(ctx, monday)
	require.NoError(t, err)
	entry := entryByID(roster, "a1")
	require.NotNil(t, entry)
	assert.Equal(t, "e3", entry.EmployeeID)
	assert.Equal(t, "e1", entry.RegularEmployeeID)
	assert.Equal(t, record.Window, entry.Window)
	assert.Equal(t, []string{"e3", "e1"}, entry.OnDuty())

	t.Run("window outside the shift", func(t *testing.T) {
		f := newFixture(t)
		outside := model.ClockWindow{Start: model.MustClockTime("08:00"), End: model.MustClockTime("10:00")}
		_, err := f.tracker.RecordSubstitute(ctx, "a1", &outside, change("e3"))
		assert.ErrorIs(t, err, ErrInvalidModification)
	})

	t.Run("after midnight on a night shift", func(t *testing.T) {
		f := newFixture(t)
		window := model.ClockWindow{Start: model.MustClockTime("02:00"), End: model.MustClockTime("04:00")}
		record, err := f.tracker.RecordSubstitute(ctx, "a3", &window, change("e1"))
		require.NoError(t, err)
		require.NotNil(t, record.Window)
		assert.Equal(t, model.Span{Start: 1560, End: 1680}, *record.Window)

		roster, err := f.tracker.EffectiveRosterFor(ctx, monday)
		require.NoError(t, err)
		entry := entryByID(roster, "a3")
		require.NotNil(t, entry)
		assert.Equal(t, "e1", entry.EmployeeID)
		assert.Equal(t, "e3", entry.RegularEmployeeID)
	})

	t.Run("night window past the shift end", func(t *testing.T) {
		f := newFixture(t)
		window := model.ClockWindow{Start: model.MustClockTime("05:00"), End: model.MustClockTime("07:00")}
		_, err := f.tracker.RecordSubstitute(ctx, "a3", &window, change("e1"))
		assert.ErrorIs(t, err, ErrInvalidModification)
	})

	t.Run("unfilled position", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.tracker.RecordRemoval(ctx, "a1", change(""))
		require.NoError(t, err)
		_, err = f.tracker.RecordSubstitute(ctx, "a1", nil, change("e3"))
		assert.ErrorIs(t, err, ErrInvalidModification)
	})

	t.Run("whole shift", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.tracker.RecordSubstitute(ctx, "a1", nil, change("e3"))
		require.NoError(t, err)
		roster, err := f.tracker.EffectiveRosterFor(ctx, monday)
		require.NoError(t, err)
		entry := entryByID(roster, "a1")
		require.NotNil(t, entry)
		assert.Equal(t, "e3", entry.RegularEmployeeID)
		assert.Nil(t, entry.Window)
	})
}

// countingStore counts snapshot reads
type countingStore struct {
	*memdb.DB
	snapshots int
}

func (s *countingStore) ReadSnapshot(ctx context.Context, scope model.Scope) (*model.Snapshot, error) {
	s.snapshots++
	return s.DB.ReadSnapshot(ctx, scope)
}

func TestRecordSubstitute_ReadsSnapshotOnce(t *testing.T) {
	f := newFixture(t)
	store := &countingStore{DB: f.store}
	tr := New(store, zap.NewNop(), Options{})

	window := model.ClockWindow{Start: model.MustClockTime("10:00"), End: model.MustClockTime("12:00")}
	_, err := tr.RecordSubstitute(context.Background(), "a1", &window, change("e3"))
	require.NoError(t, err)
	assert.Equal(t, 1, store.snapshots)
}

func TestRecordTemporaryAddition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	record, err := f.tracker.RecordTemporaryAddition(ctx, f.dayID, change("e3"))
	require.NoError(t, err)
	assert.Equal(t, model.ChangeTemporaryAdd, record.Kind)
	assert.Equal(t, int64(1), record.Sequence)
	assert.Equal(t, "b1", record.BatchID)

	roster, err := f.tracker.EffectiveRosterFor(ctx, monday)
	require.NoError(t, err)
	require.Len(t, roster, 4)

	temp := entryByID(roster, record.AssignmentID)
	require.NotNil(t, temp)
	assert.True(t, temp.Temporary)
	assert.False(t, temp.Modified)
	assert.Equal(t, "e3", temp.EmployeeID)
	assert.Empty(t, temp.BaseEmployeeID)

	// The addition counts when vetting further changes
	_, err = f.tracker.RecordTemporaryAddition(ctx, f.dayID, change("e3"))
	assert.ErrorIs(t, err, model.ErrIneligibleSubstitute)

	// And can itself be modified
	_, err = f.tracker.RecordRemoval(ctx, record.AssignmentID, change(""))
	require.NoError(t, err)
	roster, err = f.tracker.EffectiveRosterFor(ctx, monday)
	require.NoError(t, err)
	temp = entryByID(roster, record.AssignmentID)
	require.NotNil(t, temp)
	assert.Empty(t, temp.EmployeeID)
	assert.True(t, temp.Modified)

	_, err = f.tracker.RecordTemporaryAddition(ctx, "missing", change("e3"))
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestSubstitutes(t *testing.T) {
	f := newFixture(t)

	candidates, err := f.tracker.Substitutes(context.Background(), "a1")
	require.NoError(t, err)

	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.EmployeeID)
	}
	// e1 holds it, e2 is on the same shift, e4 lacks the skill, e5 is on leave
	assert.Equal(t, []string{"e3"}, ids)
}

func TestSupersededBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	daySlot := model.DemandSlot{ID: f.dayID, StoreID: "s1", Date: monday, ShiftID: "day", SkillID: "cashier", Required: 1}
	newer := model.Batch{ID: "b2", Scope: model.Scope{StoreIDs: []string{"s1"}, Range: model.NewDateRange(monday, monday)}, CreatedAt: time.Date(2025, 8, 21, 9, 0, 0, 0, time.UTC)}
	require.NoError(t, f.store.PersistBatch(ctx, newer, []model.DemandSlot{daySlot}, []model.Assignment{
		assignment("a4", "b2", daySlot, 0, "e3"),
	}))

	roster, err := f.tracker.EffectiveRosterFor(ctx, monday)
	require.NoError(t, err)
	require.Len(t, roster, 2, "day slot from b2, night slot still from b1")
	assert.NotNil(t, entryByID(roster, "a4"))
	assert.NotNil(t, entryByID(roster, "a3"))
	assert.Nil(t, entryByID(roster, "a1"))

	_, err = f.tracker.RecordSwap(ctx, "a1", change("e2"))
	assert.ErrorIs(t, err, ErrInvalidModification)

	history, err := f.tracker.History(ctx, model.NewDateRange(monday, monday))
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "b1", history[0].Batch.ID)
	assert.Len(t, history[0].Assignments, 3)
}

func TestFold(t *testing.T) {
	early := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	slot := model.DemandSlot{ID: "x", StoreID: "s1", Date: monday, ShiftID: "day", SkillID: "cashier", Required: 1}

	slots := []db.BatchSlot{{BatchID: "b1", CreatedAt: early, Slot: slot}}
	assignments := []model.Assignment{assignment("a1", "b1", slot, 0, "e1")}

	// Out-of-order input is folded in sequence order
	records := []model.ModificationRecord{
		{AssignmentID: "a1", Sequence: 2, Kind: model.ChangeSwap, OriginalEmployeeID: "e2", NewEmployeeID: "e3"},
		{AssignmentID: "a1", Sequence: 1, Kind: model.ChangeSwap, OriginalEmployeeID: "e1", NewEmployeeID: "e2"},
		{AssignmentID: "t1", Sequence: 1, Kind: model.ChangeTemporaryAdd, BatchID: "b1", SlotID: "x", NewEmployeeID: "e4"},
		{AssignmentID: "t2", Sequence: 1, Kind: model.ChangeTemporaryAdd, BatchID: "old", SlotID: "x", NewEmployeeID: "e5"},
	}

	entries := Fold(slots, assignments, records)
	require.Len(t, entries, 2)

	assert.Equal(t, "a1", entries[0].AssignmentID)
	assert.Equal(t, "e3", entries[0].EmployeeID)
	assert.Equal(t, int64(2), entries[0].LatestSequence)
	assert.Equal(t, int64(1), entries[0].Chain[0].Sequence)

	assert.Equal(t, "t1", entries[1].AssignmentID, "temporary additions sort after base positions")
	assert.True(t, entries[1].Temporary)
	assert.Equal(t, "e4", entries[1].EmployeeID)
}

func TestFold_SameInstantBatches(t *testing.T) {
	at := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	slot := model.DemandSlot{ID: "x", StoreID: "s1", Date: monday, ShiftID: "day", SkillID: "cashier", Required: 1}

	slots := []db.BatchSlot{
		{BatchID: "b2", CreatedAt: at, Slot: slot},
		{BatchID: "b1", CreatedAt: at, Slot: slot},
	}
	assignments := []model.Assignment{
		assignment("a1", "b1", slot, 0, "e1"),
		assignment("a2", "b2", slot, 0, "e2"),
	}

	forward := Fold(slots, assignments, nil)
	backward := Fold([]db.BatchSlot{slots[1], slots[0]}, assignments, nil)

	require.Len(t, forward, 1)
	assert.Equal(t, "a2", forward[0].AssignmentID)
	assert.Equal(t, forward, backward, "listing order does not pick the winner")
}

func TestKeyedMutex(t *testing.T) {
	var k keyedMutex
	var wg sync.WaitGroup
	counter := 0

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("a1")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
	assert.Empty(t, k.locks, "locks are released once unused")
}
