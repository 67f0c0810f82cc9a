package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jakechorley/store-roster/internal/config"
	"github.com/jakechorley/store-roster/pkg/core/model"
	"github.com/jakechorley/store-roster/pkg/db/memdb"
)

var (
	monday  = model.MustDate("2025-09-01")
	tuesday = model.MustDate("2025-09-02")
)

func testConfig() *config.Config {
	return &config.Config{DataFile: "roster.yaml"}
}

func windows(days ...model.Weekday) []model.AvailabilityWindow {
	out := make([]model.AvailabilityWindow, 0, len(days))
	for _, wd := range days {
		out = append(out, model.AvailabilityWindow{Weekday: wd, Start: 0, End: model.MinutesPerDay})
	}
	return out
}

var everyDay = []model.Weekday{1, 2, 3, 4, 5, 6, 7}

func cashier(id, store string, score int) model.Employee {
	return model.Employee{
		ID:           id,
		Name:         id,
		Type:         model.EmploymentFullTime,
		HomeStoreID:  store,
		Active:       true,
		Skills:       map[string]int{"cashier": score},
		Availability: windows(everyDay...),
	}
}

// exampleData is store S1 needing two cashiers on the 09:00-17:00 shift on
// 2025-09-01, with E1 (90), E2 (80, locked leave that day) and E3 (70)
func exampleData() memdb.Data {
	return memdb.Data{
		Stores: []model.Store{
			{ID: "s1", Name: "S1", Active: true},
			{ID: "s2", Name: "S2", Active: true},
		},
		Shifts: []model.Shift{
			{ID: "day", StoreID: "s1", Name: "Day", Start: model.MustClockTime("09:00"), End: model.MustClockTime("17:00"), Active: true},
			{ID: "s2-day", StoreID: "s2", Name: "Day", Start: model.MustClockTime("09:00"), End: model.MustClockTime("17:00"), Active: true},
		},
		Skills: []model.Skill{{ID: "cashier", Name: "Cashier", Active: true}},
		Employees: []model.Employee{
			cashier("E1", "s1", 90),
			cashier("E2", "s1", 80),
			cashier("E3", "s1", 70),
		},
		LeaveLocks: []model.LeaveLock{{EmployeeID: "E2", Date: monday, Status: model.LeaveLocked}},
		DemandSlots: []model.DemandSlot{
			{ID: "slot-1", StoreID: "s1", Date: monday, ShiftID: "day", SkillID: "cashier", Required: 2},
		},
	}
}

func mondayRequest() GenerateRequest {
	return GenerateRequest{StoreIDs: []string{"s1"}, Start: monday, End: monday}
}

func filledBy(assignments []model.Assignment) []string {
	var ids []string
	for _, a := range assignments {
		if a.EmployeeID != "" {
			ids = append(ids, a.EmployeeID)
		}
	}
	return ids
}

func TestGenerateSchedule_LockedLeaveExample(t *testing.T) {
	store := memdb.New(exampleData())
	ctx := context.Background()

	result, err := GenerateSchedule(ctx, store, testConfig(), zap.NewNop(), mondayRequest())
	require.NoError(t, err)

	assert.Equal(t, model.BatchCompleted, result.Batch.Status)
	assert.NotNil(t, result.Gaps)
	assert.Empty(t, result.Gaps)
	require.Len(t, result.Assignments, 2)
	assert.Equal(t, []string{"E1", "E3"}, filledBy(result.Assignments))

	persisted, err := store.ListAssignments(ctx, model.NewDateRange(monday, monday))
	require.NoError(t, err)
	assert.Len(t, persisted, 2)
	for _, a := range persisted {
		assert.Equal(t, result.Batch.ID, a.BatchID)
	}
}

func TestGenerateSchedule_PartialFulfillmentExample(t *testing.T) {
	data := exampleData()
	data.Employees[2].Availability = windows(model.Weekday(2)) // E3 only works Tuesdays
	store := memdb.New(data)

	result, err := GenerateSchedule(context.Background(), store, testConfig(), zap.NewNop(), mondayRequest())
	require.NoError(t, err)

	assert.Equal(t, model.BatchCompletedWithGaps, result.Batch.Status)
	require.Len(t, result.Assignments, 2)
	assert.Equal(t, []string{"E1"}, filledBy(result.Assignments))
	assert.Empty(t, result.Assignments[1].EmployeeID, "the unfilled position is persisted with no employee")

	require.Len(t, result.Gaps, 1)
	assert.Equal(t, "slot-1", result.Gaps[0].Slot.ID)
	assert.Equal(t, 1, result.Gaps[0].Unfilled)
}

func TestGenerateSchedule_Deterministic(t *testing.T) {
	data := exampleData()
	data.DemandSlots = append(data.DemandSlots,
		model.DemandSlot{ID: "slot-2", StoreID: "s1", Date: tuesday, ShiftID: "day", SkillID: "cashier", Required: 3},
	)
	req := GenerateRequest{StoreIDs: []string{"s1"}, Start: monday, End: tuesday}

	first, err := GenerateSchedule(context.Background(), memdb.New(data), testConfig(), zap.NewNop(), req)
	require.NoError(t, err)
	second, err := GenerateSchedule(context.Background(), memdb.New(data), testConfig(), zap.NewNop(), req)
	require.NoError(t, err)

	require.Equal(t, len(first.Assignments), len(second.Assignments))
	for i := range first.Assignments {
		a, b := first.Assignments[i], second.Assignments[i]
		assert.Equal(t, a.SlotID, b.SlotID)
		assert.Equal(t, a.Sequence, b.Sequence)
		assert.Equal(t, a.EmployeeID, b.EmployeeID)
	}
	assert.Equal(t, first.Gaps, second.Gaps)
}

func TestGenerateSchedule_Templates(t *testing.T) {
	data := exampleData()
	data.DemandSlots = nil
	data.RequirementTemplates = []model.RequirementTemplate{
		{ID: "weekday", StoreID: "s1", DayType: model.DayTypeWeekday, ShiftID: "day", SkillID: "cashier", Required: 1, Active: true},
		{ID: "holiday", StoreID: "s1", DayType: model.DayTypeHoliday, ShiftID: "day", SkillID: "cashier", Required: 2, Active: true},
	}
	cfg := testConfig()
	cfg.DayTypes = []config.DayTypeRule{
		{RRule: "FREQ=YEARLY;BYMONTH=9;BYMONTHDAY=2", DayType: "holiday"},
	}
	store := memdb.New(data)

	result, err := GenerateSchedule(context.Background(), store, cfg, zap.NewNop(),
		GenerateRequest{StoreIDs: []string{"s1"}, Start: monday, End: tuesday})
	require.NoError(t, err)

	perDate := map[string]int{}
	for _, a := range result.Assignments {
		perDate[model.DateKey(a.Date)]++
	}
	assert.Equal(t, map[string]int{"2025-09-01": 1, "2025-09-02": 2}, perDate)
}

func TestGenerateSchedule_Aborted(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*memdb.Data, *config.Config, *GenerateRequest)
		check  func(t *testing.T, err error)
	}{
		{
			name: "inverted range",
			mutate: func(_ *memdb.Data, _ *config.Config, req *GenerateRequest) {
				req.Start, req.End = tuesday, monday
			},
		},
		{
			name: "empty range",
			mutate: func(_ *memdb.Data, _ *config.Config, req *GenerateRequest) {
				req.Start, req.End = monday, time.Time{}
			},
		},
		{
			name: "overlapping availability windows",
			mutate: func(d *memdb.Data, _ *config.Config, _ *GenerateRequest) {
				d.Employees[0].Availability = append(d.Employees[0].Availability,
					model.AvailabilityWindow{Weekday: 1, Start: model.MustClockTime("08:00"), End: model.MustClockTime("10:00")})
			},
			check: func(t *testing.T, err error) {
				var integrity *model.DataIntegrityError
				require.True(t, errors.As(err, &integrity))
				assert.Equal(t, "employee", integrity.Entity)
				assert.Equal(t, "E1", integrity.ID)
			},
		},
		{
			name: "slot referencing unknown shift",
			mutate: func(d *memdb.Data, _ *config.Config, _ *GenerateRequest) {
				d.DemandSlots[0].ShiftID = "missing"
			},
			check: func(t *testing.T, err error) {
				var integrity *model.DataIntegrityError
				require.True(t, errors.As(err, &integrity))
				assert.Equal(t, "demand_slot", integrity.Entity)
			},
		},
		{
			name: "bad day type rule",
			mutate: func(_ *memdb.Data, cfg *config.Config, _ *GenerateRequest) {
				cfg.DayTypes = []config.DayTypeRule{{RRule: "NOT AN RRULE", DayType: "holiday"}}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := exampleData()
			cfg := testConfig()
			req := mondayRequest()
			tt.mutate(&data, cfg, &req)
			store := memdb.New(data)

			_, err := GenerateSchedule(context.Background(), store, cfg, zap.NewNop(), req)
			require.Error(t, err)
			assert.ErrorIs(t, err, model.ErrGenerationAborted)
			if tt.check != nil {
				tt.check(t, err)
			}

			batches, err := store.ListBatches(context.Background(), model.NewDateRange(monday, tuesday))
			require.NoError(t, err)
			assert.Empty(t, batches, "nothing is persisted")

			// The run claim is always released
			id, err := store.BeginRun(context.Background(), mondayRequest().Scope())
			require.NoError(t, err)
			require.NoError(t, store.EndRun(context.Background(), id))
		})
	}
}

func TestGenerateSchedule_OverlappingRun(t *testing.T) {
	store := memdb.New(exampleData())
	ctx := context.Background()

	runID, err := store.BeginRun(ctx, model.Scope{Range: model.NewDateRange(monday, tuesday)})
	require.NoError(t, err)

	_, err = GenerateSchedule(ctx, store, testConfig(), zap.NewNop(), mondayRequest())
	assert.ErrorIs(t, err, model.ErrOverlappingRun)

	require.NoError(t, store.EndRun(ctx, runID))
	_, err = GenerateSchedule(ctx, store, testConfig(), zap.NewNop(), mondayRequest())
	assert.NoError(t, err)
}

func TestGenerateSchedule_Cancelled(t *testing.T) {
	store := memdb.New(exampleData())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := GenerateSchedule(ctx, store, testConfig(), zap.NewNop(), mondayRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	batches, err := store.ListBatches(context.Background(), model.NewDateRange(monday, monday))
	require.NoError(t, err)
	assert.Empty(t, batches)
}

func TestGenerateSchedule_Warnings(t *testing.T) {
	data := exampleData()
	data.LeaveLocks = append(data.LeaveLocks, model.LeaveLock{EmployeeID: "E1", Date: monday, Status: model.LeaveSubmitted})
	data.StoreEvents = []model.StoreEvent{{StoreID: "s1", Date: tuesday, Kind: model.ClosureFullDay, Description: "Refit"}}
	data.DemandSlots = append(data.DemandSlots,
		model.DemandSlot{ID: "slot-2", StoreID: "s1", Date: tuesday, ShiftID: "day", SkillID: "cashier", Required: 1},
	)
	store := memdb.New(data)

	result, err := GenerateSchedule(context.Background(), store, testConfig(), zap.NewNop(),
		GenerateRequest{StoreIDs: []string{"s1"}, Start: monday, End: tuesday})
	require.NoError(t, err)

	assert.Equal(t, []string{"E1", "E3"}, filledBy(result.Assignments), "submitted leave does not block")
	require.Len(t, result.Suppressed, 1)
	assert.Equal(t, "slot-2", result.Suppressed[0].ID)

	kinds := map[string]int{}
	for _, w := range result.Warnings {
		kinds[w.Kind]++
	}
	assert.Equal(t, map[string]int{"submitted_leave": 1, "suppressed_slot": 1}, kinds)
}

func TestGenerateSchedule_InactiveStoreSlot(t *testing.T) {
	data := exampleData()
	data.Stores[1].Active = false
	data.DemandSlots = append(data.DemandSlots,
		model.DemandSlot{ID: "slot-s2", StoreID: "s2", Date: monday, ShiftID: "s2-day", SkillID: "cashier", Required: 1},
	)
	store := memdb.New(data)

	result, err := GenerateSchedule(context.Background(), store, testConfig(), zap.NewNop(),
		GenerateRequest{Start: monday, End: monday})
	require.NoError(t, err)

	for _, a := range result.Assignments {
		assert.NotEqual(t, "s2", a.StoreID)
	}
	for _, g := range result.Gaps {
		assert.NotEqual(t, "slot-s2", g.Slot.ID)
	}

	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "dropped_slot", result.Warnings[0].Kind)
	assert.Equal(t, "slot-s2", result.Warnings[0].SlotID)
}

// failingPersistStore fails on PersistBatch and records released runs
type failingPersistStore struct {
	*memdb.DB
	ended []string
}

func (s *failingPersistStore) PersistBatch(ctx context.Context, batch model.Batch, slots []model.DemandSlot, assignments []model.Assignment) error {
	return errors.New("disk full")
}

func (s *failingPersistStore) EndRun(ctx context.Context, runID string) error {
	s.ended = append(s.ended, runID)
	return s.DB.EndRun(ctx, runID)
}

func TestGenerateSchedule_PersistError(t *testing.T) {
	store := &failingPersistStore{DB: memdb.New(exampleData())}

	_, err := GenerateSchedule(context.Background(), store, testConfig(), zap.NewNop(), mondayRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to persist batch")
	assert.Len(t, store.ended, 1)
}

func TestGenerateSchedules(t *testing.T) {
	data := exampleData()
	data.Employees = append(data.Employees, cashier("F1", "s2", 50))
	data.DemandSlots = append(data.DemandSlots,
		model.DemandSlot{ID: "slot-s2", StoreID: "s2", Date: monday, ShiftID: "s2-day", SkillID: "cashier", Required: 1},
	)
	ctx := context.Background()

	t.Run("disjoint stores run in parallel", func(t *testing.T) {
		store := memdb.New(data)
		results, err := GenerateSchedules(ctx, store, testConfig(), zap.NewNop(), []GenerateRequest{
			mondayRequest(),
			{StoreIDs: []string{"s2"}, Start: monday, End: monday},
		})
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, []string{"E1", "E3"}, filledBy(results[0].Assignments))
		assert.Equal(t, []string{"F1"}, filledBy(results[1].Assignments))
		assert.NotEqual(t, results[0].Batch.ID, results[1].Batch.ID)
	})

	t.Run("overlapping requests are rejected", func(t *testing.T) {
		store := memdb.New(data)
		_, err := GenerateSchedules(ctx, store, testConfig(), zap.NewNop(), []GenerateRequest{
			mondayRequest(),
			{Start: monday, End: tuesday},
		})
		assert.ErrorIs(t, err, model.ErrOverlappingRun)

		batches, err := store.ListBatches(ctx, model.NewDateRange(monday, tuesday))
		require.NoError(t, err)
		assert.Empty(t, batches)
	})

	t.Run("one failure fails the call", func(t *testing.T) {
		store := memdb.New(data)
		_, err := GenerateSchedules(ctx, store, testConfig(), zap.NewNop(), []GenerateRequest{
			mondayRequest(),
			{StoreIDs: []string{"s2"}, Start: tuesday, End: monday},
		})
		assert.ErrorIs(t, err, model.ErrGenerationAborted)
	})
}
