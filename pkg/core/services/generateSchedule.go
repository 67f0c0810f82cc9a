package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jakechorley/store-roster/internal/config"
	"github.com/jakechorley/store-roster/pkg/core/allocator"
	"github.com/jakechorley/store-roster/pkg/core/constraints"
	"github.com/jakechorley/store-roster/pkg/core/demand"
	"github.com/jakechorley/store-roster/pkg/core/model"
	"github.com/jakechorley/store-roster/pkg/db"
)

// GenerateScheduleStore defines the database operations needed for generating a schedule
type GenerateScheduleStore interface {
	db.SnapshotReader
	db.RunGuard
	db.BatchWriter
}

// GenerateRequest names the stores and dates to roster. No store ids means every active store.
type GenerateRequest struct {
	StoreIDs []string
	Start    time.Time
	End      time.Time
}

// Scope returns the request as a run scope
func (r GenerateRequest) Scope() model.Scope {
	return model.Scope{StoreIDs: r.StoreIDs, Range: model.NewDateRange(r.Start, r.End)}
}

// Warning is a soft problem worth showing to a store manager
type Warning struct {
	Kind       string `json:"kind"` // "submitted_leave", "suppressed_slot", "dropped_slot" or "invariant"
	SlotID     string `json:"slotId"`
	Date       string `json:"date"`
	EmployeeID string `json:"employeeId,omitempty"`
	Message    string `json:"message"`
}

// GenerateResult is returned by a successful run. Gaps is never nil.
type GenerateResult struct {
	Batch           model.Batch        `json:"batch"`
	Assignments     []model.Assignment `json:"assignments"`
	Gaps            []allocator.Gap    `json:"gaps"`
	Suppressed      []model.DemandSlot `json:"suppressed"`
	Warnings        []Warning          `json:"warnings"`
	BudgetExhausted bool               `json:"budgetExhausted"`
}

// GenerateSchedule runs one generation for the requested scope and persists the batch.
//
// Nothing is persisted if the range is invalid, the input fails integrity checks
// (both reported as model.ErrGenerationAborted), another run holds an overlapping
// scope (model.ErrOverlappingRun) or the context is cancelled. Unfilled positions
// do not fail the run; they come back as gaps.
func GenerateSchedule(ctx context.Context, store GenerateScheduleStore, cfg *config.Config, logger *zap.Logger, req GenerateRequest) (*GenerateResult, error) {
	scope := req.Scope()

	logger.Debug("Step 1: Validating request", zap.Stringer("range", scope.Range), zap.Strings("stores", scope.StoreIDs))
	if err := scope.Range.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrGenerationAborted, err)
	}
	cal, err := calendarFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrGenerationAborted, err)
	}

	logger.Debug("Step 2: Claiming run scope")
	runID, err := store.BeginRun(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to start run: %w", err)
	}
	defer func() {
		if err := store.EndRun(context.WithoutCancel(ctx), runID); err != nil {
			logger.Warn("Failed to release run", zap.String("run_id", runID), zap.Error(err))
		}
	}()

	logger.Debug("Step 3: Reading snapshot", zap.String("run_id", runID))
	snapshot, err := store.ReadSnapshot(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	logger.Debug("Step 4: Expanding demand",
		zap.Int("explicit_slots", len(snapshot.DemandSlots)),
		zap.Int("templates", len(snapshot.RequirementTemplates)))
	slots, dropped, err := demand.Expand(snapshot, cal)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to expand demand: %w", model.ErrGenerationAborted, err)
	}
	snapshot.DemandSlots = slots
	for _, d := range dropped {
		logger.Warn("Dropping demand slot", zap.String("slot_id", d.Slot.ID), zap.String("reason", d.Reason))
	}

	logger.Debug("Step 5: Building constraint index", zap.Int("employees", len(snapshot.Employees)))
	ix, err := constraints.BuildIndex(snapshot, constraints.Options{
		DefaultCrossDayRule: model.CrossDayRule(cfg.DefaultCrossDayRule),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrGenerationAborted, err)
	}

	logger.Debug("Step 6: Allocating", zap.Int("slots", len(slots)))
	outcome, err := allocator.Allocate(ctx, allocator.AllocationConfig{
		Index:             ix,
		BacktrackFactor:   cfg.Solver.BacktrackFactor,
		MaxBacktrackDepth: cfg.Solver.MaxBacktrackDepth,
		TimeBudget:        cfg.Solver.TimeBudget,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to allocate: %w", err)
	}
	if outcome.BudgetExhausted {
		logger.Warn("Backtrack budget exhausted, remaining dead ends left as gaps",
			zap.Int("backtrack_count", outcome.BacktrackCount))
	}

	logger.Debug("Step 7: Building batch", zap.String("status", string(outcome.Status)))
	now := time.Now().UTC()
	batch := model.Batch{
		ID:             uuid.New().String(),
		Scope:          scope,
		Status:         model.BatchStatus(outcome.Status),
		BacktrackCount: outcome.BacktrackCount,
		CreatedAt:      now,
	}
	assignments := buildAssignments(batch, outcome.State)
	warnings := collectWarnings(ix, outcome, dropped)

	// Context is checked once more so a cancelled run never persists
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("generation cancelled: %w", err)
	}

	logger.Debug("Step 8: Persisting batch", zap.String("batch_id", batch.ID), zap.Int("assignments", len(assignments)))
	if err := store.PersistBatch(ctx, batch, ix.DemandSlots(), assignments); err != nil {
		return nil, fmt.Errorf("failed to persist batch: %w", err)
	}

	logger.Info("Schedule generated",
		zap.String("batch_id", batch.ID),
		zap.String("status", string(batch.Status)),
		zap.Int("assignments", len(assignments)),
		zap.Int("gaps", len(outcome.Gaps)),
		zap.Int("suppressed", len(outcome.Suppressed)),
		zap.Int("backtrack_count", outcome.BacktrackCount))

	return &GenerateResult{
		Batch:           batch,
		Assignments:     assignments,
		Gaps:            outcome.Gaps,
		Suppressed:      outcome.Suppressed,
		Warnings:        warnings,
		BudgetExhausted: outcome.BudgetExhausted,
	}, nil
}

// GenerateSchedules runs several generations in parallel. The requests must not
// overlap each other; if they do nothing is run and model.ErrOverlappingRun is returned.
// Results are in request order. The first failure cancels the remaining runs.
func GenerateSchedules(ctx context.Context, store GenerateScheduleStore, cfg *config.Config, logger *zap.Logger, reqs []GenerateRequest) ([]*GenerateResult, error) {
	for i := range reqs {
		for j := i + 1; j < len(reqs); j++ {
			if reqs[i].Scope().Overlaps(reqs[j].Scope()) {
				return nil, fmt.Errorf("%w: requests %d and %d overlap", model.ErrOverlappingRun, i, j)
			}
		}
	}

	results := make([]*GenerateResult, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	for i, req := range reqs {
		g.Go(func() error {
			result, err := GenerateSchedule(gctx, store, cfg, logger.With(zap.Int("request", i)), req)
			if err != nil {
				return fmt.Errorf("request %d: %w", i, err)
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// calendarFromConfig builds the day type calendar from the configured rules
func calendarFromConfig(cfg *config.Config) (*demand.Calendar, error) {
	rules := make([]demand.DayTypeRule, 0, len(cfg.DayTypes))
	for _, r := range cfg.DayTypes {
		rules = append(rules, demand.DayTypeRule{RRule: r.RRule, DayType: model.DayType(r.DayType)})
	}
	return demand.NewCalendar(rules)
}

// buildAssignments turns every task, filled or not, into an assignment record
func buildAssignments(batch model.Batch, state *allocator.RotaState) []model.Assignment {
	assignments := make([]model.Assignment, 0, len(state.Tasks))
	for _, task := range state.Tasks {
		assignments = append(assignments, model.Assignment{
			ID:         uuid.New().String(),
			BatchID:    batch.ID,
			SlotID:     task.Slot.ID,
			Sequence:   task.Sequence,
			StoreID:    task.Slot.StoreID,
			Date:       task.Slot.Date,
			ShiftID:    task.Slot.ShiftID,
			SkillID:    task.Slot.SkillID,
			EmployeeID: task.Assigned,
			CreatedAt:  batch.CreatedAt,
		})
	}
	return assignments
}

// collectWarnings reports submitted (not yet locked) leave on assigned dates,
// suppressed and dropped slots and any invariant the final state breaks
func collectWarnings(ix *constraints.Index, outcome *allocator.AllocationOutcome, dropped []demand.DroppedSlot) []Warning {
	warnings := make([]Warning, 0)

	for _, task := range outcome.State.Tasks {
		if !task.IsFilled() {
			continue
		}
		if ix.HasSubmittedLeave(task.Assigned, task.Slot.StoreID, task.Slot.Date, task.Shift) {
			warnings = append(warnings, Warning{
				Kind:       "submitted_leave",
				SlotID:     task.Slot.ID,
				Date:       model.DateKey(task.Slot.Date),
				EmployeeID: task.Assigned,
				Message:    fmt.Sprintf("Employee %s has submitted leave that is not yet locked", task.Assigned),
			})
		}
	}

	for _, slot := range outcome.Suppressed {
		warnings = append(warnings, Warning{
			Kind:    "suppressed_slot",
			SlotID:  slot.ID,
			Date:    model.DateKey(slot.Date),
			Message: fmt.Sprintf("Store %s is closed for shift %s", slot.StoreID, slot.ShiftID),
		})
	}

	for _, d := range dropped {
		warnings = append(warnings, Warning{
			Kind:    "dropped_slot",
			SlotID:  d.Slot.ID,
			Date:    model.DateKey(d.Slot.Date),
			Message: fmt.Sprintf("Slot not rostered: %s", d.Reason),
		})
	}

	for _, v := range outcome.ValidationErrors {
		warnings = append(warnings, Warning{
			Kind:       "invariant",
			SlotID:     v.SlotID,
			Date:       v.Date,
			EmployeeID: v.EmployeeID,
			Message:    fmt.Sprintf("%s: %s", v.CriterionName, v.Description),
		})
	}

	return warnings
}
