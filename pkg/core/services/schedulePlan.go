package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jakechorley/store-roster/pkg/core/allocator"
	"github.com/jakechorley/store-roster/pkg/core/model"
	"github.com/jakechorley/store-roster/pkg/core/tracker"
)

// PlanTracker defines the tracker operations needed to read plans
type PlanTracker interface {
	EffectiveRoster(ctx context.Context, dates model.DateRange) ([]tracker.RosterEntry, error)
	History(ctx context.Context, dates model.DateRange) ([]tracker.BatchHistory, error)
	Substitutes(ctx context.Context, assignmentID string) ([]allocator.Candidate, error)
}

// SchedulePlan is the effective roster for a range with a summary of its state
type SchedulePlan struct {
	Range    model.DateRange       `json:"range"`
	Entries  []tracker.RosterEntry `json:"entries"`
	Unfilled int                   `json:"unfilled"`
	Modified int                   `json:"modified"`
}

// GetSchedulePlan returns the effective roster: the latest batch per slot with every
// modification applied
func GetSchedulePlan(ctx context.Context, tr PlanTracker, logger *zap.Logger, start, end time.Time) (*SchedulePlan, error) {
	dates := model.NewDateRange(start, end)
	if err := dates.Validate(); err != nil {
		return nil, fmt.Errorf("invalid range: %w", err)
	}

	logger.Debug("Loading effective roster", zap.Stringer("range", dates))
	entries, err := tr.EffectiveRoster(ctx, dates)
	if err != nil {
		return nil, fmt.Errorf("failed to load effective roster: %w", err)
	}

	plan := &SchedulePlan{Range: dates, Entries: entries}
	for _, e := range entries {
		if e.EmployeeID == "" {
			plan.Unfilled++
		}
		if e.Modified {
			plan.Modified++
		}
	}

	logger.Debug("Effective roster loaded",
		zap.Int("entries", len(entries)),
		zap.Int("unfilled", plan.Unfilled),
		zap.Int("modified", plan.Modified))
	return plan, nil
}

// GetScheduleHistory returns every batch touching the range with its original
// assignments and full modification chains
func GetScheduleHistory(ctx context.Context, tr PlanTracker, logger *zap.Logger, start, end time.Time) ([]tracker.BatchHistory, error) {
	dates := model.NewDateRange(start, end)
	if err := dates.Validate(); err != nil {
		return nil, fmt.Errorf("invalid range: %w", err)
	}

	logger.Debug("Loading schedule history", zap.Stringer("range", dates))
	history, err := tr.History(ctx, dates)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	logger.Debug("Schedule history loaded", zap.Int("batches", len(history)))
	return history, nil
}

// GetAvailableSubstitutes ranks the employees who could take over an assignment
// using the same filters and ordering as generation
func GetAvailableSubstitutes(ctx context.Context, tr PlanTracker, logger *zap.Logger, assignmentID string) ([]allocator.Candidate, error) {
	if assignmentID == "" {
		return nil, fmt.Errorf("assignment id is required")
	}

	logger.Debug("Ranking substitutes", zap.String("assignment_id", assignmentID))
	candidates, err := tr.Substitutes(ctx, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to rank substitutes: %w", err)
	}

	logger.Debug("Substitutes ranked", zap.Int("count", len(candidates)))
	return candidates, nil
}
