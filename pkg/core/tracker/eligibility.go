package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/jakechorley/store-roster/pkg/core/allocator"
	"github.com/jakechorley/store-roster/pkg/core/constraints"
	"github.com/jakechorley/store-roster/pkg/core/model"
)

// buildIndex reads a snapshot covering the date and its neighbours, which is
// enough to see every shift that can overlap one starting on that date
func (t *Tracker) buildIndex(ctx context.Context, date time.Time) (*constraints.Index, error) {
	day := model.NormalizeDate(date)
	scope := model.Scope{Range: model.NewDateRange(day, day).Expand(1)}

	snapshot, err := t.store.ReadSnapshot(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	ix, err := constraints.BuildIndex(snapshot, t.indexOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to build constraint index: %w", err)
	}
	return ix, nil
}

// positionState rebuilds the run-time view around a position from an index
// built by buildIndex for the position's date: every other
// position worked in the neighbouring days becomes a filled task, and the
// position itself is returned as an empty task to vet employees against
func (t *Tracker) positionState(ctx context.Context, ix *constraints.Index, entry *RosterEntry) (*allocator.RotaState, *allocator.Task, error) {
	neighbours, err := t.EffectiveRoster(ctx, ix.Scope().Range)
	if err != nil {
		return nil, nil, err
	}

	state := allocator.NewRotaState(ix)
	for i := range neighbours {
		other := &neighbours[i]
		if entry.AssignmentID != "" && other.AssignmentID == entry.AssignmentID {
			continue
		}
		slot := other.slot()
		for _, employeeID := range other.OnDuty() {
			if _, err := state.AddTask(&slot, other.Sequence, employeeID); err != nil {
				return nil, nil, fmt.Errorf("failed to place position %s: %w", other.AssignmentID, err)
			}
		}
	}

	slot := entry.slot()
	task, err := state.AddTask(&slot, entry.Sequence, "")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to place position: %w", err)
	}
	return state, task, nil
}

// checkEligible applies the hard filters to the employee for the position
func (t *Tracker) checkEligible(ctx context.Context, ix *constraints.Index, entry *RosterEntry, employeeID string) error {
	state, task, err := t.positionState(ctx, ix, entry)
	if err != nil {
		return err
	}
	if reason, failed := allocator.ExplainIneligibility(state, task, employeeID, t.criteria); failed {
		return &model.IneligibleError{EmployeeID: employeeID, Reason: reason}
	}
	return nil
}

// Substitutes ranks the employees who could take over a position, best first.
// The current holder is not listed.
func (t *Tracker) Substitutes(ctx context.Context, assignmentID string) ([]allocator.Candidate, error) {
	entry, err := t.resolve(ctx, assignmentID)
	if err != nil {
		return nil, err
	}

	ix, err := t.buildIndex(ctx, entry.Date)
	if err != nil {
		return nil, err
	}
	state, task, err := t.positionState(ctx, ix, entry)
	if err != nil {
		return nil, err
	}

	ranked := allocator.RankCandidates(state, task, t.criteria)
	candidates := make([]allocator.Candidate, 0, len(ranked))
	for _, c := range ranked {
		if c.EmployeeID != entry.EmployeeID {
			candidates = append(candidates, c)
		}
	}
	return candidates, nil
}
