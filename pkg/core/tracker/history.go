package tracker

import (
	"context"
	"fmt"

	"github.com/jakechorley/store-roster/pkg/core/model"
)

// BatchHistory is one generated batch with the assignments it produced and every
// modification recorded against them, restricted to the requested dates
type BatchHistory struct {
	Batch         model.Batch                `json:"batch"`
	Assignments   []model.Assignment         `json:"assignments"`
	Modifications []model.ModificationRecord `json:"modifications"`
}

// History returns every batch touching the range, oldest first. Superseded
// batches are included; nothing is ever dropped from the audit trail.
func (t *Tracker) History(ctx context.Context, dates model.DateRange) ([]BatchHistory, error) {
	batches, err := t.store.ListBatches(ctx, dates)
	if err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}
	assignments, err := t.store.ListAssignments(ctx, dates)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	records, err := t.store.ListModifications(ctx, dates)
	if err != nil {
		return nil, fmt.Errorf("failed to list modifications: %w", err)
	}

	history := make([]BatchHistory, 0, len(batches))
	byBatch := make(map[string]int, len(batches))
	for _, b := range batches {
		byBatch[b.ID] = len(history)
		history = append(history, BatchHistory{
			Batch:         b,
			Assignments:   []model.Assignment{},
			Modifications: []model.ModificationRecord{},
		})
	}

	for _, a := range assignments {
		if i, ok := byBatch[a.BatchID]; ok {
			history[i].Assignments = append(history[i].Assignments, a)
		}
	}
	for _, r := range records {
		if i, ok := byBatch[r.BatchID]; ok {
			history[i].Modifications = append(history[i].Modifications, r)
		}
	}
	return history, nil
}
