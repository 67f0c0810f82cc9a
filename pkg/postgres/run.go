package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jakechorley/store-roster/pkg/core/model"
)

// staleRunAge is how long a claim survives a process that never called EndRun
const staleRunAge = time.Hour

// BeginRun claims a scope for a generation run. The table lock serialises
// concurrent claims so two overlapping runs can never both succeed.
func (d *DB) BeginRun(ctx context.Context, scope model.Scope) (string, error) {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `LOCK TABLE generation_run IN EXCLUSIVE MODE`); err != nil {
		return "", fmt.Errorf("failed to lock generation_run: %w", err)
	}

	now := time.Now().UTC()
	if _, err := tx.Exec(ctx, `DELETE FROM generation_run WHERE started_at < $1`, now.Add(-staleRunAge)); err != nil {
		return "", fmt.Errorf("failed to clear stale runs: %w", err)
	}

	rows, err := tx.Query(ctx, `SELECT id, store_ids, range_start, range_end FROM generation_run`)
	if err != nil {
		return "", fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var other model.Scope
		if err := rows.Scan(&id, &other.StoreIDs, &other.Range.Start, &other.Range.End); err != nil {
			return "", fmt.Errorf("failed to scan run: %w", err)
		}
		if other.Overlaps(scope) {
			return "", fmt.Errorf("%w: run %s covers %s", model.ErrOverlappingRun, id, other.Range)
		}
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("error iterating runs: %w", err)
	}
	rows.Close()

	id := uuid.NewString()
	_, err = tx.Exec(ctx, `
		INSERT INTO generation_run (id, store_ids, range_start, range_end, started_at)
		VALUES ($1, $2, $3, $4, $5)
	`, id, storeFilter(scope.StoreIDs), scope.Range.Start, scope.Range.End, now)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("failed to commit run claim: %w", err)
	}
	return id, nil
}

// EndRun releases a run's claim
func (d *DB) EndRun(ctx context.Context, runID string) error {
	tag, err := d.pool.Exec(ctx, `DELETE FROM generation_run WHERE id = $1`, runID)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("run %s: %w", runID, model.ErrNotFound)
	}
	return nil
}
