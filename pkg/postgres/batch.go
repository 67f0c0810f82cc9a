package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jakechorley/store-roster/pkg/core/model"
	"github.com/jakechorley/store-roster/pkg/db"
)

// PersistBatch writes the batch header, its slots and all assignments in one transaction
func (d *DB) PersistBatch(ctx context.Context, batch model.Batch, slots []model.DemandSlot, assignments []model.Assignment) error {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO batch (id, store_ids, range_start, range_end, status, backtrack_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, batch.ID, storeFilter(batch.Scope.StoreIDs), batch.Scope.Range.Start, batch.Scope.Range.End,
		string(batch.Status), batch.BacktrackCount, batch.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert batch %s: %w", batch.ID, err)
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"batch_slot"},
		[]string{"batch_id", "slot_id", "store_id", "slot_date", "shift_id", "skill_id", "required", "created_at"},
		pgx.CopyFromSlice(len(slots), func(i int) ([]any, error) {
			s := slots[i]
			return []any{batch.ID, s.ID, s.StoreID, s.Date, s.ShiftID, s.SkillID, s.Required, batch.CreatedAt}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to insert batch slots: %w", err)
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"assignment"},
		[]string{"id", "batch_id", "slot_id", "sequence", "store_id", "slot_date", "shift_id", "skill_id", "employee_id", "created_at"},
		pgx.CopyFromSlice(len(assignments), func(i int) ([]any, error) {
			a := assignments[i]
			return []any{a.ID, a.BatchID, a.SlotID, a.Sequence, a.StoreID, a.Date, a.ShiftID, a.SkillID, nullable(a.EmployeeID), a.CreatedAt}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to insert assignments: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit batch %s: %w", batch.ID, err)
	}
	return nil
}

func (d *DB) GetAssignment(ctx context.Context, id string) (*model.Assignment, error) {
	row := d.pool.QueryRow(ctx, `
		SELECT id, batch_id, slot_id, sequence, store_id, slot_date, shift_id, skill_id, employee_id, created_at
		FROM assignment
		WHERE id = $1
	`, id)

	a, err := scanAssignment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("assignment %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment %s: %w", id, err)
	}
	return &a, nil
}

// GetDemandSlot returns the slot as persisted by the most recent batch that contains it
func (d *DB) GetDemandSlot(ctx context.Context, slotID string) (*db.BatchSlot, error) {
	row := d.pool.QueryRow(ctx, `
		SELECT batch_id, created_at, slot_id, store_id, slot_date, shift_id, skill_id, required
		FROM batch_slot
		WHERE slot_id = $1
		ORDER BY created_at DESC, batch_id DESC
		LIMIT 1
	`, slotID)

	bs, err := scanBatchSlot(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("demand slot %s: %w", slotID, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get demand slot %s: %w", slotID, err)
	}
	return &bs, nil
}

func (d *DB) ListBatches(ctx context.Context, dates model.DateRange) ([]model.Batch, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT id, store_ids, range_start, range_end, status, backtrack_count, created_at
		FROM batch
		WHERE range_start <= $2 AND range_end >= $1
		ORDER BY created_at, id
	`, dates.Start, dates.End)
	if err != nil {
		return nil, fmt.Errorf("failed to query batches: %w", err)
	}
	defer rows.Close()

	batches := make([]model.Batch, 0)
	for rows.Next() {
		var b model.Batch
		var status string
		if err := rows.Scan(&b.ID, &b.Scope.StoreIDs, &b.Scope.Range.Start, &b.Scope.Range.End,
			&status, &b.BacktrackCount, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan batch: %w", err)
		}
		if len(b.Scope.StoreIDs) == 0 {
			b.Scope.StoreIDs = nil
		}
		b.Status = model.BatchStatus(status)
		batches = append(batches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating batches: %w", err)
	}
	return batches, nil
}

func (d *DB) ListBatchSlots(ctx context.Context, dates model.DateRange) ([]db.BatchSlot, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT batch_id, created_at, slot_id, store_id, slot_date, shift_id, skill_id, required
		FROM batch_slot
		WHERE slot_date BETWEEN $1 AND $2
		ORDER BY created_at, batch_id, slot_id
	`, dates.Start, dates.End)
	if err != nil {
		return nil, fmt.Errorf("failed to query batch slots: %w", err)
	}
	slots, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (db.BatchSlot, error) {
		return scanBatchSlot(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan batch slots: %w", err)
	}
	return slots, nil
}

func (d *DB) ListAssignments(ctx context.Context, dates model.DateRange) ([]model.Assignment, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT id, batch_id, slot_id, sequence, store_id, slot_date, shift_id, skill_id, employee_id, created_at
		FROM assignment
		WHERE slot_date BETWEEN $1 AND $2
		ORDER BY slot_date, batch_id, slot_id, sequence
	`, dates.Start, dates.End)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	assignments, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Assignment, error) {
		return scanAssignment(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan assignments: %w", err)
	}
	return assignments, nil
}

func scanAssignment(row pgx.Row) (model.Assignment, error) {
	var a model.Assignment
	var employeeID *string
	err := row.Scan(&a.ID, &a.BatchID, &a.SlotID, &a.Sequence, &a.StoreID, &a.Date,
		&a.ShiftID, &a.SkillID, &employeeID, &a.CreatedAt)
	if err != nil {
		return model.Assignment{}, err
	}
	a.Date = model.NormalizeDate(a.Date)
	a.EmployeeID = deref(employeeID)
	return a, nil
}

func scanBatchSlot(row pgx.Row) (db.BatchSlot, error) {
	var bs db.BatchSlot
	s := &bs.Slot
	if err := row.Scan(&bs.BatchID, &bs.CreatedAt, &s.ID, &s.StoreID, &s.Date, &s.ShiftID, &s.SkillID, &s.Required); err != nil {
		return db.BatchSlot{}, err
	}
	s.Date = model.NormalizeDate(s.Date)
	return bs, nil
}
