package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jakechorley/store-roster/pkg/core/model"
)

const modificationColumns = `m.id, m.assignment_id, m.seq, m.kind, m.batch_id, m.slot_id,
	m.original_employee_id, m.new_employee_id, m.window_start, m.window_end,
	m.acting_user_id, m.reason, m.created_at`

// AppendModification adds a record to the end of its chain. The chain is locked
// for the duration of the transaction and the unique (assignment_id, seq) key
// catches any writer that slips past the check.
func (d *DB) AppendModification(ctx context.Context, record model.ModificationRecord, expectedSequence int64) error {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, record.AssignmentID); err != nil {
		return fmt.Errorf("failed to lock chain %s: %w", record.AssignmentID, err)
	}

	latest, err := latestSequence(ctx, tx, record.AssignmentID)
	if err != nil {
		return err
	}
	if latest != expectedSequence || record.Sequence != expectedSequence+1 {
		return fmt.Errorf("%w: assignment %s is at sequence %d, expected %d",
			model.ErrConcurrentModification, record.AssignmentID, latest, expectedSequence)
	}

	var windowStart, windowEnd *int
	if record.Window != nil {
		windowStart, windowEnd = &record.Window.Start, &record.Window.End
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO modification (
			id, assignment_id, seq, kind, batch_id, slot_id,
			original_employee_id, new_employee_id, window_start, window_end,
			acting_user_id, reason, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, record.ID, record.AssignmentID, record.Sequence, string(record.Kind), record.BatchID, record.SlotID,
		nullable(record.OriginalEmployeeID), nullable(record.NewEmployeeID), windowStart, windowEnd,
		record.ActingUserID, record.Reason, record.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%w: assignment %s sequence %d already written",
				model.ErrConcurrentModification, record.AssignmentID, record.Sequence)
		}
		return fmt.Errorf("failed to insert modification: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit modification: %w", err)
	}
	return nil
}

func (d *DB) LatestSequence(ctx context.Context, assignmentID string) (int64, error) {
	return latestSequence(ctx, d.pool, assignmentID)
}

func latestSequence(ctx context.Context, q querier, assignmentID string) (int64, error) {
	var latest int64
	err := q.QueryRow(ctx, `SELECT COALESCE(MAX(seq), 0) FROM modification WHERE assignment_id = $1`, assignmentID).Scan(&latest)
	if err != nil {
		return 0, fmt.Errorf("failed to read latest sequence for %s: %w", assignmentID, err)
	}
	return latest, nil
}

// ListModifications returns every record whose slot falls inside the range,
// ordered by assignment then sequence
func (d *DB) ListModifications(ctx context.Context, dates model.DateRange) ([]model.ModificationRecord, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT `+modificationColumns+`
		FROM modification m
		JOIN batch_slot bs ON bs.batch_id = m.batch_id AND bs.slot_id = m.slot_id
		WHERE bs.slot_date BETWEEN $1 AND $2
		ORDER BY m.assignment_id, m.seq
	`, dates.Start, dates.End)
	if err != nil {
		return nil, fmt.Errorf("failed to query modifications: %w", err)
	}
	return collectModifications(rows)
}

func (d *DB) ListModificationsForAssignment(ctx context.Context, assignmentID string) ([]model.ModificationRecord, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT `+modificationColumns+`
		FROM modification m
		WHERE m.assignment_id = $1
		ORDER BY m.seq
	`, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query modifications for %s: %w", assignmentID, err)
	}
	return collectModifications(rows)
}

func collectModifications(rows pgx.Rows) ([]model.ModificationRecord, error) {
	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.ModificationRecord, error) {
		var r model.ModificationRecord
		var kind string
		var original, replacement *string
		var windowStart, windowEnd *int
		err := row.Scan(&r.ID, &r.AssignmentID, &r.Sequence, &kind, &r.BatchID, &r.SlotID,
			&original, &replacement, &windowStart, &windowEnd,
			&r.ActingUserID, &r.Reason, &r.CreatedAt)
		if err != nil {
			return model.ModificationRecord{}, err
		}
		r.Kind = model.ChangeKind(kind)
		r.OriginalEmployeeID = deref(original)
		r.NewEmployeeID = deref(replacement)
		if windowStart != nil && windowEnd != nil {
			r.Window = &model.Span{Start: *windowStart, End: *windowEnd}
		}
		return r, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan modifications: %w", err)
	}
	return records, nil
}
