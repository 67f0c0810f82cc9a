package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jakechorley/store-roster/pkg/core/model"
)

// ReadSnapshot assembles every record for the scope inside one repeatable-read
// transaction. Leave and closures are read one day either side of the range so
// cross-midnight shifts at the edges see them.
func (d *DB) ReadSnapshot(ctx context.Context, scope model.Scope) (*model.Snapshot, error) {
	tx, err := d.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("failed to begin snapshot transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	snapshot := &model.Snapshot{Scope: scope}
	padded := scope.Range.Expand(1)

	if snapshot.Stores, err = listStores(ctx, tx, nil); err != nil {
		return nil, err
	}
	if snapshot.Shifts, err = listShifts(ctx, tx, nil); err != nil {
		return nil, err
	}
	if snapshot.Skills, err = listSkills(ctx, tx); err != nil {
		return nil, err
	}
	if snapshot.Employees, err = listEmployees(ctx, tx, scope.StoreIDs); err != nil {
		return nil, err
	}
	if snapshot.LeaveLocks, err = listLeaveLocks(ctx, tx, padded); err != nil {
		return nil, err
	}
	if snapshot.StoreEvents, err = listStoreEvents(ctx, tx, padded); err != nil {
		return nil, err
	}
	if snapshot.SupportGrants, err = listSupportGrants(ctx, tx); err != nil {
		return nil, err
	}
	if snapshot.AccessGrants, err = listAccessGrants(ctx, tx); err != nil {
		return nil, err
	}
	if snapshot.DemandSlots, err = listDemandSlots(ctx, tx, scope.StoreIDs, scope.Range); err != nil {
		return nil, err
	}
	if snapshot.RequirementTemplates, err = listTemplates(ctx, tx, scope.StoreIDs); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit snapshot transaction: %w", err)
	}
	return snapshot, nil
}
