package db

import (
	"context"

	"github.com/jakechorley/store-roster/pkg/core/model"
)

// SupplyStore lists the demand and supply records a generation run consumes
type SupplyStore interface {
	ListStores(ctx context.Context, storeIDs []string) ([]model.Store, error)
	ListShifts(ctx context.Context, storeIDs []string) ([]model.Shift, error)
	ListSkills(ctx context.Context) ([]model.Skill, error)
	ListDemandSlots(ctx context.Context, storeIDs []string, dates model.DateRange) ([]model.DemandSlot, error)
	ListRequirementTemplates(ctx context.Context, storeIDs []string) ([]model.RequirementTemplate, error)
	ListEmployees(ctx context.Context, storeIDs []string) ([]model.Employee, error)
	ListLeaveLocks(ctx context.Context, dates model.DateRange) ([]model.LeaveLock, error)
	ListStoreEvents(ctx context.Context, dates model.DateRange) ([]model.StoreEvent, error)
	ListSupportGrants(ctx context.Context) ([]model.SupportGrant, error)
	ListAccessGrants(ctx context.Context) ([]model.AccessGrant, error)
}

// SnapshotReader reads every record for a scope as one consistent point-in-time view.
// Employees from other stores are included so borrowing can be considered.
type SnapshotReader interface {
	ReadSnapshot(ctx context.Context, scope model.Scope) (*model.Snapshot, error)
}

// RunGuard serialises generation runs whose scopes overlap
type RunGuard interface {
	// BeginRun claims the scope, failing with model.ErrOverlappingRun if an
	// in-flight run overlaps it
	BeginRun(ctx context.Context, scope model.Scope) (string, error)
	EndRun(ctx context.Context, runID string) error
}

// BatchWriter persists the output of a completed run
type BatchWriter interface {
	// PersistBatch writes the batch header, its slots and all assignments atomically
	PersistBatch(ctx context.Context, batch model.Batch, slots []model.DemandSlot, assignments []model.Assignment) error
}

// PlanReader reads persisted batches and their modification chains
type PlanReader interface {
	GetAssignment(ctx context.Context, id string) (*model.Assignment, error)
	GetDemandSlot(ctx context.Context, slotID string) (*BatchSlot, error)
	ListBatches(ctx context.Context, dates model.DateRange) ([]model.Batch, error)
	ListBatchSlots(ctx context.Context, dates model.DateRange) ([]BatchSlot, error)
	ListAssignments(ctx context.Context, dates model.DateRange) ([]model.Assignment, error)
	ListModifications(ctx context.Context, dates model.DateRange) ([]model.ModificationRecord, error)
	ListModificationsForAssignment(ctx context.Context, assignmentID string) ([]model.ModificationRecord, error)
}

// ModificationWriter appends to an assignment's change chain
type ModificationWriter interface {
	// AppendModification stores the record only if the chain's latest sequence is
	// still expectedSequence, otherwise it fails with model.ErrConcurrentModification.
	// The record's Sequence must be expectedSequence + 1.
	AppendModification(ctx context.Context, record model.ModificationRecord, expectedSequence int64) error
	LatestSequence(ctx context.Context, assignmentID string) (int64, error)
}

// Database defines the interface for all repository operations.
// Both memdb.DB and postgres.DB implement this interface.
type Database interface {
	SupplyStore
	SnapshotReader
	RunGuard
	BatchWriter
	PlanReader
	ModificationWriter
	Close()
}
