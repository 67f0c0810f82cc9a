package memdb

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jakechorley/store-roster/pkg/core/model"
	"github.com/jakechorley/store-roster/pkg/db"
)

// Data is the demand and supply a DB is seeded with
type Data struct {
	Stores               []model.Store
	Shifts               []model.Shift
	Skills               []model.Skill
	Employees            []model.Employee
	LeaveLocks           []model.LeaveLock
	StoreEvents          []model.StoreEvent
	SupportGrants        []model.SupportGrant
	AccessGrants         []model.AccessGrant
	DemandSlots          []model.DemandSlot
	RequirementTemplates []model.RequirementTemplate
}

// DB is an in-memory repository. Every read takes the read lock for its whole
// duration, so a snapshot never observes a half-applied write.
type DB struct {
	mu   sync.RWMutex
	data Data

	batches       []model.Batch
	batchSlots    []db.BatchSlot
	assignments   []model.Assignment
	modifications map[string][]model.ModificationRecord
	runs          map[string]db.Run

	now func() time.Time
}

var _ db.Database = (*DB)(nil)

// New creates a repository seeded with the given data
func New(data Data) *DB {
	return &DB{
		data:          data,
		modifications: make(map[string][]model.ModificationRecord),
		runs:          make(map[string]db.Run),
		now:           time.Now,
	}
}

// Close is a no-op
func (d *DB) Close() {}

// SetData replaces the demand and supply records
func (d *DB) SetData(data Data) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.data = data
}

func (d *DB) ListStores(ctx context.Context, storeIDs []string) ([]model.Store, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.listStores(storeIDs), nil
}

func (d *DB) ListShifts(ctx context.Context, storeIDs []string) ([]model.Shift, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.listShifts(storeIDs), nil
}

func (d *DB) ListSkills(ctx context.Context) ([]model.Skill, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.data.Skills), nil
}

func (d *DB) ListDemandSlots(ctx context.Context, storeIDs []string, dates model.DateRange) ([]model.DemandSlot, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.listDemandSlots(storeIDs, dates), nil
}

func (d *DB) ListRequirementTemplates(ctx context.Context, storeIDs []string) ([]model.RequirementTemplate, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.listTemplates(storeIDs), nil
}

// ListEmployees returns employees based at one of the stores, plus anyone holding
// an access grant for one of them. An empty store list returns everyone.
func (d *DB) ListEmployees(ctx context.Context, storeIDs []string) ([]model.Employee, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.listEmployees(storeIDs), nil
}

func (d *DB) ListLeaveLocks(ctx context.Context, dates model.DateRange) ([]model.LeaveLock, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.listLeaveLocks(dates), nil
}

func (d *DB) ListStoreEvents(ctx context.Context, dates model.DateRange) ([]model.StoreEvent, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.listStoreEvents(dates), nil
}

func (d *DB) ListSupportGrants(ctx context.Context) ([]model.SupportGrant, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.data.SupportGrants), nil
}

func (d *DB) ListAccessGrants(ctx context.Context) ([]model.AccessGrant, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.data.AccessGrants), nil
}

// ReadSnapshot assembles every record for the scope under a single read lock.
// Leave and closures are read one day either side of the range so cross-midnight
// shifts at the edges see them.
func (d *DB) ReadSnapshot(ctx context.Context, scope model.Scope) (*model.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	padded := scope.Range.Expand(1)
	return &model.Snapshot{
		Scope:                scope,
		Stores:               d.listStores(nil),
		Shifts:               d.listShifts(nil),
		Skills:               slices.Clone(d.data.Skills),
		Employees:            d.listEmployees(scope.StoreIDs),
		LeaveLocks:           d.listLeaveLocks(padded),
		StoreEvents:          d.listStoreEvents(padded),
		SupportGrants:        slices.Clone(d.data.SupportGrants),
		AccessGrants:         slices.Clone(d.data.AccessGrants),
		DemandSlots:          d.listDemandSlots(scope.StoreIDs, scope.Range),
		RequirementTemplates: d.listTemplates(scope.StoreIDs),
	}, nil
}

// BeginRun claims a scope for a generation run
func (d *DB) BeginRun(ctx context.Context, scope model.Scope) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, run := range d.runs {
		if run.Scope.Overlaps(scope) {
			return "", fmt.Errorf("%w: run %s covers %s", model.ErrOverlappingRun, run.ID, run.Scope.Range)
		}
	}

	id := uuid.NewString()
	d.runs[id] = db.Run{ID: id, Scope: scope, StartedAt: d.now()}
	return id, nil
}

// EndRun releases a run's claim
func (d *DB) EndRun(ctx context.Context, runID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.runs[runID]; !ok {
		return fmt.Errorf("run %s: %w", runID, model.ErrNotFound)
	}
	delete(d.runs, runID)
	return nil
}

// PersistBatch stores a batch, its slots and its assignments in one step
func (d *DB) PersistBatch(ctx context.Context, batch model.Batch, slots []model.DemandSlot, assignments []model.Assignment) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, existing := range d.batches {
		if existing.ID == batch.ID {
			return fmt.Errorf("batch %s already exists", batch.ID)
		}
	}

	d.batches = append(d.batches, batch)
	for _, slot := range slots {
		d.batchSlots = append(d.batchSlots, db.BatchSlot{BatchID: batch.ID, CreatedAt: batch.CreatedAt, Slot: slot})
	}
	d.assignments = append(d.assignments, assignments...)
	return nil
}

func (d *DB) GetAssignment(ctx context.Context, id string) (*model.Assignment, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for i := range d.assignments {
		if d.assignments[i].ID == id {
			a := d.assignments[i]
			return &a, nil
		}
	}
	return nil, fmt.Errorf("assignment %s: %w", id, model.ErrNotFound)
}

// GetDemandSlot returns the slot as persisted by the most recent batch that contains it
func (d *DB) GetDemandSlot(ctx context.Context, slotID string) (*db.BatchSlot, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var latest *db.BatchSlot
	for i := range d.batchSlots {
		bs := &d.batchSlots[i]
		if bs.Slot.ID != slotID {
			continue
		}
		if latest == nil || bs.Supersedes(*latest) {
			latest = bs
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("demand slot %s: %w", slotID, model.ErrNotFound)
	}
	found := *latest
	return &found, nil
}

func (d *DB) ListBatches(ctx context.Context, dates model.DateRange) ([]model.Batch, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	batches := make([]model.Batch, 0)
	for _, b := range d.batches {
		if b.Scope.Range.Overlaps(dates) {
			batches = append(batches, b)
		}
	}
	sort.SliceStable(batches, func(i, j int) bool { return batches[i].CreatedAt.Before(batches[j].CreatedAt) })
	return batches, nil
}

func (d *DB) ListBatchSlots(ctx context.Context, dates model.DateRange) ([]db.BatchSlot, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	slots := make([]db.BatchSlot, 0)
	for _, bs := range d.batchSlots {
		if dates.Contains(bs.Slot.Date) {
			slots = append(slots, bs)
		}
	}
	return slots, nil
}

func (d *DB) ListAssignments(ctx context.Context, dates model.DateRange) ([]model.Assignment, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	assignments := make([]model.Assignment, 0)
	for _, a := range d.assignments {
		if dates.Contains(a.Date) {
			assignments = append(assignments, a)
		}
	}
	return assignments, nil
}

// ListModifications returns every record whose slot falls inside the range,
// ordered by assignment then sequence
func (d *DB) ListModifications(ctx context.Context, dates model.DateRange) ([]model.ModificationRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	slotDates := make(map[string]time.Time, len(d.batchSlots))
	for _, bs := range d.batchSlots {
		slotDates[bs.BatchID+"/"+bs.Slot.ID] = bs.Slot.Date
	}

	records := make([]model.ModificationRecord, 0)
	for _, chain := range d.modifications {
		for _, r := range chain {
			date, ok := slotDates[r.BatchID+"/"+r.SlotID]
			if ok && dates.Contains(date) {
				records = append(records, r)
			}
		}
	}
	sortRecords(records)
	return records, nil
}

func (d *DB) ListModificationsForAssignment(ctx context.Context, assignmentID string) ([]model.ModificationRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.modifications[assignmentID]), nil
}

// AppendModification adds a record to the end of its chain
func (d *DB) AppendModification(ctx context.Context, record model.ModificationRecord, expectedSequence int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	chain := d.modifications[record.AssignmentID]
	latest := int64(len(chain))
	if latest != expectedSequence || record.Sequence != expectedSequence+1 {
		return fmt.Errorf("%w: assignment %s is at sequence %d, expected %d",
			model.ErrConcurrentModification, record.AssignmentID, latest, expectedSequence)
	}
	d.modifications[record.AssignmentID] = append(chain, record)
	return nil
}

func (d *DB) LatestSequence(ctx context.Context, assignmentID string) (int64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return int64(len(d.modifications[assignmentID])), nil
}

func (d *DB) listStores(storeIDs []string) []model.Store {
	stores := make([]model.Store, 0, len(d.data.Stores))
	for _, s := range d.data.Stores {
		if inSet(storeIDs, s.ID) {
			stores = append(stores, s)
		}
	}
	return stores
}

func (d *DB) listShifts(storeIDs []string) []model.Shift {
	shifts := make([]model.Shift, 0, len(d.data.Shifts))
	for _, s := range d.data.Shifts {
		if inSet(storeIDs, s.StoreID) {
			shifts = append(shifts, s)
		}
	}
	return shifts
}

func (d *DB) listDemandSlots(storeIDs []string, dates model.DateRange) []model.DemandSlot {
	slots := make([]model.DemandSlot, 0)
	for _, s := range d.data.DemandSlots {
		if inSet(storeIDs, s.StoreID) && dates.Contains(s.Date) {
			slots = append(slots, s)
		}
	}
	return slots
}

func (d *DB) listTemplates(storeIDs []string) []model.RequirementTemplate {
	templates := make([]model.RequirementTemplate, 0)
	for _, t := range d.data.RequirementTemplates {
		if inSet(storeIDs, t.StoreID) {
			templates = append(templates, t)
		}
	}
	return templates
}

func (d *DB) listEmployees(storeIDs []string) []model.Employee {
	granted := make(map[string]bool)
	for _, g := range d.data.AccessGrants {
		if inSet(storeIDs, g.StoreID) {
			granted[g.EmployeeID] = true
		}
	}

	employees := make([]model.Employee, 0, len(d.data.Employees))
	for _, e := range d.data.Employees {
		if inSet(storeIDs, e.HomeStoreID) || granted[e.ID] {
			employees = append(employees, e)
		}
	}
	return employees
}

func (d *DB) listLeaveLocks(dates model.DateRange) []model.LeaveLock {
	locks := make([]model.LeaveLock, 0)
	for _, l := range d.data.LeaveLocks {
		if dates.Contains(l.Date) {
			locks = append(locks, l)
		}
	}
	return locks
}

func (d *DB) listStoreEvents(dates model.DateRange) []model.StoreEvent {
	events := make([]model.StoreEvent, 0)
	for _, e := range d.data.StoreEvents {
		if dates.Contains(e.Date) {
			events = append(events, e)
		}
	}
	return events
}

func inSet(ids []string, id string) bool {
	return len(ids) == 0 || slices.Contains(ids, id)
}

func sortRecords(records []model.ModificationRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].AssignmentID != records[j].AssignmentID {
			return records[i].AssignmentID < records[j].AssignmentID
		}
		return records[i].Sequence < records[j].Sequence
	})
}
