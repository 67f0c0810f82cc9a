package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jakechorley/store-roster/pkg/core/allocator"
	"github.com/jakechorley/store-roster/pkg/core/constraints"
	"github.com/jakechorley/store-roster/pkg/core/model"
	"github.com/jakechorley/store-roster/pkg/db"
)

// AnySequence tells the tracker to use the chain's current latest sequence
// instead of one the caller read earlier
const AnySequence int64 = -1

// ErrInvalidModification is returned for requests that are malformed regardless of who is named
var ErrInvalidModification = errors.New("invalid modification")

// Store defines the repository operations the tracker needs
type Store interface {
	db.SnapshotReader
	db.PlanReader
	db.ModificationWriter
}

// Options configures a Tracker
type Options struct {
	// Criteria used to vet new employees (allocator.DefaultCriteria when empty)
	Criteria []allocator.Criterion

	IndexOptions constraints.Options

	// Now and NewID default to time.Now and uuid.NewString
	Now   func() time.Time
	NewID func() string
}

// Change describes who is being put on a position and by whom
type Change struct {
	EmployeeID   string
	ActingUserID string
	Reason       string

	// ExpectedSequence is RosterEntry.LatestSequence as the caller last read it, or AnySequence
	ExpectedSequence int64
}

// Tracker layers audited changes over generated batches without touching them
type Tracker struct {
	store     Store
	logger    *zap.Logger
	criteria  []allocator.Criterion
	indexOpts constraints.Options
	now       func() time.Time
	newID     func() string

	locks keyedMutex
}

// New creates a Tracker
func New(store Store, logger *zap.Logger, opts Options) *Tracker {
	t := &Tracker{
		store:     store,
		logger:    logger,
		criteria:  opts.Criteria,
		indexOpts: opts.IndexOptions,
		now:       opts.Now,
		newID:     opts.NewID,
	}
	if len(t.criteria) == 0 {
		t.criteria = allocator.DefaultCriteria()
	}
	if t.now == nil {
		t.now = time.Now
	}
	if t.newID == nil {
		t.newID = uuid.NewString
	}
	return t
}

// RecordSwap permanently hands a position to another employee
func (t *Tracker) RecordSwap(ctx context.Context, assignmentID string, change Change) (*model.ModificationRecord, error) {
	if change.EmployeeID == "" {
		return nil, fmt.Errorf("%w: swap needs a new employee, use a removal to clear a position", ErrInvalidModification)
	}
	return t.modify(ctx, assignmentID, model.ChangeSwap, nil, change)
}

// RecordSubstitute puts a temporary employee on a filled position, for the whole
// shift or for a window inside it. The window's clock times are placed on the
// shift's own axis, so 02:00-04:00 on a 22:00-06:00 shift means the next morning.
func (t *Tracker) RecordSubstitute(ctx context.Context, assignmentID string, window *model.ClockWindow, change Change) (*model.ModificationRecord, error) {
	if change.EmployeeID == "" {
		return nil, fmt.Errorf("%w: substitute needs an employee", ErrInvalidModification)
	}
	return t.modify(ctx, assignmentID, model.ChangeSubstitute, window, change)
}

// RecordRemoval clears a position, leaving it unfilled
func (t *Tracker) RecordRemoval(ctx context.Context, assignmentID string, change Change) (*model.ModificationRecord, error) {
	change.EmployeeID = ""
	return t.modify(ctx, assignmentID, model.ChangeSwap, nil, change)
}

// RecordTemporaryAddition adds an extra position to a slot of the current plan.
// The addition starts its own chain and can be modified like any other position.
func (t *Tracker) RecordTemporaryAddition(ctx context.Context, slotID string, change Change) (*model.ModificationRecord, error) {
	if change.EmployeeID == "" {
		return nil, fmt.Errorf("%w: temporary addition needs an employee", ErrInvalidModification)
	}
	if change.ActingUserID == "" {
		return nil, fmt.Errorf("%w: acting user is required", ErrInvalidModification)
	}

	t.logger.Debug("Step 1: Loading slot", zap.String("slot_id", slotID))
	bs, err := t.store.GetDemandSlot(ctx, slotID)
	if err != nil {
		return nil, fmt.Errorf("failed to load slot: %w", err)
	}

	t.logger.Debug("Step 2: Checking eligibility", zap.String("employee_id", change.EmployeeID))
	entry := RosterEntry{
		BatchID: bs.BatchID,
		SlotID:  bs.Slot.ID,
		StoreID: bs.Slot.StoreID,
		Date:    bs.Slot.Date,
		ShiftID: bs.Slot.ShiftID,
		SkillID: bs.Slot.SkillID,
	}
	ix, err := t.buildIndex(ctx, entry.Date)
	if err != nil {
		return nil, err
	}
	if err := t.checkEligible(ctx, ix, &entry, change.EmployeeID); err != nil {
		return nil, err
	}

	record := model.ModificationRecord{
		ID:            t.newID(),
		AssignmentID:  t.newID(),
		Sequence:      1,
		Kind:          model.ChangeTemporaryAdd,
		BatchID:       bs.BatchID,
		SlotID:        bs.Slot.ID,
		NewEmployeeID: change.EmployeeID,
		ActingUserID:  change.ActingUserID,
		Reason:        change.Reason,
		CreatedAt:     t.now(),
	}

	t.logger.Debug("Step 3: Appending modification", zap.String("assignment_id", record.AssignmentID))
	if err := t.store.AppendModification(ctx, record, 0); err != nil {
		return nil, fmt.Errorf("failed to append modification: %w", err)
	}

	t.logger.Info("Recorded temporary addition",
		zap.String("slot_id", slotID),
		zap.String("employee_id", change.EmployeeID),
		zap.String("acting_user", change.ActingUserID))
	return &record, nil
}

func (t *Tracker) modify(ctx context.Context, assignmentID string, kind model.ChangeKind, window *model.ClockWindow, change Change) (*model.ModificationRecord, error) {
	if change.ActingUserID == "" {
		return nil, fmt.Errorf("%w: acting user is required", ErrInvalidModification)
	}

	unlock := t.locks.Lock(assignmentID)
	defer unlock()

	t.logger.Debug("Step 1: Resolving position", zap.String("assignment_id", assignmentID))
	entry, err := t.resolve(ctx, assignmentID)
	if err != nil {
		return nil, err
	}

	expected := change.ExpectedSequence
	if expected == AnySequence {
		expected = entry.LatestSequence
	}
	if expected != entry.LatestSequence {
		return nil, fmt.Errorf("%w: assignment %s is at sequence %d, expected %d",
			model.ErrConcurrentModification, assignmentID, entry.LatestSequence, expected)
	}

	switch {
	case change.EmployeeID == "" && entry.EmployeeID == "":
		return nil, fmt.Errorf("%w: position is already unfilled", ErrInvalidModification)
	case kind == model.ChangeSubstitute && entry.EmployeeID == "":
		return nil, fmt.Errorf("%w: cannot substitute on an unfilled position, use a swap", ErrInvalidModification)
	case change.EmployeeID != "" && change.EmployeeID == entry.EmployeeID:
		return nil, fmt.Errorf("%w: employee %s already holds the position", ErrInvalidModification, change.EmployeeID)
	}

	var span *model.Span
	if change.EmployeeID != "" {
		t.logger.Debug("Step 2: Checking eligibility", zap.String("employee_id", change.EmployeeID))
		ix, err := t.buildIndex(ctx, entry.Date)
		if err != nil {
			return nil, err
		}
		if window != nil {
			if span, err = placeWindow(ix, entry, *window); err != nil {
				return nil, err
			}
		}
		if err := t.checkEligible(ctx, ix, entry, change.EmployeeID); err != nil {
			return nil, err
		}
	}

	record := model.ModificationRecord{
		ID:                 t.newID(),
		AssignmentID:       assignmentID,
		Sequence:           expected + 1,
		Kind:               kind,
		BatchID:            entry.BatchID,
		SlotID:             entry.SlotID,
		OriginalEmployeeID: entry.EmployeeID,
		NewEmployeeID:      change.EmployeeID,
		Window:             span,
		ActingUserID:       change.ActingUserID,
		Reason:             change.Reason,
		CreatedAt:          t.now(),
	}

	t.logger.Debug("Step 3: Appending modification", zap.Int64("sequence", record.Sequence))
	if err := t.store.AppendModification(ctx, record, expected); err != nil {
		return nil, fmt.Errorf("failed to append modification: %w", err)
	}

	t.logger.Info("Recorded modification",
		zap.String("assignment_id", assignmentID),
		zap.String("kind", string(kind)),
		zap.String("from", record.OriginalEmployeeID),
		zap.String("to", record.NewEmployeeID),
		zap.String("acting_user", change.ActingUserID))
	return &record, nil
}

// resolve loads a position and folds its chain. Positions from a batch that a
// newer batch has superseded cannot be modified.
func (t *Tracker) resolve(ctx context.Context, assignmentID string) (*RosterEntry, error) {
	chain, err := t.store.ListModificationsForAssignment(ctx, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load modifications: %w", err)
	}

	var assignments []model.Assignment
	var slotID string

	assignment, err := t.store.GetAssignment(ctx, assignmentID)
	switch {
	case err == nil:
		assignments = []model.Assignment{*assignment}
		slotID = assignment.SlotID
	case errors.Is(err, model.ErrNotFound) && len(chain) > 0 && chain[0].Kind == model.ChangeTemporaryAdd:
		slotID = chain[0].SlotID
	default:
		return nil, fmt.Errorf("failed to load assignment: %w", err)
	}

	bs, err := t.store.GetDemandSlot(ctx, slotID)
	if err != nil {
		return nil, fmt.Errorf("failed to load slot: %w", err)
	}

	entries := Fold([]db.BatchSlot{*bs}, assignments, chain)
	if len(entries) != 1 {
		return nil, fmt.Errorf("%w: assignment %s belongs to a superseded batch", ErrInvalidModification, assignmentID)
	}
	return &entries[0], nil
}

// placeWindow puts a substitute window on the shift's axis and rejects it when
// it is empty or sticks out of the shift
func placeWindow(ix *constraints.Index, entry *RosterEntry, window model.ClockWindow) (*model.Span, error) {
	shift, ok := ix.Shift(entry.ShiftID)
	if !ok {
		return nil, fmt.Errorf("shift %s: %w", entry.ShiftID, model.ErrNotFound)
	}
	span := shift.WindowSpan(window)
	if span.IsEmpty() || !shift.Span().Contains(span) {
		return nil, fmt.Errorf("%w: window %s is not inside shift %s", ErrInvalidModification, span, shift.Span())
	}
	return &span, nil
}

// EffectiveRoster returns the folded roster for every slot date in the range
func (t *Tracker) EffectiveRoster(ctx context.Context, dates model.DateRange) ([]RosterEntry, error) {
	slots, err := t.store.ListBatchSlots(ctx, dates)
	if err != nil {
		return nil, fmt.Errorf("failed to list batch slots: %w", err)
	}
	assignments, err := t.store.ListAssignments(ctx, dates)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	records, err := t.store.ListModifications(ctx, dates)
	if err != nil {
		return nil, fmt.Errorf("failed to list modifications: %w", err)
	}
	return Fold(slots, assignments, records), nil
}

// EffectiveRosterFor returns the folded roster for a single date
func (t *Tracker) EffectiveRosterFor(ctx context.Context, date time.Time) ([]RosterEntry, error) {
	day := model.NormalizeDate(date)
	return t.EffectiveRoster(ctx, model.NewDateRange(day, day))
}
