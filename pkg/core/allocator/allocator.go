package allocator

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/jakechorley/store-roster/pkg/core/constraints"
	"github.com/jakechorley/store-roster/pkg/core/model"
)

const (
	DefaultBacktrackFactor   = 2
	DefaultMaxBacktrackDepth = 3
)

// Allocator fills tasks greedily in a fixed order, backtracking a bounded number of times
type Allocator struct {
	criteria []Criterion
	state    *RotaState
	status   RunStatus

	maxAttempts int
	maxDepth    int
	deadline    time.Time
	now         func() time.Time

	attempts        int
	budgetExhausted bool
}

// AllocationConfig contains the configuration for a generation run
type AllocationConfig struct {
	// Index built from the run's snapshot
	Index *constraints.Index

	// Criteria to apply during allocation (DefaultCriteria when empty)
	Criteria []Criterion

	// BacktrackFactor bounds backtracking attempts to BacktrackFactor * number of tasks (minimum 1)
	BacktrackFactor int

	// MaxBacktrackDepth bounds how many released assignments can be chained while resolving one task
	MaxBacktrackDepth int

	// TimeBudget is the wall-clock limit on backtracking (0 = none). Once spent,
	// remaining dead ends become gaps straight away.
	TimeBudget time.Duration

	// Now is the clock used for TimeBudget (time.Now when nil)
	Now func() time.Time
}

// AllocationOutcome represents the result of a generation run
type AllocationOutcome struct {
	// State is the final provisional assignment set
	State *RotaState

	// Status is either StatusCompleted or StatusCompletedWithGaps
	Status RunStatus

	// Gaps lists the slots with unfilled positions, in task order
	Gaps []Gap

	// Suppressed lists the slots closed by a store event
	Suppressed []model.DemandSlot

	// BacktrackCount is the number of released assignments tried
	BacktrackCount int

	// BudgetExhausted is set when the backtrack or time budget ran out
	BudgetExhausted bool

	// ValidationErrors contains any validation errors found in the final state
	ValidationErrors []TaskValidationError
}

// Allocate runs the main allocation loop to generate the roster.
//
// The context is checked between tasks; if it is cancelled the provisional
// assignments are discarded and the context error is returned.
func Allocate(ctx context.Context, config AllocationConfig) (*AllocationOutcome, error) {
	if config.Index == nil {
		return nil, fmt.Errorf("index is required")
	}

	// Initialise allocator
	state, suppressed, err := InitRotaState(config.Index)
	if err != nil {
		return nil, err
	}

	allocator := newAllocator(config, state)
	allocator.status = StatusSolving

	// Main allocation loop
	chain := make(map[*Task]bool)
	for _, task := range state.Tasks {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("allocation cancelled: %w", err)
		}

		// An unresolved task stays unfilled and is reported as a gap
		allocator.fill(task, 0, chain)
	}

	// Build outcome report
	outcome := allocator.buildOutcome()
	outcome.Suppressed = suppressed
	return outcome, nil
}

func newAllocator(config AllocationConfig, state *RotaState) *Allocator {
	criteria := config.Criteria
	if len(criteria) == 0 {
		criteria = DefaultCriteria()
	}

	factor := config.BacktrackFactor
	if factor <= 0 {
		factor = DefaultBacktrackFactor
	}
	depth := config.MaxBacktrackDepth
	if depth <= 0 {
		depth = DefaultMaxBacktrackDepth
	}
	now := config.Now
	if now == nil {
		now = time.Now
	}

	a := &Allocator{
		criteria:    criteria,
		state:       state,
		status:      StatusPending,
		maxAttempts: max(1, factor*len(state.Tasks)),
		maxDepth:    depth,
		now:         now,
	}
	if config.TimeBudget > 0 {
		a.deadline = now().Add(config.TimeBudget)
	}
	return a
}

// fill gives the task its best candidate. When there is none it tries to free one up
// by releasing a provisional assignment that blocks an otherwise-eligible employee,
// moving that employee onto this task and recursively refilling the released task.
// Every change made by a failed attempt is reverted, so on false the state is
// exactly as it was on entry.
func (a *Allocator) fill(task *Task, depth int, chain map[*Task]bool) bool {
	candidates := RankCandidates(a.state, task, a.criteria)
	if len(candidates) > 0 {
		a.state.assignCandidate(task, candidates[0])
		return true
	}

	if depth >= a.maxDepth {
		return false
	}

	chain[task] = true
	defer delete(chain, task)

	for _, blocked := range a.findBlockers(task, chain) {
		if !a.consumeBudget() {
			return false
		}

		previous := blocked.pick
		a.state.Release(blocked)

		// Releasing the blocker should have made its employee a candidate
		freed := RankCandidates(a.state, task, a.criteria)
		pos := slices.IndexFunc(freed, func(c Candidate) bool { return c.EmployeeID == previous.EmployeeID })
		if pos >= 0 {
			a.state.assignCandidate(task, freed[pos])
			if a.fill(blocked, depth+1, chain) {
				return true
			}
			a.state.Release(task)
		}

		// Revert
		a.state.assignCandidate(blocked, previous)
	}

	return false
}

// findBlockers returns the provisional assignments whose release would make their
// employee a candidate for task: the employee passes every criterion except the
// overlap check, and exactly one held task causes the overlap.
// The weakest picks come first, then the most recently made.
func (a *Allocator) findBlockers(task *Task, chain map[*Task]bool) []*Task {
	var blockers []*Task

	for _, employeeID := range a.state.Index.EmployeeIDs() {
		overlapping := a.state.OverlappingTasks(employeeID, task)
		if len(overlapping) != 1 || chain[overlapping[0]] {
			continue
		}
		if !a.passesAllExceptOverlap(task, employeeID) {
			continue
		}
		blockers = append(blockers, overlapping[0])
	}

	slices.SortFunc(blockers, func(x, y *Task) int {
		if c := compareCandidates(y.pick, x.pick); c != 0 {
			return c
		}
		return cmp.Compare(y.Index, x.Index)
	})
	return blockers
}

func (a *Allocator) passesAllExceptOverlap(task *Task, employeeID string) bool {
	for _, criterion := range a.criteria {
		if _, ok := criterion.(*NoOverlapCriterion); ok {
			continue
		}
		if !criterion.IsCandidateValid(a.state, task, employeeID) {
			return false
		}
	}
	return true
}

// consumeBudget spends one backtrack attempt, reporting false once the count or time budget is gone
func (a *Allocator) consumeBudget() bool {
	if a.attempts >= a.maxAttempts || (!a.deadline.IsZero() && !a.now().Before(a.deadline)) {
		a.budgetExhausted = true
		return false
	}
	a.attempts++
	return true
}

// buildOutcome creates the final allocation outcome report
func (a *Allocator) buildOutcome() *AllocationOutcome {
	// Initialize with empty slices (not nil) for easier consumption
	outcome := &AllocationOutcome{
		State:            a.state,
		Gaps:             []Gap{},
		Suppressed:       []model.DemandSlot{},
		BacktrackCount:   a.attempts,
		BudgetExhausted:  a.budgetExhausted,
		ValidationErrors: []TaskValidationError{},
	}

	gapIndex := make(map[string]int)
	for _, task := range a.state.Tasks {
		if task.IsFilled() {
			continue
		}
		if i, ok := gapIndex[task.Slot.ID]; ok {
			outcome.Gaps[i].Unfilled++
			continue
		}
		gapIndex[task.Slot.ID] = len(outcome.Gaps)
		outcome.Gaps = append(outcome.Gaps, Gap{Slot: *task.Slot, Unfilled: 1})
	}

	a.status = StatusCompleted
	if len(outcome.Gaps) > 0 {
		a.status = StatusCompletedWithGaps
	}
	outcome.Status = a.status

	// Run validation
	outcome.ValidationErrors = ValidateRotaState(a.state, a.criteria)

	return outcome
}
