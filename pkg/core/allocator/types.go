package allocator

import (
	"fmt"
	"slices"
	"time"

	"github.com/jakechorley/store-roster/pkg/core/constraints"
	"github.com/jakechorley/store-roster/pkg/core/model"
)

// RunStatus is the state of a generation run
type RunStatus string

const (
	StatusPending           RunStatus = "pending"
	StatusSolving           RunStatus = "solving"
	StatusCompleted         RunStatus = "completed"
	StatusCompletedWithGaps RunStatus = "completed_with_gaps"
)

// Task is one atomic position of a demand slot: a slot with Required = 3 becomes
// three tasks with Sequence 0, 1 and 2.
type Task struct {
	// Index in the RotaState's Tasks slice
	Index int

	Slot     *model.DemandSlot
	Sequence int
	Shift    *model.Shift

	// Span is the shift placed on the index axis so tasks on different dates compare directly
	Span model.Span

	// Assigned is the employee holding this position ("" while unfilled)
	Assigned string

	// pick is the ranking of the assigned employee when the solver chose them.
	// The weakest picks are the first to be released when backtracking.
	pick Candidate
}

// Date returns the calendar date the task's shift starts on
func (t *Task) Date() time.Time {
	return t.Slot.Date
}

// IsFilled reports whether an employee holds the task
func (t *Task) IsFilled() bool {
	return t.Assigned != ""
}

func (t *Task) String() string {
	return fmt.Sprintf("%s/%d (%s %s %s %s)", t.Slot.ID, t.Sequence, t.Slot.StoreID, model.DateKey(t.Slot.Date), t.Shift.ID, t.Slot.SkillID)
}

// RotaState is the provisional assignment set of a run.
// It is not safe for concurrent mutation; the solver loop is its single writer.
type RotaState struct {
	Index *constraints.Index
	Tasks []*Task

	// byEmployee tracks the tasks each employee currently holds
	byEmployee map[string][]*Task
}

// NewRotaState creates an empty state over an index
func NewRotaState(ix *constraints.Index) *RotaState {
	return &RotaState{
		Index:      ix,
		byEmployee: make(map[string][]*Task),
	}
}

// AddTask appends a task for a slot position, optionally already held by an employee
func (s *RotaState) AddTask(slot *model.DemandSlot, sequence int, employeeID string) (*Task, error) {
	shift, ok := s.Index.Shift(slot.ShiftID)
	if !ok {
		return nil, fmt.Errorf("slot %s references unknown shift %s", slot.ID, slot.ShiftID)
	}

	task := &Task{
		Index:    len(s.Tasks),
		Slot:     slot,
		Sequence: sequence,
		Shift:    shift,
		Span:     s.Index.SpanOn(slot.Date, shift),
	}
	s.Tasks = append(s.Tasks, task)

	if employeeID != "" {
		s.Assign(task, employeeID)
	}
	return task, nil
}

// Assign gives a task to an employee, replacing any current holder
func (s *RotaState) Assign(task *Task, employeeID string) {
	s.assignCandidate(task, Candidate{EmployeeID: employeeID})
}

func (s *RotaState) assignCandidate(task *Task, c Candidate) {
	if task.IsFilled() {
		s.Release(task)
	}
	task.Assigned = c.EmployeeID
	task.pick = c
	s.byEmployee[c.EmployeeID] = append(s.byEmployee[c.EmployeeID], task)
}

// Release clears a task's holder
func (s *RotaState) Release(task *Task) {
	if !task.IsFilled() {
		return
	}
	held := s.byEmployee[task.Assigned]
	s.byEmployee[task.Assigned] = slices.DeleteFunc(held, func(t *Task) bool { return t == task })
	task.Assigned = ""
	task.pick = Candidate{}
}

// AssignedTasks returns the tasks an employee currently holds
func (s *RotaState) AssignedTasks(employeeID string) []*Task {
	return s.byEmployee[employeeID]
}

// OverlappingTasks returns the tasks held by the employee whose span overlaps the given
// task, excluding the task itself
func (s *RotaState) OverlappingTasks(employeeID string, task *Task) []*Task {
	var overlapping []*Task
	for _, held := range s.byEmployee[employeeID] {
		if held == task {
			continue
		}
		if held.Span.Overlaps(task.Span) {
			overlapping = append(overlapping, held)
		}
	}
	return overlapping
}

// Gap is an unfilled part of a demand slot
type Gap struct {
	Slot     model.DemandSlot `json:"slot"`
	Unfilled int              `json:"unfilled"`
}

// TaskValidationError represents a broken invariant on a specific task
type TaskValidationError struct {
	TaskIndex     int
	SlotID        string
	Date          string
	EmployeeID    string
	CriterionName string
	Description   string
}
