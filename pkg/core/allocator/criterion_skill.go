package allocator

// SkillCriterion requires the employee to hold the slot's skill.
//
// Validity:
//   - Returns false if the employee has no priority score for the slot's skill
//   - Inactive skills are never held, so slots for them cannot be filled
type SkillCriterion struct{}

// NewSkillCriterion creates a new SkillCriterion
func NewSkillCriterion() *SkillCriterion {
	return &SkillCriterion{}
}

func (c *SkillCriterion) Name() string {
	return "Skill"
}

func (c *SkillCriterion) Explanation() string {
	return "does not hold the required skill"
}

func (c *SkillCriterion) IsCandidateValid(state *RotaState, task *Task, employeeID string) bool {
	_, ok := state.Index.SkillScore(employeeID, task.Slot.SkillID)
	return ok
}

func (c *SkillCriterion) ValidateRotaState(state *RotaState) []TaskValidationError {
	return validateFilledTasks(state, c)
}
