package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jakechorley/store-roster/pkg/core/model"
	"github.com/jakechorley/store-roster/pkg/core/services"
)

// PlanCmd creates the plan command
func PlanCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "plan <start> [end]",
		Short: "Show the effective roster with every modification applied",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, end, err := parseRange(args)
			if err != nil {
				return err
			}

			plan, err := services.GetSchedulePlan(app.Ctx, app.Tracker, app.Logger, start, end)
			if err != nil {
				return err
			}

			if len(plan.Entries) == 0 {
				fmt.Printf("No roster has been generated for %s\n", rangeLabel(plan.Range))
				return nil
			}

			fmt.Printf("\nRoster for %s\n", rangeLabel(plan.Range))
			printRoster(plan.Entries)
			fmt.Printf("%d positions, %d unfilled, %d modified\n\n", len(plan.Entries), plan.Unfilled, plan.Modified)
			return nil
		},
	}
}

// HistoryCmd creates the history command
func HistoryCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "history <start> [end]",
		Short: "Show every batch and modification touching a date range",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, end, err := parseRange(args)
			if err != nil {
				return err
			}

			history, err := services.GetScheduleHistory(app.Ctx, app.Tracker, app.Logger, start, end)
			if err != nil {
				return err
			}

			if len(history) == 0 {
				fmt.Println("No batches found")
				return nil
			}

			for _, h := range history {
				fmt.Printf("\nBatch %s  %s  %s  (%d assignments)\n",
					h.Batch.ID, h.Batch.CreatedAt.Format("2006-01-02 15:04"), h.Batch.Status, len(h.Assignments))
				for _, m := range h.Modifications {
					line := fmt.Sprintf("  %s #%d %-13s %s -> %s by %s",
						m.AssignmentID, m.Sequence, m.Kind, orDash(m.OriginalEmployeeID), orDash(m.NewEmployeeID), m.ActingUserID)
					if m.Window != nil {
						line += " " + formatWindow(m.Window)
					}
					if m.Reason != "" {
						line += fmt.Sprintf(" %s(%s)%s", colorDim, m.Reason, colorReset)
					}
					fmt.Println(line)
				}
			}
			fmt.Println()
			return nil
		},
	}
}

// SubstitutesCmd creates the substitutes command
func SubstitutesCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "substitutes <assignment_id>",
		Short: "List employees eligible to take over a position, best first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			candidates, err := services.GetAvailableSubstitutes(app.Ctx, app.Tracker, app.Logger, args[0])
			if err != nil {
				return err
			}

			if len(candidates) == 0 {
				fmt.Println("No eligible substitutes")
				return nil
			}

			fmt.Printf("\n%-4s %-20s %-6s %-9s %s\n", "#", "Employee", "Skill", "Priority", "")
			for i, c := range candidates {
				borrowed := ""
				if c.Borrowed {
					borrowed = colorDim + "borrowed" + colorReset
				}
				fmt.Printf("%-4d %-20s %-6d %-9d %s\n", i+1, c.EmployeeID, c.SkillScore, c.Priority, borrowed)
			}
			fmt.Println()
			return nil
		},
	}
}

func rangeLabel(r model.DateRange) string {
	if r.Start.Equal(r.End) {
		return model.DateKey(r.Start)
	}
	return r.String()
}
