package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/store-roster/pkg/core/model"
	"github.com/jakechorley/store-roster/pkg/core/services"
)

// GenerateCmd creates the generate command
func GenerateCmd(app *AppContext) *cobra.Command {
	var storeIDs []string

	cmd := &cobra.Command{
		Use:   "generate <start> [end]",
		Short: "Generate a roster for a date range and persist it as a new batch",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, end, err := parseRange(args)
			if err != nil {
				return err
			}

			app.Logger.Debug("generate command",
				zap.Strings("stores", storeIDs),
				zap.String("start", model.DateKey(start)),
				zap.String("end", model.DateKey(end)))

			result, err := services.GenerateSchedule(app.Ctx, app.Database, app.Cfg, app.Logger, services.GenerateRequest{
				StoreIDs: storeIDs,
				Start:    start,
				End:      end,
			})
			if err != nil {
				return err
			}

			printGenerateResult(result)
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&storeIDs, "store", "s", nil, "Store to roster (repeatable, default all stores)")
	return cmd
}

func printGenerateResult(result *services.GenerateResult) {
	filled := 0
	for _, a := range result.Assignments {
		if a.IsFilled() {
			filled++
		}
	}

	fmt.Printf("\n✓ Roster generated!\n\n")
	fmt.Printf("Batch ID:   %s\n", result.Batch.ID)
	fmt.Printf("Range:      %s\n", result.Batch.Scope.Range)
	fmt.Printf("Status:     %s\n", result.Batch.Status)
	fmt.Printf("Positions:  %d filled of %d\n", filled, len(result.Assignments))
	fmt.Printf("Backtracks: %d\n", result.Batch.BacktrackCount)
	if result.BudgetExhausted {
		fmt.Printf("%sSearch budget ran out; some gaps may be avoidable%s\n", colorYellow, colorReset)
	}

	if len(result.Gaps) > 0 {
		fmt.Printf("\n%sGaps:%s\n", colorRed, colorReset)
		for _, gap := range result.Gaps {
			fmt.Printf("  %s %-8s %-10s %-10s %d of %d unfilled\n",
				model.DateKey(gap.Slot.Date), gap.Slot.StoreID, gap.Slot.ShiftID, gap.Slot.SkillID,
				gap.Unfilled, gap.Slot.Required)
		}
	}

	if len(result.Warnings) > 0 {
		fmt.Printf("\n%sWarnings:%s\n", colorYellow, colorReset)
		for _, w := range result.Warnings {
			fmt.Printf("  [%s] %s %s\n", w.Kind, w.Date, w.Message)
		}
	}
	fmt.Println()
}
