package commands

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/store-roster/pkg/core/tracker"
)

// changeFlags are shared by every command that records a modification
type changeFlags struct {
	actingUser string
	reason     string
	expected   int64
}

func (f *changeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.actingUser, "by", "b", "", "User making the change (required)")
	cmd.Flags().StringVarP(&f.reason, "reason", "r", "", "Why the change is being made")
	cmd.Flags().Int64Var(&f.expected, "expected-seq", tracker.AnySequence, "Latest sequence you last saw; the change fails if the position moved on")
	cmd.MarkFlagRequired("by")
}

func (f *changeFlags) change(employeeID string) tracker.Change {
	return tracker.Change{
		EmployeeID:       employeeID,
		ActingUserID:     f.actingUser,
		Reason:           f.reason,
		ExpectedSequence: f.expected,
	}
}

// SwapCmd creates the swap command
func SwapCmd(app *AppContext) *cobra.Command {
	var flags changeFlags
	cmd := &cobra.Command{
		Use:   "swap <assignment_id> <employee_id>",
		Short: "Permanently hand a position to another employee",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app.Logger.Debug("swap command", zap.String("assignment_id", args[0]), zap.String("employee_id", args[1]))

			record, err := app.Tracker.RecordSwap(app.Ctx, args[0], flags.change(args[1]))
			if err != nil {
				return err
			}
			printRecord(record)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

// SubstituteCmd creates the substitute command
func SubstituteCmd(app *AppContext) *cobra.Command {
	var flags changeFlags
	var from, to string

	cmd := &cobra.Command{
		Use:   "substitute <assignment_id> <employee_id>",
		Short: "Cover a position temporarily, for the whole shift or a window inside it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			window, err := parseWindow(from, to)
			if err != nil {
				return err
			}

			app.Logger.Debug("substitute command",
				zap.String("assignment_id", args[0]),
				zap.String("employee_id", args[1]),
				zap.String("from", from),
				zap.String("to", to))

			record, err := app.Tracker.RecordSubstitute(app.Ctx, args[0], window, flags.change(args[1]))
			if err != nil {
				return err
			}
			printRecord(record)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&from, "from", "", "Window start HH:MM (default whole shift)")
	cmd.Flags().StringVar(&to, "to", "", "Window end HH:MM")
	return cmd
}

// RemoveCmd creates the remove command
func RemoveCmd(app *AppContext) *cobra.Command {
	var flags changeFlags
	cmd := &cobra.Command{
		Use:   "remove <assignment_id>",
		Short: "Clear a position, leaving it unfilled",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app.Logger.Debug("remove command", zap.String("assignment_id", args[0]))

			record, err := app.Tracker.RecordRemoval(app.Ctx, args[0], flags.change(""))
			if err != nil {
				return err
			}
			printRecord(record)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

// AddTemporaryCmd creates the add-temp command
func AddTemporaryCmd(app *AppContext) *cobra.Command {
	var flags changeFlags
	cmd := &cobra.Command{
		Use:   "add-temp <slot_id> <employee_id>",
		Short: "Add an extra position to a slot for one employee",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app.Logger.Debug("add-temp command", zap.String("slot_id", args[0]), zap.String("employee_id", args[1]))

			record, err := app.Tracker.RecordTemporaryAddition(app.Ctx, args[0], flags.change(args[1]))
			if err != nil {
				return err
			}
			printRecord(record)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}
