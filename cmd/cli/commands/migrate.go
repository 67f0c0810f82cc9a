package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// MigrateCmd creates the migrate command
func MigrateCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			migrator, ok := app.Database.(Migrator)
			if !ok {
				return fmt.Errorf("the configured database has no schema to migrate; set databaseURL")
			}

			app.Logger.Info("Running migrations")
			if err := migrator.RunMigrations(app.Ctx); err != nil {
				return err
			}

			fmt.Printf("\n✓ Migrations applied\n\n")
			return nil
		},
	}
}
