package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/store-roster/cmd/cli/commands"
	"github.com/jakechorley/store-roster/internal/config"
	"github.com/jakechorley/store-roster/pkg/core/constraints"
	"github.com/jakechorley/store-roster/pkg/core/model"
	"github.com/jakechorley/store-roster/pkg/core/tracker"
	"github.com/jakechorley/store-roster/pkg/db"
	"github.com/jakechorley/store-roster/pkg/db/memdb"
	"github.com/jakechorley/store-roster/pkg/postgres"
	"github.com/jakechorley/store-roster/pkg/utils/logging"
)

var (
	env    string
	logDir string
	app    = &commands.AppContext{Ctx: context.Background()}
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "roster",
		Short: "Store roster CLI - generate and adjust staff rosters",
		Long:  `A CLI tool for generating multi-store staff rosters and recording swaps, substitutions and temporary additions against them.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initApp()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app.Database != nil {
				app.Database.Close()
			}
			if app.Logger != nil {
				app.Logger.Sync()
			}
		},
		SilenceUsage: true,
	}

	// Add persistent environment flag
	rootCmd.PersistentFlags().StringVarP(&env, "env", "e", "", "Environment (required: test, prod, etc.)")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", logging.DefaultDir, "Directory for log files")
	rootCmd.MarkPersistentFlagRequired("env")

	// Add all commands
	rootCmd.AddCommand(commands.GenerateCmd(app))
	rootCmd.AddCommand(commands.PlanCmd(app))
	rootCmd.AddCommand(commands.HistoryCmd(app))
	rootCmd.AddCommand(commands.SubstitutesCmd(app))
	rootCmd.AddCommand(commands.SwapCmd(app))
	rootCmd.AddCommand(commands.SubstituteCmd(app))
	rootCmd.AddCommand(commands.RemoveCmd(app))
	rootCmd.AddCommand(commands.AddTemporaryCmd(app))
	rootCmd.AddCommand(commands.ServeCmd(app))
	rootCmd.AddCommand(commands.MigrateCmd(app))
	rootCmd.AddCommand(commands.InteractiveCmd(app))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initApp sets up logger, config, database and tracker
func initApp() error {
	var err error
	app.Env = env

	// Initialize logger
	app.Logger, err = logging.InitLogger(env, logDir)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	app.Logger.Info("Starting application", zap.String("environment", env))

	// Load configuration
	app.Logger.Debug("Loading configuration")
	app.Cfg, err = config.Load(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	app.Logger.Debug("Configuration loaded successfully")

	// Connect to the database
	app.Database, err = openDatabase(app.Ctx, app.Cfg, app.Logger)
	if err != nil {
		return err
	}

	app.Tracker = tracker.New(app.Database, app.Logger, tracker.Options{
		IndexOptions: constraints.Options{
			DefaultCrossDayRule: model.CrossDayRule(app.Cfg.DefaultCrossDayRule),
		},
	})
	return nil
}

func openDatabase(ctx context.Context, cfg *config.Config, logger *zap.Logger) (db.Database, error) {
	if cfg.DatabaseURL != "" {
		logger.Debug("Connecting to PostgreSQL")
		database, err := postgres.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		logger.Info("Database initialized successfully")
		return database, nil
	}

	logger.Warn("Using in-memory database; generated batches and changes last only for this process",
		zap.String("data_file", cfg.DataFile))
	database, err := memdb.LoadFile(cfg.DataFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load data file: %w", err)
	}
	return database, nil
}
