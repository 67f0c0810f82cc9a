package commands

import (
	"context"

	"go.uber.org/zap"

	"github.com/jakechorley/store-roster/internal/config"
	"github.com/jakechorley/store-roster/pkg/core/tracker"
	"github.com/jakechorley/store-roster/pkg/db"
)

// AppContext holds the application dependencies shared across all commands
type AppContext struct {
	Env      string
	Cfg      *config.Config
	Database db.Database
	Tracker  *tracker.Tracker
	Logger   *zap.Logger
	Ctx      context.Context
}

// Migrator is implemented by repositories that own a schema
type Migrator interface {
	RunMigrations(ctx context.Context) error
}
