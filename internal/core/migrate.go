// AngelaMos | 2026
// migrate.go

package core

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/pressly/goose/v3"

	"github.com/carterperez-dev/billing-service/internal/config"
)

// Migrate applies pending goose migrations from the configured directory.
// Called once at startup before any component touches the schema.
func Migrate(
	ctx context.Context,
	db *Database,
	cfg config.DatabaseConfig,
	logger *slog.Logger,
) error {
	if cfg.MigrationsPath == "" {
		return fmt.Errorf("migrations path not configured")
	}

	if _, err := os.Stat(cfg.MigrationsPath); err != nil {
		return fmt.Errorf("migrations dir: %w", err)
	}

	goose.SetLogger(&gooseSlogAdapter{logger: logger})

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db.DB.DB, cfg.MigrationsPath); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// gooseSlogAdapter routes goose's Printf-style logging through slog.
type gooseSlogAdapter struct {
	logger *slog.Logger
}

func (a *gooseSlogAdapter) Fatalf(format string, v ...any) {
	a.logger.Error(fmt.Sprintf(format, v...))
}

func (a *gooseSlogAdapter) Printf(format string, v ...any) {
	a.logger.Info(fmt.Sprintf(format, v...))
}
