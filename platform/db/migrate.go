package db

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	"portal_analysis_backend/platform/config"
	"portal_analysis_backend/platform/logger"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// RunMigrations applies all pending goose migrations found in fsys.
func RunMigrations(ctx context.Context, cfg config.DatabaseConfig, fsys fs.FS, log *logger.Logger) error {
	sqlDB, err := sql.Open("pgx", cfg.GetDatabaseURL())
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer sqlDB.Close()

	return migrate(ctx, sqlDB, fsys, log)
}

func migrate(ctx context.Context, sqlDB *sql.DB, fsys fs.FS, log *logger.Logger) error {
	provider, err := goose.NewProvider(goose.DialectPostgres, sqlDB, fsys)
	if err != nil {
		return fmt.Errorf("init migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	if log != nil {
		for _, res := range results {
			log.Info("migration applied", "source", res.Source.Path, "duration", res.Duration)
		}
	}
	return nil
}
