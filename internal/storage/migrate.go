package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// RunMigrations applies all pending database migrations
func RunMigrations(ctx context.Context, dsn string) error {
	return withMigrations(ctx, dsn, "failed to run migrations", goose.UpContext)
}

// MigrateDown rolls back the last applied migration
func MigrateDown(ctx context.Context, dsn string) error {
	return withMigrations(ctx, dsn, "failed to rollback migration", goose.DownContext)
}

// MigrateStatus prints the status of all migrations
func MigrateStatus(ctx context.Context, dsn string) error {
	return withMigrations(ctx, dsn, "failed to get migration status", goose.StatusContext)
}

// withMigrations opens a temporary database/sql connection (required by
// goose) and runs op against the embedded migrations
func withMigrations(ctx context.Context, dsn, failure string, op func(context.Context, *sql.DB, string, ...goose.OptionsFunc) error) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := op(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("%s: %w", failure, err)
	}

	return nil
}
