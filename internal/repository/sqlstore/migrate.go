package sqlstore

import (
	"context"
	"embed"
	"fmt"
	"log/slog"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

const migrationsDir = "migrations"

// gooseLogger routes goose's printf-style output into slog.
type gooseLogger struct {
	logger *slog.Logger
}

func (l gooseLogger) Printf(format string, v ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, v...), slog.String("component", "migrate"))
}

func (l gooseLogger) Fatalf(format string, v ...interface{}) {
	// goose only calls Fatalf from its own CLI helpers, which we don't use.
	l.logger.Error(fmt.Sprintf(format, v...), slog.String("component", "migrate"))
}

// setupGoose points goose's package-level state at our embedded files and dialect.
func (s *Store) setupGoose() error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(gooseLogger{logger: s.logger})

	dialect := "sqlite3"
	if s.driver == DriverPostgres {
		dialect = "postgres"
	}
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("sqlstore: setting goose dialect: %w", err)
	}
	return nil
}

// Migrate applies every pending migration.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.setupGoose(); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, s.db.DB, migrationsDir); err != nil {
		return fmt.Errorf("sqlstore: running migrations: %w", err)
	}
	return nil
}

// MigrateDown rolls back the most recent migration.
func (s *Store) MigrateDown(ctx context.Context) error {
	if err := s.setupGoose(); err != nil {
		return err
	}
	if err := goose.DownContext(ctx, s.db.DB, migrationsDir); err != nil {
		return fmt.Errorf("sqlstore: rolling back migration: %w", err)
	}
	return nil
}

// MigrationStatus logs the applied/pending state of every migration.
func (s *Store) MigrationStatus(ctx context.Context) error {
	if err := s.setupGoose(); err != nil {
		return err
	}
	if err := goose.StatusContext(ctx, s.db.DB, migrationsDir); err != nil {
		return fmt.Errorf("sqlstore: reading migration status: %w", err)
	}
	return nil
}

// SchemaVersion returns the current goose version of the database.
func (s *Store) SchemaVersion(ctx context.Context) (int64, error) {
	if err := s.setupGoose(); err != nil {
		return 0, err
	}
	v, err := goose.GetDBVersionContext(ctx, s.db.DB)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: reading schema version: %w", err)
	}
	return v, nil
}
