package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
)

//go:embed sql/*.sql
var embedded embed.FS

const migrationsDir = "sql"

// Migrator applies the embedded schema migrations
type Migrator struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewMigrator wraps a pgx pool in a database/sql handle for goose
func NewMigrator(pool *pgxpool.Pool, logger zerolog.Logger) *Migrator {
	return NewMigratorForDB(stdlib.OpenDBFromPool(pool), logger)
}

// NewMigratorForDB uses an existing database/sql handle
func NewMigratorForDB(db *sql.DB, logger zerolog.Logger) *Migrator {
	return &Migrator{db: db, logger: logger}
}

func (m *Migrator) prepare() error {
	goose.SetBaseFS(embedded)
	goose.SetLogger(gooseLogger{m.logger})
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return nil
}

// Up applies every pending migration
func (m *Migrator) Up(ctx context.Context) error {
	if err := m.prepare(); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, m.db, migrationsDir); err != nil {
		return fmt.Errorf("database migrations failed: %w", err)
	}
	version, err := goose.GetDBVersionContext(ctx, m.db)
	if err == nil {
		m.logger.Info().Int64("version", version).Msg("Database schema is up to date")
	}
	return nil
}

// Reset rolls every migration back. Used by integration tests.
func (m *Migrator) Reset(ctx context.Context) error {
	if err := m.prepare(); err != nil {
		return err
	}
	return goose.ResetContext(ctx, m.db, migrationsDir)
}

// gooseLogger routes goose output through zerolog
type gooseLogger struct {
	logger zerolog.Logger
}

func (l gooseLogger) Fatalf(format string, v ...interface{}) {
	l.logger.Fatal().Msgf(format, v...)
}

func (l gooseLogger) Printf(format string, v ...interface{}) {
	l.logger.Info().Str("component", "goose").Msgf(format, v...)
}
