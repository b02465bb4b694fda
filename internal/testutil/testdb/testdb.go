//go:build testutil
// +build testutil

// Package testdb starts a disposable postgres with the engine schema applied
package testdb

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/yigit/schoolhealth/internal/app/migrations"
)

// DBHandle owns the container and both client handles
type DBHandle struct {
	DB     *sql.DB
	Pool   *pgxpool.Pool
	URI    string
	cancel func()
	stop   func(context.Context) error
}

// Close releases the clients and terminates the container
func (h *DBHandle) Close() {
	if h.Pool != nil {
		h.Pool.Close()
	}
	if h.DB != nil {
		_ = h.DB.Close()
	}
	if h.stop != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = h.stop(ctx)
	}
	if h.cancel != nil {
		h.cancel()
	}
}

// Truncate empties every engine table and restarts the id sequences
func (h *DBHandle) Truncate(ctx context.Context) error {
	_, err := h.DB.ExecContext(ctx,
		`TRUNCATE result_records, consent_records, campaigns, students RESTART IDENTITY CASCADE`)
	return err
}

// Start runs postgres and applies the embedded goose migrations
func Start(ctx context.Context) (*DBHandle, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)

	pg, err := postgres.RunContainer(ctx,
		tc.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("schoolhealth"),
		postgres.WithUsername("schoolhealth"),
		postgres.WithPassword("schoolhealth"),
	)
	if err != nil {
		cancel()
		return nil, err
	}
	fail := func(err error) (*DBHandle, error) {
		_ = pg.Terminate(context.Background())
		cancel()
		return nil, err
	}

	uri, err := pg.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return fail(err)
	}

	db, err := sql.Open("postgres", uri)
	if err != nil {
		return fail(err)
	}
	if err := waitReady(ctx, db); err != nil {
		_ = db.Close()
		return fail(err)
	}
	if err := migrations.NewMigratorForDB(db, zerolog.Nop()).Up(ctx); err != nil {
		_ = db.Close()
		return fail(err)
	}

	pool, err := pgxpool.New(ctx, uri)
	if err != nil {
		_ = db.Close()
		return fail(err)
	}

	return &DBHandle{
		DB:     db,
		Pool:   pool,
		URI:    uri,
		cancel: cancel,
		stop:   pg.Terminate,
	}, nil
}

func waitReady(ctx context.Context, db *sql.DB) error {
	dead := time.Now().Add(20 * time.Second)
	for time.Now().Before(dead) {
		if err := db.PingContext(ctx); err == nil {
			return nil
		}
		time.Sleep(200 * time.Millisecond)
	}
	return errors.New("db not ready")
}
