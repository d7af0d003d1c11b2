// Package db provides database connection helpers, schema migration, and the
// governance_saves data access helpers used by the Postgres snapshot store.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx postgres driver registered as 'pgx'
)

// SaveRow is one persisted governance ledger. Usage columns hold raw JSON
// objects keyed by resource name.
type SaveRow struct {
	SaveID         string
	EventUsage     []byte
	CommandUsage   []byte
	LastCleanupDay int
	UpdatedAt      time.Time
}

// Connect opens a Postgres connection and verifies it with a ping.
func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	dbx, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	dbx.SetMaxOpenConns(10)
	dbx.SetConnMaxIdleTime(5 * time.Minute)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := dbx.PingContext(pingCtx); err != nil {
		_ = dbx.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return dbx, nil
}

// Migrate applies idempotent schema changes for the governance tables. It is the
// fallback used when versioned migrations cannot run.
func Migrate(ctx context.Context, db *sql.DB) error { return migratePostgres(ctx, db) }

func migratePostgres(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS governance_saves (
			save_id TEXT PRIMARY KEY,
			event_usage JSONB NOT NULL DEFAULT '{}'::jsonb,
			command_usage JSONB NOT NULL DEFAULT '{}'::jsonb,
			last_cleanup_day INTEGER NOT NULL DEFAULT -1,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_governance_saves_updated_at ON governance_saves(updated_at)`,
	}
	for i, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("postgres migrate step %d failed: %w", i, err)
		}
	}
	return nil
}

// UpsertSave stores or replaces the ledger for row.SaveID.
func UpsertSave(ctx context.Context, dbx *sql.DB, row SaveRow) error {
	q := `INSERT INTO governance_saves(save_id, event_usage, command_usage, last_cleanup_day, updated_at)
		  VALUES($1,$2,$3,$4,NOW())
		  ON CONFLICT(save_id) DO UPDATE SET
		    event_usage=EXCLUDED.event_usage,
		    command_usage=EXCLUDED.command_usage,
		    last_cleanup_day=EXCLUDED.last_cleanup_day,
		    updated_at=NOW()`
	_, err := dbx.ExecContext(ctx, q, row.SaveID, string(row.EventUsage), string(row.CommandUsage), row.LastCleanupDay)
	return err
}

// GetSave retrieves a stored ledger; found is false when no row exists.
func GetSave(ctx context.Context, dbx *sql.DB, saveID string) (row SaveRow, found bool, err error) {
	var events, commands string
	err = dbx.QueryRowContext(ctx,
		`SELECT save_id, event_usage::text, command_usage::text, last_cleanup_day, updated_at
		 FROM governance_saves WHERE save_id = $1`, saveID).
		Scan(&row.SaveID, &events, &commands, &row.LastCleanupDay, &row.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return SaveRow{}, false, nil
	}
	if err != nil {
		return SaveRow{}, false, err
	}
	row.EventUsage = []byte(events)
	row.CommandUsage = []byte(commands)
	return row, true, nil
}

// DeleteSave removes a stored ledger. Deleting a missing save is not an error.
func DeleteSave(ctx context.Context, dbx *sql.DB, saveID string) error {
	_, err := dbx.ExecContext(ctx, `DELETE FROM governance_saves WHERE save_id = $1`, saveID)
	return err
}
