package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/onnwee/chatgov/db"
	"github.com/onnwee/chatgov/governance"
)

// Postgres stores one governance_saves row per save.
type Postgres struct {
	db *sql.DB
}

// NewPostgres wraps an open connection whose schema is already migrated.
func NewPostgres(dbx *sql.DB) *Postgres { return &Postgres{db: dbx} }

func (p *Postgres) Load(ctx context.Context, saveID string) (governance.Snapshot, bool, error) {
	if saveID == "" {
		return governance.Snapshot{}, false, ErrEmptySaveID
	}
	row, found, err := db.GetSave(ctx, p.db, saveID)
	if err != nil {
		return governance.Snapshot{}, false, fmt.Errorf("load save %s: %w", saveID, err)
	}
	if !found {
		return governance.Snapshot{}, false, nil
	}
	s := governance.Snapshot{LastCleanupDay: row.LastCleanupDay}
	if err := json.Unmarshal(row.EventUsage, &s.EventUsage); err != nil {
		return governance.Snapshot{}, false, fmt.Errorf("decode event usage of %s: %w", saveID, err)
	}
	if err := json.Unmarshal(row.CommandUsage, &s.CommandUsage); err != nil {
		return governance.Snapshot{}, false, fmt.Errorf("decode command usage of %s: %w", saveID, err)
	}
	return s, true, nil
}

func (p *Postgres) Save(ctx context.Context, saveID string, s governance.Snapshot) error {
	if saveID == "" {
		return ErrEmptySaveID
	}
	events, err := marshalUsage(s.EventUsage)
	if err != nil {
		return err
	}
	commands, err := marshalUsage(s.CommandUsage)
	if err != nil {
		return err
	}
	if err := db.UpsertSave(ctx, p.db, db.SaveRow{
		SaveID:         saveID,
		EventUsage:     events,
		CommandUsage:   commands,
		LastCleanupDay: s.LastCleanupDay,
	}); err != nil {
		return fmt.Errorf("save %s: %w", saveID, err)
	}
	return nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *Postgres) Close() error { return p.db.Close() }

// marshalUsage encodes a namespace; nil maps become {} to satisfy NOT NULL.
func marshalUsage(m map[string]governance.RecordSnapshot) ([]byte, error) {
	if m == nil {
		m = map[string]governance.RecordSnapshot{}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode usage: %w", err)
	}
	return b, nil
}
