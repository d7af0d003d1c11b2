// Package main provides a CLI tool to move governance ledgers between snapshot
// backends and to manage the Postgres schema.
//
// Usage:
//
//	migrate-saves --from redis --to postgres --save-ids default,season2 [--dry-run]
//	migrate-saves --schema up|down|version
//
// Flags:
//
//	--from, --to: source and destination backends (memory|postgres|redis)
//	--save-ids:   comma-separated save ids to copy
//	--dry-run:    show what would be copied without writing
//	--overwrite:  replace saves that already exist at the destination
//	--schema:     run a schema command against DB_DSN instead of copying
//
// Connection settings come from the same environment variables as the service
// (DB_DSN, REDIS_ADDR, REDIS_PASSWORD, REDIS_DB, REDIS_KEY_PREFIX).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/onnwee/chatgov/config"
	"github.com/onnwee/chatgov/db"
	"github.com/onnwee/chatgov/governance"
	"github.com/onnwee/chatgov/store"
)

// copyResult counts what a copy run did.
type copyResult struct {
	Copied  int
	Skipped int
	Missing int
}

func main() {
	from := flag.String("from", "", "source backend (memory|postgres|redis)")
	to := flag.String("to", "", "destination backend (memory|postgres|redis)")
	ids := flag.String("save-ids", "", "comma-separated save ids to copy")
	dryRun := flag.Bool("dry-run", false, "show what would be copied without writing")
	overwrite := flag.Bool("overwrite", false, "replace saves that already exist at the destination")
	schema := flag.String("schema", "", "schema command against DB_DSN: up|down|version")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("error", err))
		os.Exit(1)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if *schema != "" {
		if err := runSchema(ctx, cfg.DBDsn, *schema); err != nil {
			slog.Error("schema command failed", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	saveIDs := splitIDs(*ids)
	if *from == "" || *to == "" || len(saveIDs) == 0 {
		flag.Usage()
		os.Exit(2)
	}
	if *from == *to {
		slog.Error("source and destination must differ", slog.String("backend", *from))
		os.Exit(2)
	}

	src, err := open(ctx, cfg, *from)
	if err != nil {
		slog.Error("failed to open source", slog.Any("error", err))
		os.Exit(1)
	}
	defer src.Close()
	dst, err := open(ctx, cfg, *to)
	if err != nil {
		slog.Error("failed to open destination", slog.Any("error", err))
		os.Exit(1)
	}
	defer dst.Close()

	res, err := copySaves(ctx, src, dst, saveIDs, *dryRun, *overwrite)
	if err != nil {
		slog.Error("copy failed", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("copy completed",
		slog.Int("copied", res.Copied), slog.Int("skipped", res.Skipped), slog.Int("missing", res.Missing),
		slog.Bool("dry_run", *dryRun))
}

func splitIDs(s string) []string {
	var out []string
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}

// open builds a store for backend. Unlike the service, a backend that cannot be
// reached is an error here rather than a fallback to memory.
func open(ctx context.Context, base *config.Config, backend string) (store.SnapshotStore, error) {
	cfg := *base
	cfg.StoreBackend = strings.ToLower(backend)
	st, err := store.New(ctx, &cfg)
	if err != nil {
		return nil, fmt.Errorf("backend %s unavailable: %w", backend, err)
	}
	return st, nil
}

// copySaves copies each save id from src to dst. Saves missing at the source are
// counted, not fatal; existing destination saves are kept unless overwrite is set.
func copySaves(ctx context.Context, src, dst store.SnapshotStore, saveIDs []string, dryRun, overwrite bool) (copyResult, error) {
	var res copyResult
	for _, id := range saveIDs {
		snap, found, err := src.Load(ctx, id)
		if err != nil {
			return res, fmt.Errorf("load %s: %w", id, err)
		}
		if !found {
			slog.Warn("save not found at source", slog.String("save_id", id))
			res.Missing++
			continue
		}
		if !overwrite {
			_, exists, err := dst.Load(ctx, id)
			if err != nil {
				return res, fmt.Errorf("check destination %s: %w", id, err)
			}
			if exists {
				slog.Info("save exists at destination, skipping", slog.String("save_id", id))
				res.Skipped++
				continue
			}
		}

		slog.Info("copying save",
			slog.String("save_id", id),
			slog.Int("event_records", len(snap.EventUsage)),
			slog.Int("command_records", len(snap.CommandUsage)),
			slog.Int("last_cleanup_day", snap.LastCleanupDay),
			slog.Bool("dry_run", dryRun))
		if dryRun {
			res.Copied++
			continue
		}
		if err := dst.Save(ctx, id, snap); err != nil {
			return res, fmt.Errorf("save %s: %w", id, err)
		}
		if err := verify(ctx, dst, id, snap); err != nil {
			return res, err
		}
		res.Copied++
	}
	return res, nil
}

// verify reloads a copied save and compares per-key use counts.
func verify(ctx context.Context, st store.SnapshotStore, id string, want governance.Snapshot) error {
	got, found, err := st.Load(ctx, id)
	if err != nil {
		return fmt.Errorf("verify %s: %w", id, err)
	}
	if !found {
		return fmt.Errorf("verify %s: not found after save", id)
	}
	if got.LastCleanupDay != want.LastCleanupDay {
		return fmt.Errorf("verify %s: last cleanup day %d, want %d", id, got.LastCleanupDay, want.LastCleanupDay)
	}
	for _, ns := range []struct {
		name      string
		got, want map[string]governance.RecordSnapshot
	}{
		{"event", got.EventUsage, want.EventUsage},
		{"command", got.CommandUsage, want.CommandUsage},
	} {
		if len(ns.got) != len(ns.want) {
			return fmt.Errorf("verify %s: %d %s records, want %d", id, len(ns.got), ns.name, len(ns.want))
		}
		for k, r := range ns.want {
			if len(ns.got[k].Days) != len(r.Days) {
				return fmt.Errorf("verify %s: %s %s has %d uses, want %d", id, ns.name, k, len(ns.got[k].Days), len(r.Days))
			}
		}
	}
	return nil
}

func runSchema(ctx context.Context, dsn, cmd string) error {
	database, err := db.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	defer database.Close()

	switch cmd {
	case "up":
		return db.RunMigrations(database)
	case "down":
		return db.MigrateDown(database)
	case "version":
		v, dirty, err := db.GetMigrationVersion(database)
		if err != nil {
			return err
		}
		slog.Info("schema version", slog.Uint64("version", uint64(v)), slog.Bool("dirty", dirty))
		return nil
	default:
		return errors.New("unknown schema command " + cmd + " (up|down|version)")
	}
}
