// Package session owns the governance engine of one save: it restores the
// ledger on open, sweeps it when the day changes and persists it periodically.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/onnwee/chatgov/governance"
	"github.com/onnwee/chatgov/settings"
	"github.com/onnwee/chatgov/store"
	"github.com/onnwee/chatgov/telemetry"
)

const shutdownSaveTimeout = 5 * time.Second

// Session binds an engine to the save it was loaded from.
type Session struct {
	saveID   string
	store    store.SnapshotStore
	engine   *governance.Engine
	settings *settings.Store
	logger   *slog.Logger
}

// Open loads the snapshot of saveID (if any) into a fresh engine and runs the
// load-time cleanup sweep. A snapshot that cannot be decoded is an error.
func Open(ctx context.Context, st store.SnapshotStore, saveID string, clock governance.Clock, tables governance.Tables, ps *settings.Store) (*Session, error) {
	logger := slog.Default().With(slog.String("component", "session"), slog.String("save_id", saveID))
	ctx, span := telemetry.StartSpan(ctx, "session", "session.open", telemetry.SaveIDAttr(saveID))
	defer span.End()

	eng := governance.New(clock, tables, governance.WithLogger(logger))
	snap, found, err := st.Load(ctx, saveID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("open session %s: %w", saveID, err)
	}
	if found {
		eng.Restore(snap)
	}
	swept := eng.Cleanup(ps.Global())
	telemetry.SetCurrentDay(eng.Today())
	span.SetAttributes(telemetry.DayAttr(eng.Today()))
	telemetry.SetSpanSuccess(span)

	logger.Info("session opened",
		slog.Bool("restored", found),
		slog.Bool("swept", swept),
		slog.Int("day", eng.Today()),
		slog.Int("records", len(eng.Records())))
	return &Session{saveID: saveID, store: st, engine: eng, settings: ps, logger: logger}, nil
}

func (s *Session) Engine() *governance.Engine { return s.engine }

func (s *Session) Settings() *settings.Store { return s.settings }

func (s *Session) SaveID() string { return s.saveID }

// Save persists the current engine state.
func (s *Session) Save(ctx context.Context) error {
	ctx, span := telemetry.StartSpan(ctx, "session", "session.save",
		telemetry.SaveIDAttr(s.saveID), telemetry.DayAttr(s.engine.Today()))
	defer span.End()

	var err error
	telemetry.TimeFunc(telemetry.SnapshotSaveDuration, func() {
		err = s.store.Save(ctx, s.saveID, s.engine.Snapshot())
	})
	telemetry.ObserveSave(err)
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("save session %s: %w", s.saveID, err)
	}
	telemetry.SetSpanSuccess(span)
	return nil
}

// Tick runs the daily sweep (a no-op when it already ran today) and saves.
func (s *Session) Tick(ctx context.Context) error {
	s.engine.Cleanup(s.settings.Global())
	telemetry.SetCurrentDay(s.engine.Today())
	return s.Save(ctx)
}

// Run ticks every interval until ctx is done, then performs a final save with a
// fresh timeout so shutdown does not lose the last uses.
func (s *Session) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownSaveTimeout)
			if err := s.Save(saveCtx); err != nil {
				s.logger.Error("final save failed", slog.Any("err", err))
			} else {
				s.logger.Info("final save completed")
			}
			cancel()
			return
		case <-ticker.C:
			if err := s.Tick(ctx); err != nil {
				s.logger.Warn("autosave failed", slog.Any("err", err))
			}
		}
	}
}
