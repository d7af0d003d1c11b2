package server

import (
	"log/slog"
	"net/http"

	"github.com/onnwee/chatgov/settings"
	"github.com/onnwee/chatgov/telemetry"
)

// HandleAdminPolicy returns (GET) or replaces (PUT) the global and per-command policies.
func (h *Handlers) HandleAdminPolicy(w http.ResponseWriter, r *http.Request) {
	ps := h.sess.Settings()
	if r.Method == http.MethodPut {
		var p settings.Policies
		if !decodeJSON(w, r, &p) {
			return
		}
		if err := p.Global.Validate(); err != nil {
			http.Error(w, "policy: "+err.Error(), http.StatusBadRequest)
			return
		}
		for name, cp := range p.Commands {
			if err := cp.Validate(); err != nil {
				http.Error(w, "command "+name+": "+err.Error(), http.StatusBadRequest)
				return
			}
		}
		ps.Set(p)
		telemetry.LoggerWithCorr(r.Context()).Info("policies replaced",
			slog.Int("commands", len(p.Commands)), slog.Int("window_days", p.Global.CooldownWindowDays), slog.String("component", "admin"))
	}
	writeJSON(w, http.StatusOK, ps.Snapshot())
}

type clockRequest struct {
	Day int `json:"day"`
}

// HandleAdminClock sets the host day when the calendar is host-driven.
func (h *Handlers) HandleAdminClock(w http.ResponseWriter, r *http.Request) {
	if h.clock == nil {
		http.Error(w, "clock is not host-driven (CLOCK_MODE=elapsed)", http.StatusConflict)
		return
	}
	var req clockRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Day < 0 {
		http.Error(w, "day must be non-negative", http.StatusBadRequest)
		return
	}
	h.clock.Set(req.Day)
	telemetry.SetCurrentDay(req.Day)
	writeJSON(w, http.StatusOK, map[string]int{"day": req.Day})
}

// HandleAdminCleanup runs a sweep now. It is a no-op when one already ran today.
func (h *Handlers) HandleAdminCleanup(w http.ResponseWriter, r *http.Request) {
	eng := h.sess.Engine()
	ran := eng.Cleanup(h.sess.Settings().Global())
	writeJSON(w, http.StatusOK, map[string]any{"ran": ran, "last_cleanup_day": eng.LastCleanupDay()})
}

// HandleAdminSave persists the ledger now.
func (h *Handlers) HandleAdminSave(w http.ResponseWriter, r *http.Request) {
	if err := h.sess.Save(r.Context()); err != nil {
		telemetry.LoggerWithCorr(r.Context()).Error("manual save failed", slog.Any("err", err), slog.String("component", "admin"))
		http.Error(w, "save failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved", "save_id": h.sess.SaveID()})
}
