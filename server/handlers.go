package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/onnwee/chatgov/dispatch"
	"github.com/onnwee/chatgov/governance"
	"github.com/onnwee/chatgov/session"
	"github.com/onnwee/chatgov/store"
)

const maxBodyBytes = 1 << 20

// Deps are the collaborators the HTTP surface drives.
type Deps struct {
	Session    *session.Session
	Store      store.SnapshotStore
	Dispatcher *dispatch.Dispatcher
	// Clock is set when the host drives the calendar; nil disables PUT /admin/clock.
	Clock *governance.ManualClock
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	sess  *session.Session
	store store.SnapshotStore
	disp  *dispatch.Dispatcher
	clock *governance.ManualClock
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(d Deps) *Handlers {
	return &Handlers{sess: d.Session, store: d.Store, disp: d.Dispatcher, clock: d.Clock}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", slog.Any("err", err), slog.String("component", "http"))
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		http.Error(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// outcomeStatus maps a dispatch outcome to an HTTP status.
func outcomeStatus(o dispatch.Outcome) int {
	switch o {
	case dispatch.OutcomeGranted:
		return http.StatusOK
	case dispatch.OutcomeDenied:
		return http.StatusTooManyRequests
	case dispatch.OutcomeFailed:
		return http.StatusBadGateway
	default:
		return http.StatusNotFound
	}
}
