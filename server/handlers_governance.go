package server

import (
	"bufio"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/onnwee/chatgov/dispatch"
	"github.com/onnwee/chatgov/governance"
	"github.com/onnwee/chatgov/telemetry"
)

var errNoSession = errors.New("no session loaded")

type statusResponse struct {
	SaveID         string                    `json:"save_id"`
	Today          int                       `json:"today"`
	LastCleanupDay int                       `json:"last_cleanup_day"`
	Policy         governance.CooldownPolicy `json:"policy"`
	Records        []governance.RecordView   `json:"records"`
}

// HandleStatus reports the day, the last sweep and every ledger record.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	eng := h.sess.Engine()
	records := eng.Records()
	if records == nil {
		records = []governance.RecordView{}
	}
	writeJSON(w, http.StatusOK, statusResponse{
		SaveID:         h.sess.SaveID(),
		Today:          eng.Today(),
		LastCleanupDay: eng.LastCleanupDay(),
		Policy:         h.sess.Settings().Global(),
		Records:        records,
	})
}

type decisionResponse struct {
	governance.Status
	Category string `json:"category,omitempty"`
	Allowed  bool   `json:"allowed"`
}

// HandleEventStatus reports a category's usage and whether a purchase would
// pass. It never writes to the ledger.
func (h *Handlers) HandleEventStatus(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	gp := h.sess.Settings().Global()
	st := h.sess.Engine().EventStatus(category, gp)
	allowed := !gp.EventCooldownsEnabled || st.Unlimited || st.Remaining > 0
	writeJSON(w, http.StatusOK, decisionResponse{Status: st, Allowed: allowed})
}

type purchaseRequest struct {
	User string `json:"user"`
}

type outcomeResponse struct {
	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"`
}

// HandleEventPurchase runs the purchase flow. The host performs the event
// itself; this records the use when the gate passes.
func (h *Handlers) HandleEventPurchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	out, err := h.disp.PurchaseEvent(r.Context(), chi.URLParam(r, "category"), req.User, nil)
	resp := outcomeResponse{Outcome: out.String()}
	if err != nil {
		resp.Error = err.Error()
	}
	writeJSON(w, outcomeStatus(out), resp)
}

// HandleCommandStatus reports a command's usage and whether it would pass both
// gates. Like HandleEventStatus it is read-only.
func (h *Handlers) HandleCommandStatus(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	ps := h.sess.Settings()
	cp, _ := ps.Command(name)
	gp := ps.Global()
	eng := h.sess.Engine()
	writeJSON(w, http.StatusOK, decisionResponse{
		Status:   eng.CommandStatus(name, cp, gp),
		Category: eng.CategoryForCommand(name),
		Allowed:  eng.WouldAllowCommand(name, cp, gp),
	})
}

type commandRequest struct {
	User    string   `json:"user"`
	Channel string   `json:"channel,omitempty"`
	Args    []string `json:"args,omitempty"`
}

// HandleCommandDispatch gates and runs a registered command.
func (h *Handlers) HandleCommandDispatch(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	out, err := h.disp.Dispatch(r.Context(), dispatch.Request{
		Command: chi.URLParam(r, "name"),
		User:    req.User,
		Channel: req.Channel,
		Args:    req.Args,
	})
	resp := outcomeResponse{Outcome: out.String()}
	if err != nil {
		resp.Error = err.Error()
	}
	writeJSON(w, outcomeStatus(out), resp)
}

// HandleChatIRC feeds raw IRC lines, one per line, into the dispatcher and
// returns how many ended in each outcome.
func (h *Handlers) HandleChatIRC(w http.ResponseWriter, r *http.Request) {
	counts := map[string]int{}
	sc := bufio.NewScanner(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	for sc.Scan() {
		out, err := h.disp.HandleRawLine(r.Context(), sc.Text())
		if err != nil {
			telemetry.LoggerWithCorr(r.Context()).Debug("chat line failed", slog.Any("err", err), slog.String("component", "http"))
		}
		counts[out.String()]++
	}
	if err := sc.Err(); err != nil {
		http.Error(w, "read body: "+err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}
