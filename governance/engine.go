package governance

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/onnwee/chatgov/telemetry"
)

// Engine answers "can resource X be used now under policy P", records uses
// and sweeps stale entries. All methods are safe for concurrent use; a check
// followed by a record is not atomic, callers that need that serialize
// themselves (see dispatch.Dispatcher).
type Engine struct {
	mu             sync.Mutex
	clock          Clock
	tables         Tables
	ledger         *Ledger
	lastCleanupDay int
	logger         *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger (default slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New returns an engine with an empty ledger. lastCleanupDay starts at -1 so
// the first Cleanup always sweeps.
func New(clock Clock, tables Tables, opts ...Option) *Engine {
	e := &Engine{
		clock:          clock,
		tables:         tables.Normalize(),
		ledger:         NewLedger(),
		lastCleanupDay: -1,
		logger:         slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	e.logger = e.logger.With(slog.String("component", "governance"))
	return e
}

func normalize(key string) string { return strings.ToLower(strings.TrimSpace(key)) }

// Today returns the current in-game day from the clock.
func (e *Engine) Today() int { return e.clock.CurrentDay() }

// Tables returns the mapping tables in use.
func (e *Engine) Tables() Tables { return e.tables }

// CategoryForCommand maps a command to the event category it counts against.
func (e *Engine) CategoryForCommand(command string) string {
	return e.tables.CategoryFor(normalize(command))
}

// metricKey bounds metric label values to keys the tables know about. Anything
// else is reported as "other".
func (e *Engine) metricKey(ns Namespace, key string) string {
	switch ns {
	case NamespaceEvents:
		if _, ok := e.tables.FixedCaps[key]; ok {
			return key
		}
		if _, ok := (CooldownPolicy{}).configuredCap(key); ok || key == e.tables.DefaultCategory {
			return key
		}
		for _, c := range e.tables.CommandCategories {
			if c == key {
				return key
			}
		}
	case NamespaceCommands:
		if _, ok := e.tables.CommandCategories[key]; ok {
			return key
		}
	}
	return "other"
}

// CanUseEvent reports whether one more use of category fits under its cap.
// A cap of 0 allows immediately without touching the ledger.
func (e *Engine) CanUseEvent(category string, p CooldownPolicy) bool {
	category = normalize(category)
	e.mu.Lock()
	defer e.mu.Unlock()
	allowed := e.canUseEventLocked(category, p, e.clock.CurrentDay())
	telemetry.ObserveDecision("event", e.metricKey(NamespaceEvents, category), allowed)
	if !allowed {
		e.logger.Debug("event denied", slog.String("category", category))
	}
	return allowed
}

func (e *Engine) canUseEventLocked(category string, p CooldownPolicy, today int) bool {
	limit := e.tables.CapFor(category, p)
	if limit == 0 {
		return true
	}
	r := e.ledger.GetOrCreate(NamespaceEvents, category)
	Prune(r, p.CooldownWindowDays, today)
	return r.CurrentPeriodUses() < limit
}

// RecordEventUse appends today to category's record. It does not re-check the
// cap.
func (e *Engine) RecordEventUse(category string) {
	category = normalize(category)
	e.mu.Lock()
	defer e.mu.Unlock()
	RecordUse(e.ledger.GetOrCreate(NamespaceEvents, category), e.clock.CurrentDay())
	telemetry.ObserveUse(string(NamespaceEvents), e.metricKey(NamespaceEvents, category))
}

// CanUseCommand evaluates the per-command cap and then the global category
// cap. A per-command denial short-circuits the global check.
func (e *Engine) CanUseCommand(command string, cp CommandPolicy, gp CooldownPolicy) bool {
	command = normalize(command)
	e.mu.Lock()
	defer e.mu.Unlock()
	today := e.clock.CurrentDay()
	allowed, reason := e.canUseCommandLocked(command, cp, gp, today)
	telemetry.ObserveDecision("command", e.metricKey(NamespaceCommands, command), allowed)
	if !allowed {
		e.logger.Debug("command denied", slog.String("command", command), slog.String("reason", reason))
	}
	return allowed
}

func (e *Engine) canUseCommandLocked(command string, cp CommandPolicy, gp CooldownPolicy, today int) (bool, string) {
	if cp.UseEventCooldown && cp.MaxUsesPerCooldownPeriod > 0 {
		r := e.ledger.GetOrCreate(NamespaceCommands, command)
		Prune(r, gp.CooldownWindowDays, today)
		if r.CurrentPeriodUses() >= cp.MaxUsesPerCooldownPeriod {
			return false, "command_cap"
		}
	}
	if cp.RespectsGlobalEventCooldown && gp.EventCooldownsEnabled {
		category := e.tables.CategoryFor(command)
		if !e.canUseEventLocked(category, gp, today) {
			return false, "category_cap:" + category
		}
	}
	return true, ""
}

// RecordCommandUse appends today to the command's record and, when
// alsoRecordCategory is set, to its mapped event category too.
func (e *Engine) RecordCommandUse(command string, alsoRecordCategory bool) {
	command = normalize(command)
	e.mu.Lock()
	defer e.mu.Unlock()
	today := e.clock.CurrentDay()
	RecordUse(e.ledger.GetOrCreate(NamespaceCommands, command), today)
	telemetry.ObserveUse(string(NamespaceCommands), e.metricKey(NamespaceCommands, command))
	if alsoRecordCategory {
		category := e.tables.CategoryFor(command)
		RecordUse(e.ledger.GetOrCreate(NamespaceEvents, category), today)
		telemetry.ObserveUse(string(NamespaceEvents), e.metricKey(NamespaceEvents, category))
	}
}

// Cleanup prunes every record against p.CooldownWindowDays, at most once per
// day. It reports whether a sweep ran.
func (e *Engine) Cleanup(p CooldownPolicy) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	today := e.clock.CurrentDay()
	if today == e.lastCleanupDay {
		return false
	}
	var pruned, records int
	e.ledger.Each(func(_ Namespace, r *Record) {
		records++
		pruned += Prune(r, p.CooldownWindowDays, today)
	})
	e.lastCleanupDay = today
	telemetry.ObserveSweep(pruned)
	e.logger.Info("ledger sweep completed",
		slog.Int("day", today),
		slog.Int("records", records),
		slog.Int("pruned", pruned),
		slog.Int("window_days", p.CooldownWindowDays))
	return true
}

// LastCleanupDay returns the day of the last sweep (-1 if none yet).
func (e *Engine) LastCleanupDay() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastCleanupDay
}
