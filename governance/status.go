package governance

// Status is a read-only view of one resource under a policy.
type Status struct {
	Key       string `json:"key"`
	Used      int    `json:"used"`
	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`
	Unlimited bool   `json:"unlimited"`
}

// RecordView is a record's key and retained entries, for listings.
type RecordView struct {
	Namespace Namespace `json:"namespace"`
	Key       string    `json:"key"`
	Uses      int       `json:"uses"`
	Days      []int     `json:"days"`
}

func newStatus(key string, used, limit int) Status {
	s := Status{Key: key, Used: used, Limit: limit, Unlimited: limit == 0}
	if !s.Unlimited {
		s.Remaining = limit - used
		if s.Remaining < 0 {
			s.Remaining = 0
		}
	}
	return s
}

// EventStatus reports category usage as a check would see it, without
// creating or pruning records.
func (e *Engine) EventStatus(category string, p CooldownPolicy) Status {
	category = normalize(category)
	e.mu.Lock()
	defer e.mu.Unlock()
	used := 0
	if r, ok := e.ledger.Lookup(NamespaceEvents, category); ok {
		used = retained(r, p.CooldownWindowDays, e.clock.CurrentDay())
	}
	return newStatus(category, used, e.tables.CapFor(category, p))
}

// CommandStatus reports the per-command usage. Limit is 0 (unlimited) when the
// command does not use a per-command cap.
func (e *Engine) CommandStatus(command string, cp CommandPolicy, gp CooldownPolicy) Status {
	command = normalize(command)
	e.mu.Lock()
	defer e.mu.Unlock()
	used := 0
	if r, ok := e.ledger.Lookup(NamespaceCommands, command); ok {
		used = retained(r, gp.CooldownWindowDays, e.clock.CurrentDay())
	}
	limit := 0
	if cp.UseEventCooldown {
		limit = cp.MaxUsesPerCooldownPeriod
	}
	return newStatus(command, used, limit)
}

// WouldAllowCommand answers CanUseCommand without creating or pruning records
// and without counting a decision.
func (e *Engine) WouldAllowCommand(command string, cp CommandPolicy, gp CooldownPolicy) bool {
	command = normalize(command)
	e.mu.Lock()
	defer e.mu.Unlock()
	today := e.clock.CurrentDay()
	if cp.UseEventCooldown && cp.MaxUsesPerCooldownPeriod > 0 {
		if r, ok := e.ledger.Lookup(NamespaceCommands, command); ok &&
			retained(r, gp.CooldownWindowDays, today) >= cp.MaxUsesPerCooldownPeriod {
			return false
		}
	}
	if cp.RespectsGlobalEventCooldown && gp.EventCooldownsEnabled {
		category := e.tables.CategoryFor(command)
		limit := e.tables.CapFor(category, gp)
		if limit == 0 {
			return true
		}
		if r, ok := e.ledger.Lookup(NamespaceEvents, category); ok && retained(r, gp.CooldownWindowDays, today) >= limit {
			return false
		}
	}
	return true
}

// Records lists every record in both namespaces.
func (e *Engine) Records() []RecordView {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []RecordView
	e.ledger.Each(func(ns Namespace, r *Record) {
		out = append(out, RecordView{Namespace: ns, Key: r.Key(), Uses: r.CurrentPeriodUses(), Days: r.Days()})
	})
	return out
}
