package governance

// RecordSnapshot is the persisted form of a Record.
type RecordSnapshot struct {
	Key  string `json:"key"`
	Days []int  `json:"days"`
}

// Snapshot is the persisted form of the engine state: both ledger namespaces
// and the last sweep day.
type Snapshot struct {
	EventUsage     map[string]RecordSnapshot `json:"eventUsage"`
	CommandUsage   map[string]RecordSnapshot `json:"commandUsage"`
	LastCleanupDay int                       `json:"lastCleanupDay"`
}

// Snapshot returns a deep copy of the engine state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := Snapshot{
		EventUsage:     map[string]RecordSnapshot{},
		CommandUsage:   map[string]RecordSnapshot{},
		LastCleanupDay: e.lastCleanupDay,
	}
	e.ledger.Each(func(ns Namespace, r *Record) {
		rs := RecordSnapshot{Key: r.Key(), Days: r.Days()}
		switch ns {
		case NamespaceEvents:
			s.EventUsage[r.Key()] = rs
		case NamespaceCommands:
			s.CommandUsage[r.Key()] = rs
		}
	})
	return s
}

// Restore replaces the ledger and last sweep day with s.
func (e *Engine) Restore(s Snapshot) {
	l := NewLedger()
	load := func(ns Namespace, m map[string]RecordSnapshot) {
		for k, rs := range m {
			key := rs.Key
			if key == "" {
				key = k
			}
			r := l.GetOrCreate(ns, normalize(key))
			r.days = append(r.days, rs.Days...)
		}
	}
	load(NamespaceEvents, s.EventUsage)
	load(NamespaceCommands, s.CommandUsage)

	e.mu.Lock()
	e.ledger = l
	e.lastCleanupDay = s.LastCleanupDay
	e.mu.Unlock()
}
