package governance

import "sort"

// Namespace separates event-category records from command records.
type Namespace string

const (
	NamespaceEvents   Namespace = "eventUsage"
	NamespaceCommands Namespace = "commandUsage"
)

// Ledger maps resource keys to their usage records, per namespace. It has no
// policy knowledge and no locking; the Engine owns and serializes it.
type Ledger struct {
	records map[Namespace]map[string]*Record
}

// NewLedger returns an empty ledger with both namespaces present.
func NewLedger() *Ledger {
	return &Ledger{records: map[Namespace]map[string]*Record{
		NamespaceEvents:   {},
		NamespaceCommands: {},
	}}
}

// GetOrCreate returns the record for key, creating and storing an empty one
// if none exists.
func (l *Ledger) GetOrCreate(ns Namespace, key string) *Record {
	m, ok := l.records[ns]
	if !ok {
		m = map[string]*Record{}
		l.records[ns] = m
	}
	r, ok := m[key]
	if !ok {
		r = newRecord(key)
		m[key] = r
	}
	return r
}

// Lookup returns the record for key without creating it.
func (l *Ledger) Lookup(ns Namespace, key string) (*Record, bool) {
	r, ok := l.records[ns][key]
	return r, ok
}

// Keys returns the sorted keys of a namespace.
func (l *Ledger) Keys(ns Namespace) []string {
	keys := make([]string, 0, len(l.records[ns]))
	for k := range l.records[ns] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Each calls fn for every record in both namespaces, events first, keys in
// sorted order.
func (l *Ledger) Each(fn func(ns Namespace, r *Record)) {
	for _, ns := range []Namespace{NamespaceEvents, NamespaceCommands} {
		for _, k := range l.Keys(ns) {
			fn(ns, l.records[ns][k])
		}
	}
}
