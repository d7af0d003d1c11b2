package governance

// Record is the usage history of one resource: one entry per successful use,
// holding the in-game day of that use. Multiple uses on the same day are
// multiple entries.
type Record struct {
	key  string
	days []int
}

func newRecord(key string) *Record {
	return &Record{key: key}
}

// Key returns the resource identity (category or command name).
func (r *Record) Key() string { return r.key }

// Days returns a copy of the retained entries in insertion order.
func (r *Record) Days() []int {
	out := make([]int, len(r.days))
	copy(out, r.days)
	return out
}

// CurrentPeriodUses is the number of entries not yet evicted.
func (r *Record) CurrentPeriodUses() int { return len(r.days) }

// RecordUse appends today to the record.
func RecordUse(r *Record, today int) {
	r.days = append(r.days, today)
}

// Prune drops every entry where today-day exceeds windowDays and returns how
// many were removed. A window of 0 never expires anything.
func Prune(r *Record, windowDays, today int) int {
	if windowDays == 0 || len(r.days) == 0 {
		return 0
	}
	kept := r.days[:0]
	for _, d := range r.days {
		if today-d > windowDays {
			continue
		}
		kept = append(kept, d)
	}
	removed := len(r.days) - len(kept)
	r.days = kept
	return removed
}

// retained counts the entries a prune would keep, without mutating r.
func retained(r *Record, windowDays, today int) int {
	if windowDays == 0 {
		return len(r.days)
	}
	n := 0
	for _, d := range r.days {
		if today-d <= windowDays {
			n++
		}
	}
	return n
}
