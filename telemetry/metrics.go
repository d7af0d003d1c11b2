// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	Decisions      *prometheus.CounterVec // labels: kind, key, result
	UsesRecorded   *prometheus.CounterVec // labels: namespace, key
	Sweeps         prometheus.Counter
	PrunedEntries  prometheus.Counter
	SnapshotSaves  *prometheus.CounterVec // labels: result
	DispatchResult *prometheus.CounterVec // labels: kind, outcome

	// Histograms (seconds)
	SnapshotSaveDuration prometheus.Observer

	// Gauges
	CurrentDayGauge prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		Decisions = promauto.NewCounterVec(prometheus.CounterOpts{Name: "governance_decisions_total", Help: "Allow/deny decisions by resource"}, []string{"kind", "key", "result"})
		UsesRecorded = promauto.NewCounterVec(prometheus.CounterOpts{Name: "governance_uses_recorded_total", Help: "Uses appended to the ledger"}, []string{"namespace", "key"})
		Sweeps = promauto.NewCounter(prometheus.CounterOpts{Name: "governance_cleanup_sweeps_total", Help: "Ledger cleanup sweeps that ran"})
		PrunedEntries = promauto.NewCounter(prometheus.CounterOpts{Name: "governance_pruned_entries_total", Help: "Ledger entries evicted by cleanup sweeps"})
		SnapshotSaves = promauto.NewCounterVec(prometheus.CounterOpts{Name: "governance_snapshot_saves_total", Help: "Snapshot save attempts by result"}, []string{"result"})
		DispatchResult = promauto.NewCounterVec(prometheus.CounterOpts{Name: "dispatch_outcomes_total", Help: "Dispatcher outcomes"}, []string{"kind", "outcome"})
		SnapshotSaveDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "governance_snapshot_save_duration_seconds", Help: "Snapshot save duration seconds", Buckets: prometheus.DefBuckets})
		CurrentDayGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "governance_current_day", Help: "In-game day reported by the host calendar"})
	})
}

// ObserveDecision counts an allow/deny decision.
func ObserveDecision(kind, key string, allowed bool) {
	if Decisions == nil {
		return
	}
	result := "denied"
	if allowed {
		result = "allowed"
	}
	Decisions.WithLabelValues(kind, key, result).Inc()
}

// ObserveUse counts a use appended to the ledger.
func ObserveUse(namespace, key string) {
	if UsesRecorded != nil {
		UsesRecorded.WithLabelValues(namespace, key).Inc()
	}
}

// ObserveSweep counts a completed sweep and the entries it evicted.
func ObserveSweep(pruned int) {
	if Sweeps != nil {
		Sweeps.Inc()
	}
	if PrunedEntries != nil && pruned > 0 {
		PrunedEntries.Add(float64(pruned))
	}
}

// ObserveSave counts a snapshot save.
func ObserveSave(err error) {
	if SnapshotSaves == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	SnapshotSaves.WithLabelValues(result).Inc()
}

// ObserveDispatch counts a dispatcher outcome.
func ObserveDispatch(kind, outcome string) {
	if DispatchResult != nil {
		DispatchResult.WithLabelValues(kind, outcome).Inc()
	}
}

// SetCurrentDay records the host day.
func SetCurrentDay(day int) {
	if CurrentDayGauge != nil {
		CurrentDayGauge.Set(float64(day))
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	if s, ok := ctx.Value(corrKey).(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
