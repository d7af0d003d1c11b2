package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestMetricsInitialized(t *testing.T) {
	Init()
	Init() // idempotent

	if Decisions == nil || UsesRecorded == nil || Sweeps == nil || PrunedEntries == nil {
		t.Fatal("counters not initialized")
	}
	if SnapshotSaves == nil || DispatchResult == nil || SnapshotSaveDuration == nil || CurrentDayGauge == nil {
		t.Fatal("save/dispatch metrics not initialized")
	}
}

func TestObserveDecision(t *testing.T) {
	Init()
	before := testutil.ToFloat64(Decisions.WithLabelValues("event", "bad", "denied"))
	ObserveDecision("event", "bad", false)
	ObserveDecision("event", "bad", true)
	if got := testutil.ToFloat64(Decisions.WithLabelValues("event", "bad", "denied")); got != before+1 {
		t.Fatalf("denied counter = %v, want %v", got, before+1)
	}
}

func TestObserveSweepCountsPruned(t *testing.T) {
	Init()
	sweeps := testutil.ToFloat64(Sweeps)
	pruned := testutil.ToFloat64(PrunedEntries)
	ObserveSweep(4)
	ObserveSweep(0)
	if got := testutil.ToFloat64(Sweeps); got != sweeps+2 {
		t.Errorf("sweeps = %v, want %v", got, sweeps+2)
	}
	if got := testutil.ToFloat64(PrunedEntries); got != pruned+4 {
		t.Errorf("pruned = %v, want %v", got, pruned+4)
	}
}

func TestObserveSaveResults(t *testing.T) {
	Init()
	ok := testutil.ToFloat64(SnapshotSaves.WithLabelValues("ok"))
	failed := testutil.ToFloat64(SnapshotSaves.WithLabelValues("error"))
	ObserveSave(nil)
	ObserveSave(errors.New("boom"))
	if testutil.ToFloat64(SnapshotSaves.WithLabelValues("ok")) != ok+1 {
		t.Error("ok save not counted")
	}
	if testutil.ToFloat64(SnapshotSaves.WithLabelValues("error")) != failed+1 {
		t.Error("failed save not counted")
	}
}

func TestSetCurrentDay(t *testing.T) {
	Init()
	SetCurrentDay(42)
	m := &dto.Metric{}
	if err := CurrentDayGauge.Write(m); err != nil {
		t.Fatalf("write gauge: %v", err)
	}
	if m.GetGauge().GetValue() != 42 {
		t.Fatalf("gauge = %v, want 42", m.GetGauge().GetValue())
	}
}

func TestTimeFuncRecordsObservation(t *testing.T) {
	h := prometheus.NewHistogram(prometheus.HistogramOpts{Name: "test_duration_seconds", Help: "Test duration", Buckets: prometheus.DefBuckets})
	executed := false
	d := TimeFunc(h, func() {
		time.Sleep(5 * time.Millisecond)
		executed = true
	})
	if !executed {
		t.Error("TimeFunc did not execute provided function")
	}
	if d < 5*time.Millisecond {
		t.Errorf("duration %v shorter than sleep", d)
	}
	m := &dto.Metric{}
	if err := h.Write(m); err != nil {
		t.Fatalf("write histogram: %v", err)
	}
	if m.GetHistogram().GetSampleCount() != 1 {
		t.Errorf("sample count = %d, want 1", m.GetHistogram().GetSampleCount())
	}
}

func TestCorrelation(t *testing.T) {
	ctx := context.Background()
	if GetCorrelation(ctx) != "" {
		t.Fatal("expected empty correlation")
	}
	ctx = WithCorrelation(ctx, "abc")
	if GetCorrelation(ctx) != "abc" {
		t.Fatal("correlation not stored")
	}
	if LoggerWithCorr(ctx) == nil {
		t.Fatal("nil logger")
	}
}
