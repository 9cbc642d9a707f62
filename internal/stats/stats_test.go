package stats

import (
	"errors"
	"testing"
	"time"
)

func TestRecorderSnapshotPercentiles(t *testing.T) {
	r := NewRecorder(time.Hour)
	for _, ms := range []int{100, 200, 300, 400, 500} {
		r.Record("render", time.Duration(ms)*time.Millisecond, nil)
	}

	snap, ok := r.Snapshot()["render"]
	if !ok {
		t.Fatal("expected render snapshot")
	}
	if snap.Count != 5 {
		t.Fatalf("expected count=5, got %d", snap.Count)
	}
	if snap.MinMs != 100 || snap.MaxMs != 500 {
		t.Fatalf("expected min=100 max=500, got min=%d max=%d", snap.MinMs, snap.MaxMs)
	}
	if snap.AvgMs != 300 {
		t.Fatalf("expected avg=300, got %f", snap.AvgMs)
	}
	if snap.P50Ms != 300 {
		t.Fatalf("expected p50=300, got %f", snap.P50Ms)
	}
	if snap.P95Ms != 480 {
		t.Fatalf("expected p95=480, got %f", snap.P95Ms)
	}
	if snap.P99Ms != 496 {
		t.Fatalf("expected p99=496, got %f", snap.P99Ms)
	}
}

func TestRecorderSeparatesOperationsAndCountsFailures(t *testing.T) {
	r := NewRecorder(time.Hour)
	r.Record("render", 10*time.Millisecond, nil)
	r.Record("export", 20*time.Millisecond, errors.New("boom"))
	r.Record("export", 30*time.Millisecond, nil)

	snaps := r.Snapshot()
	if len(snaps) != 2 {
		t.Fatalf("expected 2 operations, got %d", len(snaps))
	}
	if snaps["export"].Count != 2 || snaps["export"].Failed != 1 {
		t.Errorf("expected export count=2 failed=1, got %+v", snaps["export"])
	}
	if snaps["render"].Failed != 0 {
		t.Errorf("expected no render failures, got %d", snaps["render"].Failed)
	}
}

func TestRecorderPrunesExpiredSamples(t *testing.T) {
	now := time.Now()
	r := NewRecorder(time.Minute)
	r.now = func() time.Time { return now }
	r.Record("load", 100*time.Millisecond, nil)

	now = now.Add(2 * time.Minute)
	if snaps := r.Snapshot(); len(snaps) != 0 {
		t.Fatalf("expected expired samples to be pruned, got %+v", snaps)
	}

	r.Record("load", 200*time.Millisecond, nil)
	snap := r.Snapshot()["load"]
	if snap.Count != 1 || snap.MinMs != 200 {
		t.Fatalf("expected one fresh sample of 200ms, got %+v", snap)
	}
}

func TestRecorderClampsNegativeDuration(t *testing.T) {
	r := NewRecorder(time.Hour)
	r.Record("render", -time.Second, nil)
	snap := r.Snapshot()["render"]
	if snap.Count != 1 || snap.MinMs != 0 || snap.MaxMs != 0 {
		t.Fatalf("expected a single clamped sample, got %+v", snap)
	}
}
