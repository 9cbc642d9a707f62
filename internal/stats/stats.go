package stats

import (
	"sort"
	"sync"
	"time"
)

type sample struct {
	at       time.Time
	duration time.Duration
	failed   bool
}

// Snapshot aggregates the samples of one operation in the current window.
type Snapshot struct {
	Count  int     `json:"count"`
	Failed int     `json:"failed"`
	MinMs  int64   `json:"min_ms"`
	MaxMs  int64   `json:"max_ms"`
	AvgMs  float64 `json:"avg_ms"`
	P50Ms  float64 `json:"p50_ms"`
	P95Ms  float64 `json:"p95_ms"`
	P99Ms  float64 `json:"p99_ms"`
}

// Recorder keeps a rolling window of operation latencies, keyed by operation
// name (load, render, export, ...).
type Recorder struct {
	mu      sync.Mutex
	samples map[string][]sample
	maxAge  time.Duration
	now     func() time.Time
}

func NewRecorder(maxAge time.Duration) *Recorder {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &Recorder{
		samples: make(map[string][]sample),
		maxAge:  maxAge,
		now:     time.Now,
	}
}

// Record adds one observation for op.
func (r *Recorder) Record(op string, d time.Duration, err error) {
	if d < 0 {
		d = 0
	}
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.pruneLocked(op, now)
	r.samples[op] = append(r.samples[op], sample{at: now, duration: d, failed: err != nil})
}

// Snapshot returns one aggregate per operation that has live samples.
func (r *Recorder) Snapshot() map[string]Snapshot {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]Snapshot, len(r.samples))
	for op := range r.samples {
		r.pruneLocked(op, now)
		if len(r.samples[op]) == 0 {
			delete(r.samples, op)
			continue
		}
		out[op] = summarize(r.samples[op])
	}
	return out
}

func summarize(samples []sample) Snapshot {
	values := make([]int64, 0, len(samples))
	var sum int64
	failed := 0
	for _, s := range samples {
		ms := s.duration.Milliseconds()
		values = append(values, ms)
		sum += ms
		if s.failed {
			failed++
		}
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })

	return Snapshot{
		Count:  len(values),
		Failed: failed,
		MinMs:  values[0],
		MaxMs:  values[len(values)-1],
		AvgMs:  float64(sum) / float64(len(values)),
		P50Ms:  percentile(values, 50),
		P95Ms:  percentile(values, 95),
		P99Ms:  percentile(values, 99),
	}
}

func (r *Recorder) pruneLocked(op string, now time.Time) {
	cutoff := now.Add(-r.maxAge)
	samples := r.samples[op]
	writeIdx := 0
	for _, s := range samples {
		if !s.at.Before(cutoff) {
			samples[writeIdx] = s
			writeIdx++
		}
	}
	r.samples[op] = samples[:writeIdx]
}

func percentile(sorted []int64, pct float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if pct <= 0 {
		return float64(sorted[0])
	}
	if pct >= 100 {
		return float64(sorted[len(sorted)-1])
	}

	index := (float64(len(sorted)-1) * pct) / 100.0
	lower := int(index)
	upper := lower + 1
	if upper >= len(sorted) {
		return float64(sorted[lower])
	}
	weight := index - float64(lower)
	lo := float64(sorted[lower])
	hi := float64(sorted[upper])
	return lo + ((hi - lo) * weight)
}
