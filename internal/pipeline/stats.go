package pipeline

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

type sample struct {
	timestamp  time.Time
	durationMs int64
	pages      int
	units      int
}

// StatsSnapshot aggregates recent structuring runs plus lifetime counters.
type StatsSnapshot struct {
	Count    int     `json:"count"`
	MinMs    int64   `json:"min_ms"`
	MaxMs    int64   `json:"max_ms"`
	AvgMs    float64 `json:"avg_ms"`
	P50Ms    float64 `json:"p50_ms"`
	P95Ms    float64 `json:"p95_ms"`
	P99Ms    float64 `json:"p99_ms"`
	AvgPages float64 `json:"avg_pages"`
	AvgUnits float64 `json:"avg_units"`

	LibraryHits int64 `json:"library_hits"`
	Failures    int64 `json:"failures"`
}

// Stats tracks structuring latency within a rolling window.
type Stats struct {
	mu      sync.Mutex
	samples []sample
	maxAge  time.Duration

	libraryHits atomic.Int64
	failures    atomic.Int64
}

func NewStats(maxAge time.Duration) *Stats {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &Stats{
		samples: make([]sample, 0, 256),
		maxAge:  maxAge,
	}
}

// Record adds one successful parse+structure run.
func (s *Stats) Record(d time.Duration, pages, units int) {
	durationMs := d.Milliseconds()
	if durationMs < 0 {
		durationMs = 0
	}
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(now)
	s.samples = append(s.samples, sample{
		timestamp:  now,
		durationMs: durationMs,
		pages:      pages,
		units:      units,
	})
}

// RecordLibraryHit counts an upload answered from the library.
func (s *Stats) RecordLibraryHit() { s.libraryHits.Add(1) }

// RecordFailure counts an upload that could not be structured or stored.
func (s *Stats) RecordFailure() { s.failures.Add(1) }

func (s *Stats) Snapshot() StatsSnapshot {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(now)
	snap := StatsSnapshot{
		LibraryHits: s.libraryHits.Load(),
		Failures:    s.failures.Load(),
	}
	if len(s.samples) == 0 {
		return snap
	}

	values := make([]int64, 0, len(s.samples))
	var sum int64
	var pages, units int
	for _, sm := range s.samples {
		values = append(values, sm.durationMs)
		sum += sm.durationMs
		pages += sm.pages
		units += sm.units
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })

	n := float64(len(values))
	snap.Count = len(values)
	snap.MinMs = values[0]
	snap.MaxMs = values[len(values)-1]
	snap.AvgMs = float64(sum) / n
	snap.P50Ms = percentile(values, 50)
	snap.P95Ms = percentile(values, 95)
	snap.P99Ms = percentile(values, 99)
	snap.AvgPages = float64(pages) / n
	snap.AvgUnits = float64(units) / n
	return snap
}

func (s *Stats) pruneLocked(now time.Time) {
	cutoff := now.Add(-s.maxAge)
	writeIdx := 0
	for _, sm := range s.samples {
		if !sm.timestamp.Before(cutoff) {
			s.samples[writeIdx] = sm
			writeIdx++
		}
	}
	s.samples = s.samples[:writeIdx]
}

// percentile interpolates linearly between the closest ranks.
func percentile(sortedValues []int64, pct float64) float64 {
	if len(sortedValues) == 0 {
		return 0
	}
	if pct <= 0 {
		return float64(sortedValues[0])
	}
	if pct >= 100 {
		return float64(sortedValues[len(sortedValues)-1])
	}

	index := (float64(len(sortedValues)-1) * pct) / 100.0
	lower := int(index)
	upper := lower + 1
	if upper >= len(sortedValues) {
		return float64(sortedValues[lower])
	}
	weight := index - float64(lower)
	lo := float64(sortedValues[lower])
	hi := float64(sortedValues[upper])
	return lo + ((hi - lo) * weight)
}
