package llm

import (
	"sort"
	"sync"
	"time"
)

type sample struct {
	at         time.Time
	backend    string
	durationMs int64
	failed     bool
}

// Snapshot aggregates completion latencies over the rolling window.
type Snapshot struct {
	Count    int     `json:"count"`
	Failures int     `json:"failures"`
	MinMs    int64   `json:"min_ms"`
	MaxMs    int64   `json:"max_ms"`
	AvgMs    float64 `json:"avg_ms"`
	P50Ms    float64 `json:"p50_ms"`
	P95Ms    float64 `json:"p95_ms"`
	P99Ms    float64 `json:"p99_ms"`
}

// StatsReport is the overall snapshot plus one per backend ID.
type StatsReport struct {
	WindowSeconds int64               `json:"window_seconds"`
	Overall       Snapshot            `json:"overall"`
	Backends      map[string]Snapshot `json:"backends"`
}

// Stats tracks recent completion calls within a rolling window.
type Stats struct {
	mu      sync.Mutex
	samples []sample
	window  time.Duration
	now     func() time.Time
}

func NewStats(window time.Duration) *Stats {
	if window <= 0 {
		window = time.Hour
	}
	return &Stats{
		samples: make([]sample, 0, 128),
		window:  window,
		now:     time.Now,
	}
}

// Record adds one call. Negative durations are clamped to zero.
func (s *Stats) Record(backend string, d time.Duration, failed bool) {
	ms := d.Milliseconds()
	if ms < 0 {
		ms = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.pruneLocked(now)
	s.samples = append(s.samples, sample{at: now, backend: backend, durationMs: ms, failed: failed})
}

func (s *Stats) Report() StatsReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(s.now())

	grouped := make(map[string][]sample)
	for _, sm := range s.samples {
		grouped[sm.backend] = append(grouped[sm.backend], sm)
	}
	report := StatsReport{
		WindowSeconds: int64(s.window / time.Second),
		Overall:       summarize(s.samples),
		Backends:      make(map[string]Snapshot, len(grouped)),
	}
	for id, samples := range grouped {
		report.Backends[id] = summarize(samples)
	}
	return report
}

func (s *Stats) pruneLocked(now time.Time) {
	cutoff := now.Add(-s.window)
	keep := s.samples[:0]
	for _, sm := range s.samples {
		if !sm.at.Before(cutoff) {
			keep = append(keep, sm)
		}
	}
	s.samples = keep
}

func summarize(samples []sample) Snapshot {
	if len(samples) == 0 {
		return Snapshot{}
	}
	values := make([]int64, 0, len(samples))
	var sum int64
	failures := 0
	for _, sm := range samples {
		values = append(values, sm.durationMs)
		sum += sm.durationMs
		if sm.failed {
			failures++
		}
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })

	return Snapshot{
		Count:    len(values),
		Failures: failures,
		MinMs:    values[0],
		MaxMs:    values[len(values)-1],
		AvgMs:    float64(sum) / float64(len(values)),
		P50Ms:    percentile(values, 50),
		P95Ms:    percentile(values, 95),
		P99Ms:    percentile(values, 99),
	}
}

// percentile interpolates linearly between the closest ranks.
func percentile(sorted []int64, pct float64) float64 {
	switch {
	case len(sorted) == 0:
		return 0
	case pct <= 0:
		return float64(sorted[0])
	case pct >= 100:
		return float64(sorted[len(sorted)-1])
	}
	rank := float64(len(sorted)-1) * pct / 100
	lo := int(rank)
	if lo+1 >= len(sorted) {
		return float64(sorted[lo])
	}
	frac := rank - float64(lo)
	return float64(sorted[lo]) + (float64(sorted[lo+1])-float64(sorted[lo]))*frac
}
