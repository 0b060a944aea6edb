package callmetrics

import (
	"sync"
	"time"
)

// DefaultMaxEntries bounds retained call history when no explicit cap
// is configured.
const DefaultMaxEntries = 2048

// DefaultSummaryWindow is the trailing interval used by Summary when
// callers pass a non-positive window.
const DefaultSummaryWindow = 5 * time.Minute

// Outcome records the result of a single upstream call attempt.
type Outcome struct {
	Endpoint   string        `json:"endpoint"`
	Method     string        `json:"method"`
	Success    bool          `json:"success"`
	StatusCode int           `json:"status_code,omitempty"`
	Latency    time.Duration `json:"latency"`
	Timestamp  time.Time     `json:"timestamp"`
	Error      string        `json:"error,omitempty"`
}

// EndpointStats is the per-endpoint slice of a Summary.
type EndpointStats struct {
	Total        int     `json:"total"`
	Success      int     `json:"success"`
	Failure      int     `json:"failure"`
	AvgLatencyMS float64 `json:"avg_latency_ms"`
}

// Summary aggregates outcomes over a trailing window.
type Summary struct {
	Window       time.Duration            `json:"window"`
	Total        int                      `json:"total"`
	Success      int                      `json:"success"`
	Failure      int                      `json:"failure"`
	SuccessRate  float64                  `json:"success_rate"` // 0.0 to 1.0
	AvgLatencyMS float64                  `json:"avg_latency_ms"`
	Endpoints    map[string]EndpointStats `json:"endpoints"`
}

// Recorder keeps a capped, append-only history of call outcomes.
// Aggregations are computed on demand from the retained history; once
// the cap is exceeded the oldest entries are dropped first.
type Recorder struct {
	mu         sync.Mutex
	outcomes   []Outcome
	maxEntries int

	// now is swappable for tests
	now func() time.Time
}

// NewRecorder creates a recorder retaining at most maxEntries
// outcomes. A non-positive cap falls back to DefaultMaxEntries.
func NewRecorder(maxEntries int) *Recorder {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Recorder{
		outcomes:   make([]Outcome, 0, maxEntries),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Record appends an outcome, dropping the oldest entry if the cap is
// reached. A zero timestamp is stamped with the current time.
func (r *Recorder) Record(outcome Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if outcome.Timestamp.IsZero() {
		outcome.Timestamp = r.now()
	}

	if len(r.outcomes) >= r.maxEntries {
		copy(r.outcomes, r.outcomes[1:])
		r.outcomes = r.outcomes[:len(r.outcomes)-1]
	}
	r.outcomes = append(r.outcomes, outcome)
}

// Summary aggregates outcomes within the trailing window.
func (r *Recorder) Summary(window time.Duration) Summary {
	if window <= 0 {
		window = DefaultSummaryWindow
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-window)
	summary := Summary{
		Window:    window,
		Endpoints: make(map[string]EndpointStats),
	}

	var totalLatency time.Duration
	latencyByEndpoint := make(map[string]time.Duration)

	for _, outcome := range r.outcomes {
		if !outcome.Timestamp.After(cutoff) {
			continue
		}

		summary.Total++
		totalLatency += outcome.Latency

		stats := summary.Endpoints[outcome.Endpoint]
		stats.Total++
		latencyByEndpoint[outcome.Endpoint] += outcome.Latency
		if outcome.Success {
			summary.Success++
			stats.Success++
		} else {
			summary.Failure++
			stats.Failure++
		}
		summary.Endpoints[outcome.Endpoint] = stats
	}

	if summary.Total > 0 {
		summary.SuccessRate = float64(summary.Success) / float64(summary.Total)
		summary.AvgLatencyMS = float64(totalLatency.Milliseconds()) / float64(summary.Total)
	}
	for endpoint, stats := range summary.Endpoints {
		if stats.Total > 0 {
			stats.AvgLatencyMS = float64(latencyByEndpoint[endpoint].Milliseconds()) / float64(stats.Total)
			summary.Endpoints[endpoint] = stats
		}
	}

	return summary
}

// RecentFailures returns up to n failed outcomes, most recent first.
// A non-positive n yields an empty slice.
func (r *Recorder) RecentFailures(n int) []Outcome {
	if n < 0 {
		n = 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	failures := make([]Outcome, 0, n)
	for i := len(r.outcomes) - 1; i >= 0 && len(failures) < n; i-- {
		if !r.outcomes[i].Success {
			failures = append(failures, r.outcomes[i])
		}
	}
	return failures
}

// Rate returns calls per minute for one endpoint over the trailing
// window.
func (r *Recorder) Rate(endpoint string, window time.Duration) float64 {
	if window <= 0 {
		window = DefaultSummaryWindow
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-window)
	count := 0
	for _, outcome := range r.outcomes {
		if outcome.Endpoint == endpoint && outcome.Timestamp.After(cutoff) {
			count++
		}
	}

	return float64(count) / window.Minutes()
}

// Len returns the number of retained outcomes.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.outcomes)
}
