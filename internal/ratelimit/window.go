package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

// DefaultWindow is the trailing interval over which per-endpoint call
// budgets are enforced.
const DefaultWindow = 60 * time.Second

// ExceededError reports that the outbound budget for a logical
// endpoint is exhausted for the current window.
type ExceededError struct {
	Endpoint   string        `json:"endpoint"`
	Budget     int           `json:"budget"`
	RetryAfter time.Duration `json:"retry_after"`
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s: %d calls per %s (retry in %s)",
		e.Endpoint, e.Budget, DefaultWindow, e.RetryAfter.Round(time.Millisecond))
}

// Limiter enforces a sliding-window call budget per logical endpoint.
// The window is evaluated at call time: timestamps older than the
// window are pruned before counting, so capacity frees up continuously
// rather than at bucket boundaries.
type Limiter struct {
	mu            sync.Mutex
	window        time.Duration
	budgets       map[string]int
	defaultBudget int
	calls         map[string][]time.Time

	// now is swappable for tests
	now func() time.Time
}

// NewLimiter creates a limiter with a default per-minute budget and
// optional per-endpoint overrides.
func NewLimiter(defaultBudget int, budgets map[string]int) *Limiter {
	l := &Limiter{
		window:        DefaultWindow,
		budgets:       make(map[string]int),
		defaultBudget: defaultBudget,
		calls:         make(map[string][]time.Time),
		now:           time.Now,
	}
	for endpoint, budget := range budgets {
		l.budgets[endpoint] = budget
	}
	return l
}

// Allow checks the budget for the endpoint and, when capacity remains,
// records the call. Check and record are atomic: two concurrent
// callers cannot both consume the last slot.
func (l *Limiter) Allow(endpoint string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	recent := l.prune(endpoint, now)
	budget := l.budgetFor(endpoint)

	if len(recent) >= budget {
		retryAfter := recent[0].Add(l.window).Sub(now)
		if retryAfter < 0 {
			retryAfter = 0
		}
		return &ExceededError{
			Endpoint:   endpoint,
			Budget:     budget,
			RetryAfter: retryAfter,
		}
	}

	l.calls[endpoint] = append(recent, now)
	return nil
}

// Remaining returns the unused budget for the endpoint in the current
// window.
func (l *Limiter) Remaining(endpoint string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	recent := l.prune(endpoint, l.now())
	remaining := l.budgetFor(endpoint) - len(recent)
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// prune drops timestamps older than the window and returns the kept
// slice, oldest first. Caller must hold the lock.
func (l *Limiter) prune(endpoint string, now time.Time) []time.Time {
	cutoff := now.Add(-l.window)
	recorded := l.calls[endpoint]

	kept := recorded[:0]
	for _, ts := range recorded {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	l.calls[endpoint] = kept
	return kept
}

func (l *Limiter) budgetFor(endpoint string) int {
	if budget, ok := l.budgets[endpoint]; ok {
		return budget
	}
	return l.defaultBudget
}
