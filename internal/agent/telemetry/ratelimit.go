package telemetry

import "time"

// RateLimiter gates a recurring emission to at most once per interval. It is
// a plain value threaded through the ingestor, deliberately not hidden in
// function-local state, so the debounce behavior is testable in isolation.
type RateLimiter struct {
	interval time.Duration
	last     time.Time
}

func NewRateLimiter(interval time.Duration) RateLimiter {
	return RateLimiter{interval: interval}
}

// Allow reports whether an emission is permitted at now, and if so records
// it.
func (r *RateLimiter) Allow(now time.Time) bool {
	if !r.last.IsZero() && now.Sub(r.last) < r.interval {
		return false
	}
	r.last = now
	return true
}

// Reset clears the limiter so the next Allow succeeds immediately.
func (r *RateLimiter) Reset() {
	r.last = time.Time{}
}

// IngestionHealth tracks the parse failure streak of the telemetry feed. It
// only decides whether to emit log lines; it never affects ingestion
// correctness.
type IngestionHealth struct {
	// ConsecutiveFailures counts parse/shape failures since the last
	// successful poll.
	ConsecutiveFailures int

	// healthy is true until the first failure after a success.
	healthy bool

	limiter RateLimiter
}

const (
	// parseLogInterval spaces out sustained-failure diagnostics.
	parseLogInterval = 10 * time.Second

	// parseLogStreak is the failure streak required before sustained
	// diagnostics are emitted at all.
	parseLogStreak = 20
)

func NewIngestionHealth() IngestionHealth {
	return IngestionHealth{
		healthy: true,
		limiter: NewRateLimiter(parseLogInterval),
	}
}

// Fail records one failed poll and reports whether a diagnostic should be
// logged now. The policy is asymmetric: the first failure after a healthy
// stretch logs immediately, after that only sustained streaks log, at most
// once per interval. A feed rewritten many times a second must not be able
// to flood the log, while a real outage still surfaces.
func (h *IngestionHealth) Fail(now time.Time) bool {
	h.ConsecutiveFailures++

	if h.healthy {
		h.healthy = false
		h.limiter.Allow(now) // start the cool-down window
		return true
	}

	if h.ConsecutiveFailures > parseLogStreak && h.limiter.Allow(now) {
		return true
	}

	return false
}

// Recover records a successful poll and reports whether a recovery notice
// should be logged (true when the feed had been failing).
func (h *IngestionHealth) Recover() bool {
	recovered := h.ConsecutiveFailures > 0

	h.ConsecutiveFailures = 0
	h.healthy = true
	h.limiter.Reset()

	return recovered
}

// Healthy reports whether the last poll succeeded.
func (h *IngestionHealth) Healthy() bool {
	return h.healthy
}
