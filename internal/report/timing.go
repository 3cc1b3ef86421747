package report

import "time"

// Timing records start/end timestamps only
type Timing struct {
	StartedAt   time.Time
	CompletedAt time.Time
}

// StartTiming creates timing with the current start time
func StartTiming() *Timing {
	return &Timing{StartedAt: time.Now()}
}

// Complete records completion time
func (t *Timing) Complete() {
	t.CompletedAt = time.Now()
}

// Duration returns the elapsed time, up to now while still running
func (t *Timing) Duration() time.Duration {
	if t.CompletedAt.IsZero() {
		return time.Since(t.StartedAt)
	}
	return t.CompletedAt.Sub(t.StartedAt)
}

// ObserveRun completes t if needed and records it on the run gauges
func (m *Metrics) ObserveRun(t *Timing) {
	if t.CompletedAt.IsZero() {
		t.Complete()
	}
	m.RunDuration.Set(t.Duration().Seconds())
	m.LastRun.Set(float64(t.CompletedAt.Unix()))
}
