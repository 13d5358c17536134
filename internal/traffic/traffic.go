// Package traffic keeps a sliding window of upstream lookup outcomes. The health check
// reads the error rate from it to report a degraded upstream.
package traffic

import (
	"sync"
	"time"
)

// retention bounds memory: outcomes older than this are pruned on every write.
const retention = 10 * time.Minute

var defaultTracker = NewTracker(time.Now)

// RecordSuccess records a lookup that reached the upstream and got a usable answer
// (including forwarded 4xx, which are caller problems rather than upstream faults).
func RecordSuccess() {
	defaultTracker.Record(false)
}

// RecordError records an upstream fault: 5xx, contract violation or transport failure.
func RecordError() {
	defaultTracker.Record(true)
}

// ErrorRate returns (errorCount, totalCount) within the window.
func ErrorRate(window time.Duration) (errors, total int) {
	return defaultTracker.ErrorRate(window)
}

// Reset clears all recorded outcomes. For tests only.
func Reset() {
	defaultTracker.Reset()
}

type outcome struct {
	at     time.Time
	failed bool
}

// Tracker maintains a time-ordered slice of outcomes.
type Tracker struct {
	mu       sync.Mutex
	now      func() time.Time
	outcomes []outcome
}

// NewTracker returns a Tracker reading time from now.
func NewTracker(now func() time.Time) *Tracker {
	return &Tracker{now: now}
}

// Record appends one outcome and prunes expired entries.
func (t *Tracker) Record(failed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	t.outcomes = append(t.outcomes, outcome{at: now, failed: failed})
	t.pruneLocked(now)
}

// ErrorRate returns (errorCount, totalCount) for outcomes not older than window.
func (t *Tracker) ErrorRate(window time.Duration) (errors, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-window)
	for i := len(t.outcomes) - 1; i >= 0; i-- {
		o := t.outcomes[i]
		if o.at.Before(cutoff) {
			break
		}
		total++
		if o.failed {
			errors++
		}
	}
	return errors, total
}

// Reset clears all recorded outcomes.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.outcomes = nil
}

// pruneLocked drops outcomes older than retention. Must be called with mu held.
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-retention)
	i := 0
	for ; i < len(t.outcomes) && t.outcomes[i].at.Before(cutoff); i++ {
	}
	if i > 0 {
		t.outcomes = append(t.outcomes[:0], t.outcomes[i:]...)
	}
}
