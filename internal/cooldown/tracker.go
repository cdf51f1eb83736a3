// Package cooldown suppresses repeated alerts for the same target within a time window.
package cooldown

import (
	"sync"
	"time"
)

// Tracker records when each target last alerted. It is safe for concurrent use.
type Tracker struct {
	mu   sync.Mutex
	last map[string]time.Time
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		last: make(map[string]time.Time),
	}
}

// ShouldAlert reports whether key may alert at now. When it may, now is
// recorded as the key's last alert in the same critical section, so two
// concurrent callers for one key can never both get true. A key whose last
// alert is exactly cooldown ago is still suppressed.
func (t *Tracker) ShouldAlert(key string, now time.Time, cooldown time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if last, ok := t.last[key]; ok && !last.Before(now.Add(-cooldown)) {
		return false
	}
	t.last[key] = now
	return true
}

// LastAlert returns the last recorded alert time for key.
func (t *Tracker) LastAlert(key string) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	last, ok := t.last[key]
	return last, ok
}

// Reset forgets key so that its next check alerts.
func (t *Tracker) Reset(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.last, key)
}

// Len returns the number of tracked keys.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.last)
}
