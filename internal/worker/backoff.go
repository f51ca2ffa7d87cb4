package worker

import (
	"sync"
	"time"
)

// Backoff tracks the idle polling interval. Each consecutive empty poll
// doubles the interval up to a ceiling; any non-empty poll resets it to
// the base. Safe for concurrent use.
type Backoff struct {
	mu      sync.Mutex
	base    time.Duration
	max     time.Duration
	current time.Duration
}

// NewBackoff creates a backoff starting at base and capped at max
func NewBackoff(base, max time.Duration) *Backoff {
	return &Backoff{base: base, max: max, current: base}
}

// Next returns the interval to sleep for and advances the sequence.
// The returned value is the current interval; the next one is doubled,
// capped at max.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	d := b.current
	next := b.current * 2
	if next > b.max {
		next = b.max
	}
	b.current = next
	return d
}

// Reset returns the interval to the base value
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = b.base
}

// Current returns the interval the next call to Next would sleep for
func (b *Backoff) Current() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}
