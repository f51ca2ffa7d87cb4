package worker

import "context"

// Limiter is a counting semaphore bounding the number of simultaneously
// active job pipelines. Implemented as a channel of tokens: receiving
// acquires a slot, sending releases it.
type Limiter struct {
	tokens chan struct{}
}

// NewLimiter creates a limiter with n slots
func NewLimiter(n int) *Limiter {
	l := &Limiter{tokens: make(chan struct{}, n)}
	for i := 0; i < n; i++ {
		l.tokens <- struct{}{}
	}
	return l
}

// Acquire takes one slot, blocking until one is free or ctx is done
func (l *Limiter) Acquire(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.tokens:
		return nil
	}
}

// TryAcquire takes a slot without blocking; reports whether it succeeded
func (l *Limiter) TryAcquire() bool {
	select {
	case <-l.tokens:
		return true
	default:
		return false
	}
}

// Release returns a slot. Must be called exactly once per successful
// acquire; callers defer it so every pipeline exit path releases.
func (l *Limiter) Release() {
	select {
	case l.tokens <- struct{}{}:
	default:
		panic("limiter: release without matching acquire")
	}
}

// Available returns the number of free slots
func (l *Limiter) Available() int {
	return len(l.tokens)
}

// Capacity returns the total number of slots
func (l *Limiter) Capacity() int {
	return cap(l.tokens)
}

// InUse returns the number of held slots
func (l *Limiter) InUse() int {
	return cap(l.tokens) - len(l.tokens)
}
