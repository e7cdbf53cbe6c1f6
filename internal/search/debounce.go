package search

import (
	"sync"
	"time"
)

// DefaultDebounce is the quiet period applied to table keywords.
const DefaultDebounce = 300 * time.Millisecond

// Debouncer delivers the most recently pushed value once input has been
// quiet for the configured window. Every Push cancels the pending timer and
// starts a new one.
type Debouncer[T any] struct {
	wait    time.Duration
	deliver func(T)

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	stopped bool
}

func NewDebouncer[T any](wait time.Duration, deliver func(T)) *Debouncer[T] {
	if wait <= 0 {
		wait = DefaultDebounce
	}
	return &Debouncer[T]{wait: wait, deliver: deliver}
}

func (d *Debouncer[T]) Push(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(d.wait, func() {
		d.mu.Lock()
		// A timer that fired while a newer Push held the lock must not
		// deliver its stale value.
		current := gen == d.gen && !d.stopped
		d.mu.Unlock()
		if current {
			d.deliver(v)
		}
	})
}

// Cancel drops the pending value, if any. Later pushes still deliver.
func (d *Debouncer[T]) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
	}
}

// Stop cancels any pending delivery. Later pushes are ignored.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
}
