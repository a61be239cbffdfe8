package focus

import (
	"sync"
	"time"
)

// DefaultSearchDelay is how long typing must pause before a search runs
const DefaultSearchDelay = 300 * time.Millisecond

type timer interface {
	Stop() bool
}

// Debouncer runs the latest submitted value after a quiet period. Each
// Submit replaces the pending one; Cancel drops it. There is at most one
// pending timer.
type Debouncer[T any] struct {
	delay     time.Duration
	fn        func(T)
	afterFunc func(time.Duration, func()) timer

	mu      sync.Mutex
	pending timer
	gen     uint64
}

// NewDebouncer creates a debouncer that calls fn after delay
func NewDebouncer[T any](delay time.Duration, fn func(T)) *Debouncer[T] {
	return &Debouncer[T]{
		delay: delay,
		fn:    fn,
		afterFunc: func(d time.Duration, f func()) timer {
			return time.AfterFunc(d, f)
		},
	}
}

// Submit schedules fn(v), cancelling any pending call
func (d *Debouncer[T]) Submit(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pending != nil {
		d.pending.Stop()
	}
	d.gen++
	gen := d.gen
	d.pending = d.afterFunc(d.delay, func() { d.fire(gen, v) })
}

// Cancel drops the pending call, if any
func (d *Debouncer[T]) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pending != nil {
		d.pending.Stop()
		d.pending = nil
	}
	d.gen++
}

// Pending reports whether a call is scheduled
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending != nil
}

func (d *Debouncer[T]) fire(gen uint64, v T) {
	d.mu.Lock()
	if gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.pending = nil
	d.mu.Unlock()

	d.fn(v)
}
