package remotesync

import (
	"sync"
	"time"
)

// Debouncer delays a call until no new value has arrived for the window.
// Every Trigger restarts the timer and replaces the pending value; earlier
// values are dropped, not queued.
type Debouncer[T any] struct {
	mu      sync.Mutex
	window  time.Duration
	fn      func(T)
	timer   *time.Timer
	gen     uint64
	pending T
	has     bool
	stopped bool
	running sync.WaitGroup
}

// NewDebouncer returns a debouncer that calls fn on its own goroutine.
func NewDebouncer[T any](window time.Duration, fn func(T)) *Debouncer[T] {
	return &Debouncer[T]{window: window, fn: fn}
}

// Trigger replaces the pending value and restarts the timer.
func (d *Debouncer[T]) Trigger(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.pending = v
	d.has = true
	d.gen++
	gen := d.gen
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, func() { d.fire(gen) })
}

func (d *Debouncer[T]) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || !d.has {
		d.mu.Unlock()
		return
	}
	v := d.pending
	d.clearLocked()
	d.running.Add(1)
	d.mu.Unlock()
	defer d.running.Done()
	d.fn(v)
}

// Pending reports whether a value is waiting for the timer.
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.has
}

// Flush cancels the timer and hands back the pending value, if any.
func (d *Debouncer[T]) Flush() (T, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	v, ok := d.pending, d.has
	d.clearLocked()
	return v, ok
}

// Stop flushes and rejects every later Trigger.
func (d *Debouncer[T]) Stop() (T, bool) {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()
	return d.Flush()
}

// Wait blocks until every call already started by the timer has returned.
// Call it after Stop so that no new call can start.
func (d *Debouncer[T]) Wait() {
	d.running.Wait()
}

func (d *Debouncer[T]) clearLocked() {
	var zero T
	d.pending = zero
	d.has = false
}
