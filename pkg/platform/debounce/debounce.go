// Package debounce collapses bursts of triggers into one delayed call.
package debounce

import (
	"sync"
	"time"
)

// Debouncer runs fn once after delay has passed without a new Trigger.
// After Cancel the debouncer is inert: pending and future triggers never run.
type Debouncer struct {
	mu      sync.Mutex
	delay   time.Duration
	fn      func()
	timer   *time.Timer
	gen     uint64
	stopped bool
}

// New returns a debouncer for fn. A non-positive delay runs fn synchronously
// on every Trigger.
func New(delay time.Duration, fn func()) *Debouncer {
	return &Debouncer{delay: delay, fn: fn}
}

// Trigger cancels any pending run and schedules a new one.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	if d.delay <= 0 {
		d.mu.Unlock()
		d.fn()
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(d.delay, func() { d.fire(gen) })
	d.mu.Unlock()
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	// A timer that lost the race with Stop still fires; the generation check
	// drops it.
	if d.stopped || gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()
	d.fn()
}

// Pending reports whether a run is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil && !d.stopped
}

// Cancel drops any pending run and disables the debouncer.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
