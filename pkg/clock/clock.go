// Package clock schedules the timers used by the typing coordinator and the
// presence tracker. Fake is a virtual clock advanced by hand.
package clock

import (
	"sync"
	"time"
)

// Timer is a pending callback that can be cancelled
type Timer interface {
	// Stop prevents the callback from firing. It returns false if the callback
	// already fired or the timer was already stopped.
	Stop() bool
}

// Clock schedules callbacks and reports the current time
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Real is a Clock backed by the time package
type Real struct{}

// New returns the wall clock
func New() Clock {
	return Real{}
}

// Now returns the current wall time
func (Real) Now() time.Time {
	return time.Now()
}

// AfterFunc runs f in its own goroutine after d
func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Every runs f every d until the returned Timer is stopped. The next run is armed
// before f is called, so a slow f does not stretch the cadence.
func Every(c Clock, d time.Duration, f func()) Timer {
	r := &repeater{clock: c, interval: d, fn: f}
	r.arm()
	return r
}

type repeater struct {
	clock    Clock
	interval time.Duration
	fn       func()

	mu      sync.Mutex
	current Timer
	stopped bool
}

func (r *repeater) arm() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	r.current = r.clock.AfterFunc(r.interval, r.tick)
}

func (r *repeater) tick() {
	r.mu.Lock()
	stopped := r.stopped
	r.mu.Unlock()
	if stopped {
		return
	}
	r.arm()
	r.fn()
}

func (r *repeater) Stop() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return false
	}
	r.stopped = true
	if r.current != nil {
		r.current.Stop()
	}
	return true
}
