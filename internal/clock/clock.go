// Package clock abstracts wall-clock time behind an interface so that
// timer-driven loops (heartbeat sweeps, consensus deadlines) can be tested
// with virtual time instead of sleeping.
// This package is internal and should not be imported by external projects.
package clock

import "time"

// Clock provides the time operations the coordination components need.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// NewTicker returns a ticker that fires every d.
	NewTicker(d time.Duration) Ticker

	// AfterFunc runs f in its own goroutine after d has elapsed.
	AfterFunc(d time.Duration, f func()) Timer
}

// Ticker delivers ticks on C until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Timer is a cancelable pending call scheduled by AfterFunc.
type Timer interface {
	// Stop cancels the timer. It reports whether the call was prevented
	// from firing.
	Stop() bool
}

// System is the real wall-clock implementation.
type System struct{}

// New returns a Clock backed by the system wall clock.
func New() Clock {
	return System{}
}

func (System) Now() time.Time { return time.Now() }

func (System) NewTicker(d time.Duration) Ticker {
	return &systemTicker{t: time.NewTicker(d)}
}

func (System) AfterFunc(d time.Duration, f func()) Timer {
	return &systemTimer{t: time.AfterFunc(d, f)}
}

type systemTicker struct {
	t *time.Ticker
}

func (st *systemTicker) C() <-chan time.Time { return st.t.C }
func (st *systemTicker) Stop()               { st.t.Stop() }

type systemTimer struct {
	t *time.Timer
}

func (st *systemTimer) Stop() bool { return st.t.Stop() }
