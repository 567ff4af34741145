package clock

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Mock is a Clock whose time only moves when Advance is called. Timers and
// tickers scheduled against it fire synchronously during Advance, which makes
// deadline-driven behavior deterministic in tests.
type Mock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*mockTimer
}

// NewMock returns a Mock clock starting at the given time.
func NewMock(start time.Time) *Mock {
	return &Mock{now: start}
}

func (m *Mock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the mock clock forward by d, firing every timer and ticker
// due in order. Callbacks run on the calling goroutine.
func (m *Mock) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	for {
		t := m.popDue(target)
		if t == nil {
			break
		}
		m.mu.Lock()
		if t.when.After(m.now) {
			m.now = t.when
		}
		m.mu.Unlock()
		t.fire(m)
	}

	m.mu.Lock()
	m.now = target
	m.mu.Unlock()
}

// popDue removes and returns the earliest timer due at or before target.
func (m *Mock) popDue(target time.Time) *mockTimer {
	m.mu.Lock()
	defer m.mu.Unlock()

	sort.SliceStable(m.timers, func(i, j int) bool {
		return m.timers[i].when.Before(m.timers[j].when)
	})
	for i, t := range m.timers {
		if !t.when.After(target) {
			m.timers = append(m.timers[:i], m.timers[i+1:]...)
			return t
		}
	}
	return nil
}

func (m *Mock) schedule(t *mockTimer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timers = append(m.timers, t)
}

func (m *Mock) remove(t *mockTimer) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, other := range m.timers {
		if other == t {
			m.timers = append(m.timers[:i], m.timers[i+1:]...)
			return true
		}
	}
	return false
}

func (m *Mock) NewTicker(d time.Duration) Ticker {
	stopped := &atomic.Bool{}
	ch := make(chan time.Time, 1)
	t := &mockTimer{
		when:     m.Now().Add(d),
		interval: d,
		ch:       ch,
		stopped:  stopped,
	}
	m.schedule(t)
	return &mockTicker{ch: ch, stopped: stopped}
}

func (m *Mock) AfterFunc(d time.Duration, f func()) Timer {
	t := &mockTimer{
		when:    m.Now().Add(d),
		fn:      f,
		stopped: &atomic.Bool{},
	}
	m.schedule(t)
	return &mockTimerHandle{clock: m, timer: t}
}

type mockTimer struct {
	when     time.Time
	interval time.Duration
	fn       func()
	ch       chan time.Time
	stopped  *atomic.Bool
}

func (t *mockTimer) fire(m *Mock) {
	if t.stopped.Load() {
		return
	}
	if t.fn != nil {
		t.fn()
		return
	}
	select {
	case t.ch <- t.when:
	default:
	}
	if t.interval > 0 {
		m.schedule(&mockTimer{
			when:     t.when.Add(t.interval),
			interval: t.interval,
			ch:       t.ch,
			stopped:  t.stopped,
		})
	}
}

type mockTicker struct {
	ch      chan time.Time
	stopped *atomic.Bool
}

func (mt *mockTicker) C() <-chan time.Time { return mt.ch }

func (mt *mockTicker) Stop() { mt.stopped.Store(true) }

type mockTimerHandle struct {
	clock *Mock
	timer *mockTimer
}

func (h *mockTimerHandle) Stop() bool {
	h.timer.stopped.Store(true)
	return h.clock.remove(h.timer)
}
