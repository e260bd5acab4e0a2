package frame

import (
	"sync"
	"time"
)

// Scheduler runs callbacks on a later tick.
type Scheduler interface {
	// RequestFrame arranges for fn to run on the next tick.
	RequestFrame(fn func())
}

// Manual is a scheduler driven by explicit Tick calls. Hosts with their own
// frame loop and tests use it.
type Manual struct {
	mu       sync.Mutex
	requests []func()
}

// RequestFrame queues fn for the next Tick.
func (m *Manual) RequestFrame(fn func()) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	m.requests = append(m.requests, fn)
	m.mu.Unlock()
}

// Tick runs the callbacks requested so far and reports whether any ran.
// Callbacks requested during the tick run on the next one.
func (m *Manual) Tick() bool {
	m.mu.Lock()
	requests := m.requests
	m.requests = nil
	m.mu.Unlock()
	for _, fn := range requests {
		fn()
	}
	return len(requests) > 0
}

// Pending returns the number of requested callbacks.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// DefaultWindow approximates one display frame.
const DefaultWindow = 16 * time.Millisecond

// Timer coalesces requests into a single timer per window. Callbacks run on
// the timer goroutine unless Dispatch hops them onto the host's UI thread.
type Timer struct {
	// Window is the delay before requested callbacks run. Zero means DefaultWindow.
	Window time.Duration
	// Dispatch, when set, is used to run the tick, e.g. Loop.Dispatch.
	Dispatch func(func())

	mu       sync.Mutex
	timer    *time.Timer
	requests []func()
}

// RequestFrame queues fn and arms the timer if it is idle.
func (t *Timer) RequestFrame(fn func()) {
	if fn == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.requests = append(t.requests, fn)
	if t.timer != nil {
		return
	}
	window := t.Window
	if window <= 0 {
		window = DefaultWindow
	}
	t.timer = time.AfterFunc(window, t.fire)
}

func (t *Timer) fire() {
	t.mu.Lock()
	requests := t.requests
	t.requests = nil
	t.timer = nil
	dispatch := t.Dispatch
	t.mu.Unlock()

	run := func() {
		for _, fn := range requests {
			fn()
		}
	}
	if dispatch != nil {
		dispatch(run)
		return
	}
	run()
}

// Stop cancels a pending tick. Queued callbacks are dropped.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.requests = nil
}
