package frame

import (
	"context"
	"sync"
)

// Loop runs callbacks on the goroutine that calls Run. Engines are not safe
// for concurrent use; hosts without a UI thread of their own pass
// Loop.Dispatch to [Timer] and to background producers such as file
// watchers so that every engine call happens on one goroutine.
type Loop struct {
	mu    sync.Mutex
	queue []func()
	wake  chan struct{}
}

// NewLoop creates an idle loop.
func NewLoop() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

// Dispatch queues callback for the loop goroutine. Safe to call from any
// goroutine.
func (l *Loop) Dispatch(callback func()) {
	if callback == nil {
		return
	}
	l.mu.Lock()
	l.queue = append(l.queue, callback)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Loop) drain() []func() {
	l.mu.Lock()
	callbacks := l.queue
	l.queue = nil
	l.mu.Unlock()
	return callbacks
}

// RunPending runs the callbacks queued so far and returns how many ran.
func (l *Loop) RunPending() int {
	callbacks := l.drain()
	for _, fn := range callbacks {
		fn()
	}
	return len(callbacks)
}

// Run processes callbacks until ctx is done. Callbacks still queued when ctx
// ends are dropped.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
			l.RunPending()
		}
	}
}
