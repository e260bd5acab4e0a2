// Package frame coalesces work into ticks.
//
// Binding refreshes triggered by data writes and attribute mutations are
// scheduled on an [Owner] instead of running immediately. Scheduling the same
// key twice before the next tick runs the job once.
package frame

import "sync"

type pending struct {
	key any
	job func()
}

// Owner tracks jobs waiting for the next tick.
type Owner struct {
	mu      sync.Mutex
	queue   []pending
	index   map[any]int
	running bool

	// OnNeedsFrame is called when the first job of a tick is scheduled,
	// signalling the scheduler that a tick should run.
	OnNeedsFrame func()
}

// NewOwner creates an owner that requests ticks from s. A nil scheduler
// leaves ticking to explicit Flush calls.
func NewOwner(s Scheduler) *Owner {
	o := &Owner{}
	if s != nil {
		o.OnNeedsFrame = func() { s.RequestFrame(func() { o.Flush() }) }
	}
	return o
}

// Schedule queues job under key. When key is already queued for the coming
// tick the newer job replaces the older one and keeps its position.
func (o *Owner) Schedule(key any, job func()) {
	if job == nil {
		return
	}
	first := func() bool {
		o.mu.Lock()
		defer o.mu.Unlock()
		if i, ok := o.index[key]; ok {
			o.queue[i].job = job
			return false
		}
		if o.index == nil {
			o.index = make(map[any]int)
		}
		o.index[key] = len(o.queue)
		o.queue = append(o.queue, pending{key: key, job: job})
		// A flush in progress requests the next tick itself.
		return len(o.queue) == 1 && !o.running
	}()

	if first && o.OnNeedsFrame != nil {
		o.OnNeedsFrame()
	}
}

// Pending reports whether key is queued.
func (o *Owner) Pending(key any) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.index[key]
	return ok
}

// Len returns the number of queued jobs.
func (o *Owner) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.queue)
}

// NeedsWork reports whether any job is queued.
func (o *Owner) NeedsWork() bool {
	return o.Len() > 0
}

// Flush runs the queued jobs in scheduling order and returns how many ran.
// Jobs scheduled while flushing wait for the next tick.
func (o *Owner) Flush() int {
	o.mu.Lock()
	if o.running || len(o.queue) == 0 {
		o.mu.Unlock()
		return 0
	}
	queue := o.queue
	o.queue = nil
	clear(o.index)
	o.running = true
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.running = false
		more := len(o.queue) > 0
		o.mu.Unlock()
		if more && o.OnNeedsFrame != nil {
			o.OnNeedsFrame()
		}
	}()

	for _, p := range queue {
		p.job()
	}
	return len(queue)
}
