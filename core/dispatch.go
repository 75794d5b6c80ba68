package core

import (
	"context"
	"sync"
)

// Dispatcher runs model mutations on the notebook's logical thread. Kernel
// replies arrive on transport goroutines and are always posted through the
// notebook's dispatcher, in arrival order.
type Dispatcher interface {
	Dispatch(fn func())
}

// Immediate runs every func inline on the calling goroutine.
type Immediate struct{}

// Dispatch runs fn.
func (Immediate) Dispatch(fn func()) {
	fn()
}

// Loop is a cooperative event loop: funcs posted from any goroutine run one
// at a time, in post order, on whichever goroutine is pumping the loop.
type Loop struct {
	mu    sync.Mutex
	queue []func()
	wake  chan struct{}
}

// NewLoop returns an idle loop.
func NewLoop() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

// Dispatch queues fn. It never blocks.
func (l *Loop) Dispatch(fn func()) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Pending reports the number of queued funcs.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Drain runs every queued func, including funcs queued while draining.
func (l *Loop) Drain() {
	for {
		fn := l.next()
		if fn == nil {
			return
		}
		fn()
	}
}

// Run pumps the loop until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	return l.RunUntil(ctx, nil)
}

// RunUntil pumps the loop until done is closed or ctx is done. When done
// closes, funcs already queued are drained before returning, so work posted
// before done was closed is never lost.
func (l *Loop) RunUntil(ctx context.Context, done <-chan struct{}) error {
	for {
		l.Drain()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-done:
			l.Drain()
			return nil
		case <-l.wake:
		}
	}
}

// Call runs fn on the loop and waits for it. It must not be called from the
// goroutine pumping the loop.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	l.Dispatch(func() {
		defer close(finished)
		fn()
	})
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loop) next() func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn
}
