package core

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTooManyRenders is returned when every render slot stays occupied for
// longer than the limiter's wait budget. Clients should retry shortly.
var ErrTooManyRenders = errors.New("too many concurrent renders, please try again later")

// DefaultMaxConcurrentRenders is the default number of render slots.
const DefaultMaxConcurrentRenders = 2

// DefaultMaxWaitTime is how long an export queues for a slot before it is
// turned away.
const DefaultMaxWaitTime = 10 * time.Second

// SlotObserver receives render slot events. SlotWaited is called once per
// Acquire with the time spent queueing and the outcome; SlotsActive is
// called whenever the number of occupied slots changes.
type SlotObserver interface {
	SlotWaited(d time.Duration, err error)
	SlotsActive(n int)
}

// RenderLimiter hands out a fixed number of render slots. Rasterizing a map
// is the one expensive step of an interaction (the browser backend drives a
// whole Chrome tab per export), so exports queue for a slot and give up
// after maxWait.
type RenderLimiter struct {
	slots    chan struct{}
	maxWait  time.Duration
	observer SlotObserver

	mu       sync.Mutex
	active   int
	waiting  int
	rejected uint64
	idle     chan struct{} // closed while no slot is held
}

// NewRenderLimiter creates a limiter with maxConcurrent slots. Non-positive
// arguments fall back to the defaults.
func NewRenderLimiter(maxConcurrent int, maxWait time.Duration) *RenderLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentRenders
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}

	idle := make(chan struct{})
	close(idle)
	return &RenderLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
		idle:    idle,
	}
}

// WithObserver attaches o to the limiter and returns it. It must be called
// before the first Acquire.
func (l *RenderLimiter) WithObserver(o SlotObserver) *RenderLimiter {
	l.observer = o
	return l
}

// Acquire blocks until a render slot is free, ctx is done, or maxWait
// passes. On success it returns the function that gives the slot back;
// calling it more than once is harmless.
func (l *RenderLimiter) Acquire(ctx context.Context) (release func(), err error) {
	start := time.Now()

	l.mu.Lock()
	l.waiting++
	l.mu.Unlock()

	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	select {
	case l.slots <- struct{}{}:
	case <-waitCtx.Done():
		err = ErrTooManyRenders
		if ctx.Err() != nil {
			err = ctx.Err()
		}
	}

	l.mu.Lock()
	l.waiting--
	switch {
	case err == nil:
		if l.active == 0 {
			l.idle = make(chan struct{})
		}
		l.active++
	case errors.Is(err, ErrTooManyRenders):
		l.rejected++
	}
	active := l.active
	l.mu.Unlock()

	if l.observer != nil {
		l.observer.SlotWaited(time.Since(start), err)
		if err == nil {
			l.observer.SlotsActive(active)
		}
	}
	if err != nil {
		return nil, err
	}

	var once sync.Once
	return func() { once.Do(l.release) }, nil
}

func (l *RenderLimiter) release() {
	l.mu.Lock()
	l.active--
	if l.active == 0 {
		close(l.idle)
	}
	active := l.active
	l.mu.Unlock()

	<-l.slots
	if l.observer != nil {
		l.observer.SlotsActive(active)
	}
}

// ActiveCount returns the number of slots currently held.
func (l *RenderLimiter) ActiveCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// Available returns the number of free slots.
func (l *RenderLimiter) Available() int {
	return cap(l.slots) - len(l.slots)
}

// WaitForDrain blocks until no slot is held or ctx is done. Renders that
// start after it returns are not waited for.
func (l *RenderLimiter) WaitForDrain(ctx context.Context) error {
	l.mu.Lock()
	idle := l.idle
	l.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RenderLimiterStatus is a snapshot of the render slots for /healthz.
type RenderLimiterStatus struct {
	Active        int    `json:"active"`
	Available     int    `json:"available"`
	MaxConcurrent int    `json:"max_concurrent"`
	Waiting       int    `json:"waiting"`
	Rejected      uint64 `json:"rejected"`
}

// Status returns the current slot usage.
func (l *RenderLimiter) Status() RenderLimiterStatus {
	l.mu.Lock()
	defer l.mu.Unlock()

	return RenderLimiterStatus{
		Active:        l.active,
		Available:     cap(l.slots) - len(l.slots),
		MaxConcurrent: cap(l.slots),
		Waiting:       l.waiting,
		Rejected:      l.rejected,
	}
}
