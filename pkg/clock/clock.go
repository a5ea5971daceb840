// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package clock implements the simulation's virtual clock.
//
// The clock runs in one of two modes. In paced mode a real ticker advances
// simulated time by tick × acceleration factor. In as-fast-as-possible mode
// there is no pacing at all: whenever no goroutine is doing real work, the
// clock jumps straight to the earliest pending deadline. Goroutines
// participating in the simulation hold a pending-work token while active
// (Acquire/Release); Sleep and SleepUntil release the caller's token while
// blocked and reacquire it on wake, so the clock can only jump when every
// participant is asleep.
package clock

import (
	"container/heap"
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrStopped is returned from sleeps interrupted by Stop.
var ErrStopped = errors.New("virtual clock stopped")

// tickInterval is the real-time granularity of paced mode.
const tickInterval = 10 * time.Millisecond

type waiter struct {
	deadline  time.Time
	seq       uint64
	ch        chan struct{}
	cancelled bool
	index     int
}

// waiterHeap orders by (deadline, insertion sequence) so same-instant waiters
// wake in registration order.
type waiterHeap []*waiter

func (h waiterHeap) Len() int { return len(h) }
func (h waiterHeap) Less(i, j int) bool {
	if h[i].deadline.Equal(h[j].deadline) {
		return h[i].seq < h[j].seq
	}
	return h[i].deadline.Before(h[j].deadline)
}
func (h waiterHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *waiterHeap) Push(x interface{}) {
	w := x.(*waiter)
	w.index = len(*h)
	*h = append(*h, w)
}
func (h *waiterHeap) Pop() interface{} {
	old := *h
	n := len(old)
	w := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return w
}

// Clock is the virtual clock. Zero value is not usable; construct with New.
type Clock struct {
	logger *zap.Logger
	accel  float64
	afap   bool

	mu      sync.Mutex
	sim     time.Time
	waiters waiterHeap
	seq     uint64
	pending int
	running bool
	stopped bool

	stopCh chan struct{}
	kick   chan struct{}
	wg     sync.WaitGroup
}

// New creates a clock starting at start. accel maps real seconds to
// simulated seconds; afap selects as-fast-as-possible mode, in which accel
// is ignored.
func New(start time.Time, accel float64, afap bool, logger *zap.Logger) *Clock {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Clock{
		logger: logger,
		accel:  accel,
		afap:   afap,
		sim:    start,
		stopCh: make(chan struct{}),
		kick:   make(chan struct{}, 1),
	}
}

// Now returns the current simulated instant.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sim
}

// Start begins advancing time. Calling Start twice is an error.
func (c *Clock) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running || c.stopped {
		return errors.New("clock already started")
	}
	c.running = true
	c.wg.Add(1)
	if c.afap {
		go c.autoLoop()
		c.logger.Debug("virtual clock started", zap.String("mode", "as_fast_as_possible"))
	} else {
		go c.paceLoop()
		c.logger.Debug("virtual clock started",
			zap.String("mode", "paced"),
			zap.Float64("acceleration", c.accel))
	}
	return nil
}

// Stop halts the clock and wakes every sleeper with ErrStopped. Idempotent.
func (c *Clock) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	wasRunning := c.running
	c.running = false
	close(c.stopCh)
	c.mu.Unlock()

	if wasRunning {
		c.wg.Wait()
	}
	c.logger.Debug("virtual clock stopped", zap.Time("sim_time", c.Now()))
}

// Acquire takes a pending-work token. In as-fast-as-possible mode the clock
// will not jump while any token is held.
func (c *Clock) Acquire() {
	c.mu.Lock()
	c.pending++
	c.mu.Unlock()
}

// Release returns a pending-work token.
func (c *Clock) Release() {
	c.mu.Lock()
	c.pending--
	c.mu.Unlock()
	c.wake()
}

// Sleep blocks the caller for d of simulated time. The caller must hold a
// pending-work token; it is released while blocked and reacquired on return.
func (c *Clock) Sleep(ctx context.Context, d time.Duration) error {
	return c.SleepUntil(ctx, c.Now().Add(d))
}

// SleepUntil blocks until simulated time reaches t, the context is done, or
// the clock stops.
func (c *Clock) SleepUntil(ctx context.Context, t time.Time) error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return ErrStopped
	}
	if !c.sim.Before(t) {
		c.mu.Unlock()
		return nil
	}
	c.seq++
	w := &waiter{deadline: t, seq: c.seq, ch: make(chan struct{})}
	heap.Push(&c.waiters, w)
	c.pending--
	c.mu.Unlock()
	c.wake()

	select {
	case <-w.ch:
		// Token was reacquired by the releasing side.
		return nil
	case <-ctx.Done():
		c.abandon(w)
		return ctx.Err()
	case <-c.stopCh:
		c.abandon(w)
		return ErrStopped
	}
}

// After returns a channel that receives the wake instant once simulated time
// reaches t. The caller's token protocol is the same as SleepUntil's.
func (c *Clock) After(d time.Duration) <-chan time.Time {
	out := make(chan time.Time, 1)
	deadline := c.Now().Add(d)
	go func() {
		c.Acquire()
		defer c.Release()
		if err := c.SleepUntil(context.Background(), deadline); err != nil {
			return
		}
		out <- c.Now()
	}()
	return out
}

// AdvanceTo moves simulated time forward while the clock is not running.
// Used by tests and by manual stepping. Returns an error if t is in the past
// or the clock is running.
func (c *Clock) AdvanceTo(t time.Time) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return errors.New("cannot advance a running clock")
	}
	if t.Before(c.sim) {
		c.mu.Unlock()
		return errors.New("cannot advance backwards")
	}
	released := c.advanceLocked(t)
	c.mu.Unlock()
	for _, w := range released {
		close(w.ch)
	}
	return nil
}

// abandon reacquires the caller's token and marks its waiter dead so the
// heap skips it later.
func (c *Clock) abandon(w *waiter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-w.ch:
		// Already released; token came back with the close.
		return
	default:
	}
	w.cancelled = true
	c.pending++
}

func (c *Clock) wake() {
	select {
	case c.kick <- struct{}{}:
	default:
	}
}

// advanceLocked sets sim time to t and collects every due waiter. The
// released waiters' tokens are reacquired here, before their goroutines run,
// so an as-fast-as-possible loop cannot jump past work the wakes will create.
func (c *Clock) advanceLocked(t time.Time) []*waiter {
	c.sim = t
	var released []*waiter
	for c.waiters.Len() > 0 {
		w := c.waiters[0]
		if w.cancelled {
			heap.Pop(&c.waiters)
			continue
		}
		if w.deadline.After(c.sim) {
			break
		}
		heap.Pop(&c.waiters)
		c.pending++
		released = append(released, w)
	}
	return released
}

func (c *Clock) paceLoop() {
	defer c.wg.Done()
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-c.stopCh:
			return
		case now := <-ticker.C:
			elapsed := now.Sub(last)
			last = now
			c.mu.Lock()
			step := time.Duration(float64(elapsed) * c.accel)
			released := c.advanceLocked(c.sim.Add(step))
			c.mu.Unlock()
			for _, w := range released {
				close(w.ch)
			}
		}
	}
}

func (c *Clock) autoLoop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.stopCh:
			return
		case <-c.kick:
		}
		for {
			c.mu.Lock()
			// Skip cancelled entries sitting at the top.
			for c.waiters.Len() > 0 && c.waiters[0].cancelled {
				heap.Pop(&c.waiters)
			}
			if c.pending != 0 || c.waiters.Len() == 0 {
				c.mu.Unlock()
				break
			}
			released := c.advanceLocked(c.waiters[0].deadline)
			c.mu.Unlock()
			for _, w := range released {
				close(w.ch)
			}
		}
	}
}
