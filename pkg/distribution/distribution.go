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

// Package distribution moves communications from senders to recipients. A
// bounded queue holds one fan-out job per communication; a worker pool
// drains it, draws a per-recipient delivery delay, sleeps on the virtual
// clock, writes the delivery record and hands the delivery to the kernel's
// callback. Backpressure is a real-time bounded wait: when the queue stays
// full past the request deadline, the send fails as overloaded.
package distribution

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/teradata-labs/ripple/pkg/clock"
	"github.com/teradata-labs/ripple/pkg/observability"
	"github.com/teradata-labs/ripple/pkg/random"
	"github.com/teradata-labs/ripple/pkg/tracking"
	"github.com/teradata-labs/ripple/pkg/types"
)

// DeliverFunc receives one completed delivery. It runs on a worker
// goroutine that holds a pending-work token; it may sleep on the clock.
type DeliverFunc func(ctx context.Context, c types.Communication, recipientID string, attempt int)

type job struct {
	comm       types.Communication
	recipients []string
	attempt    int
}

// Distributor is the delivery engine.
type Distributor struct {
	clk     *clock.Clock
	stream  *random.Stream
	store   tracking.Store
	params  types.Parameters
	deliver DeliverFunc
	logger  *zap.Logger
	tracer  observability.Tracer

	queue    chan job
	inFlight atomic.Int64

	mu        sync.Mutex
	cancelled map[string]bool
	paused    bool
	resumeCh  chan struct{}
	started   bool

	cancel context.CancelFunc
	group  *errgroup.Group
}

// New creates a distributor. deliver is called once per completed delivery.
func New(clk *clock.Clock, stream *random.Stream, store tracking.Store, params types.Parameters, deliver DeliverFunc, logger *zap.Logger) *Distributor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Distributor{
		clk:       clk,
		stream:    stream,
		store:     store,
		params:    params,
		deliver:   deliver,
		logger:    logger,
		tracer:    observability.NewNoOpTracer(),
		queue:     make(chan job, params.QueueCapacity),
		cancelled: make(map[string]bool),
	}
}

// SetTracer installs a tracer. Call before Start.
func (d *Distributor) SetTracer(tracer observability.Tracer) {
	if tracer != nil {
		d.tracer = tracer
	}
}

// Start launches the worker pool.
func (d *Distributor) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return types.Errorf(types.CodeConflict, "distributor already started")
	}
	d.started = true

	ctx, d.cancel = context.WithCancel(ctx)
	d.group, ctx = errgroup.WithContext(ctx)
	workers := d.params.Workers()
	for i := 0; i < workers; i++ {
		d.group.Go(func() error {
			d.worker(ctx)
			return nil
		})
	}
	d.logger.Info("distribution engine started",
		zap.Int("workers", workers),
		zap.Int("queue_capacity", d.params.QueueCapacity))
	return nil
}

// Stop cancels workers, waits for them, then drains the queue: jobs that
// never reached a worker have their still-pending deliveries recorded as
// cancelled. Idempotent.
func (d *Distributor) Stop() {
	d.mu.Lock()
	cancel := d.cancel
	group := d.group
	d.cancel = nil
	d.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	_ = group.Wait()
	for {
		select {
		case j := <-d.queue:
			d.cancelPending(context.Background(), j, j.recipients)
			d.clk.Release()
		default:
			d.logger.Info("distribution engine stopped")
			return
		}
	}
}

// cancelPending marks the given recipients' deliveries cancelled, but only
// while they are still pending. A record that already says delivered (a
// completed earlier attempt) is left alone.
func (d *Distributor) cancelPending(ctx context.Context, j job, recipients []string) {
	for _, r := range recipients {
		rec, err := d.store.Delivery(ctx, j.comm.ID, r)
		if err != nil || rec.Status != types.DeliveryPending {
			continue
		}
		rec.Status = types.DeliveryCancelled
		if err := d.store.UpsertDelivery(ctx, rec); err != nil {
			d.logger.Error("failed to cancel pending delivery",
				zap.String("communication_id", j.comm.ID),
				zap.String("recipient_id", r),
				zap.Error(err))
		}
	}
}

// Enqueue schedules delivery of c to all its recipients. Pending delivery
// records are written before queueing so the communication is visible in
// tracking immediately. Blocks up to the request deadline in real time when
// the queue is full, then fails as overloaded.
func (d *Distributor) Enqueue(ctx context.Context, c types.Communication) error {
	now := d.clk.Now()
	for _, r := range c.RecipientIDs {
		if err := d.store.UpsertDelivery(ctx, types.DeliveryRecord{
			CommunicationID: c.ID,
			RecipientID:     r,
			Status:          types.DeliveryPending,
			ScheduledAt:     now,
		}); err != nil {
			return err
		}
	}
	j := job{comm: c, recipients: c.RecipientIDs, attempt: 1}
	d.tracer.RecordMetric("distribution.queue_depth", float64(len(d.queue)), nil)
	if err := d.push(ctx, j); err != nil {
		// The communication will never be queued; fail its records so no
		// delivery looks forthcoming.
		d.failPending(context.WithoutCancel(ctx), c, now)
		return err
	}
	return nil
}

func (d *Distributor) failPending(ctx context.Context, c types.Communication, scheduledAt time.Time) {
	for _, r := range c.RecipientIDs {
		if err := d.store.UpsertDelivery(ctx, types.DeliveryRecord{
			CommunicationID: c.ID,
			RecipientID:     r,
			Status:          types.DeliveryFailed,
			ScheduledAt:     scheduledAt,
		}); err != nil {
			d.logger.Error("failed to record failed delivery",
				zap.String("communication_id", c.ID),
				zap.String("recipient_id", r),
				zap.Error(err))
		}
	}
}

// EnqueueRedelivery schedules a reminder redelivery to one recipient.
// attempt is the new delivery attempt number.
func (d *Distributor) EnqueueRedelivery(ctx context.Context, c types.Communication, recipientID string, attempt int) error {
	return d.push(ctx, job{comm: c, recipients: []string{recipientID}, attempt: attempt})
}

// push enqueues a job. A queued job holds a pending-work token until its
// processing completes, so an as-fast-as-possible clock cannot jump past
// deliveries that are merely waiting for a worker.
func (d *Distributor) push(ctx context.Context, j job) error {
	select {
	case d.queue <- j:
		d.clk.Acquire()
		return nil
	default:
	}
	deadline := d.params.RequestDeadline
	if deadline <= 0 {
		deadline = types.DefaultRequestDeadline
	}
	timer := time.NewTimer(deadline)
	defer timer.Stop()
	select {
	case d.queue <- j:
		d.clk.Acquire()
		return nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			// The caller's request deadline is the bounded wait.
			return types.Errorf(types.CodeOverloaded,
				"delivery queue full (%d) within request deadline", cap(d.queue))
		}
		return ctx.Err()
	case <-timer.C:
		return types.Errorf(types.CodeOverloaded,
			"delivery queue full (%d) for longer than %s", cap(d.queue), deadline)
	}
}

// Cancel marks a communication cancelled. Deliveries not yet performed are
// recorded as cancelled instead of delivered.
func (d *Distributor) Cancel(ctx context.Context, communicationID string) {
	d.mu.Lock()
	d.cancelled[communicationID] = true
	d.mu.Unlock()
}

func (d *Distributor) isCancelled(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cancelled[id]
}

// Pause stops workers from picking up new jobs. Used by tests to build up
// queue depth deterministically.
func (d *Distributor) Pause() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.paused {
		d.paused = true
		d.resumeCh = make(chan struct{})
	}
}

// Resume releases paused workers.
func (d *Distributor) Resume() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.paused {
		d.paused = false
		close(d.resumeCh)
	}
}

func (d *Distributor) waitResume(ctx context.Context) bool {
	d.mu.Lock()
	paused := d.paused
	ch := d.resumeCh
	d.mu.Unlock()
	if !paused {
		return true
	}
	select {
	case <-ch:
		return true
	case <-ctx.Done():
		return false
	}
}

// QueueDepth reports jobs waiting for a worker.
func (d *Distributor) QueueDepth() int { return len(d.queue) }

// InFlight reports jobs currently being processed.
func (d *Distributor) InFlight() int { return int(d.inFlight.Load()) }

func (d *Distributor) worker(ctx context.Context) {
	for {
		if !d.waitResume(ctx) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case j := <-d.queue:
			d.inFlight.Add(1)
			d.process(ctx, j)
			d.inFlight.Add(-1)
			d.clk.Release()
		}
	}
}

type plannedDelivery struct {
	recipient string
	due       time.Time
}

// process delivers one fan-out job, recipients in due-time order. The
// job's pending-work token is held throughout, so the clock cannot jump
// past undelivered recipients.
func (d *Distributor) process(ctx context.Context, j job) {
	ctx, span := d.tracer.StartSpan(ctx, "distribution.process",
		observability.WithAttribute("communication_id", j.comm.ID),
		observability.WithAttribute("recipients", len(j.recipients)),
		observability.WithAttribute("attempt", j.attempt))
	defer d.tracer.EndSpan(span)

	now := d.clk.Now()
	plan := make([]plannedDelivery, 0, len(j.recipients))
	for _, r := range j.recipients {
		plan = append(plan, plannedDelivery{recipient: r, due: now.Add(d.delay(j.comm))})
	}
	sort.SliceStable(plan, func(a, b int) bool { return plan[a].due.Before(plan[b].due) })

	for i, p := range plan {
		if err := d.clk.SleepUntil(ctx, p.due); err != nil || ctx.Err() != nil {
			// Shutdown mid fan-out: the undelivered tail is cancelled.
			remaining := make([]string, 0, len(plan)-i)
			for _, q := range plan[i:] {
				remaining = append(remaining, q.recipient)
			}
			d.cancelPending(context.WithoutCancel(ctx), j, remaining)
			return
		}
		record := types.DeliveryRecord{
			CommunicationID: j.comm.ID,
			RecipientID:     p.recipient,
			Status:          types.DeliveryDelivered,
			ScheduledAt:     now,
			DeliveredAt:     d.clk.Now(),
			Attempts:        j.attempt,
		}
		if d.isCancelled(j.comm.ID) {
			record.Status = types.DeliveryCancelled
			record.DeliveredAt = time.Time{}
			if err := d.store.UpsertDelivery(ctx, record); err != nil {
				d.logger.Error("failed to record cancelled delivery",
					zap.String("communication_id", j.comm.ID), zap.Error(err))
			}
			continue
		}
		if err := d.store.UpsertDelivery(ctx, record); err != nil {
			d.logger.Error("failed to record delivery",
				zap.String("communication_id", j.comm.ID),
				zap.String("recipient_id", p.recipient),
				zap.Error(err))
			continue
		}
		d.deliver(ctx, j.comm, p.recipient, j.attempt)
	}
}

// delay draws the simulated delivery delay. Urgent communications travel
// faster; direct orders are near-immediate.
func (d *Distributor) delay(c types.Communication) time.Duration {
	lo, hi := d.params.ResponseDelayMin, d.params.ResponseDelayMax
	if hi <= lo {
		return lo
	}
	urgency := (6 - float64(c.Priority)) / 5
	if c.Kind == types.KindDirectOrder {
		urgency *= 0.2
	}
	return lo + time.Duration(d.stream.Float64()*float64(hi-lo)*urgency)
}
