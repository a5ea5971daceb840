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

// Package sim is the simulation kernel: the façade that wires the virtual
// clock, agent registry, behavior engine, distribution engine, escalation
// machine, wisdom aggregator and scheduler into one lifecycle. A Kernel is
// self-contained; multiple kernels coexist in one process.
package sim

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/ripple/pkg/behavior"
	"github.com/teradata-labs/ripple/pkg/clock"
	"github.com/teradata-labs/ripple/pkg/distribution"
	"github.com/teradata-labs/ripple/pkg/escalation"
	"github.com/teradata-labs/ripple/pkg/observability"
	"github.com/teradata-labs/ripple/pkg/random"
	"github.com/teradata-labs/ripple/pkg/registry"
	"github.com/teradata-labs/ripple/pkg/scheduler"
	"github.com/teradata-labs/ripple/pkg/tracking"
	"github.com/teradata-labs/ripple/pkg/types"
	"github.com/teradata-labs/ripple/pkg/wisdom"
)

// Config configures a Kernel. The zero value is usable: in-memory tracking,
// no generator backend, wall-clock epoch.
type Config struct {
	// Store persists the communication history. Nil selects an in-memory
	// store owned (and closed) by the kernel.
	Store tracking.Store

	// Generator is the optional text-generation backend. It is only used
	// when the run's parameters enable it.
	Generator behavior.Generator

	// Epoch is the simulated start instant. Zero means the wall clock at
	// Start, truncated to the minute.
	Epoch time.Time

	// Tracer instruments the delivery pipeline. Nil selects the no-op
	// tracer.
	Tracer observability.Tracer

	Logger *zap.Logger
}

// Kernel is the simulation façade. All exported methods are safe for
// concurrent use.
type Kernel struct {
	logger    *zap.Logger
	generator behavior.Generator
	epoch     time.Time
	store     tracking.Store
	ownStore  bool
	tracer    observability.Tracer
	events    *eventLog

	mu        sync.RWMutex
	running   bool
	orgID     string
	startedAt time.Time
	params    types.Parameters

	clk    *clock.Clock
	source *random.Source
	ids    *random.Stream
	reg    *registry.Registry
	engine behavior.Engine
	dist   *distribution.Distributor
	esc    *escalation.Machine
	agg    *wisdom.Aggregator
	sched  *scheduler.Scheduler

	runCtx    context.Context
	cancelRun context.CancelFunc
	tasks     sync.WaitGroup

	// threadLocks serializes escalation handling per thread.
	threadLocks struct {
		sync.Mutex
		m map[string]*sync.Mutex
	}
}

// New creates a stopped kernel.
func New(cfg Config) *Kernel {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	store := cfg.Store
	own := false
	if store == nil {
		store = tracking.NewMemoryStore()
		own = true
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = observability.NewNoOpTracer()
	}
	k := &Kernel{
		logger:    logger,
		generator: cfg.Generator,
		epoch:     cfg.Epoch,
		store:     store,
		ownStore:  own,
		tracer:    tracer,
		events:    newEventLog(eventRingCapacity),
		agg:       wisdom.NewAggregator(store, logger),
	}
	k.threadLocks.m = make(map[string]*sync.Mutex)
	return k
}

// Start initialises state for one organization and launches the clock,
// worker pool and scheduler. Fails with conflict while already running.
func (k *Kernel) Start(ctx context.Context, orgID string, agents []types.Agent, params types.Parameters) error {
	params.Normalize()
	if err := params.Validate(); err != nil {
		return err
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if k.running {
		return types.Errorf(types.CodeConflict, "simulation already running for organization %s", k.orgID)
	}

	epoch := k.epoch
	if epoch.IsZero() {
		epoch = time.Now().UTC().Truncate(time.Minute)
	}

	source := random.NewSource(params.Seed, params.Seeded)
	clk := clock.New(epoch, params.AccelerationFactor, params.AsFastAsPossible(), k.logger)
	reg := registry.New(params.MemoryDepth, params.StressThreshold, k.logger)
	if err := reg.Load(agents); err != nil {
		return err
	}

	rules := behavior.NewRuleEngine(params, source.Stream(random.StreamBehavior), k.logger)
	var engine behavior.Engine = rules
	if params.GeneratorEnabled && k.generator != nil {
		engine = behavior.NewGeneratorEngine(rules, k.generator, params.GeneratorTimeout, k.logger)
	}

	k.source = source
	k.ids = source.Stream(random.StreamIdentifiers)
	k.clk = clk
	k.reg = reg
	k.engine = engine
	k.esc = escalation.NewMachine(params.Escalation, k.store, k.logger)
	k.dist = distribution.New(clk, source.Stream(random.StreamDelays), k.store, params, k.handleDelivery, k.logger)
	k.dist.SetTracer(k.tracer)
	k.sched = scheduler.New(clk, k.logger)
	k.params = params

	if err := k.sched.AddInterval("tick", time.Minute, k.minuteTick); err != nil {
		return err
	}
	if err := k.sched.AddCron("daily-maintenance",
		fmt.Sprintf("0 %d * * *", params.WorkdayStartHour), k.dailyMaintenance); err != nil {
		return err
	}
	if err := k.sched.AddCron("end-of-day",
		fmt.Sprintf("0 %d * * *", params.WorkdayEndHour), k.endOfDay); err != nil {
		return err
	}
	if params.CommunicationFrequency > 0 && reg.Count() > 1 {
		if err := k.sched.AddInterval("chatter", time.Hour, k.chatterTick); err != nil {
			return err
		}
	}

	k.runCtx, k.cancelRun = context.WithCancel(context.Background())
	if err := clk.Start(); err != nil {
		k.cancelRun()
		return err
	}
	if err := k.dist.Start(k.runCtx); err != nil {
		k.cancelRun()
		clk.Stop()
		return err
	}
	if err := k.sched.Start(k.runCtx); err != nil {
		k.cancelRun()
		k.dist.Stop()
		clk.Stop()
		return err
	}

	k.running = true
	k.orgID = orgID
	k.startedAt = time.Now()
	k.logger.Info("simulation started",
		zap.String("organization_id", orgID),
		zap.Int("agents", reg.Count()),
		zap.Float64("acceleration", params.AccelerationFactor),
		zap.Bool("seeded", params.Seeded))
	return nil
}

// Stop cancels all outstanding work cooperatively and halts the clock.
// Pending deliveries that never complete are recorded as cancelled. No
// response is created after Stop returns. Idempotent.
func (k *Kernel) Stop() {
	k.mu.Lock()
	if !k.running {
		k.mu.Unlock()
		return
	}
	k.running = false
	cancel := k.cancelRun
	sched, dist, clk := k.sched, k.dist, k.clk
	k.mu.Unlock()

	cancel()
	sched.Stop()
	dist.Stop()
	k.tasks.Wait()
	clk.Stop()
	k.logger.Info("simulation stopped", zap.Time("sim_time", clk.Now()))
}

// Close stops the kernel and releases the tracking store when the kernel
// owns it.
func (k *Kernel) Close() error {
	k.Stop()
	if k.ownStore {
		return k.store.Close()
	}
	return nil
}

// SendRequest carries one send_communication call.
type SendRequest struct {
	SenderID      string
	RecipientIDs  []string
	Kind          types.CommunicationKind
	Priority      int // 0 means default (3)
	Subject       string
	Body          string
	StrategicGoal string

	// ThreadID groups this communication into an existing thread;
	// empty starts a new thread.
	ThreadID string

	// TTL overrides the configured default when positive.
	TTL time.Duration

	// Deadline is the declared completion deadline (simulated), if any.
	Deadline time.Time
}

// Send validates, records and enqueues one communication. An empty
// recipient list records the communication and performs no deliveries.
func (k *Kernel) Send(ctx context.Context, req SendRequest) (types.Communication, error) {
	k.mu.RLock()
	running := k.running
	params := k.params
	reg, esc, dist, clk, ids := k.reg, k.esc, k.dist, k.clk, k.ids
	k.mu.RUnlock()
	if !running {
		return types.Communication{}, types.Errorf(types.CodeConflict, "simulation is not running")
	}

	if !req.Kind.Valid() {
		return types.Communication{}, types.Errorf(types.CodeInvalidArgument, "unknown communication kind %q", req.Kind)
	}
	if req.Priority == 0 {
		req.Priority = 3
	}
	if err := types.ValidatePriority(req.Priority); err != nil {
		return types.Communication{}, err
	}
	if !reg.Exists(req.SenderID) {
		return types.Communication{}, types.Errorf(types.CodeNotFound, "sender %s not found", req.SenderID)
	}
	recipients := make([]string, 0, len(req.RecipientIDs))
	seen := make(map[string]bool, len(req.RecipientIDs))
	for _, r := range req.RecipientIDs {
		if seen[r] {
			continue
		}
		seen[r] = true
		if !reg.Exists(r) {
			return types.Communication{}, types.Errorf(types.CodeNotFound, "recipient %s not found", r)
		}
		recipients = append(recipients, r)
	}

	ctx, cancel := context.WithTimeout(ctx, params.RequestDeadline)
	defer cancel()

	c := types.Communication{
		ID:            ids.NewID(),
		SenderID:      req.SenderID,
		RecipientIDs:  recipients,
		Kind:          req.Kind,
		Priority:      req.Priority,
		Subject:       req.Subject,
		Body:          req.Body,
		StrategicGoal: req.StrategicGoal,
		CreatedAt:     clk.Now(),
		ThreadID:      req.ThreadID,
		TTL:           req.TTL,
		Deadline:      req.Deadline,
	}
	if c.ThreadID == "" {
		c.ThreadID = ids.NewID()
	}
	if err := k.store.RecordCommunication(ctx, c); err != nil {
		return types.Communication{}, err
	}
	k.emit(types.EventSend, c, "", c.Subject)
	if len(recipients) == 0 {
		return c, nil
	}

	for _, r := range recipients {
		if escalation.Tracked(c.Kind) {
			if _, err := esc.Register(ctx, c, r); err != nil {
				return types.Communication{}, err
			}
		}
		reg.OpenThread(r, c.ThreadID, c.Priority)
	}
	if err := dist.Enqueue(ctx, c); err != nil {
		return types.Communication{}, err
	}
	return c, nil
}

// Status returns the kernel's externally visible state.
func (k *Kernel) Status(ctx context.Context) (types.SimulationStatus, error) {
	stats, err := k.store.Stats(ctx)
	if err != nil {
		return types.SimulationStatus{}, err
	}

	k.mu.RLock()
	defer k.mu.RUnlock()
	s := types.SimulationStatus{
		Running:             k.running,
		OrganizationID:      k.orgID,
		TotalCommunications: stats.TotalCommunications,
		TotalResponses:      stats.TotalResponses,
	}
	if k.reg != nil {
		s.AgentCount = k.reg.Count()
	}
	if k.running {
		s.StartedAt = k.startedAt
		s.SimTime = k.clk.Now()
		s.QueueDepth = k.dist.QueueDepth()
		s.InFlightDeliveries = k.dist.InFlight()
	}
	return s, nil
}

// Wisdom aggregates responses for a communication ID or, when no
// communication matches, for a strategic-goal topic.
func (k *Kernel) Wisdom(ctx context.Context, key string) (types.WisdomOfTheCrowd, error) {
	w, err := k.agg.ForCommunication(ctx, key, k.simNow())
	if err == nil {
		return w, nil
	}
	if types.CodeOf(err) != types.CodeNotFound {
		return types.WisdomOfTheCrowd{}, err
	}
	return k.agg.ForTopic(ctx, key, k.simNow())
}

// Agents lists the population in insertion order. Empty before the first
// Start.
func (k *Kernel) Agents() []types.Agent {
	k.mu.RLock()
	reg := k.reg
	k.mu.RUnlock()
	if reg == nil {
		return nil
	}
	ids := reg.IDs()
	out := make([]types.Agent, 0, len(ids))
	for _, id := range ids {
		if a, err := reg.Get(id); err == nil {
			out = append(out, a)
		}
	}
	return out
}

// Events returns the most recent events, oldest first, at most limit
// (0 means all retained).
func (k *Kernel) Events(limit int) []types.SimulationEvent {
	return k.events.Recent(limit)
}

// SubscribeEvents registers a live event subscriber. The returned cancel
// function must be called to release it. Slow subscribers drop events.
func (k *Kernel) SubscribeEvents() (<-chan types.SimulationEvent, func()) {
	return k.events.Subscribe()
}

// Snapshot writes a JSON snapshot of the externally visible simulation
// state. The format is a debugging aid, not a stable wire contract.
func (k *Kernel) Snapshot(ctx context.Context, w io.Writer) error {
	status, err := k.Status(ctx)
	if err != nil {
		return err
	}
	k.mu.RLock()
	params := k.params
	k.mu.RUnlock()
	if math.IsInf(params.AccelerationFactor, 1) {
		// JSON cannot carry +Inf; non-positive also means as-fast-as-possible.
		params.AccelerationFactor = -1
	}
	snap := struct {
		Status     types.SimulationStatus  `json:"status"`
		Parameters types.Parameters        `json:"parameters"`
		Agents     []types.Agent           `json:"agents"`
		Events     []types.SimulationEvent `json:"events"`
	}{
		Status:     status,
		Parameters: params,
		Agents:     k.Agents(),
		Events:     k.Events(0),
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}

func (k *Kernel) simNow() time.Time {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.clk == nil {
		return time.Time{}
	}
	return k.clk.Now()
}

// withThread serializes fn against other escalation work on the same thread.
func (k *Kernel) withThread(threadID string, fn func()) {
	k.threadLocks.Lock()
	mu, ok := k.threadLocks.m[threadID]
	if !ok {
		mu = &sync.Mutex{}
		k.threadLocks.m[threadID] = mu
	}
	k.threadLocks.Unlock()
	mu.Lock()
	defer mu.Unlock()
	fn()
}

func (k *Kernel) emit(kind types.EventKind, c types.Communication, agentID, message string) {
	k.events.Append(types.SimulationEvent{
		Kind:            kind,
		At:              k.simNow(),
		CommunicationID: c.ID,
		ThreadID:        c.ThreadID,
		AgentID:         agentID,
		Message:         message,
	})
}

func (k *Kernel) emitError(c types.Communication, agentID string, err error) {
	k.logger.Error("simulation task failed",
		zap.String("communication_id", c.ID),
		zap.String("agent_id", agentID),
		zap.Error(err))
	k.emit(types.EventInternalError, c, agentID, err.Error())
}
