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

// Package registry holds the simulated agent population. It owns all mutable
// agent state; the rest of the kernel reads value snapshots and writes
// through decision application, so no agent struct ever escapes with a live
// lock requirement.
package registry

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/teradata-labs/ripple/pkg/types"
)

// satisfaction drift per applied decision.
const (
	satisfactionStressPenalty     = 0.02
	satisfactionCollaborationGain = 0.01
)

type entry struct {
	mu    sync.Mutex
	agent types.Agent

	// openHighPriority tracks unresolved threads with priority >= 4 this
	// agent is a recipient of.
	openHighPriority map[string]struct{}
}

// Registry is the thread-safe agent population.
type Registry struct {
	logger          *zap.Logger
	memoryDepth     int
	stressThreshold float64

	mu      sync.RWMutex
	entries map[string]*entry
	order   []string
}

// New creates an empty registry. memoryDepth bounds each agent's interaction
// log; stressThreshold drives satisfaction decay.
func New(memoryDepth int, stressThreshold float64, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	if memoryDepth <= 0 {
		memoryDepth = types.DefaultMemoryDepth
	}
	return &Registry{
		logger:          logger,
		memoryDepth:     memoryDepth,
		stressThreshold: stressThreshold,
		entries:         make(map[string]*entry),
	}
}

// Add validates and inserts one agent. Duplicate IDs are a conflict.
func (r *Registry) Add(a types.Agent) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if a.Relationships == nil {
		a.Relationships = make(map[string]float64)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[a.ID]; ok {
		return types.Errorf(types.CodeConflict, "agent %s already registered", a.ID)
	}
	r.entries[a.ID] = &entry{agent: a, openHighPriority: make(map[string]struct{})}
	r.order = append(r.order, a.ID)
	return nil
}

// Load inserts a whole population and then checks cross-agent referential
// integrity: every direct report and relationship target must exist.
func (r *Registry) Load(agents []types.Agent) error {
	for _, a := range agents {
		if err := r.Add(a); err != nil {
			return err
		}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, e := range r.entries {
		for _, rep := range e.agent.Profile.DirectReports {
			if _, ok := r.entries[rep]; !ok {
				return types.Errorf(types.CodeInvalidArgument,
					"agent %s lists unknown direct report %s", id, rep)
			}
		}
		for other := range e.agent.Relationships {
			if _, ok := r.entries[other]; !ok {
				return types.Errorf(types.CodeInvalidArgument,
					"agent %s has a relationship with unknown agent %s", id, other)
			}
		}
	}
	r.logger.Info("agent population loaded", zap.Int("agents", len(r.entries)))
	return nil
}

func (r *Registry) lookup(id string) (*entry, error) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return nil, types.Errorf(types.CodeNotFound, "agent %s not found", id)
	}
	return e, nil
}

// Get returns a value copy of one agent, memory excluded.
func (r *Registry) Get(id string) (types.Agent, error) {
	e, err := r.lookup(id)
	if err != nil {
		return types.Agent{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	a := e.agent
	a.Relationships = make(map[string]float64, len(e.agent.Relationships))
	for k, v := range e.agent.Relationships {
		a.Relationships[k] = v
	}
	a.Memory = nil
	return a, nil
}

// Exists reports whether an agent ID is registered.
func (r *Registry) Exists(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[id]
	return ok
}

// IDs returns all agent IDs in insertion order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Count returns the population size.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Manager returns the agent whose direct reports include id, if any.
func (r *Registry) Manager(id string) (types.Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, mid := range r.order {
		e := r.entries[mid]
		for _, rep := range e.agent.Profile.DirectReports {
			if rep == id {
				e.mu.Lock()
				a := e.agent
				a.Memory = nil
				e.mu.Unlock()
				return a, true
			}
		}
	}
	return types.Agent{}, false
}

// Snapshot produces the read-only view the behavior engine consumes,
// including the agent's affinity toward senderID and a bounded memory
// excerpt (newest first).
func (r *Registry) Snapshot(id, senderID string) (types.AgentSnapshot, error) {
	e, err := r.lookup(id)
	if err != nil {
		return types.AgentSnapshot{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	mem := make([]types.Interaction, len(e.agent.Memory))
	copy(mem, e.agent.Memory)
	return types.AgentSnapshot{
		ID:                      e.agent.ID,
		Profile:                 e.agent.Profile,
		Personality:             e.agent.Personality,
		Stress:                  e.agent.Stress,
		Workload:                e.agent.Workload,
		AffinityToSender:        e.agent.Relationships[senderID],
		Memory:                  mem,
		OpenHighPriorityThreads: len(e.openHighPriority),
	}, nil
}

// ApplyDecision applies a behavior decision's side effects to the agent:
// stress, workload and affinity deltas with clamping, plus satisfaction
// drift. Satisfaction decays while stress sits above the threshold and
// recovers a little on positive collaborative outcomes.
func (r *Registry) ApplyDecision(id, senderID string, d types.ResponseDecision) error {
	e, err := r.lookup(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	a := &e.agent
	a.Stress = types.Clamp01(a.Stress + d.StressDelta)
	a.Workload = types.Clamp01(a.Workload + d.WorkloadDelta)
	if d.AffinityDelta != 0 && senderID != "" {
		a.Relationships[senderID] = types.ClampAffinity(a.Relationships[senderID] + d.AffinityDelta)
	}
	if a.Stress > r.stressThreshold {
		a.Satisfaction = types.Clamp01(a.Satisfaction - satisfactionStressPenalty)
	} else if d.Kind == types.ResponseTakeAction && d.AffinityDelta > 0 {
		a.Satisfaction = types.Clamp01(a.Satisfaction + satisfactionCollaborationGain)
	}
	return nil
}

// RecordInteraction prepends one interaction to the agent's bounded memory.
func (r *Registry) RecordInteraction(id string, it types.Interaction) error {
	e, err := r.lookup(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	mem := append([]types.Interaction{it}, e.agent.Memory...)
	if len(mem) > r.memoryDepth {
		mem = mem[:r.memoryDepth]
	}
	e.agent.Memory = mem
	return nil
}

// OpenThread marks a thread as an unresolved obligation for the agent.
// Only priority >= 4 threads are tracked; lower priorities are a no-op.
func (r *Registry) OpenThread(id, threadID string, priority int) {
	if priority < 4 {
		return
	}
	if e, err := r.lookup(id); err == nil {
		e.mu.Lock()
		e.openHighPriority[threadID] = struct{}{}
		e.mu.Unlock()
	}
}

// CloseThread clears an open-thread obligation.
func (r *Registry) CloseThread(id, threadID string) {
	if e, err := r.lookup(id); err == nil {
		e.mu.Lock()
		delete(e.openHighPriority, threadID)
		e.mu.Unlock()
	}
}

// StateSummary aggregates mutable agent state for the metrics view.
type StateSummary struct {
	AverageStress       float64
	AverageWorkload     float64
	AverageSatisfaction float64

	// ByDepartment maps department name to (count, stress sum, workload sum).
	ByDepartment map[string]DepartmentState
}

// DepartmentState is the per-department slice of a StateSummary.
type DepartmentState struct {
	AgentCount      int
	AverageStress   float64
	AverageWorkload float64
}

// Summary computes population averages under the per-agent locks.
func (r *Registry) Summary() StateSummary {
	r.mu.RLock()
	ids := make([]string, len(r.order))
	copy(ids, r.order)
	entries := make([]*entry, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, r.entries[id])
	}
	r.mu.RUnlock()

	s := StateSummary{ByDepartment: make(map[string]DepartmentState)}
	if len(entries) == 0 {
		return s
	}
	type acc struct {
		n        int
		stress   float64
		workload float64
	}
	depts := make(map[string]*acc)
	var stress, workload, satisfaction float64
	for _, e := range entries {
		e.mu.Lock()
		stress += e.agent.Stress
		workload += e.agent.Workload
		satisfaction += e.agent.Satisfaction
		d := e.agent.Profile.Department
		if depts[d] == nil {
			depts[d] = &acc{}
		}
		depts[d].n++
		depts[d].stress += e.agent.Stress
		depts[d].workload += e.agent.Workload
		e.mu.Unlock()
	}
	n := float64(len(entries))
	s.AverageStress = stress / n
	s.AverageWorkload = workload / n
	s.AverageSatisfaction = satisfaction / n

	names := make([]string, 0, len(depts))
	for d := range depts {
		names = append(names, d)
	}
	sort.Strings(names)
	for _, d := range names {
		a := depts[d]
		s.ByDepartment[d] = DepartmentState{
			AgentCount:      a.n,
			AverageStress:   a.stress / float64(a.n),
			AverageWorkload: a.workload / float64(a.n),
		}
	}
	return s
}
