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

package sim

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/ripple/pkg/behavior"
	"github.com/teradata-labs/ripple/pkg/escalation"
	"github.com/teradata-labs/ripple/pkg/random"
	"github.com/teradata-labs/ripple/pkg/types"
)

// handleDelivery is the distribution engine's callback: one completed
// delivery to one recipient. It runs on a worker goroutine that holds a
// pending-work token, so it may sleep on the virtual clock. Errors here
// never propagate; they become internal_error events.
func (k *Kernel) handleDelivery(ctx context.Context, c types.Communication, recipientID string, attempt int) {
	k.mu.RLock()
	reg, engine, esc, dist, clk, ids := k.reg, k.engine, k.esc, k.dist, k.clk, k.ids
	params := k.params
	k.mu.RUnlock()

	snap, err := reg.Snapshot(recipientID, c.SenderID)
	if err != nil {
		k.emitError(c, recipientID, err)
		return
	}
	now := clk.Now()
	k.emit(types.EventDeliver, c, recipientID, "")

	decision, err := engine.Decide(ctx, behavior.Request{
		Agent:         snap,
		Communication: c,
		Now:           now,
		Attempt:       attempt,
	})
	if err != nil {
		k.emitError(c, recipientID, err)
		return
	}

	// A reply that would land past the communication's TTL counts as an
	// ignore at the expiry instant.
	ttl := c.TTL
	if ttl <= 0 {
		ttl = params.DefaultTTL
	}
	expiry := c.CreatedAt.Add(ttl)
	respondAt := now.Add(decision.Latency)
	expired := respondAt.After(expiry)
	if expired {
		respondAt = expiry
		decision.Kind = types.ResponseIgnore
		decision.Content = ""
		decision.Hesitation = nil
		decision.ActionStatus = types.ActionNone
	}
	if respondAt.Before(now) {
		respondAt = now
	}

	if err := clk.SleepUntil(ctx, respondAt); err != nil || ctx.Err() != nil {
		// Shutdown: no response is created after stop.
		return
	}

	resp := types.Response{
		ID:              ids.NewID(),
		CommunicationID: c.ID,
		ThreadID:        c.ThreadID,
		AgentID:         recipientID,
		Kind:            decision.Kind,
		Content:         decision.Content,
		Confidence:      decision.Confidence,
		Hesitation:      decision.Hesitation,
		ActionStatus:    decision.ActionStatus,
		StatedLatency:   decision.Latency,
		FallbackUsed:    decision.FallbackUsed,
		CreatedAt:       clk.Now(),
	}
	if err := k.store.RecordResponse(ctx, resp); err != nil {
		k.emitError(c, recipientID, err)
		return
	}
	if err := reg.ApplyDecision(recipientID, c.SenderID, decision); err != nil {
		k.emitError(c, recipientID, err)
	}
	_ = reg.RecordInteraction(recipientID, types.Interaction{
		CommunicationID: c.ID,
		ThreadID:        c.ThreadID,
		WithAgent:       c.SenderID,
		Kind:            c.Kind,
		Response:        resp.Kind,
		Priority:        c.Priority,
		StrategicGoal:   c.StrategicGoal,
		Timestamp:       resp.CreatedAt,
	})
	if resp.Kind != types.ResponseIgnore {
		reg.CloseThread(recipientID, c.ThreadID)
	}

	if expired {
		k.emit(types.EventTTLExpired, c, recipientID, "no response within ttl")
		if escalation.Tracked(c.Kind) {
			k.withThread(c.ThreadID, func() {
				if _, err := esc.Expire(ctx, c.ThreadID, recipientID); err != nil {
					k.emitError(c, recipientID, err)
				}
			})
		}
		dist.Cancel(ctx, c.ID)
		return
	}
	k.emit(types.EventRespond, c, recipientID, string(resp.Kind))

	if resp.Kind == types.ResponseDelegate && len(snap.Profile.DirectReports) > 0 {
		k.forwardDelegation(ctx, c, snap)
	}

	if !escalation.Tracked(c.Kind) {
		return
	}
	k.withThread(c.ThreadID, func() {
		out, err := esc.OnResponse(ctx, c.ThreadID, recipientID, resp.Kind)
		if err != nil {
			k.emitError(c, recipientID, err)
			return
		}
		switch out.Action {
		case escalation.ActionRemind:
			k.scheduleReminder(c, recipientID, attempt+1)
		case escalation.ActionPromote:
			k.promote(ctx, c, recipientID, out.PromoteTo)
		case escalation.ActionComplianceFailure:
			k.emit(types.EventComplianceFailure, c, recipientID, "direct order ignored")
		}
	})
}

// scheduleReminder redelivers the same communication to the ignoring
// recipient after the reminder interval. The goroutine takes over a
// pending-work token before the caller's returns, so the clock cannot jump
// over the reminder.
func (k *Kernel) scheduleReminder(c types.Communication, recipientID string, attempt int) {
	k.mu.RLock()
	running := k.running
	clk, dist := k.clk, k.dist
	interval := k.params.ReminderInterval
	ctx := k.runCtx
	k.mu.RUnlock()
	if !running {
		return
	}

	due := clk.Now().Add(interval)
	clk.Acquire()
	k.tasks.Add(1)
	go func() {
		defer k.tasks.Done()
		defer clk.Release()
		if err := clk.SleepUntil(ctx, due); err != nil || ctx.Err() != nil {
			return
		}
		if err := dist.EnqueueRedelivery(ctx, c, recipientID, attempt); err != nil {
			k.emitError(c, recipientID, err)
		}
	}()
}

// promote synthesizes the next-level communication in the same thread and
// injects it for the one recipient whose ladder crossed a threshold.
func (k *Kernel) promote(ctx context.Context, c types.Communication, recipientID string, kind types.CommunicationKind) {
	k.mu.RLock()
	clk, esc, dist, ids := k.clk, k.esc, k.dist, k.ids
	k.mu.RUnlock()

	promoted := c
	promoted.ID = ids.NewID()
	promoted.Kind = kind
	promoted.RecipientIDs = []string{recipientID}
	promoted.Subject = promotedSubject(kind, c.Subject)
	promoted.CreatedAt = clk.Now()

	if err := k.store.RecordCommunication(ctx, promoted); err != nil {
		k.emitError(c, recipientID, err)
		return
	}
	if err := esc.RecordPromotion(ctx, c.ThreadID, recipientID, promoted.ID); err != nil {
		k.emitError(promoted, recipientID, err)
	}
	k.emit(types.EventEscalate, promoted, recipientID, "promoted to "+string(kind))
	if err := dist.Enqueue(ctx, promoted); err != nil {
		k.emitError(promoted, recipientID, err)
	}
}

func promotedSubject(kind types.CommunicationKind, subject string) string {
	switch kind {
	case types.KindDirectOrder:
		return "Action required: " + subject
	default:
		return "Follow-up: " + subject
	}
}

// forwardDelegation passes a delegated communication down to the manager's
// first direct report as a recommendation in the same thread.
func (k *Kernel) forwardDelegation(ctx context.Context, c types.Communication, manager types.AgentSnapshot) {
	k.mu.RLock()
	reg, esc, dist, clk, ids := k.reg, k.esc, k.dist, k.clk, k.ids
	k.mu.RUnlock()

	target := manager.Profile.DirectReports[0]
	fwd := c
	fwd.ID = ids.NewID()
	fwd.SenderID = manager.ID
	fwd.RecipientIDs = []string{target}
	fwd.Kind = types.KindRecommendation
	fwd.Subject = "Delegated: " + c.Subject
	fwd.CreatedAt = clk.Now()

	if err := k.store.RecordCommunication(ctx, fwd); err != nil {
		k.emitError(c, manager.ID, err)
		return
	}
	if _, err := esc.Register(ctx, fwd, target); err != nil {
		k.emitError(fwd, target, err)
	}
	reg.OpenThread(target, fwd.ThreadID, fwd.Priority)
	k.emit(types.EventSend, fwd, target, "delegated by "+manager.ID)
	if err := dist.Enqueue(ctx, fwd); err != nil {
		k.emitError(fwd, target, err)
	}
}

// chatterTick fires once per simulated hour. Inside the workday it may send
// one low-priority consultation between two random agents, at the configured
// frequency.
func (k *Kernel) chatterTick(ctx context.Context, now time.Time) {
	k.mu.RLock()
	running := k.running
	reg, dist, clk, ids := k.reg, k.dist, k.clk, k.ids
	params := k.params
	source := k.source
	k.mu.RUnlock()
	if !running {
		return
	}
	hour := now.Hour()
	if hour < params.WorkdayStartHour || hour >= params.WorkdayEndHour {
		return
	}
	stream := source.Stream(random.StreamChatter)
	if stream.Float64() >= params.CommunicationFrequency {
		return
	}
	agents := reg.IDs()
	if len(agents) < 2 {
		return
	}
	si := stream.Intn(len(agents))
	ri := stream.Intn(len(agents) - 1)
	if ri >= si {
		ri++
	}

	c := types.Communication{
		ID:           ids.NewID(),
		SenderID:     agents[si],
		RecipientIDs: []string{agents[ri]},
		Kind:         types.KindConsultation,
		Priority:     2,
		Subject:      chatterSubjects[stream.Intn(len(chatterSubjects))],
		ThreadID:     ids.NewID(),
		CreatedAt:    clk.Now(),
	}
	if err := k.store.RecordCommunication(ctx, c); err != nil {
		k.emitError(c, c.SenderID, err)
		return
	}
	k.emit(types.EventChatter, c, c.SenderID, c.Subject)
	if err := dist.Enqueue(ctx, c); err != nil {
		k.emitError(c, c.SenderID, err)
	}
}

// minuteTick publishes the pipeline gauges once per simulated minute.
func (k *Kernel) minuteTick(_ context.Context, _ time.Time) {
	k.mu.RLock()
	running := k.running
	dist := k.dist
	org := k.orgID
	k.mu.RUnlock()
	if !running {
		return
	}
	labels := map[string]string{"organization_id": org}
	k.tracer.RecordMetric("simulation.queue_depth", float64(dist.QueueDepth()), labels)
	k.tracer.RecordMetric("simulation.in_flight", float64(dist.InFlight()), labels)
}

// dailyMaintenance runs at the workday start hour and opens the simulated
// day with a fresh population baseline.
func (k *Kernel) dailyMaintenance(_ context.Context, now time.Time) {
	k.mu.RLock()
	running := k.running
	reg := k.reg
	org := k.orgID
	k.mu.RUnlock()
	if !running {
		return
	}
	s := reg.Summary()
	labels := map[string]string{"organization_id": org}
	k.tracer.RecordMetric("population.average_stress", s.AverageStress, labels)
	k.tracer.RecordMetric("population.average_workload", s.AverageWorkload, labels)
	k.tracer.RecordMetric("population.average_satisfaction", s.AverageSatisfaction, labels)
	k.logger.Debug("daily maintenance",
		zap.Time("sim_time", now),
		zap.Float64("avg_stress", s.AverageStress),
		zap.Float64("avg_workload", s.AverageWorkload))
}

// endOfDay closes the simulated workday with a traffic summary.
func (k *Kernel) endOfDay(ctx context.Context, now time.Time) {
	k.mu.RLock()
	running := k.running
	org := k.orgID
	k.mu.RUnlock()
	if !running {
		return
	}
	stats, err := k.store.Stats(ctx)
	if err != nil {
		k.logger.Warn("end-of-day stats unavailable", zap.Error(err))
		return
	}
	k.tracer.RecordMetric("simulation.communications_total", float64(stats.TotalCommunications),
		map[string]string{"organization_id": org})
	k.logger.Info("end of simulated day",
		zap.Time("sim_time", now),
		zap.Int("communications", stats.TotalCommunications),
		zap.Int("responses", stats.TotalResponses))
}

var chatterSubjects = []string{
	"Quick sync on current priorities",
	"Thoughts on the roadmap draft?",
	"Can you sanity-check an estimate?",
	"Heads-up before the weekly review",
	"Input wanted on a staffing question",
}
