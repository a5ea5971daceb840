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

package behavior

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/ripple/pkg/random"
	"github.com/teradata-labs/ripple/pkg/types"
)

// Compliance bands. Agents inside the decisive bands respond
// deterministically; only the middle band samples.
const (
	complianceTakeAction = 0.75
	complianceIgnore     = 0.30

	workloadSaturated   = 0.85
	workloadConstrained = 0.70
	workloadBlocked     = 0.95

	cautionRiskTolerance = 0.20
	defiantRiskTolerance = 0.80
	defiantAuthority     = 0.20

	// Each redelivery of the same communication nudges compliance upward.
	attemptComplianceStep = 0.05
)

// RuleEngine is the deterministic personality-driven engine.
type RuleEngine struct {
	params types.Parameters
	stream *random.Stream
	logger *zap.Logger
}

// NewRuleEngine creates a rule engine drawing randomness from stream.
func NewRuleEngine(params types.Parameters, stream *random.Stream, logger *zap.Logger) *RuleEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RuleEngine{params: params, stream: stream, logger: logger}
}

// compliance scores the agent's disposition to comply with this sender.
// Authority response dominates; affinity and adaptability temper it.
func compliance(a types.AgentSnapshot, attempt int) float64 {
	affinity01 := (a.AffinityToSender + 1) / 2
	c := 0.65*a.Personality.AuthorityResponse + 0.20*affinity01 + 0.15*a.Personality.ChangeAdaptability
	if attempt > 1 {
		c += float64(attempt-1) * attemptComplianceStep
	}
	return types.Clamp01(c)
}

// Decide implements Engine.
func (e *RuleEngine) Decide(_ context.Context, req Request) (types.ResponseDecision, error) {
	comm := req.Communication
	if !comm.Kind.Valid() {
		return types.ResponseDecision{}, types.Errorf(types.CodeInvalidArgument,
			"unknown communication kind %q", comm.Kind)
	}
	if req.Attempt < 1 {
		req.Attempt = 1
	}

	a := req.Agent
	score := compliance(a, req.Attempt)

	var d types.ResponseDecision
	if comm.Kind == types.KindDirectOrder {
		d = e.decideDirectOrder(a, comm, score)
	} else {
		d = e.decideDiscretionary(a, comm, score)
	}

	// Consultations and catchball rounds ask for input, not execution.
	if d.Kind == types.ResponseTakeAction &&
		(comm.Kind == types.KindConsultation || comm.Kind == types.KindCatchball) {
		d.Kind = types.ResponseProvideFeedback
		d.ActionStatus = types.ActionNone
	}

	e.attachMarkers(&d, a, comm)
	e.applyCosts(&d, a, comm, req.Attempt)
	d.Latency = e.latency(a, comm)
	d.Content = draftContent(d.Kind, a, comm)
	return d, nil
}

func (e *RuleEngine) decideDirectOrder(a types.AgentSnapshot, comm types.Communication, score float64) types.ResponseDecision {
	switch {
	case a.Personality.RiskTolerance >= defiantRiskTolerance &&
		a.Personality.AuthorityResponse <= defiantAuthority:
		// The one disposition that defies a direct order.
		return types.ResponseDecision{
			Kind:       types.ResponseIgnore,
			Confidence: types.Clamp01(0.4 + 0.4*a.Personality.RiskTolerance),
		}
	case a.Workload >= workloadBlocked:
		return types.ResponseDecision{
			Kind:       types.ResponseEscalate,
			Confidence: 0.6,
			Hesitation: []types.HesitationMarker{types.MarkerResourceConstraint},
		}
	default:
		return types.ResponseDecision{
			Kind:         types.ResponseTakeAction,
			ActionStatus: types.ActionCommitted,
			Confidence:   types.Clamp01(0.7 + 0.3*a.Personality.AuthorityResponse),
		}
	}
}

// stressed reports whether the agent is over the stress threshold. A zero
// threshold means every agent is stressed, including one with zero stress.
func (e *RuleEngine) stressed(a types.AgentSnapshot) bool {
	return e.params.StressThreshold == 0 || a.Stress > e.params.StressThreshold
}

// decideStressed is the over-threshold distribution: the whole response
// mass collapses toward escalate and ignore, ahead of the decisive bands.
func (e *RuleEngine) decideStressed(a types.AgentSnapshot, score float64) types.ResponseDecision {
	if score <= complianceIgnore || a.Personality.AuthorityResponse <= defiantAuthority {
		return types.ResponseDecision{
			Kind:       types.ResponseIgnore,
			Confidence: types.Clamp01(0.35 + 0.3*a.Stress),
		}
	}
	return types.ResponseDecision{
		Kind:       types.ResponseEscalate,
		Confidence: types.Clamp01(0.4 + 0.3*a.Stress),
	}
}

func (e *RuleEngine) decideDiscretionary(a types.AgentSnapshot, comm types.Communication, score float64) types.ResponseDecision {
	switch {
	case e.stressed(a):
		return e.decideStressed(a, score)
	case a.Workload >= workloadSaturated:
		return types.ResponseDecision{
			Kind:       types.ResponseProvideFeedback,
			Confidence: 0.5,
			Hesitation: []types.HesitationMarker{types.MarkerCapacitySaturation},
		}
	case score >= complianceTakeAction:
		return types.ResponseDecision{
			Kind:         types.ResponseTakeAction,
			ActionStatus: types.ActionCommitted,
			Confidence:   types.Clamp01(0.6 + 0.4*score),
		}
	case score <= complianceIgnore:
		return types.ResponseDecision{
			Kind:       types.ResponseIgnore,
			Confidence: types.Clamp01(0.35 + 0.3*a.Personality.RiskTolerance),
		}
	case a.Personality.RiskTolerance <= cautionRiskTolerance:
		return types.ResponseDecision{
			Kind:       types.ResponseSeekClarification,
			Confidence: 0.35,
		}
	case len(a.Profile.DirectReports) > 0 && a.Workload >= workloadConstrained:
		return types.ResponseDecision{
			Kind:         types.ResponseDelegate,
			ActionStatus: types.ActionCommitted,
			Confidence:   0.55,
		}
	default:
		return e.sampleMiddleBand(a, score)
	}
}

// sampleMiddleBand draws a response for agents with no decisive disposition.
func (e *RuleEngine) sampleMiddleBand(a types.AgentSnapshot, score float64) types.ResponseDecision {
	weights := []float64{
		score,                             // take_action
		a.Personality.CollaborationPreference, // provide_feedback
		1 - a.Personality.RiskTolerance,   // seek_clarification
		(1 - score) * a.Personality.RiskTolerance, // ignore
	}
	kinds := []types.ResponseKind{
		types.ResponseTakeAction,
		types.ResponseProvideFeedback,
		types.ResponseSeekClarification,
		types.ResponseIgnore,
	}
	kind := kinds[e.stream.Pick(weights)]
	d := types.ResponseDecision{
		Kind:       kind,
		Confidence: types.Clamp01(0.3 + 0.5*math.Abs(score-0.5)*2 + 0.1*e.stream.Float64()),
	}
	if kind == types.ResponseTakeAction {
		d.ActionStatus = types.ActionCommitted
	}
	return d
}

func (e *RuleEngine) attachMarkers(d *types.ResponseDecision, a types.AgentSnapshot, comm types.Communication) {
	add := func(m types.HesitationMarker) {
		for _, existing := range d.Hesitation {
			if existing == m {
				return
			}
		}
		d.Hesitation = append(d.Hesitation, m)
	}
	if d.Kind == types.ResponseIgnore {
		return
	}
	if a.Workload >= workloadConstrained {
		add(types.MarkerResourceConstraint)
	}
	if a.OpenHighPriorityThreads >= 2 && comm.Priority >= 4 {
		add(types.MarkerPriorityConflict)
	}
	if a.AffinityToSender <= -0.3 && comm.Kind != types.KindConsultation {
		add(types.MarkerStrategicMisalignment)
	}
	if a.Personality.CollaborationPreference >= 0.7 &&
		(comm.Kind == types.KindRecommendation || comm.Kind == types.KindDirectOrder) &&
		(d.Kind == types.ResponseProvideFeedback || d.Kind == types.ResponseSeekClarification) {
		add(types.MarkerNeedsConsensus)
	}
	if d.Confidence < 0.4 {
		add(types.MarkerUncertainty)
	}
}

// applyCosts computes the decision's side effects on the agent.
func (e *RuleEngine) applyCosts(d *types.ResponseDecision, a types.AgentSnapshot, comm types.Communication, attempt int) {
	priorityWeight := float64(comm.Priority) / 5

	switch d.Kind {
	case types.ResponseTakeAction:
		d.WorkloadDelta = 0.05 + 0.05*priorityWeight
		d.StressDelta = priorityWeight * a.Personality.WorkloadSensitivity * 0.1
		d.AffinityDelta = 0.03
	case types.ResponseDelegate:
		d.WorkloadDelta = 0.02
		d.StressDelta = priorityWeight * a.Personality.WorkloadSensitivity * 0.04
		d.AffinityDelta = 0.01
	case types.ResponseProvideFeedback, types.ResponseSeekClarification:
		d.WorkloadDelta = 0.01
		d.StressDelta = priorityWeight * a.Personality.WorkloadSensitivity * 0.05
		d.AffinityDelta = 0.01
	case types.ResponseEscalate:
		d.StressDelta = 0.05 + priorityWeight*0.05
		d.AffinityDelta = -0.02
	case types.ResponseIgnore:
		d.StressDelta = 0.01
		d.AffinityDelta = -0.02
	}

	// Affinity for the sender softens the stress cost of being asked.
	if a.AffinityToSender > 0 {
		d.StressDelta -= e.params.CollaborationBonus * a.AffinityToSender * 0.05
	}
	// Being nagged has its own cost.
	if attempt > 1 {
		d.StressDelta += 0.01 * float64(attempt-1)
	}
}

// latency draws the simulated reply latency. Deliberate communicators sit at
// the slow end of the window; urgent communications compress it.
func (e *RuleEngine) latency(a types.AgentSnapshot, comm types.Communication) time.Duration {
	lo, hi := e.params.ResponseDelayMin, e.params.ResponseDelayMax
	if comm.Kind == types.KindConsultation || comm.Kind == types.KindCatchball {
		hi = lo + (hi-lo)*4
	}
	span := float64(hi - lo)
	pace := 1.4 - 0.8*a.Personality.CommunicationStyle
	urgency := (6 - float64(comm.Priority)) / 5
	l := time.Duration(e.stream.Float64() * span * pace * urgency)
	return lo + l
}

func draftContent(kind types.ResponseKind, a types.AgentSnapshot, comm types.Communication) string {
	switch kind {
	case types.ResponseTakeAction:
		return fmt.Sprintf("Acknowledged %q; starting on it now.", comm.Subject)
	case types.ResponseProvideFeedback:
		return fmt.Sprintf("Some input on %q before committing either way.", comm.Subject)
	case types.ResponseSeekClarification:
		return fmt.Sprintf("Need more detail on %q before acting, can you clarify the scope?", comm.Subject)
	case types.ResponseEscalate:
		return fmt.Sprintf("Raising %q with my manager; I cannot resolve this at my level.", comm.Subject)
	case types.ResponseDelegate:
		return fmt.Sprintf("Handing %q to my team with context.", comm.Subject)
	default:
		return ""
	}
}

var _ Engine = (*RuleEngine)(nil)
