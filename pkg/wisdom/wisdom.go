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

// Package wisdom aggregates response populations into a wisdom-of-the-crowd
// reading: consensus level, hesitation landscape, detected priority
// conflicts, and recommended follow-up actions for the sender.
package wisdom

import (
	"context"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/ripple/pkg/tracking"
	"github.com/teradata-labs/ripple/pkg/types"
)

// Consensus thresholds for recommended actions.
const (
	lowConsensus         = 0.5
	highConsensus        = 0.8
	minRespondents       = 3
	consensusMarkerCount = 2

	// conflictConfidence gates the approach-conflict camps: only
	// respondents this sure of their position count as a camp member.
	conflictConfidence = 0.6

	// minWeight floors a zero-confidence response so it still counts.
	minWeight = 0.05
)

// Aggregator computes wisdom readings from the tracking store.
type Aggregator struct {
	store  tracking.Store
	logger *zap.Logger
}

// NewAggregator creates an aggregator over store.
func NewAggregator(store tracking.Store, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{store: store, logger: logger}
}

// ForCommunication aggregates the responses to one communication.
func (a *Aggregator) ForCommunication(ctx context.Context, communicationID string, now time.Time) (types.WisdomOfTheCrowd, error) {
	comm, err := a.store.Communication(ctx, communicationID)
	if err != nil {
		return types.WisdomOfTheCrowd{}, err
	}
	responses, err := a.store.ResponsesForCommunication(ctx, communicationID)
	if err != nil {
		return types.WisdomOfTheCrowd{}, err
	}
	return aggregate(communicationID, "communication", responses,
		map[string]types.Communication{comm.ID: comm}, now), nil
}

// ForTopic aggregates responses across every communication tagged with one
// strategic goal.
func (a *Aggregator) ForTopic(ctx context.Context, goal string, now time.Time) (types.WisdomOfTheCrowd, error) {
	responses, err := a.store.ResponsesForGoal(ctx, goal)
	if err != nil {
		return types.WisdomOfTheCrowd{}, err
	}
	if len(responses) == 0 {
		return types.WisdomOfTheCrowd{}, types.Errorf(types.CodeNotFound,
			"no responses recorded for topic %q", goal)
	}
	comms := make(map[string]types.Communication)
	for _, r := range responses {
		if _, ok := comms[r.CommunicationID]; ok {
			continue
		}
		c, err := a.store.Communication(ctx, r.CommunicationID)
		if err != nil {
			return types.WisdomOfTheCrowd{}, err
		}
		comms[c.ID] = c
	}
	return aggregate(goal, "topic", responses, comms, now), nil
}

// aggregate computes the full reading for one response population.
func aggregate(key, scope string, responses []types.Response, comms map[string]types.Communication, now time.Time) types.WisdomOfTheCrowd {
	w := types.WisdomOfTheCrowd{
		Key:           key,
		Scope:         scope,
		ResponseCount: len(responses),
		KindCounts:    make(map[types.ResponseKind]int),
		Hesitation:    make(map[types.HesitationMarker]int),
		UpdatedAt:     now,
	}
	if len(responses) == 0 {
		return w
	}

	kindWeights := make(map[types.ResponseKind]float64)
	for _, r := range responses {
		w.KindCounts[r.Kind]++
		weight := r.Confidence
		if weight < minWeight {
			weight = minWeight
		}
		kindWeights[r.Kind] += weight
		for _, m := range r.Hesitation {
			w.Hesitation[m]++
		}
		switch {
		case r.Confidence < 0.4:
			w.Confidence.Low++
		case r.Confidence < 0.7:
			w.Confidence.Medium++
		default:
			w.Confidence.High++
		}
	}
	w.ConsensusLevel = consensusLevel(kindWeights)
	w.PriorityConflicts = detectConflicts(responses, comms)
	w.RecommendedActions = recommend(w)
	return w
}

// consensusLevel is one minus the normalized Shannon entropy of the
// confidence-weighted response-kind distribution. A unanimous population
// scores 1; a uniform spread over all kinds scores 0.
func consensusLevel(kindWeights map[types.ResponseKind]float64) float64 {
	var total float64
	for _, w := range kindWeights {
		total += w
	}
	if total <= 0 {
		return 0
	}
	var entropy float64
	for _, w := range kindWeights {
		if w <= 0 {
			continue
		}
		p := w / total
		entropy -= p * math.Log(p)
	}
	norm := math.Log(float64(len(types.AllResponseKinds())))
	return types.Clamp01(1 - entropy/norm)
}

func detectConflicts(responses []types.Response, comms map[string]types.Communication) []types.PriorityConflict {
	var conflicts []types.PriorityConflict

	var resourceAgents, timelineAgents []string
	var actionCamp, contestCamp []string

	for _, r := range responses {
		// A take_action response is compliance, not refusal, however
		// saturated the agent says it is.
		if r.Kind != types.ResponseTakeAction && r.HasMarker(types.MarkerCapacitySaturation) {
			resourceAgents = append(resourceAgents, r.AgentID)
		}
		if c, ok := comms[r.CommunicationID]; ok && !c.Deadline.IsZero() {
			if r.CreatedAt.Add(r.StatedLatency).After(c.Deadline) {
				timelineAgents = append(timelineAgents, r.AgentID)
			}
		}
		if r.Confidence >= conflictConfidence {
			switch r.Kind {
			case types.ResponseTakeAction:
				actionCamp = append(actionCamp, r.AgentID)
			case types.ResponseEscalate, types.ResponseSeekClarification:
				contestCamp = append(contestCamp, r.AgentID)
			}
		}
	}

	if len(resourceAgents) >= 2 {
		conflicts = append(conflicts, types.PriorityConflict{
			Kind:        types.ConflictResource,
			Description: "multiple respondents refuse action over capacity saturation",
			AgentIDs:    dedupe(resourceAgents),
		})
	}
	if len(timelineAgents) >= 1 {
		conflicts = append(conflicts, types.PriorityConflict{
			Kind:        types.ConflictTimeline,
			Description: "committed response latencies overrun the declared deadline",
			AgentIDs:    dedupe(timelineAgents),
		})
	}
	if len(actionCamp) >= 1 && len(contestCamp) >= 1 {
		conflicts = append(conflicts, types.PriorityConflict{
			Kind:        types.ConflictApproach,
			Description: "confident respondents split between executing and contesting the direction",
			AgentIDs:    dedupe(append(actionCamp, contestCamp...)),
		})
	}
	return conflicts
}

// recommend maps the aggregate reading to sender follow-ups. Order is
// stable: conflict-driven actions first, then consensus-driven ones.
func recommend(w types.WisdomOfTheCrowd) []types.RecommendedAction {
	var out []types.RecommendedAction
	add := func(a types.RecommendedAction) {
		for _, existing := range out {
			if existing == a {
				return
			}
		}
		out = append(out, a)
	}

	for _, c := range w.PriorityConflicts {
		switch c.Kind {
		case types.ConflictResource:
			add(types.ActionReduceScope)
		case types.ConflictTimeline:
			add(types.ActionScheduleReview)
		case types.ConflictApproach:
			add(types.ActionConveneCatchball)
		}
	}
	if w.ConsensusLevel < lowConsensus && w.ResponseCount >= minRespondents {
		add(types.ActionConveneCatchball)
	}
	if w.Hesitation[types.MarkerNeedsConsensus] >= consensusMarkerCount {
		add(types.ActionCascadeThroughLeads)
	}
	if w.ConsensusLevel >= highConsensus && hesitationTotal(w.Hesitation) > 0 {
		add(types.ActionReaffirmPriority)
	}
	return out
}

func hesitationTotal(m map[types.HesitationMarker]int) int {
	var n int
	for _, v := range m {
		n += v
	}
	return n
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	var out []string
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
