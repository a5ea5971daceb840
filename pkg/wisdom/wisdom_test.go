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

package wisdom

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teradata-labs/ripple/pkg/tracking"
	"github.com/teradata-labs/ripple/pkg/types"
)

var simEpoch = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func seedStore(t *testing.T, responses []types.Response) (*Aggregator, tracking.Store) {
	t.Helper()
	store := tracking.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.RecordCommunication(ctx, types.Communication{
		ID:            "c1",
		SenderID:      "ceo",
		RecipientIDs:  []string{"a", "b", "c", "d"},
		Kind:          types.KindConsultation,
		Priority:      4,
		Subject:       "platform migration",
		StrategicGoal: "platform-migration",
		ThreadID:      "t1",
		CreatedAt:     simEpoch,
	}))
	for i, r := range responses {
		r.ID = fmt.Sprintf("r%d", i)
		r.CommunicationID = "c1"
		r.ThreadID = "t1"
		if r.CreatedAt.IsZero() {
			r.CreatedAt = simEpoch.Add(time.Hour)
		}
		require.NoError(t, store.RecordResponse(ctx, r))
	}
	return NewAggregator(store, zaptest.NewLogger(t)), store
}

func TestUnanimousPopulationScoresOne(t *testing.T) {
	agg, _ := seedStore(t, []types.Response{
		{AgentID: "a", Kind: types.ResponseTakeAction, Confidence: 0.9},
		{AgentID: "b", Kind: types.ResponseTakeAction, Confidence: 0.7},
		{AgentID: "c", Kind: types.ResponseTakeAction, Confidence: 0.8},
	})
	w, err := agg.ForCommunication(context.Background(), "c1", simEpoch.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 3, w.ResponseCount)
	assert.InDelta(t, 1.0, w.ConsensusLevel, 1e-9)
	assert.Equal(t, 3, w.KindCounts[types.ResponseTakeAction])
	assert.Empty(t, w.RecommendedActions)
}

func TestSplitPopulationEntropy(t *testing.T) {
	// Weights: take_action 0.8+0.6=1.4, provide_feedback 0.5,
	// seek_clarification 0.5. Normalized entropy over six kinds gives
	// consensus ≈ 0.4597.
	agg, _ := seedStore(t, []types.Response{
		{AgentID: "a", Kind: types.ResponseTakeAction, Confidence: 0.8},
		{AgentID: "b", Kind: types.ResponseTakeAction, Confidence: 0.6},
		{AgentID: "c", Kind: types.ResponseProvideFeedback, Confidence: 0.5},
		{AgentID: "d", Kind: types.ResponseSeekClarification, Confidence: 0.5},
	})
	w, err := agg.ForCommunication(context.Background(), "c1", simEpoch.Add(2*time.Hour))
	require.NoError(t, err)
	assert.InDelta(t, 0.4597, w.ConsensusLevel, 0.001)
	// Low consensus with enough respondents asks for a catchball round.
	assert.Contains(t, w.RecommendedActions, types.ActionConveneCatchball)
}

func TestConfidenceDistributionBuckets(t *testing.T) {
	agg, _ := seedStore(t, []types.Response{
		{AgentID: "a", Kind: types.ResponseTakeAction, Confidence: 0.2},
		{AgentID: "b", Kind: types.ResponseTakeAction, Confidence: 0.5},
		{AgentID: "c", Kind: types.ResponseTakeAction, Confidence: 0.7},
		{AgentID: "d", Kind: types.ResponseTakeAction, Confidence: 0.95},
	})
	w, err := agg.ForCommunication(context.Background(), "c1", simEpoch)
	require.NoError(t, err)
	assert.Equal(t, 1, w.Confidence.Low)
	assert.Equal(t, 1, w.Confidence.Medium)
	assert.Equal(t, 2, w.Confidence.High)
}

func TestResourceConflictRecommendsReduceScope(t *testing.T) {
	agg, _ := seedStore(t, []types.Response{
		{AgentID: "a", Kind: types.ResponseTakeAction, Confidence: 0.9},
		{AgentID: "b", Kind: types.ResponseProvideFeedback, Confidence: 0.8,
			Hesitation: []types.HesitationMarker{types.MarkerCapacitySaturation}},
		{AgentID: "c", Kind: types.ResponseProvideFeedback, Confidence: 0.8,
			Hesitation: []types.HesitationMarker{types.MarkerResourceConstraint, types.MarkerCapacitySaturation}},
	})
	w, err := agg.ForCommunication(context.Background(), "c1", simEpoch)
	require.NoError(t, err)
	require.Len(t, w.PriorityConflicts, 1)
	assert.Equal(t, types.ConflictResource, w.PriorityConflicts[0].Kind)
	assert.Equal(t, []string{"b", "c"}, w.PriorityConflicts[0].AgentIDs)
	assert.Contains(t, w.RecommendedActions, types.ActionReduceScope)
}

func TestCompliantExecutorsAreNotAResourceConflict(t *testing.T) {
	// Busy agents that still take action are compliance, not refusal.
	agg, _ := seedStore(t, []types.Response{
		{AgentID: "a", Kind: types.ResponseTakeAction, Confidence: 0.8,
			Hesitation: []types.HesitationMarker{types.MarkerResourceConstraint}},
		{AgentID: "b", Kind: types.ResponseTakeAction, Confidence: 0.8,
			Hesitation: []types.HesitationMarker{types.MarkerCapacitySaturation}},
	})
	w, err := agg.ForCommunication(context.Background(), "c1", simEpoch)
	require.NoError(t, err)
	assert.Empty(t, w.PriorityConflicts)
	assert.NotContains(t, w.RecommendedActions, types.ActionReduceScope)
}

func TestTimelineConflictAgainstDeadline(t *testing.T) {
	store := tracking.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.RecordCommunication(ctx, types.Communication{
		ID:           "c1",
		SenderID:     "ceo",
		RecipientIDs: []string{"a", "b"},
		Kind:         types.KindRecommendation,
		Priority:     4,
		ThreadID:     "t1",
		CreatedAt:    simEpoch,
		Deadline:     simEpoch.Add(24 * time.Hour),
	}))
	require.NoError(t, store.RecordResponse(ctx, types.Response{
		ID: "r1", CommunicationID: "c1", ThreadID: "t1", AgentID: "a",
		Kind: types.ResponseTakeAction, Confidence: 0.8,
		CreatedAt: simEpoch.Add(time.Hour), StatedLatency: 48 * time.Hour,
	}))
	require.NoError(t, store.RecordResponse(ctx, types.Response{
		ID: "r2", CommunicationID: "c1", ThreadID: "t1", AgentID: "b",
		Kind: types.ResponseTakeAction, Confidence: 0.8,
		CreatedAt: simEpoch.Add(time.Hour), StatedLatency: time.Hour,
	}))

	agg := NewAggregator(store, zaptest.NewLogger(t))
	w, err := agg.ForCommunication(ctx, "c1", simEpoch.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, w.PriorityConflicts, 1)
	assert.Equal(t, types.ConflictTimeline, w.PriorityConflicts[0].Kind)
	assert.Equal(t, []string{"a"}, w.PriorityConflicts[0].AgentIDs)
	assert.Contains(t, w.RecommendedActions, types.ActionScheduleReview)
}

func TestApproachConflictOnConflictingKinds(t *testing.T) {
	agg, _ := seedStore(t, []types.Response{
		{AgentID: "a", Kind: types.ResponseTakeAction, Confidence: 0.9},
		{AgentID: "b", Kind: types.ResponseEscalate, Confidence: 0.9},
	})
	w, err := agg.ForCommunication(context.Background(), "c1", simEpoch)
	require.NoError(t, err)
	require.Len(t, w.PriorityConflicts, 1)
	assert.Equal(t, types.ConflictApproach, w.PriorityConflicts[0].Kind)
	assert.Equal(t, []string{"a", "b"}, w.PriorityConflicts[0].AgentIDs)
	assert.Contains(t, w.RecommendedActions, types.ActionConveneCatchball)
}

func TestApproachConflictNeedsConfidentCamps(t *testing.T) {
	// A hesitant objector does not make a camp.
	agg, _ := seedStore(t, []types.Response{
		{AgentID: "a", Kind: types.ResponseTakeAction, Confidence: 0.9},
		{AgentID: "b", Kind: types.ResponseSeekClarification, Confidence: 0.3},
	})
	w, err := agg.ForCommunication(context.Background(), "c1", simEpoch)
	require.NoError(t, err)
	assert.Empty(t, w.PriorityConflicts)

	// Confident clarification-seekers do.
	agg, _ = seedStore(t, []types.Response{
		{AgentID: "a", Kind: types.ResponseTakeAction, Confidence: 0.9},
		{AgentID: "b", Kind: types.ResponseSeekClarification, Confidence: 0.7},
	})
	w, err = agg.ForCommunication(context.Background(), "c1", simEpoch)
	require.NoError(t, err)
	require.Len(t, w.PriorityConflicts, 1)
	assert.Equal(t, types.ConflictApproach, w.PriorityConflicts[0].Kind)
}

func TestNeedsConsensusCascades(t *testing.T) {
	agg, _ := seedStore(t, []types.Response{
		{AgentID: "a", Kind: types.ResponseProvideFeedback, Confidence: 0.8,
			Hesitation: []types.HesitationMarker{types.MarkerNeedsConsensus}},
		{AgentID: "b", Kind: types.ResponseProvideFeedback, Confidence: 0.8,
			Hesitation: []types.HesitationMarker{types.MarkerNeedsConsensus}},
	})
	w, err := agg.ForCommunication(context.Background(), "c1", simEpoch)
	require.NoError(t, err)
	assert.Contains(t, w.RecommendedActions, types.ActionCascadeThroughLeads)
}

func TestHighConsensusWithHesitationReaffirms(t *testing.T) {
	agg, _ := seedStore(t, []types.Response{
		{AgentID: "a", Kind: types.ResponseTakeAction, Confidence: 0.9},
		{AgentID: "b", Kind: types.ResponseTakeAction, Confidence: 0.9,
			Hesitation: []types.HesitationMarker{types.MarkerUncertainty}},
		{AgentID: "c", Kind: types.ResponseTakeAction, Confidence: 0.8},
	})
	w, err := agg.ForCommunication(context.Background(), "c1", simEpoch)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, w.ConsensusLevel, 0.8)
	assert.Equal(t, []types.RecommendedAction{types.ActionReaffirmPriority}, w.RecommendedActions)
}

func TestTopicScopeSpansCommunications(t *testing.T) {
	store := tracking.NewMemoryStore()
	ctx := context.Background()
	for i, goal := range []string{"q2-focus", "q2-focus", "other"} {
		require.NoError(t, store.RecordCommunication(ctx, types.Communication{
			ID: fmt.Sprintf("c%d", i), SenderID: "ceo", RecipientIDs: []string{"a"},
			Kind: types.KindNudge, Priority: 3, StrategicGoal: goal,
			ThreadID: fmt.Sprintf("t%d", i), CreatedAt: simEpoch,
		}))
		require.NoError(t, store.RecordResponse(ctx, types.Response{
			ID: fmt.Sprintf("r%d", i), CommunicationID: fmt.Sprintf("c%d", i),
			ThreadID: fmt.Sprintf("t%d", i), AgentID: "a",
			Kind: types.ResponseTakeAction, Confidence: 0.8, CreatedAt: simEpoch,
		}))
	}

	agg := NewAggregator(store, zaptest.NewLogger(t))
	w, err := agg.ForTopic(ctx, "q2-focus", simEpoch)
	require.NoError(t, err)
	assert.Equal(t, "topic", w.Scope)
	assert.Equal(t, 2, w.ResponseCount)

	_, err = agg.ForTopic(ctx, "unknown-goal", simEpoch)
	assert.Equal(t, types.CodeNotFound, types.CodeOf(err))
}

func TestEmptyPopulation(t *testing.T) {
	agg, _ := seedStore(t, nil)
	w, err := agg.ForCommunication(context.Background(), "c1", simEpoch)
	require.NoError(t, err)
	assert.Zero(t, w.ResponseCount)
	assert.Zero(t, w.ConsensusLevel)
	assert.Empty(t, w.RecommendedActions)

	_, err = agg.ForCommunication(context.Background(), "missing", simEpoch)
	assert.Equal(t, types.CodeNotFound, types.CodeOf(err))
}
