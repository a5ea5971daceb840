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
	"bytes"
	"context"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/teradata-labs/ripple/pkg/observability"
	"github.com/teradata-labs/ripple/pkg/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var epoch = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// testParams runs as fast as possible with chatter off and short simulated
// delivery delays.
func testParams(seed int64) types.Parameters {
	p := types.DefaultParameters()
	p.AccelerationFactor = math.Inf(1)
	p.Seed = seed
	p.Seeded = true
	p.CommunicationFrequency = 0
	p.ResponseDelayMin = 2 * time.Minute
	p.ResponseDelayMax = 10 * time.Minute
	p.WorkerPoolSize = 2
	p.RequestDeadline = 200 * time.Millisecond
	return p
}

func testAgent(id, dept string, mut func(*types.Agent)) types.Agent {
	a := types.Agent{
		ID: id,
		Profile: types.ProfessionalProfile{
			Department:       dept,
			Role:             "contributor",
			Seniority:        2,
			WorkloadCapacity: 0.8,
		},
		Personality: types.PersonalityProfile{
			RiskTolerance:           0.5,
			AuthorityResponse:       0.5,
			WorkloadSensitivity:     0.5,
			CommunicationStyle:      0.5,
			ChangeAdaptability:      0.5,
			CollaborationPreference: 0.5,
		},
		Workload:     0.4,
		Stress:       0.2,
		Satisfaction: 0.6,
	}
	if mut != nil {
		mut(&a)
	}
	return a
}

func ceo() types.Agent {
	return testAgent("ceo", "exec", func(a *types.Agent) {
		a.Profile.Role = "ceo"
		a.Profile.Seniority = 5
	})
}

func startKernel(t *testing.T, agents []types.Agent, params types.Parameters) *Kernel {
	t.Helper()
	k := New(Config{Epoch: epoch, Logger: zaptest.NewLogger(t)})
	require.NoError(t, k.Start(context.Background(), "acme", agents, params))
	t.Cleanup(func() { _ = k.Close() })
	return k
}

func waitResponses(t *testing.T, k *Kernel, communicationID string, n int) []types.Response {
	t.Helper()
	var out []types.Response
	require.Eventually(t, func() bool {
		rs, err := k.store.ResponsesForCommunication(context.Background(), communicationID)
		if err != nil {
			return false
		}
		out = rs
		return len(rs) >= n
	}, 10*time.Second, 5*time.Millisecond)
	return out
}

func TestSingleNudgeCompliantRecipient(t *testing.T) {
	compliant := testAgent("riley", "eng", func(a *types.Agent) {
		a.Personality.AuthorityResponse = 0.9
		a.Personality.ChangeAdaptability = 0.8
		a.Workload = 0.3
		a.Stress = 0.1
	})
	k := startKernel(t, []types.Agent{ceo(), compliant}, testParams(1))
	ctx := context.Background()

	c, err := k.Send(ctx, SendRequest{
		SenderID:     "ceo",
		RecipientIDs: []string{"riley"},
		Kind:         types.KindNudge,
		Priority:     3,
		Subject:      "Adopt the new review flow",
	})
	require.NoError(t, err)

	rs := waitResponses(t, k, c.ID, 1)
	require.Len(t, rs, 1)
	assert.Equal(t, types.ResponseTakeAction, rs[0].Kind)
	assert.GreaterOrEqual(t, rs[0].Confidence, 0.7)
	assert.LessOrEqual(t, rs[0].CreatedAt.Sub(c.CreatedAt), time.Hour,
		"compliant recipient responds within a simulated hour")

	rec, err := k.store.Delivery(ctx, c.ID, "riley")
	require.NoError(t, err)
	assert.Equal(t, types.DeliveryDelivered, rec.Status)
	assert.Equal(t, 1, rec.Attempts)

	// The ladder closed without any promotion.
	require.Eventually(t, func() bool {
		st, err := k.store.Escalation(ctx, c.ThreadID, "riley")
		return err == nil && st.Terminal()
	}, 5*time.Second, 5*time.Millisecond)
	st, err := k.store.Escalation(ctx, c.ThreadID, "riley")
	require.NoError(t, err)
	assert.Equal(t, types.LevelNudge, st.TerminalLevel)
	assert.Len(t, st.CommunicationIDs, 1)

	w, err := k.Wisdom(ctx, c.ID)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, w.ConsensusLevel, 1e-9)
}

func TestEscalationChain(t *testing.T) {
	params := testParams(2)
	params.Escalation = types.EscalationThresholds{NudgesIgnored: 3, RecommendationsIgnored: 2}
	params.ReminderInterval = time.Hour

	stubborn := testAgent("quinn", "eng", func(a *types.Agent) {
		a.Personality.AuthorityResponse = 0.1
		a.Personality.ChangeAdaptability = 0.1
	})
	k := startKernel(t, []types.Agent{ceo(), stubborn}, params)
	ctx := context.Background()

	c, err := k.Send(ctx, SendRequest{
		SenderID:     "ceo",
		RecipientIDs: []string{"quinn"},
		Kind:         types.KindNudge,
		Priority:     3,
		Subject:      "Migrate to the shared platform",
	})
	require.NoError(t, err)

	var st types.EscalationState
	require.Eventually(t, func() bool {
		s, err := k.store.Escalation(ctx, c.ThreadID, "quinn")
		if err != nil {
			return false
		}
		st = s
		return s.Terminal()
	}, 15*time.Second, 5*time.Millisecond)

	assert.Equal(t, types.LevelDirectOrder, st.TerminalLevel)
	assert.False(t, st.ComplianceFailure, "the direct order was finally obeyed")
	assert.Len(t, st.CommunicationIDs, 3)

	thread, err := k.store.Thread(ctx, c.ThreadID)
	require.NoError(t, err)
	require.Len(t, thread, 3, "nudge, recommendation, direct order")
	assert.Equal(t, types.KindNudge, thread[0].Kind)
	assert.Equal(t, types.KindRecommendation, thread[1].Kind)
	assert.Equal(t, types.KindDirectOrder, thread[2].Kind)

	rs, err := k.store.ResponsesForThread(ctx, c.ThreadID)
	require.NoError(t, err)
	require.Len(t, rs, 6, "3 ignored nudges, 2 ignored recommendations, 1 execution")
	ignores := 0
	for _, r := range rs {
		if r.Kind == types.ResponseIgnore {
			ignores++
		}
	}
	assert.Equal(t, 5, ignores)
	assert.Equal(t, types.ResponseTakeAction, rs[len(rs)-1].Kind)

	// Agent scalars stay in range through the whole ordeal.
	for _, a := range k.Agents() {
		assert.GreaterOrEqual(t, a.Stress, 0.0)
		assert.LessOrEqual(t, a.Stress, 1.0)
		assert.GreaterOrEqual(t, a.Workload, 0.0)
		assert.LessOrEqual(t, a.Workload, 1.0)
		assert.GreaterOrEqual(t, a.Satisfaction, 0.0)
		assert.LessOrEqual(t, a.Satisfaction, 1.0)
	}
}

func TestConflictDetectionAcrossDepartments(t *testing.T) {
	saturated := func(id string) types.Agent {
		return testAgent(id, "eng", func(a *types.Agent) { a.Workload = 0.9 })
	}
	agents := []types.Agent{
		ceo(),
		saturated("eng-a"), saturated("eng-b"), saturated("eng-c"),
		testAgent("sales-d", "sales", func(a *types.Agent) {
			a.Personality.AuthorityResponse = 0.9
			a.Personality.ChangeAdaptability = 0.8
			a.Workload = 0.3
		}),
		testAgent("sales-e", "sales", func(a *types.Agent) {
			a.Personality.RiskTolerance = 0.1
		}),
	}
	k := startKernel(t, agents, testParams(3))
	ctx := context.Background()

	c, err := k.Send(ctx, SendRequest{
		SenderID:      "ceo",
		RecipientIDs:  []string{"eng-a", "eng-b", "eng-c", "sales-d", "sales-e"},
		Kind:          types.KindRecommendation,
		Priority:      3,
		Subject:       "Ship the migration this quarter",
		StrategicGoal: "platform-migration",
	})
	require.NoError(t, err)
	waitResponses(t, k, c.ID, 5)

	w, err := k.Wisdom(ctx, c.ID)
	require.NoError(t, err)
	assert.LessOrEqual(t, w.ConsensusLevel, 0.5)
	assert.GreaterOrEqual(t, w.Hesitation[types.MarkerCapacitySaturation], 3)

	kinds := make(map[types.ConflictKind]bool)
	for _, pc := range w.PriorityConflicts {
		kinds[pc.Kind] = true
	}
	assert.True(t, kinds[types.ConflictResource], "three saturated respondents are a resource conflict")
	assert.Contains(t, w.RecommendedActions, types.ActionReduceScope)

	// The same reading is available by topic.
	topic, err := k.Wisdom(ctx, "platform-migration")
	require.NoError(t, err)
	assert.Equal(t, "topic", topic.Scope)
	assert.Equal(t, 5, topic.ResponseCount)
}

func TestTimeAccelerationCorrectness(t *testing.T) {
	params := testParams(4)
	params.AccelerationFactor = 100_000
	params.ResponseDelayMin = 2 * time.Hour
	params.ResponseDelayMax = 4 * time.Hour

	compliant := testAgent("riley", "eng", func(a *types.Agent) {
		a.Personality.AuthorityResponse = 0.9
		a.Personality.ChangeAdaptability = 0.8
	})
	k := startKernel(t, []types.Agent{ceo(), compliant}, params)

	c, err := k.Send(context.Background(), SendRequest{
		SenderID:     "ceo",
		RecipientIDs: []string{"riley"},
		Kind:         types.KindNudge,
		Subject:      "Quarterly planning input",
	})
	require.NoError(t, err)

	rs := waitResponses(t, k, c.ID, 1)
	dt := rs[0].CreatedAt.Sub(c.CreatedAt)
	assert.GreaterOrEqual(t, dt, 4*time.Hour, "delivery delay plus reply latency each start at the window floor")
	assert.LessOrEqual(t, dt, 7*time.Hour)
}

func TestBackpressure(t *testing.T) {
	params := testParams(5)
	params.QueueCapacity = 4
	params.RequestDeadline = 50 * time.Millisecond

	agents := []types.Agent{ceo()}
	recipients := make([]string, 0, 4)
	for i := 0; i < 4; i++ {
		id := fmt.Sprintf("r%d", i)
		agents = append(agents, testAgent(id, "eng", nil))
		recipients = append(recipients, id)
	}
	k := startKernel(t, agents, params)
	k.dist.Pause()
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := k.Send(ctx, SendRequest{
			SenderID:     "ceo",
			RecipientIDs: recipients,
			Kind:         types.KindNudge,
			Subject:      fmt.Sprintf("batch %d", i),
		})
		require.NoError(t, err)
	}

	_, err := k.Send(ctx, SendRequest{
		SenderID:     "ceo",
		RecipientIDs: recipients,
		Kind:         types.KindNudge,
		Subject:      "one too many",
	})
	assert.Equal(t, types.CodeOverloaded, types.CodeOf(err))

	// The rejected communication has no delivery in flight: every record
	// failed, none pending or delivered.
	var lastSend types.SimulationEvent
	for _, e := range k.Events(0) {
		if e.Kind == types.EventSend {
			lastSend = e
		}
	}
	require.NotEmpty(t, lastSend.CommunicationID)
	recs, err := k.store.DeliveriesForCommunication(ctx, lastSend.CommunicationID)
	require.NoError(t, err)
	require.Len(t, recs, 4)
	for _, rec := range recs {
		assert.Equal(t, types.DeliveryFailed, rec.Status)
	}
}

func TestStopCancelsInFlightDeliveries(t *testing.T) {
	params := testParams(6)
	params.AccelerationFactor = 1 // essentially frozen time
	params.ResponseDelayMin = 10 * time.Hour
	params.ResponseDelayMax = 20 * time.Hour

	k := startKernel(t, []types.Agent{ceo(), testAgent("quinn", "eng", nil)}, params)
	ctx := context.Background()

	ids := make([]string, 0, 6)
	for i := 0; i < 6; i++ {
		c, err := k.Send(ctx, SendRequest{
			SenderID:     "ceo",
			RecipientIDs: []string{"quinn"},
			Kind:         types.KindNudge,
			Subject:      fmt.Sprintf("slow %d", i),
		})
		require.NoError(t, err)
		ids = append(ids, c.ID)
	}

	k.Stop()
	k.Stop() // idempotent

	stats, err := k.store.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalResponses, "no response is created after stop returns")
	for _, id := range ids {
		rec, err := k.store.Delivery(ctx, id, "quinn")
		require.NoError(t, err)
		assert.Equal(t, types.DeliveryCancelled, rec.Status, id)
	}

	status, err := k.Status(ctx)
	require.NoError(t, err)
	assert.False(t, status.Running)
}

func TestDeterministicRuns(t *testing.T) {
	params := testParams(2)
	params.Escalation = types.EscalationThresholds{NudgesIgnored: 3, RecommendationsIgnored: 2}
	params.ReminderInterval = time.Hour
	params.WorkerPoolSize = 1

	run := func() ([]types.Communication, []types.Response) {
		stubborn := testAgent("quinn", "eng", func(a *types.Agent) {
			a.Personality.AuthorityResponse = 0.1
			a.Personality.ChangeAdaptability = 0.1
		})
		k := startKernel(t, []types.Agent{ceo(), stubborn}, params)
		ctx := context.Background()
		c, err := k.Send(ctx, SendRequest{
			SenderID:     "ceo",
			RecipientIDs: []string{"quinn"},
			Kind:         types.KindNudge,
			Priority:     3,
			Subject:      "Migrate to the shared platform",
		})
		require.NoError(t, err)
		require.Eventually(t, func() bool {
			s, err := k.store.Escalation(ctx, c.ThreadID, "quinn")
			return err == nil && s.Terminal()
		}, 15*time.Second, 5*time.Millisecond)

		thread, err := k.store.Thread(ctx, c.ThreadID)
		require.NoError(t, err)
		rs, err := k.store.ResponsesForThread(ctx, c.ThreadID)
		require.NoError(t, err)
		k.Stop()
		return thread, rs
	}

	thread1, rs1 := run()
	thread2, rs2 := run()
	assert.Equal(t, thread1, thread2, "identical seeds replay identical communications")
	assert.Equal(t, rs1, rs2, "identical seeds replay identical responses")
}

func TestEmptyRecipientListIsANoOp(t *testing.T) {
	k := startKernel(t, []types.Agent{ceo()}, testParams(7))
	ctx := context.Background()

	c, err := k.Send(ctx, SendRequest{
		SenderID: "ceo",
		Kind:     types.KindNudge,
		Subject:  "shouting into the void",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, c.ID)

	recs, err := k.store.DeliveriesForCommunication(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, recs)
	stats, err := k.store.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalDeliveries)
}

func TestLifecycleConflicts(t *testing.T) {
	k := New(Config{Epoch: epoch, Logger: zaptest.NewLogger(t)})
	t.Cleanup(func() { _ = k.Close() })

	// Send before start.
	_, err := k.Send(context.Background(), SendRequest{SenderID: "ceo", Kind: types.KindNudge})
	assert.Equal(t, types.CodeConflict, types.CodeOf(err))

	// Stop before start is a no-op.
	k.Stop()

	require.NoError(t, k.Start(context.Background(), "acme", []types.Agent{ceo()}, testParams(8)))
	err = k.Start(context.Background(), "acme", []types.Agent{ceo()}, testParams(8))
	assert.Equal(t, types.CodeConflict, types.CodeOf(err))

	// Unknown agents are not_found.
	_, err = k.Send(context.Background(), SendRequest{SenderID: "ghost", Kind: types.KindNudge})
	assert.Equal(t, types.CodeNotFound, types.CodeOf(err))
	_, err = k.Send(context.Background(), SendRequest{
		SenderID:     "ceo",
		RecipientIDs: []string{"ghost"},
		Kind:         types.KindNudge,
	})
	assert.Equal(t, types.CodeNotFound, types.CodeOf(err))
}

func TestStatusAndMetrics(t *testing.T) {
	compliant := testAgent("riley", "eng", func(a *types.Agent) {
		a.Personality.AuthorityResponse = 0.9
		a.Personality.ChangeAdaptability = 0.8
		a.Workload = 0.3
	})
	k := startKernel(t, []types.Agent{ceo(), compliant}, testParams(9))
	ctx := context.Background()

	status, err := k.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.Running)
	assert.Equal(t, "acme", status.OrganizationID)
	assert.Equal(t, 2, status.AgentCount)

	c, err := k.Send(ctx, SendRequest{
		SenderID:     "ceo",
		RecipientIDs: []string{"riley"},
		Kind:         types.KindNudge,
		Subject:      "metrics fodder",
	})
	require.NoError(t, err)
	waitResponses(t, k, c.ID, 1)

	m, err := k.Metrics(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, m.ResponseRate, 1e-9)
	assert.Zero(t, m.ComplianceFailures)
	assert.Greater(t, m.AverageConfidence, 0.7)
	assert.Greater(t, m.AverageResponseLatency, time.Duration(0))
	assert.Contains(t, m.ByDepartment, "eng")
	assert.InDelta(t, 1.0, m.ByDepartment["eng"].ResponseRate, 1e-9)

	// Metrics and status stay queryable after stop.
	k.Stop()
	m, err = k.Metrics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, m.ResponseKindCounts[types.ResponseTakeAction])
	status, err = k.Status(ctx)
	require.NoError(t, err)
	assert.False(t, status.Running)
	assert.Equal(t, 1, status.TotalResponses)
}

func TestBackgroundChatter(t *testing.T) {
	params := testParams(10)
	params.CommunicationFrequency = 1.0

	agents := []types.Agent{ceo(), testAgent("a", "eng", nil), testAgent("b", "eng", nil)}
	k := startKernel(t, agents, params)
	ctx := context.Background()

	require.Eventually(t, func() bool {
		stats, err := k.store.Stats(ctx)
		return err == nil && stats.TotalCommunications >= 2
	}, 10*time.Second, 5*time.Millisecond)
	k.Stop()

	sawChatter := false
	for _, e := range k.Events(0) {
		if e.Kind == types.EventChatter {
			sawChatter = true
			comm, err := k.store.Communication(ctx, e.CommunicationID)
			require.NoError(t, err)
			assert.Equal(t, types.KindConsultation, comm.Kind)
			assert.Equal(t, 2, comm.Priority)
			assert.NotEqual(t, comm.SenderID, comm.RecipientIDs[0])
		}
	}
	assert.True(t, sawChatter)
}

// recordingTracer counts metric points by name.
type recordingTracer struct {
	observability.Tracer
	mu     sync.Mutex
	points map[string]int
}

func newRecordingTracer() *recordingTracer {
	return &recordingTracer{Tracer: observability.NewNoOpTracer(), points: make(map[string]int)}
}

func (r *recordingTracer) RecordMetric(name string, _ float64, _ map[string]string) {
	r.mu.Lock()
	r.points[name]++
	r.mu.Unlock()
}

func (r *recordingTracer) metricCount(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.points[name]
}

func TestRecurringSchedulerEvents(t *testing.T) {
	tracer := newRecordingTracer()
	k := New(Config{Epoch: epoch, Logger: zaptest.NewLogger(t), Tracer: tracer})
	require.NoError(t, k.Start(context.Background(), "acme",
		[]types.Agent{ceo(), testAgent("riley", "eng", nil)}, testParams(12)))
	t.Cleanup(func() { _ = k.Close() })

	// The minute tick publishes pipeline gauges; end-of-day fires at 17:00
	// and daily maintenance at the next 09:00 of simulated time.
	require.Eventually(t, func() bool {
		return tracer.metricCount("simulation.queue_depth") >= 10 &&
			tracer.metricCount("simulation.communications_total") >= 1 &&
			tracer.metricCount("population.average_stress") >= 1
	}, 10*time.Second, 5*time.Millisecond)
}

func TestZeroStressThresholdStressesEveryAgent(t *testing.T) {
	params := testParams(13)
	params.StressThreshold = 0

	calm := testAgent("riley", "eng", func(a *types.Agent) {
		a.Personality.AuthorityResponse = 0.9
		a.Personality.ChangeAdaptability = 0.8
		a.Stress = 0
		a.Workload = 0.3
	})
	k := startKernel(t, []types.Agent{ceo(), calm}, params)

	c, err := k.Send(context.Background(), SendRequest{
		SenderID:     "ceo",
		RecipientIDs: []string{"riley"},
		Kind:         types.KindNudge,
		Subject:      "Adopt the new review flow",
	})
	require.NoError(t, err)

	rs := waitResponses(t, k, c.ID, 1)
	require.Len(t, rs, 1)
	assert.Equal(t, types.ResponseEscalate, rs[0].Kind,
		"a zero threshold marks even a calm compliant agent as stressed")
}

func TestZeroCollaborationBonusGivesNoStressRelief(t *testing.T) {
	run := func(bonus float64) float64 {
		params := testParams(14)
		params.CollaborationBonus = bonus
		friendly := testAgent("riley", "eng", func(a *types.Agent) {
			a.Personality.AuthorityResponse = 0.9
			a.Personality.ChangeAdaptability = 0.8
			a.Relationships = map[string]float64{"ceo": 1.0}
		})
		k := startKernel(t, []types.Agent{ceo(), friendly}, params)

		c, err := k.Send(context.Background(), SendRequest{
			SenderID:     "ceo",
			RecipientIDs: []string{"riley"},
			Kind:         types.KindNudge,
			Priority:     5,
			Subject:      "All hands on the launch",
		})
		require.NoError(t, err)
		rs := waitResponses(t, k, c.ID, 1)
		require.Equal(t, types.ResponseTakeAction, rs[0].Kind)

		// The workload bump lands in the same decision application as the
		// stress cost.
		var stress float64
		require.Eventually(t, func() bool {
			for _, a := range k.Agents() {
				if a.ID == "riley" && a.Workload > 0.45 {
					stress = a.Stress
					return true
				}
			}
			return false
		}, 5*time.Second, 5*time.Millisecond)
		k.Stop()
		return stress
	}

	withBonus := run(0.5)
	withoutBonus := run(0)
	assert.InDelta(t, 0.225, withBonus, 1e-9)
	assert.InDelta(t, 0.25, withoutBonus, 1e-9, "the full stress cost lands with the bonus off")
	assert.Greater(t, withoutBonus, withBonus)
}

func TestSingleIgnorePromotesEachLevel(t *testing.T) {
	params := testParams(15)
	params.Escalation = types.EscalationThresholds{NudgesIgnored: 1, RecommendationsIgnored: 1}
	params.ReminderInterval = time.Hour

	stubborn := testAgent("quinn", "eng", func(a *types.Agent) {
		a.Personality.AuthorityResponse = 0.1
		a.Personality.ChangeAdaptability = 0.1
	})
	k := startKernel(t, []types.Agent{ceo(), stubborn}, params)
	ctx := context.Background()

	c, err := k.Send(ctx, SendRequest{
		SenderID:     "ceo",
		RecipientIDs: []string{"quinn"},
		Kind:         types.KindNudge,
		Priority:     3,
		Subject:      "Close out the audit items",
	})
	require.NoError(t, err)

	var st types.EscalationState
	require.Eventually(t, func() bool {
		s, err := k.store.Escalation(ctx, c.ThreadID, "quinn")
		if err != nil {
			return false
		}
		st = s
		return s.Terminal()
	}, 15*time.Second, 5*time.Millisecond)

	assert.Equal(t, types.LevelDirectOrder, st.TerminalLevel)
	assert.False(t, st.ComplianceFailure)
	require.Len(t, st.CommunicationIDs, 3, "each single ignore promotes immediately, no reminders")

	thread, err := k.store.Thread(ctx, c.ThreadID)
	require.NoError(t, err)
	require.Len(t, thread, 3)
	assert.Equal(t, types.KindRecommendation, thread[1].Kind)
	assert.Equal(t, types.KindDirectOrder, thread[2].Kind)

	rs, err := k.store.ResponsesForThread(ctx, c.ThreadID)
	require.NoError(t, err)
	require.Len(t, rs, 3, "one ignored nudge, one ignored recommendation, one execution")
	assert.Equal(t, types.ResponseIgnore, rs[0].Kind)
	assert.Equal(t, types.ResponseIgnore, rs[1].Kind)
	assert.Equal(t, types.ResponseTakeAction, rs[2].Kind)
}

func TestTTLExpiryCutsOffSlowReplies(t *testing.T) {
	params := testParams(16)
	params.ResponseDelayMin = 2 * time.Hour
	params.ResponseDelayMax = 4 * time.Hour

	compliant := testAgent("riley", "eng", func(a *types.Agent) {
		a.Personality.AuthorityResponse = 0.9
		a.Personality.ChangeAdaptability = 0.8
	})
	k := startKernel(t, []types.Agent{ceo(), compliant}, params)
	ctx := context.Background()

	c, err := k.Send(ctx, SendRequest{
		SenderID:     "ceo",
		RecipientIDs: []string{"riley"},
		Kind:         types.KindNudge,
		Subject:      "Yesterday's numbers",
		TTL:          30 * time.Minute,
	})
	require.NoError(t, err)

	rs := waitResponses(t, k, c.ID, 1)
	require.Len(t, rs, 1)
	assert.Equal(t, types.ResponseIgnore, rs[0].Kind, "a reply past the ttl is recorded as an ignore")
	assert.Empty(t, rs[0].Content)
	assert.Equal(t, types.ActionNone, rs[0].ActionStatus)

	require.Eventually(t, func() bool {
		for _, e := range k.Events(0) {
			if e.Kind == types.EventTTLExpired && e.CommunicationID == c.ID {
				return true
			}
		}
		return false
	}, 5*time.Second, 5*time.Millisecond)

	// The ladder closed at its current level instead of promoting.
	var st types.EscalationState
	require.Eventually(t, func() bool {
		s, err := k.store.Escalation(ctx, c.ThreadID, "riley")
		if err != nil {
			return false
		}
		st = s
		return s.Terminal()
	}, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, types.LevelNudge, st.TerminalLevel)
	assert.Len(t, st.CommunicationIDs, 1)

	thread, err := k.store.Thread(ctx, c.ThreadID)
	require.NoError(t, err)
	assert.Len(t, thread, 1, "no follow-up was injected after expiry")
}

func TestSnapshotWritesJSON(t *testing.T) {
	k := startKernel(t, []types.Agent{ceo()}, testParams(11))

	var buf bytes.Buffer
	require.NoError(t, k.Snapshot(context.Background(), &buf))
	assert.Contains(t, buf.String(), `"status"`)
	assert.Contains(t, buf.String(), `"agents"`)
}
