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

package tracking

import (
	"context"
	"sync"

	"github.com/teradata-labs/ripple/pkg/types"
)

type deliveryKey struct {
	communicationID string
	recipientID     string
}

type escalationKey struct {
	threadID    string
	recipientID string
}

// MemoryStore is the in-process Store used for ephemeral runs and tests.
type MemoryStore struct {
	mu sync.RWMutex

	communications map[string]types.Communication
	commOrder      []string

	deliveries    map[deliveryKey]types.DeliveryRecord
	deliveryOrder []deliveryKey

	responses []types.Response

	escalations map[escalationKey]types.EscalationState
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		communications: make(map[string]types.Communication),
		deliveries:     make(map[deliveryKey]types.DeliveryRecord),
		escalations:    make(map[escalationKey]types.EscalationState),
	}
}

// RecordCommunication appends one communication.
func (s *MemoryStore) RecordCommunication(_ context.Context, c types.Communication) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.communications[c.ID]; ok {
		return types.Errorf(types.CodeConflict, "communication %s already recorded", c.ID)
	}
	s.communications[c.ID] = c
	s.commOrder = append(s.commOrder, c.ID)
	return nil
}

// Communication fetches one communication.
func (s *MemoryStore) Communication(_ context.Context, id string) (types.Communication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.communications[id]
	if !ok {
		return types.Communication{}, types.Errorf(types.CodeNotFound, "communication %s not found", id)
	}
	return c, nil
}

// Thread returns a thread's communications in insertion order.
func (s *MemoryStore) Thread(_ context.Context, threadID string) ([]types.Communication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.Communication
	for _, id := range s.commOrder {
		if c := s.communications[id]; c.ThreadID == threadID {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return nil, types.Errorf(types.CodeNotFound, "thread %s not found", threadID)
	}
	return out, nil
}

// UpsertDelivery writes one delivery record.
func (s *MemoryStore) UpsertDelivery(_ context.Context, d types.DeliveryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := deliveryKey{d.CommunicationID, d.RecipientID}
	if _, ok := s.deliveries[k]; !ok {
		s.deliveryOrder = append(s.deliveryOrder, k)
	}
	s.deliveries[k] = d
	return nil
}

// Delivery fetches one delivery record.
func (s *MemoryStore) Delivery(_ context.Context, communicationID, recipientID string) (types.DeliveryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.deliveries[deliveryKey{communicationID, recipientID}]
	if !ok {
		return types.DeliveryRecord{}, types.Errorf(types.CodeNotFound,
			"no delivery record for communication %s recipient %s", communicationID, recipientID)
	}
	return d, nil
}

// DeliveriesForCommunication lists a communication's delivery records.
func (s *MemoryStore) DeliveriesForCommunication(_ context.Context, communicationID string) ([]types.DeliveryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.DeliveryRecord
	for _, k := range s.deliveryOrder {
		if k.communicationID == communicationID {
			out = append(out, s.deliveries[k])
		}
	}
	return out, nil
}

// RecordResponse appends one response.
func (s *MemoryStore) RecordResponse(_ context.Context, r types.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, r)
	return nil
}

func (s *MemoryStore) filterResponses(match func(types.Response) bool) []types.Response {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.Response
	for _, r := range s.responses {
		if match(r) {
			out = append(out, r)
		}
	}
	return out
}

// ResponsesForCommunication lists responses to one communication.
func (s *MemoryStore) ResponsesForCommunication(_ context.Context, communicationID string) ([]types.Response, error) {
	return s.filterResponses(func(r types.Response) bool { return r.CommunicationID == communicationID }), nil
}

// ResponsesForThread lists responses across a thread.
func (s *MemoryStore) ResponsesForThread(_ context.Context, threadID string) ([]types.Response, error) {
	return s.filterResponses(func(r types.Response) bool { return r.ThreadID == threadID }), nil
}

// ResponsesByAgent lists one agent's responses.
func (s *MemoryStore) ResponsesByAgent(_ context.Context, agentID string) ([]types.Response, error) {
	return s.filterResponses(func(r types.Response) bool { return r.AgentID == agentID }), nil
}

// ResponsesForGoal lists responses to communications tagged with goal.
func (s *MemoryStore) ResponsesForGoal(_ context.Context, goal string) ([]types.Response, error) {
	s.mu.RLock()
	tagged := make(map[string]bool)
	for id, c := range s.communications {
		if c.StrategicGoal == goal {
			tagged[id] = true
		}
	}
	s.mu.RUnlock()
	return s.filterResponses(func(r types.Response) bool { return tagged[r.CommunicationID] }), nil
}

// SaveEscalation upserts one escalation state.
func (s *MemoryStore) SaveEscalation(_ context.Context, st types.EscalationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.escalations[escalationKey{st.ThreadID, st.RecipientID}] = st
	return nil
}

// Escalation fetches one escalation state.
func (s *MemoryStore) Escalation(_ context.Context, threadID, recipientID string) (types.EscalationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.escalations[escalationKey{threadID, recipientID}]
	if !ok {
		return types.EscalationState{}, types.Errorf(types.CodeNotFound,
			"no escalation state for thread %s recipient %s", threadID, recipientID)
	}
	return st, nil
}

// Stats aggregates the whole store.
func (s *MemoryStore) Stats(_ context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{
		TotalCommunications: len(s.communications),
		TotalDeliveries:     len(s.deliveries),
		TotalResponses:      len(s.responses),
		ResponseKindCounts:  make(map[types.ResponseKind]int),
	}
	for _, d := range s.deliveries {
		if d.Status == types.DeliveryDelivered {
			st.Delivered++
		}
	}
	for _, r := range s.responses {
		st.ResponseKindCounts[r.Kind]++
		if r.Kind == types.ResponseIgnore {
			st.Ignores++
		}
		st.SumConfidence += r.Confidence
		if d, ok := s.deliveries[deliveryKey{r.CommunicationID, r.AgentID}]; ok && !d.DeliveredAt.IsZero() {
			st.SumLatency += r.CreatedAt.Sub(d.DeliveredAt)
		}
	}
	threads := make(map[string]bool)
	for _, c := range s.communications {
		threads[c.ThreadID] = true
	}
	st.ThreadCount = len(threads)
	escalated := make(map[string]bool)
	for k, e := range s.escalations {
		if len(e.CommunicationIDs) > 1 {
			escalated[k.threadID] = true
		}
		if e.ComplianceFailure {
			st.ComplianceFailures++
		}
	}
	st.EscalatedThreads = len(escalated)
	return st, nil
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
