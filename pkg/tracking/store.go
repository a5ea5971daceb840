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

// Package tracking persists the simulation's communication history:
// communications, per-recipient delivery records, responses and escalation
// states. Communications and responses are append-only; delivery records and
// escalation states are upserted in place.
//
// Two implementations exist: MemoryStore for ephemeral runs and tests, and
// SQLiteStore for durable runs.
package tracking

import (
	"context"
	"time"

	"github.com/teradata-labs/ripple/pkg/types"
)

// Stats is the store's aggregate view, consumed by the metrics layer.
type Stats struct {
	TotalCommunications int
	TotalDeliveries     int
	Delivered           int
	TotalResponses      int

	// Ignores counts ignore responses; they are responses too but metrics
	// treats response rate as substantive responses / deliveries.
	Ignores int

	ResponseKindCounts map[types.ResponseKind]int

	// SumLatency is the sum over responses of (response created - delivery
	// delivered). SumConfidence is the plain confidence sum. Both divide by
	// TotalResponses for averages.
	SumLatency    time.Duration
	SumConfidence float64

	ThreadCount        int
	EscalatedThreads   int
	ComplianceFailures int
}

// Store is the tracking persistence contract.
type Store interface {
	// RecordCommunication appends one communication. Duplicate IDs conflict.
	RecordCommunication(ctx context.Context, c types.Communication) error

	// Communication fetches one communication by ID.
	Communication(ctx context.Context, id string) (types.Communication, error)

	// Thread returns all communications in a thread, oldest first.
	Thread(ctx context.Context, threadID string) ([]types.Communication, error)

	// UpsertDelivery writes the delivery record for one
	// (communication, recipient) pair, replacing any existing record.
	UpsertDelivery(ctx context.Context, d types.DeliveryRecord) error

	// Delivery fetches one delivery record.
	Delivery(ctx context.Context, communicationID, recipientID string) (types.DeliveryRecord, error)

	// DeliveriesForCommunication lists all delivery records of one
	// communication in recipient order of first write.
	DeliveriesForCommunication(ctx context.Context, communicationID string) ([]types.DeliveryRecord, error)

	// RecordResponse appends one response. Responses are immutable.
	RecordResponse(ctx context.Context, r types.Response) error

	// ResponsesForCommunication lists responses to one communication,
	// oldest first.
	ResponsesForCommunication(ctx context.Context, communicationID string) ([]types.Response, error)

	// ResponsesForThread lists responses across a whole thread, oldest first.
	ResponsesForThread(ctx context.Context, threadID string) ([]types.Response, error)

	// ResponsesByAgent lists one agent's responses, oldest first.
	ResponsesByAgent(ctx context.Context, agentID string) ([]types.Response, error)

	// ResponsesForGoal lists responses whose communication carries the given
	// strategic goal tag, oldest first.
	ResponsesForGoal(ctx context.Context, goal string) ([]types.Response, error)

	// SaveEscalation upserts the escalation state for one
	// (thread, recipient) pair.
	SaveEscalation(ctx context.Context, s types.EscalationState) error

	// Escalation fetches one escalation state.
	Escalation(ctx context.Context, threadID, recipientID string) (types.EscalationState, error)

	// Stats aggregates the whole store.
	Stats(ctx context.Context) (Stats, error)

	// Close releases resources. The store is unusable afterwards.
	Close() error
}
