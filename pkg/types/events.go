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

package types

import "time"

// EventKind classifies entries in the simulation event log.
type EventKind string

const (
	EventSend              EventKind = "send"
	EventDeliver           EventKind = "deliver"
	EventRespond           EventKind = "respond"
	EventEscalate          EventKind = "escalate"
	EventComplianceFailure EventKind = "compliance_failure"
	EventTTLExpired        EventKind = "ttl_expired"
	EventDeliveryFailed    EventKind = "delivery_failed"
	EventCancelled         EventKind = "cancelled"
	EventChatter           EventKind = "chatter"
	EventInternalError     EventKind = "internal_error"
)

// SimulationEvent is one entry in the kernel's append-only event ring.
type SimulationEvent struct {
	ID   string    `json:"id"`
	Kind EventKind `json:"kind"`
	At   time.Time `json:"at"` // simulated

	CommunicationID string `json:"communication_id,omitempty"`
	ThreadID        string `json:"thread_id,omitempty"`
	AgentID         string `json:"agent_id,omitempty"`

	Message string `json:"message,omitempty"`
}
