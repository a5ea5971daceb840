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

// Package behavior decides how agents respond to communications. The
// rule-based engine derives a response from the agent's personality vector,
// current state and relationship to the sender; the generator-backed engine
// layers a text generator on top for classification and drafting, falling
// back to the rules when the backend is unavailable.
package behavior

import (
	"context"
	"time"

	"github.com/teradata-labs/ripple/pkg/types"
)

// Request is everything an engine needs to decide one agent's response to
// one delivered communication.
type Request struct {
	Agent         types.AgentSnapshot
	Communication types.Communication

	// Now is the simulated delivery instant.
	Now time.Time

	// Attempt counts deliveries of this communication to this agent,
	// starting at 1. Reminders raise it.
	Attempt int
}

// Engine produces a response decision for one delivery.
type Engine interface {
	Decide(ctx context.Context, req Request) (types.ResponseDecision, error)
}
