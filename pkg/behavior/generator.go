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
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/ripple/pkg/types"
)

// GenerateRequest is the prompt material handed to a text generator backend.
type GenerateRequest struct {
	Agent         types.AgentSnapshot
	Communication types.Communication

	// RuleKind is the rule engine's classification, offered to the backend
	// as a prior it may override.
	RuleKind types.ResponseKind
}

// GenerateResult is a backend's classification and drafted reply.
type GenerateResult struct {
	Kind       types.ResponseKind
	Content    string
	Confidence float64
	Hesitation []types.HesitationMarker
}

// Generator classifies a response and drafts its text. Implementations call
// an external model; errors mean the backend is unavailable.
type Generator interface {
	ClassifyAndDraft(ctx context.Context, req GenerateRequest) (GenerateResult, error)
}

// GeneratorEngine layers a Generator over the rule engine. The rules always
// run first; they own latency and state side effects. The generator may
// reclassify the response kind and replaces the drafted content. Any backend
// failure, timeout or invalid result falls back to the pure rule decision
// with FallbackUsed set.
type GeneratorEngine struct {
	rules     *RuleEngine
	generator Generator
	timeout   time.Duration
	logger    *zap.Logger
}

// NewGeneratorEngine wraps rules with a generator backend.
func NewGeneratorEngine(rules *RuleEngine, generator Generator, timeout time.Duration, logger *zap.Logger) *GeneratorEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = types.DefaultGeneratorTimeout
	}
	return &GeneratorEngine{rules: rules, generator: generator, timeout: timeout, logger: logger}
}

// Decide implements Engine.
func (e *GeneratorEngine) Decide(ctx context.Context, req Request) (types.ResponseDecision, error) {
	d, err := e.rules.Decide(ctx, req)
	if err != nil {
		return types.ResponseDecision{}, err
	}

	genCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	res, err := e.generator.ClassifyAndDraft(genCtx, GenerateRequest{
		Agent:         req.Agent,
		Communication: req.Communication,
		RuleKind:      d.Kind,
	})
	if err != nil {
		e.logger.Warn("generator backend unavailable, using rule-based response",
			zap.String("agent_id", req.Agent.ID),
			zap.String("communication_id", req.Communication.ID),
			zap.Error(err))
		d.FallbackUsed = true
		return d, nil
	}
	if !res.Kind.Valid() {
		e.logger.Warn("generator returned invalid response kind, using rule-based response",
			zap.String("kind", string(res.Kind)),
			zap.String("agent_id", req.Agent.ID))
		d.FallbackUsed = true
		return d, nil
	}

	// A direct order's compliance outcome is the rules' call alone; the
	// backend only drafts text for it.
	if req.Communication.Kind != types.KindDirectOrder {
		d.Kind = res.Kind
		if d.Kind == types.ResponseTakeAction && d.ActionStatus == types.ActionNone {
			d.ActionStatus = types.ActionCommitted
		}
	}
	if res.Content != "" {
		d.Content = res.Content
	}
	if res.Confidence > 0 && res.Confidence <= 1 {
		d.Confidence = res.Confidence
	}
	for _, m := range res.Hesitation {
		d.Hesitation = appendMarker(d.Hesitation, m)
	}
	return d, nil
}

func appendMarker(markers []types.HesitationMarker, m types.HesitationMarker) []types.HesitationMarker {
	for _, existing := range markers {
		if existing == m {
			return markers
		}
	}
	return append(markers, m)
}

var _ Engine = (*GeneratorEngine)(nil)
