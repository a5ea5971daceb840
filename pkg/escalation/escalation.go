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

// Package escalation drives the per-recipient escalation ladder:
// nudge → recommendation → direct_order → terminal. Ignored communications
// accumulate per level; crossing a threshold promotes the thread, and an
// ignored direct order closes it as a compliance failure. Any substantive
// response closes the ladder at its current level.
package escalation

import (
	"context"

	"go.uber.org/zap"

	"github.com/teradata-labs/ripple/pkg/tracking"
	"github.com/teradata-labs/ripple/pkg/types"
)

// Action tells the kernel what the machine needs next.
type Action int

const (
	// ActionNone means the ladder closed or nothing is due.
	ActionNone Action = iota
	// ActionRemind asks for a redelivery of the current communication.
	ActionRemind
	// ActionPromote asks for a synthesized communication at the next level.
	ActionPromote
	// ActionComplianceFailure reports an ignored direct order.
	ActionComplianceFailure
)

func (a Action) String() string {
	switch a {
	case ActionRemind:
		return "remind"
	case ActionPromote:
		return "promote"
	case ActionComplianceFailure:
		return "compliance_failure"
	default:
		return "none"
	}
}

// Outcome is the machine's verdict on one response.
type Outcome struct {
	State  types.EscalationState
	Action Action

	// PromoteTo is the communication kind to synthesize when Action is
	// ActionPromote.
	PromoteTo types.CommunicationKind
}

// Machine owns escalation state, persisted through the tracking store.
type Machine struct {
	thresholds types.EscalationThresholds
	store      tracking.Store
	logger     *zap.Logger
}

// NewMachine creates an escalation machine.
func NewMachine(thresholds types.EscalationThresholds, store tracking.Store, logger *zap.Logger) *Machine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Machine{thresholds: thresholds, store: store, logger: logger}
}

// Tracked reports whether a communication kind participates in escalation.
// Consultations and catchball rounds request input; no follow-through is
// owed, so ignoring them never escalates.
func Tracked(k types.CommunicationKind) bool {
	switch k {
	case types.KindNudge, types.KindRecommendation, types.KindDirectOrder:
		return true
	}
	return false
}

// Register opens (or returns) the ladder for one (thread, recipient) pair,
// rooted at the communication's kind.
func (m *Machine) Register(ctx context.Context, c types.Communication, recipientID string) (types.EscalationState, error) {
	st, err := m.store.Escalation(ctx, c.ThreadID, recipientID)
	if err == nil {
		return st, nil
	}
	if types.CodeOf(err) != types.CodeNotFound {
		return types.EscalationState{}, err
	}
	st = types.EscalationState{
		ThreadID:         c.ThreadID,
		RecipientID:      recipientID,
		SenderID:         c.SenderID,
		Level:            types.LevelForKind(c.Kind),
		CommunicationIDs: []string{c.ID},
	}
	if err := m.store.SaveEscalation(ctx, st); err != nil {
		return types.EscalationState{}, err
	}
	return st, nil
}

// RecordPromotion appends a synthesized communication to the ladder after
// the kernel creates it.
func (m *Machine) RecordPromotion(ctx context.Context, threadID, recipientID, communicationID string) error {
	st, err := m.store.Escalation(ctx, threadID, recipientID)
	if err != nil {
		return err
	}
	st.CommunicationIDs = append(st.CommunicationIDs, communicationID)
	return m.store.SaveEscalation(ctx, st)
}

// Expire closes the ladder because the communication's TTL ran out.
// A closed ladder is left untouched.
func (m *Machine) Expire(ctx context.Context, threadID, recipientID string) (types.EscalationState, error) {
	st, err := m.store.Escalation(ctx, threadID, recipientID)
	if err != nil {
		return types.EscalationState{}, err
	}
	if st.Terminal() || st.TerminalLevel != "" {
		return st, nil
	}
	st.TerminalLevel = st.Level
	st.Level = types.LevelTerminal
	if err := m.store.SaveEscalation(ctx, st); err != nil {
		return types.EscalationState{}, err
	}
	m.logger.Debug("escalation ladder expired",
		zap.String("thread_id", threadID),
		zap.String("recipient_id", recipientID))
	return st, nil
}

// OnResponse advances the ladder with one response. Levels only move
// forward; a closed ladder stays closed.
func (m *Machine) OnResponse(ctx context.Context, threadID, recipientID string, kind types.ResponseKind) (Outcome, error) {
	st, err := m.store.Escalation(ctx, threadID, recipientID)
	if err != nil {
		return Outcome{}, err
	}
	if st.Terminal() || st.TerminalLevel != "" {
		return Outcome{State: st, Action: ActionNone}, nil
	}

	if kind != types.ResponseIgnore {
		// Substantive response closes the ladder at its current level.
		st.TerminalLevel = st.Level
		st.Level = types.LevelTerminal
		if err := m.store.SaveEscalation(ctx, st); err != nil {
			return Outcome{}, err
		}
		return Outcome{State: st, Action: ActionNone}, nil
	}

	outcome := Outcome{Action: ActionRemind}
	switch st.Level {
	case types.LevelNudge:
		st.NudgesIgnored++
		if st.NudgesIgnored >= m.thresholds.NudgesIgnored {
			st.Level = types.LevelRecommendation
			outcome.Action = ActionPromote
			outcome.PromoteTo = types.KindRecommendation
		}
	case types.LevelRecommendation:
		st.RecommendationsIgnored++
		if st.RecommendationsIgnored >= m.thresholds.RecommendationsIgnored {
			st.Level = types.LevelDirectOrder
			outcome.Action = ActionPromote
			outcome.PromoteTo = types.KindDirectOrder
		}
	case types.LevelDirectOrder:
		// One ignored direct order is enough.
		st.ComplianceFailure = true
		st.TerminalLevel = types.LevelDirectOrder
		st.Level = types.LevelTerminal
		outcome.Action = ActionComplianceFailure
	default:
		outcome.Action = ActionNone
	}

	if err := m.store.SaveEscalation(ctx, st); err != nil {
		return Outcome{}, err
	}
	outcome.State = st

	if outcome.Action == ActionPromote || outcome.Action == ActionComplianceFailure {
		m.logger.Info("escalation ladder advanced",
			zap.String("thread_id", threadID),
			zap.String("recipient_id", recipientID),
			zap.String("level", string(st.Level)),
			zap.String("action", outcome.Action.String()))
	}
	return outcome, nil
}
