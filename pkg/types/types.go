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

// Package types contains the shared domain types of the ripple simulation
// kernel. This package breaks import cycles by providing common types that
// the engine packages (behavior, distribution, tracking, escalation, wisdom)
// all depend on.
package types

import (
	"fmt"
	"time"
)

// CommunicationKind classifies a strategic communication by authority level
// and interaction pattern.
type CommunicationKind string

const (
	// KindNudge is a gentle, low-authority suggestion.
	KindNudge CommunicationKind = "nudge"

	// KindRecommendation is a stronger suggestion carrying managerial weight.
	KindRecommendation CommunicationKind = "recommendation"

	// KindDirectOrder is a directive the recipient is expected to execute.
	KindDirectOrder CommunicationKind = "direct_order"

	// KindConsultation asks the recipient for input rather than action.
	KindConsultation CommunicationKind = "consultation"

	// KindCatchball is one round of a propose/feed-back goal negotiation.
	KindCatchball CommunicationKind = "catchball"
)

// Valid reports whether k is a known communication kind.
func (k CommunicationKind) Valid() bool {
	switch k {
	case KindNudge, KindRecommendation, KindDirectOrder, KindConsultation, KindCatchball:
		return true
	}
	return false
}

// ParseCommunicationKind parses a wire-format communication kind.
func ParseCommunicationKind(s string) (CommunicationKind, error) {
	k := CommunicationKind(s)
	if !k.Valid() {
		return "", Errorf(CodeInvalidArgument, "unknown communication kind %q", s)
	}
	return k, nil
}

// ResponseKind classifies how an agent responded to a communication.
type ResponseKind string

const (
	ResponseIgnore            ResponseKind = "ignore"
	ResponseTakeAction        ResponseKind = "take_action"
	ResponseSeekClarification ResponseKind = "seek_clarification"
	ResponseProvideFeedback   ResponseKind = "provide_feedback"
	ResponseEscalate          ResponseKind = "escalate"
	ResponseDelegate          ResponseKind = "delegate"
)

// AllResponseKinds returns every response kind in a stable order.
// The order matters to anything that iterates deterministically
// (weighted sampling, entropy computation).
func AllResponseKinds() []ResponseKind {
	return []ResponseKind{
		ResponseIgnore,
		ResponseTakeAction,
		ResponseSeekClarification,
		ResponseProvideFeedback,
		ResponseEscalate,
		ResponseDelegate,
	}
}

// ParseResponseKind parses a wire-format response kind.
func ParseResponseKind(s string) (ResponseKind, error) {
	k := ResponseKind(s)
	if !k.Valid() {
		return "", Errorf(CodeInvalidArgument, "unknown response kind %q", s)
	}
	return k, nil
}

// Valid reports whether k is a known response kind.
func (k ResponseKind) Valid() bool {
	switch k {
	case ResponseIgnore, ResponseTakeAction, ResponseSeekClarification,
		ResponseProvideFeedback, ResponseEscalate, ResponseDelegate:
		return true
	}
	return false
}

// DeliveryStatus tracks the lifecycle of a single (communication, recipient)
// delivery.
type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryFailed    DeliveryStatus = "failed"
	DeliveryCancelled DeliveryStatus = "cancelled"
)

// ActionStatus tracks follow-through on a take_action or delegate response.
type ActionStatus string

const (
	ActionNone       ActionStatus = "none"
	ActionCommitted  ActionStatus = "committed"
	ActionInProgress ActionStatus = "in_progress"
	ActionCompleted  ActionStatus = "completed"
	ActionBlocked    ActionStatus = "blocked"
)

// EscalationLevel is the current stage of an escalation thread for one
// recipient. Levels only advance forward.
type EscalationLevel string

const (
	LevelNudge          EscalationLevel = "nudge"
	LevelRecommendation EscalationLevel = "recommendation"
	LevelDirectOrder    EscalationLevel = "direct_order"
	LevelTerminal       EscalationLevel = "terminal"
)

// Next returns the level an ignored thread promotes to.
// Terminal and direct_order do not promote further.
func (l EscalationLevel) Next() EscalationLevel {
	switch l {
	case LevelNudge:
		return LevelRecommendation
	case LevelRecommendation:
		return LevelDirectOrder
	default:
		return LevelTerminal
	}
}

// Kind returns the communication kind sent at this escalation level.
func (l EscalationLevel) Kind() CommunicationKind {
	switch l {
	case LevelNudge:
		return KindNudge
	case LevelRecommendation:
		return KindRecommendation
	case LevelDirectOrder:
		return KindDirectOrder
	default:
		return KindDirectOrder
	}
}

// LevelForKind returns the escalation level a communication kind starts at.
// Consultations and catchball rounds behave as nudges for escalation purposes.
func LevelForKind(k CommunicationKind) EscalationLevel {
	switch k {
	case KindRecommendation:
		return LevelRecommendation
	case KindDirectOrder:
		return LevelDirectOrder
	default:
		return LevelNudge
	}
}

// HesitationMarker is an enumerated organisational concern attached to a
// response.
type HesitationMarker string

const (
	MarkerUncertainty           HesitationMarker = "uncertainty"
	MarkerPriorityConflict      HesitationMarker = "priority_conflict"
	MarkerResourceConstraint    HesitationMarker = "resource_constraint"
	MarkerStrategicMisalignment HesitationMarker = "strategic_misalignment"
	MarkerNeedsConsensus        HesitationMarker = "needs_consensus"
	MarkerCapacitySaturation    HesitationMarker = "capacity_saturation"
)

// ConflictKind classifies a detected priority conflict.
type ConflictKind string

const (
	ConflictResource ConflictKind = "resource"
	ConflictTimeline ConflictKind = "timeline"
	ConflictApproach ConflictKind = "approach"
)

// RecommendedAction is a follow-up the wisdom engine suggests to the sender.
type RecommendedAction string

const (
	ActionScheduleReview       RecommendedAction = "schedule_review"
	ActionReduceScope          RecommendedAction = "reduce_scope"
	ActionCascadeThroughLeads  RecommendedAction = "cascade_through_leads"
	ActionConveneCatchball     RecommendedAction = "convene_catchball"
	ActionReaffirmPriority     RecommendedAction = "reaffirm_priority"
)

// PersonalityProfile is an agent's immutable personality vector.
// All scalars are in [0,1].
type PersonalityProfile struct {
	RiskTolerance           float64 `json:"risk_tolerance" yaml:"risk_tolerance"`
	AuthorityResponse       float64 `json:"authority_response" yaml:"authority_response"`
	WorkloadSensitivity     float64 `json:"workload_sensitivity" yaml:"workload_sensitivity"`
	CommunicationStyle      float64 `json:"communication_style" yaml:"communication_style"`
	ChangeAdaptability      float64 `json:"change_adaptability" yaml:"change_adaptability"`
	CollaborationPreference float64 `json:"collaboration_preference" yaml:"collaboration_preference"`
}

// ProfessionalProfile describes an agent's place in the organization.
type ProfessionalProfile struct {
	Department       string   `json:"department" yaml:"department"`
	Role             string   `json:"role" yaml:"role"`
	Seniority        int      `json:"seniority" yaml:"seniority"` // 1 (junior) .. 5 (executive)
	Expertise        []string `json:"expertise" yaml:"expertise"`
	DirectReports    []string `json:"direct_reports" yaml:"direct_reports"`
	WorkloadCapacity float64  `json:"workload_capacity" yaml:"workload_capacity"`
}

// Interaction is one entry in an agent's bounded memory log.
type Interaction struct {
	CommunicationID string            `json:"communication_id"`
	ThreadID        string            `json:"thread_id"`
	WithAgent       string            `json:"with_agent"`
	Kind            CommunicationKind `json:"kind"`
	Response        ResponseKind      `json:"response"`
	Priority        int               `json:"priority"`
	StrategicGoal   string            `json:"strategic_goal,omitempty"`
	Timestamp       time.Time         `json:"timestamp"` // simulated
}

// Agent represents one employee in the simulated organization.
//
// The personality vector and professional profile are immutable after
// creation. The mutable fields (workload, stress, satisfaction,
// relationships, memory) are guarded by the registry's per-agent lock;
// mutate them only through registry methods.
type Agent struct {
	ID          string              `json:"id" yaml:"id"`
	Name        string              `json:"name" yaml:"name"`
	Profile     ProfessionalProfile `json:"profile" yaml:"profile"`
	Personality PersonalityProfile  `json:"personality" yaml:"personality"`

	// Mutable state. Clamped to [0,1] on every update.
	Workload     float64 `json:"workload" yaml:"workload"`
	Stress       float64 `json:"stress" yaml:"stress"`
	Satisfaction float64 `json:"satisfaction" yaml:"satisfaction"`

	// Relationships maps other agent IDs to affinity in [-1,1].
	Relationships map[string]float64 `json:"relationships,omitempty" yaml:"relationships,omitempty"`

	// Memory is the bounded interaction log, newest first.
	Memory []Interaction `json:"-" yaml:"-"`
}

// AgentSnapshot is the read-only view of an agent handed to the behavior
// engine. It is a value copy; holding one does not pin any lock.
type AgentSnapshot struct {
	ID          string
	Profile     ProfessionalProfile
	Personality PersonalityProfile

	Stress   float64
	Workload float64

	// AffinityToSender is the agent's affinity toward the communication's
	// sender, in [-1,1]. Zero when no relationship exists.
	AffinityToSender float64

	// Memory holds the K most recent interactions, newest first.
	Memory []Interaction

	// OpenHighPriorityThreads counts unresolved threads with priority >= 4
	// the agent is currently a recipient of.
	OpenHighPriorityThreads int
}

// Communication is a strategic message from one agent to one or more
// recipients.
type Communication struct {
	ID            string            `json:"id"`
	SenderID      string            `json:"sender_id"`
	RecipientIDs  []string          `json:"recipient_ids"` // set semantics, insertion order preserved
	Kind          CommunicationKind `json:"kind"`
	Priority      int               `json:"priority"` // 1..5
	Subject       string            `json:"subject"`
	Body          string            `json:"body"`
	StrategicGoal string            `json:"strategic_goal,omitempty"`
	CreatedAt     time.Time         `json:"created_at"` // simulated
	ThreadID      string            `json:"thread_id"`

	// TTL is the simulated duration after which a non-response counts as
	// ignored. Zero means the kernel default applies.
	TTL time.Duration `json:"ttl"`

	// Deadline is an optional declared completion deadline (simulated).
	// Used by the wisdom engine's timeline-conflict detector. Zero = none.
	Deadline time.Time `json:"deadline,omitempty"`
}

// DeliveryRecord tracks delivery of one communication to one recipient.
// Exactly one record exists per (communication, recipient) pair; redeliveries
// update the record in place.
type DeliveryRecord struct {
	CommunicationID string         `json:"communication_id"`
	RecipientID     string         `json:"recipient_id"`
	Status          DeliveryStatus `json:"status"`
	ScheduledAt     time.Time      `json:"scheduled_at"`            // simulated
	DeliveredAt     time.Time      `json:"delivered_at,omitempty"`  // simulated; zero until delivered
	Attempts        int            `json:"attempts"`                // delivery + redelivery count
}

// Response is an agent's reaction to a delivered communication.
// Responses are immutable once written.
type Response struct {
	ID              string             `json:"id"`
	CommunicationID string             `json:"communication_id"`
	ThreadID        string             `json:"thread_id"`
	AgentID         string             `json:"agent_id"`
	Kind            ResponseKind       `json:"kind"`
	Content         string             `json:"content"`
	Confidence      float64            `json:"confidence"` // [0,1]
	Hesitation      []HesitationMarker `json:"hesitation_markers,omitempty"`
	ActionStatus    ActionStatus       `json:"action_status"`

	// StatedLatency is the reply latency the agent committed to, used by
	// the wisdom engine's timeline-conflict detector.
	StatedLatency time.Duration `json:"stated_latency"`

	// FallbackUsed is true when the generator back-end failed and the
	// rule-based path produced this response instead.
	FallbackUsed bool `json:"fallback_used,omitempty"`

	CreatedAt time.Time `json:"created_at"` // simulated
}

// HasMarker reports whether the response carries the given hesitation marker.
func (r *Response) HasMarker(m HesitationMarker) bool {
	for _, h := range r.Hesitation {
		if h == m {
			return true
		}
	}
	return false
}

// ResponseDecision is the behavior engine's output: the response an agent
// will give plus the side effects on the agent's own state.
type ResponseDecision struct {
	Kind         ResponseKind
	Latency      time.Duration // simulated reply latency
	Content      string
	Confidence   float64
	Hesitation   []HesitationMarker
	ActionStatus ActionStatus

	// Side effects, applied by the kernel through the registry.
	StressDelta   float64
	WorkloadDelta float64
	AffinityDelta float64 // toward the sender

	FallbackUsed bool
}

// EscalationState is the escalation machine's state for one
// (thread, recipient) pair.
type EscalationState struct {
	ThreadID    string          `json:"thread_id"`
	RecipientID string          `json:"recipient_id"`
	SenderID    string          `json:"sender_id"`
	Level       EscalationLevel `json:"level"`

	NudgesIgnored          int `json:"nudges_ignored"`
	RecommendationsIgnored int `json:"recommendations_ignored"`

	// CommunicationIDs lists the root communication plus every escalation
	// synthesized for this recipient, in order.
	CommunicationIDs []string `json:"communication_ids"`

	// ComplianceFailure is set when a direct order was ignored.
	ComplianceFailure bool `json:"compliance_failure,omitempty"`

	// TerminalLevel records the level the thread held when it closed.
	// Empty while the thread is live.
	TerminalLevel EscalationLevel `json:"terminal_level,omitempty"`
}

// Terminal reports whether the state machine has closed.
func (s *EscalationState) Terminal() bool {
	return s.Level == LevelTerminal
}

// ConfidenceDistribution buckets response confidences at 0.4 and 0.7.
type ConfidenceDistribution struct {
	Low    int `json:"low"`    // confidence < 0.4
	Medium int `json:"medium"` // 0.4 <= confidence < 0.7
	High   int `json:"high"`   // confidence >= 0.7
}

// PriorityConflict describes one detected conflict among respondents.
type PriorityConflict struct {
	Kind        ConflictKind `json:"kind"`
	Description string       `json:"description"`
	AgentIDs    []string     `json:"agent_ids"`
}

// WisdomOfTheCrowd is the streaming aggregate over responses to one
// communication (scope "communication") or one strategic goal tag
// (scope "topic").
type WisdomOfTheCrowd struct {
	Key   string `json:"key"`
	Scope string `json:"scope"` // "communication" or "topic"

	ResponseCount  int                      `json:"response_count"`
	ConsensusLevel float64                  `json:"consensus_level"` // [0,1]
	KindCounts     map[ResponseKind]int     `json:"kind_counts"`
	Hesitation     map[HesitationMarker]int `json:"hesitation_counts"`
	Confidence     ConfidenceDistribution   `json:"confidence_distribution"`

	PriorityConflicts  []PriorityConflict  `json:"priority_conflicts,omitempty"`
	RecommendedActions []RecommendedAction `json:"recommended_actions,omitempty"`

	UpdatedAt time.Time `json:"updated_at"` // simulated
}

// SimulationStatus is the kernel's externally visible state.
type SimulationStatus struct {
	Running        bool      `json:"running"`
	OrganizationID string    `json:"organization_id,omitempty"`
	StartedAt      time.Time `json:"started_at,omitempty"` // wall clock
	SimTime        time.Time `json:"sim_time,omitempty"`   // current simulated instant

	AgentCount          int `json:"agent_count"`
	QueueDepth          int `json:"queue_depth"`
	InFlightDeliveries  int `json:"in_flight_deliveries"`
	TotalCommunications int `json:"total_communications"`
	TotalResponses      int `json:"total_responses"`
}

// DepartmentMetrics is the per-department slice of OrganizationalMetrics.
type DepartmentMetrics struct {
	AgentCount      int     `json:"agent_count"`
	AverageStress   float64 `json:"average_stress"`
	AverageWorkload float64 `json:"average_workload"`
	ResponseRate    float64 `json:"response_rate"`
}

// OrganizationalMetrics is the read-only aggregate over tracking + registry.
type OrganizationalMetrics struct {
	ResponseRate           float64              `json:"response_rate"`    // responses / deliveries
	EscalationRate         float64              `json:"escalation_rate"`  // escalated threads / threads
	ComplianceFailures     int                  `json:"compliance_failures"`
	AverageResponseLatency time.Duration        `json:"average_response_latency"`
	AverageConfidence      float64              `json:"average_confidence"`
	AverageStress          float64              `json:"average_stress"`
	AverageWorkload        float64              `json:"average_workload"`
	AverageSatisfaction    float64              `json:"average_satisfaction"`
	ResponseKindCounts     map[ResponseKind]int `json:"response_kind_counts"`

	ByDepartment map[string]DepartmentMetrics `json:"by_department,omitempty"`

	GeneratedAt time.Time `json:"generated_at"` // simulated
}

// Clamp01 clamps v to [0,1]. Agent scalar invariants rely on it.
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ClampAffinity clamps v to [-1,1].
func ClampAffinity(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}

// ValidatePriority checks a communication priority is in 1..5.
func ValidatePriority(p int) error {
	if p < 1 || p > 5 {
		return Errorf(CodeInvalidArgument, "priority %d out of range [1,5]", p)
	}
	return nil
}

// Validate checks agent construction invariants: scalars in range and a
// non-empty ID. Direct-report referential integrity is checked by the
// registry, which can see the whole population.
func (a *Agent) Validate() error {
	if a.ID == "" {
		return Errorf(CodeInvalidArgument, "agent ID cannot be empty")
	}
	if a.Profile.Seniority < 1 || a.Profile.Seniority > 5 {
		return Errorf(CodeInvalidArgument, "agent %s: seniority %d out of range [1,5]", a.ID, a.Profile.Seniority)
	}
	for name, v := range map[string]float64{
		"risk_tolerance":           a.Personality.RiskTolerance,
		"authority_response":       a.Personality.AuthorityResponse,
		"workload_sensitivity":     a.Personality.WorkloadSensitivity,
		"communication_style":      a.Personality.CommunicationStyle,
		"change_adaptability":      a.Personality.ChangeAdaptability,
		"collaboration_preference": a.Personality.CollaborationPreference,
		"workload":                 a.Workload,
		"stress":                   a.Stress,
		"satisfaction":             a.Satisfaction,
	} {
		if v < 0 || v > 1 {
			return Errorf(CodeInvalidArgument, "agent %s: %s %.3f out of range [0,1]", a.ID, name, v)
		}
	}
	for other, affinity := range a.Relationships {
		if affinity < -1 || affinity > 1 {
			return Errorf(CodeInvalidArgument, "agent %s: affinity %.3f toward %s out of range [-1,1]", a.ID, affinity, other)
		}
	}
	return nil
}

// String implements fmt.Stringer for log readability.
func (a *Agent) String() string {
	return fmt.Sprintf("%s (%s/%s)", a.ID, a.Profile.Department, a.Profile.Role)
}
