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

import (
	"math"
	"runtime"
	"time"
)

// Default parameter values.
const (
	// DefaultAcceleration maps one real second to 144 simulated seconds
	// (one real day ≈ one simulated workweek of 24h days ÷ ... in practice:
	// ten real minutes per simulated day).
	DefaultAcceleration = 144.0

	// DefaultCommunicationFrequency is the base rate for scheduler-driven
	// background chatter.
	DefaultCommunicationFrequency = 0.35

	// DefaultResponseDelayMin / Max bound the simulated delivery delay for
	// standard communications.
	DefaultResponseDelayMin = 2 * time.Minute
	DefaultResponseDelayMax = 48 * time.Minute

	// DefaultStressThreshold is the stress level above which response
	// distributions shift toward escalate/ignore.
	DefaultStressThreshold = 0.7

	// DefaultCollaborationBonus damps stress for high-affinity senders.
	DefaultCollaborationBonus = 0.2

	// DefaultNudgeThreshold (N1) and DefaultRecommendationThreshold (N2)
	// are the escalation promotion thresholds.
	DefaultNudgeThreshold          = 5
	DefaultRecommendationThreshold = 3

	// DefaultReminderInterval is the simulated delay before an ignored
	// communication is redelivered.
	DefaultReminderInterval = 4 * time.Hour

	// DefaultTTL is the simulated lifetime of a communication.
	DefaultTTL = 72 * time.Hour

	// DefaultQueueCapacity bounds the delivery queue.
	DefaultQueueCapacity = 10_000

	// MaxWorkerPoolSize caps the worker pool regardless of CPU count.
	MaxWorkerPoolSize = 64

	// DefaultGeneratorTimeout bounds a single generator-backend call
	// (real time).
	DefaultGeneratorTimeout = 2 * time.Second

	// DefaultRequestDeadline bounds send_communication and read-only
	// queries (real time).
	DefaultRequestDeadline = 1 * time.Second

	// DefaultMemoryDepth is K, the number of recent interactions kept in
	// an agent's memory excerpt.
	DefaultMemoryDepth = 20

	// DefaultWorkdayStartHour / EndHour position the daily-maintenance and
	// end-of-day scheduler events.
	DefaultWorkdayStartHour = 9
	DefaultWorkdayEndHour   = 17
)

// EscalationThresholds holds the ignore counts that trigger promotion.
type EscalationThresholds struct {
	// NudgesIgnored (N1) promotes nudge → recommendation.
	NudgesIgnored int `json:"nudges_ignored" mapstructure:"nudges_ignored"`
	// RecommendationsIgnored (N2) promotes recommendation → direct_order.
	RecommendationsIgnored int `json:"recommendations_ignored" mapstructure:"recommendations_ignored"`
}

// Parameters configures one simulation run.
type Parameters struct {
	// AccelerationFactor maps real seconds to simulated seconds.
	// +Inf (or <= 0) selects as-fast-as-possible mode.
	AccelerationFactor float64 `json:"acceleration_factor" mapstructure:"acceleration_factor"`

	// CommunicationFrequency in [0,1] drives background chatter.
	CommunicationFrequency float64 `json:"communication_frequency" mapstructure:"communication_frequency"`

	// ResponseDelayMin/Max bound simulated delivery delays for standard
	// communications. Consultations use a window four times wider.
	ResponseDelayMin time.Duration `json:"response_delay_min" mapstructure:"response_delay_min"`
	ResponseDelayMax time.Duration `json:"response_delay_max" mapstructure:"response_delay_max"`

	// StressThreshold in [0,1]; above it response distributions shift
	// toward escalate/ignore.
	StressThreshold float64 `json:"stress_threshold" mapstructure:"stress_threshold"`

	// CollaborationBonus in [0,0.5] damps stress for high-affinity senders.
	CollaborationBonus float64 `json:"collaboration_bonus" mapstructure:"collaboration_bonus"`

	Escalation EscalationThresholds `json:"escalation_thresholds" mapstructure:"escalation_thresholds"`

	// ReminderInterval is the simulated delay before an ignored
	// communication is redelivered to the ignoring recipient.
	ReminderInterval time.Duration `json:"reminder_interval" mapstructure:"reminder_interval"`

	// DefaultTTL applies to communications sent without an explicit TTL.
	DefaultTTL time.Duration `json:"default_ttl" mapstructure:"default_ttl"`

	// Seed makes runs reproducible when Seeded is true.
	Seed   int64 `json:"seed" mapstructure:"seed"`
	Seeded bool  `json:"seeded" mapstructure:"seeded"`

	// GeneratorEnabled turns on the generator-backed behavior engine.
	GeneratorEnabled bool          `json:"generator_enabled" mapstructure:"generator_enabled"`
	GeneratorTimeout time.Duration `json:"generator_timeout" mapstructure:"generator_timeout"`

	// QueueCapacity bounds the delivery queue; WorkerPoolSize sizes the
	// worker pool (0 = 4×GOMAXPROCS capped at MaxWorkerPoolSize).
	QueueCapacity  int `json:"queue_capacity" mapstructure:"queue_capacity"`
	WorkerPoolSize int `json:"worker_pool_size" mapstructure:"worker_pool_size"`

	// RequestDeadline bounds public operations in real time.
	RequestDeadline time.Duration `json:"request_deadline" mapstructure:"request_deadline"`

	// MemoryDepth is K, the memory excerpt size handed to the behavior
	// engine.
	MemoryDepth int `json:"memory_depth" mapstructure:"memory_depth"`

	// WorkdayStartHour / WorkdayEndHour position the recurring scheduler
	// events (simulated local time).
	WorkdayStartHour int `json:"workday_start_hour" mapstructure:"workday_start_hour"`
	WorkdayEndHour   int `json:"workday_end_hour" mapstructure:"workday_end_hour"`
}

// DefaultParameters returns a fully populated parameter set.
func DefaultParameters() Parameters {
	return Parameters{
		AccelerationFactor:     DefaultAcceleration,
		CommunicationFrequency: DefaultCommunicationFrequency,
		ResponseDelayMin:       DefaultResponseDelayMin,
		ResponseDelayMax:       DefaultResponseDelayMax,
		StressThreshold:        DefaultStressThreshold,
		CollaborationBonus:     DefaultCollaborationBonus,
		Escalation: EscalationThresholds{
			NudgesIgnored:          DefaultNudgeThreshold,
			RecommendationsIgnored: DefaultRecommendationThreshold,
		},
		ReminderInterval: DefaultReminderInterval,
		DefaultTTL:       DefaultTTL,
		GeneratorTimeout: DefaultGeneratorTimeout,
		QueueCapacity:    DefaultQueueCapacity,
		RequestDeadline:  DefaultRequestDeadline,
		MemoryDepth:      DefaultMemoryDepth,
		WorkdayStartHour: DefaultWorkdayStartHour,
		WorkdayEndHour:   DefaultWorkdayEndHour,
	}
}

// AsFastAsPossible reports whether the clock should run in on-demand mode.
func (p *Parameters) AsFastAsPossible() bool {
	return p.AccelerationFactor <= 0 || math.IsInf(p.AccelerationFactor, 1)
}

// Workers resolves the effective worker pool size.
func (p *Parameters) Workers() int {
	n := p.WorkerPoolSize
	if n <= 0 {
		n = 4 * runtime.GOMAXPROCS(0)
	}
	if n > MaxWorkerPoolSize {
		n = MaxWorkerPoolSize
	}
	return n
}

// Normalize fills zero-valued fields with defaults. Explicit zeros that are
// meaningful boundaries (stress_threshold=0, collaboration_bonus=0) are
// preserved; use NaN-free sentinel -1 to request the default for those.
func (p *Parameters) Normalize() {
	d := DefaultParameters()
	if p.AccelerationFactor == 0 {
		p.AccelerationFactor = d.AccelerationFactor
	}
	if p.ResponseDelayMin == 0 && p.ResponseDelayMax == 0 {
		p.ResponseDelayMin = d.ResponseDelayMin
		p.ResponseDelayMax = d.ResponseDelayMax
	}
	if p.StressThreshold < 0 {
		p.StressThreshold = d.StressThreshold
	}
	if p.CollaborationBonus < 0 {
		p.CollaborationBonus = d.CollaborationBonus
	}
	if p.Escalation.NudgesIgnored == 0 {
		p.Escalation.NudgesIgnored = d.Escalation.NudgesIgnored
	}
	if p.Escalation.RecommendationsIgnored == 0 {
		p.Escalation.RecommendationsIgnored = d.Escalation.RecommendationsIgnored
	}
	if p.ReminderInterval == 0 {
		p.ReminderInterval = d.ReminderInterval
	}
	if p.DefaultTTL == 0 {
		p.DefaultTTL = d.DefaultTTL
	}
	if p.GeneratorTimeout == 0 {
		p.GeneratorTimeout = d.GeneratorTimeout
	}
	if p.QueueCapacity == 0 {
		p.QueueCapacity = d.QueueCapacity
	}
	if p.RequestDeadline == 0 {
		p.RequestDeadline = d.RequestDeadline
	}
	if p.MemoryDepth == 0 {
		p.MemoryDepth = d.MemoryDepth
	}
	if p.WorkdayStartHour == 0 && p.WorkdayEndHour == 0 {
		p.WorkdayStartHour = d.WorkdayStartHour
		p.WorkdayEndHour = d.WorkdayEndHour
	}
	// Zero is meaningful for communication_frequency (chatter off);
	// negative requests the default.
	if p.CommunicationFrequency < 0 {
		p.CommunicationFrequency = d.CommunicationFrequency
	}
}

// Validate checks parameter ranges after normalization.
func (p *Parameters) Validate() error {
	if p.CommunicationFrequency < 0 || p.CommunicationFrequency > 1 {
		return Errorf(CodeInvalidArgument, "communication_frequency %.3f out of range [0,1]", p.CommunicationFrequency)
	}
	if p.ResponseDelayMin < 0 || p.ResponseDelayMax < p.ResponseDelayMin {
		return Errorf(CodeInvalidArgument, "response_delay_range [%s, %s] is not a valid interval",
			p.ResponseDelayMin, p.ResponseDelayMax)
	}
	if p.StressThreshold < 0 || p.StressThreshold > 1 {
		return Errorf(CodeInvalidArgument, "stress_threshold %.3f out of range [0,1]", p.StressThreshold)
	}
	if p.CollaborationBonus < 0 || p.CollaborationBonus > 0.5 {
		return Errorf(CodeInvalidArgument, "collaboration_bonus %.3f out of range [0,0.5]", p.CollaborationBonus)
	}
	if p.Escalation.NudgesIgnored < 1 || p.Escalation.RecommendationsIgnored < 1 {
		return Errorf(CodeInvalidArgument, "escalation thresholds must be >= 1, got N1=%d N2=%d",
			p.Escalation.NudgesIgnored, p.Escalation.RecommendationsIgnored)
	}
	if p.QueueCapacity < 1 {
		return Errorf(CodeInvalidArgument, "queue_capacity must be >= 1, got %d", p.QueueCapacity)
	}
	if p.WorkdayStartHour < 0 || p.WorkdayEndHour > 24 || p.WorkdayEndHour <= p.WorkdayStartHour {
		return Errorf(CodeInvalidArgument, "workday [%02d:00, %02d:00) is not a valid window",
			p.WorkdayStartHour, p.WorkdayEndHour)
	}
	return nil
}
