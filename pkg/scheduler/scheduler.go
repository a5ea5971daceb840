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

// Package scheduler runs recurring jobs against simulated time. Schedules
// are standard cron expressions or fixed intervals, both evaluated on the
// virtual clock, so a daily job fires once per simulated day no matter how
// fast the simulation runs.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/teradata-labs/ripple/pkg/clock"
)

// JobFunc runs one job firing. now is the simulated firing instant.
type JobFunc func(ctx context.Context, now time.Time)

// schedule abstracts cron expressions and fixed intervals.
type schedule interface {
	next(after time.Time) time.Time
}

type cronSchedule struct{ s cron.Schedule }

func (c cronSchedule) next(after time.Time) time.Time { return c.s.Next(after) }

type intervalSchedule struct{ every time.Duration }

func (i intervalSchedule) next(after time.Time) time.Time { return after.Add(i.every) }

type job struct {
	name     string
	schedule schedule
	fn       JobFunc
}

// Scheduler drives jobs from the virtual clock. Add jobs before Start.
type Scheduler struct {
	clk    *clock.Clock
	logger *zap.Logger

	mu      sync.Mutex
	jobs    []*job
	started bool

	cancel context.CancelFunc
	group  *errgroup.Group
}

// New creates a scheduler on clk.
func New(clk *clock.Clock, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{clk: clk, logger: logger}
}

// AddCron registers a job on a standard five-field cron expression,
// evaluated in simulated time.
func (s *Scheduler) AddCron(name, spec string, fn JobFunc) error {
	parsed, err := cron.ParseStandard(spec)
	if err != nil {
		return fmt.Errorf("invalid cron spec %q for job %s: %w", spec, name, err)
	}
	return s.add(&job{name: name, schedule: cronSchedule{parsed}, fn: fn})
}

// AddInterval registers a job firing every fixed simulated interval.
func (s *Scheduler) AddInterval(name string, every time.Duration, fn JobFunc) error {
	if every <= 0 {
		return fmt.Errorf("interval for job %s must be positive, got %s", name, every)
	}
	return s.add(&job{name: name, schedule: intervalSchedule{every}, fn: fn})
}

func (s *Scheduler) add(j *job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("cannot add job %s to a started scheduler", j.name)
	}
	s.jobs = append(s.jobs, j)
	return nil
}

// Start launches one goroutine per job. Each holds a pending-work token
// while running its body, so in as-fast-as-possible mode the clock cannot
// jump over a firing.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("scheduler already started")
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	s.group, ctx = errgroup.WithContext(ctx)
	for _, j := range s.jobs {
		j := j
		s.group.Go(func() error {
			s.runJob(ctx, j)
			return nil
		})
	}
	s.logger.Debug("scheduler started", zap.Int("jobs", len(s.jobs)))
	return nil
}

func (s *Scheduler) runJob(ctx context.Context, j *job) {
	s.clk.Acquire()
	defer s.clk.Release()
	for {
		next := j.schedule.next(s.clk.Now())
		if err := s.clk.SleepUntil(ctx, next); err != nil {
			return
		}
		if ctx.Err() != nil {
			return
		}
		j.fn(ctx, s.clk.Now())
	}
}

// Stop cancels all jobs and waits for them to exit. Idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	group := s.group
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	_ = group.Wait()
	s.logger.Debug("scheduler stopped")
}
