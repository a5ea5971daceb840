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
	"context"
	"time"

	"github.com/teradata-labs/ripple/pkg/types"
)

// Metrics assembles the organizational metrics snapshot from the tracking
// store and the registry. It is read-only and never acquires thread locks.
func (k *Kernel) Metrics(ctx context.Context) (types.OrganizationalMetrics, error) {
	stats, err := k.store.Stats(ctx)
	if err != nil {
		return types.OrganizationalMetrics{}, err
	}

	m := types.OrganizationalMetrics{
		ComplianceFailures: stats.ComplianceFailures,
		ResponseKindCounts: stats.ResponseKindCounts,
		GeneratedAt:        k.simNow(),
	}
	substantive := stats.TotalResponses - stats.Ignores
	if stats.Delivered > 0 {
		m.ResponseRate = float64(substantive) / float64(stats.Delivered)
	}
	if stats.ThreadCount > 0 {
		m.EscalationRate = float64(stats.EscalatedThreads) / float64(stats.ThreadCount)
	}
	if stats.TotalResponses > 0 {
		m.AverageResponseLatency = stats.SumLatency / time.Duration(stats.TotalResponses)
		m.AverageConfidence = stats.SumConfidence / float64(stats.TotalResponses)
	}

	k.mu.RLock()
	reg := k.reg
	k.mu.RUnlock()
	if reg == nil {
		return m, nil
	}

	summary := reg.Summary()
	m.AverageStress = summary.AverageStress
	m.AverageWorkload = summary.AverageWorkload
	m.AverageSatisfaction = summary.AverageSatisfaction
	m.ByDepartment = make(map[string]types.DepartmentMetrics, len(summary.ByDepartment))

	// Per-department response rate: substantive responses over all responses
	// given by that department's agents.
	type respAcc struct {
		total       int
		substantive int
	}
	byDept := make(map[string]*respAcc)
	for _, id := range reg.IDs() {
		a, err := reg.Get(id)
		if err != nil {
			continue
		}
		responses, err := k.store.ResponsesByAgent(ctx, id)
		if err != nil {
			return types.OrganizationalMetrics{}, err
		}
		acc := byDept[a.Profile.Department]
		if acc == nil {
			acc = &respAcc{}
			byDept[a.Profile.Department] = acc
		}
		for _, r := range responses {
			acc.total++
			if r.Kind != types.ResponseIgnore {
				acc.substantive++
			}
		}
	}
	for dept, state := range summary.ByDepartment {
		dm := types.DepartmentMetrics{
			AgentCount:      state.AgentCount,
			AverageStress:   state.AverageStress,
			AverageWorkload: state.AverageWorkload,
		}
		if acc := byDept[dept]; acc != nil && acc.total > 0 {
			dm.ResponseRate = float64(acc.substantive) / float64(acc.total)
		}
		m.ByDepartment[dept] = dm
	}
	return m, nil
}
