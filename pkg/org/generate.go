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

package org

import (
	"fmt"

	"github.com/teradata-labs/ripple/pkg/random"
	"github.com/teradata-labs/ripple/pkg/types"
)

// GenerateSpec parameterizes a generated example organization.
type GenerateSpec struct {
	ID   string
	Name string
	Seed int64

	// Departments lists department name and headcount (lead included).
	// Empty selects a small three-department default.
	Departments []DepartmentSpec
}

// DepartmentSpec is one generated department.
type DepartmentSpec struct {
	Name      string
	Headcount int
}

var defaultDepartments = []DepartmentSpec{
	{Name: "engineering", Headcount: 5},
	{Name: "sales", Headcount: 4},
	{Name: "operations", Headcount: 3},
}

var firstNames = []string{
	"Alex", "Blake", "Casey", "Devon", "Ellis", "Frankie", "Harper",
	"Jordan", "Kai", "Logan", "Morgan", "Noor", "Parker", "Quinn",
	"Reese", "Sasha", "Tatum", "Val",
}

var expertiseByDepartment = map[string][]string{
	"engineering": {"backend", "frontend", "infrastructure", "data", "security"},
	"sales":       {"enterprise", "mid-market", "partnerships", "renewals"},
	"operations":  {"finance", "people", "logistics", "compliance"},
}

// Generate builds a deterministic organization from the spec's seed: one
// chief executive, one lead per department, and the remaining headcount
// reporting to the lead. The same spec always yields the same population.
func Generate(spec GenerateSpec) (*Organization, error) {
	if spec.ID == "" {
		spec.ID = "example"
	}
	if spec.Name == "" {
		spec.Name = "Example Corp"
	}
	departments := spec.Departments
	if len(departments) == 0 {
		departments = defaultDepartments
	}

	stream := random.NewSource(spec.Seed, true).Stream(random.StreamOrganization)

	o := &Organization{
		ID:          spec.ID,
		Name:        spec.Name,
		Description: fmt.Sprintf("generated organization (seed %d)", spec.Seed),
	}

	chief := baseAgent(stream, "ceo", "executive", "ceo", 5)
	for _, d := range departments {
		if d.Headcount < 1 {
			return nil, types.Errorf(types.CodeInvalidArgument,
				"department %s needs a headcount of at least 1", d.Name)
		}
		o.Departments = append(o.Departments, d.Name)

		lead := baseAgent(stream, d.Name+"-lead", d.Name, "lead", 4)
		chief.Profile.DirectReports = append(chief.Profile.DirectReports, lead.ID)

		members := make([]types.Agent, 0, d.Headcount-1)
		for i := 1; i < d.Headcount; i++ {
			m := baseAgent(stream, fmt.Sprintf("%s-%d", d.Name, i), d.Name, "contributor", 1+stream.Intn(3))
			lead.Profile.DirectReports = append(lead.Profile.DirectReports, m.ID)

			// Team members know their lead; affinity skews positive.
			affinity := stream.Range(-0.2, 0.8)
			m.Relationships[lead.ID] = affinity
			lead.Relationships[m.ID] = stream.Range(0, 0.6)
			members = append(members, m)
		}
		// Peer links within the team.
		for i := 1; i < len(members); i++ {
			a, b := &members[i-1], &members[i]
			affinity := stream.Range(-0.4, 0.7)
			a.Relationships[b.ID] = affinity
			b.Relationships[a.ID] = affinity
		}

		o.Employees = append(o.Employees, lead)
		o.Employees = append(o.Employees, members...)
	}
	o.Employees = append([]types.Agent{chief}, o.Employees...)

	if err := o.Validate(); err != nil {
		return nil, err
	}
	return o, nil
}

func baseAgent(stream *random.Stream, id, department, role string, seniority int) types.Agent {
	expertise := expertiseByDepartment[department]
	a := types.Agent{
		ID:   id,
		Name: firstNames[stream.Intn(len(firstNames))],
		Profile: types.ProfessionalProfile{
			Department:       department,
			Role:             role,
			Seniority:        seniority,
			WorkloadCapacity: stream.Range(0.6, 0.95),
		},
		Personality: types.PersonalityProfile{
			RiskTolerance:           stream.Range(0.1, 0.9),
			AuthorityResponse:       stream.Range(0.2, 0.95),
			WorkloadSensitivity:     stream.Range(0.2, 0.9),
			CommunicationStyle:      stream.Range(0.1, 0.9),
			ChangeAdaptability:      stream.Range(0.2, 0.9),
			CollaborationPreference: stream.Range(0.2, 0.95),
		},
		Workload:      stream.Range(0.15, 0.65),
		Stress:        stream.Range(0.05, 0.45),
		Satisfaction:  stream.Range(0.4, 0.9),
		Relationships: make(map[string]float64),
	}
	if len(expertise) > 0 {
		a.Profile.Expertise = []string{expertise[stream.Intn(len(expertise))]}
	}
	return a
}
