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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/ripple/pkg/types"
)

const sampleDoc = `
id: acme
name: Acme Corp
employees:
  - id: ceo
    name: Dana
    profile:
      department: executive
      role: ceo
      seniority: 5
      expertise: [strategy]
      direct_reports: [eng-lead]
      workload_capacity: 0.9
    personality:
      risk_tolerance: 0.6
      authority_response: 0.5
      workload_sensitivity: 0.4
      communication_style: 0.7
      change_adaptability: 0.6
      collaboration_preference: 0.5
    workload: 0.5
    stress: 0.3
    satisfaction: 0.8
  - id: eng-lead
    name: Sam
    profile:
      department: engineering
      role: lead
      seniority: 4
      expertise: [backend]
      direct_reports: []
      workload_capacity: 0.8
    personality:
      risk_tolerance: 0.5
      authority_response: 0.7
      workload_sensitivity: 0.5
      communication_style: 0.5
      change_adaptability: 0.7
      collaboration_preference: 0.6
    workload: 0.4
    stress: 0.2
    satisfaction: 0.7
    relationships:
      ceo: 0.4
`

func TestLoadSampleDocument(t *testing.T) {
	o, err := Load(strings.NewReader(sampleDoc))
	require.NoError(t, err)

	assert.Equal(t, "acme", o.ID)
	assert.Equal(t, "Acme Corp", o.Name)
	require.Len(t, o.Employees, 2)

	lead, ok := o.Agent("eng-lead")
	require.True(t, ok)
	assert.Equal(t, "engineering", lead.Profile.Department)
	assert.InDelta(t, 0.4, lead.Relationships["ceo"], 1e-9)

	// Departments derived from employees when the document lists none.
	assert.Equal(t, []string{"engineering", "executive"}, o.Departments)

	_, ok = o.Agent("nobody")
	assert.False(t, ok)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	doc := strings.Replace(sampleDoc, "name: Acme Corp", "name: Acme Corp\nheadquarters: moon", 1)
	_, err := Load(strings.NewReader(doc))
	require.Error(t, err)
	assert.Equal(t, types.CodeInvalidArgument, types.CodeOf(err))
}

func TestValidateRejectsBadDocuments(t *testing.T) {
	base := func() *Organization {
		o, err := Load(strings.NewReader(sampleDoc))
		require.NoError(t, err)
		return o
	}

	t.Run("duplicate employee ID", func(t *testing.T) {
		o := base()
		o.Employees = append(o.Employees, o.Employees[1])
		err := o.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate employee ID")
	})

	t.Run("unknown direct report", func(t *testing.T) {
		o := base()
		o.Employees[0].Profile.DirectReports = []string{"ghost"}
		err := o.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown direct report")
	})

	t.Run("unknown relationship target", func(t *testing.T) {
		o := base()
		o.Employees[1].Relationships = map[string]float64{"ghost": 0.5}
		err := o.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown employee")
	})

	t.Run("personality out of range", func(t *testing.T) {
		o := base()
		o.Employees[1].Personality.RiskTolerance = 1.4
		err := o.Validate()
		require.Error(t, err)
		assert.Equal(t, types.CodeInvalidArgument, types.CodeOf(err))
	})

	t.Run("empty ID", func(t *testing.T) {
		o := base()
		o.ID = ""
		require.Error(t, o.Validate())
	})

	t.Run("no employees", func(t *testing.T) {
		o := base()
		o.Employees = nil
		require.Error(t, o.Validate())
	})
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "acme.yaml"), []byte(sampleDoc), 0o644))
	other := strings.Replace(sampleDoc, "id: acme", "id: globex", 1)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "globex.yml"), []byte(other), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	orgs, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, orgs, 2)
	assert.Contains(t, orgs, "acme")
	assert.Contains(t, orgs, "globex")
}

func TestLoadDirRejectsDuplicateIDs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte(sampleDoc), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yaml"), []byte(sampleDoc), 0o644))

	_, err := LoadDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate organization ID")
}

func TestGenerateIsDeterministic(t *testing.T) {
	spec := GenerateSpec{ID: "demo", Name: "Demo Inc", Seed: 7}

	a, err := Generate(spec)
	require.NoError(t, err)
	b, err := Generate(spec)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	spec.Seed = 8
	c, err := Generate(spec)
	require.NoError(t, err)
	assert.NotEqual(t, a.Employees, c.Employees)
}

func TestGenerateProducesValidHierarchy(t *testing.T) {
	o, err := Generate(GenerateSpec{
		ID:   "demo",
		Seed: 42,
		Departments: []DepartmentSpec{
			{Name: "engineering", Headcount: 4},
			{Name: "sales", Headcount: 2},
		},
	})
	require.NoError(t, err)
	require.NoError(t, o.Validate())

	// CEO plus 4 engineering plus 2 sales.
	assert.Len(t, o.Employees, 7)
	assert.Equal(t, []string{"engineering", "sales"}, o.Departments)

	chief, ok := o.Agent("ceo")
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"engineering-lead", "sales-lead"}, chief.Profile.DirectReports)

	lead, ok := o.Agent("engineering-lead")
	require.True(t, ok)
	assert.Len(t, lead.Profile.DirectReports, 3)
	for _, rep := range lead.Profile.DirectReports {
		m, ok := o.Agent(rep)
		require.True(t, ok)
		assert.Equal(t, "engineering", m.Profile.Department)
		assert.Contains(t, m.Relationships, lead.ID)
	}
}

func TestGenerateRejectsEmptyDepartment(t *testing.T) {
	_, err := Generate(GenerateSpec{
		ID:          "demo",
		Departments: []DepartmentSpec{{Name: "void", Headcount: 0}},
	})
	require.Error(t, err)
	assert.Equal(t, types.CodeInvalidArgument, types.CodeOf(err))
}
