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

// Package org loads simulated organizations from YAML documents and
// generates deterministic example populations for demos and tests.
package org

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/teradata-labs/ripple/pkg/types"
)

// Organization is a named agent population.
type Organization struct {
	ID          string        `yaml:"id" json:"id"`
	Name        string        `yaml:"name" json:"name"`
	Description string        `yaml:"description,omitempty" json:"description,omitempty"`
	Departments []string      `yaml:"departments,omitempty" json:"departments"`
	Employees   []types.Agent `yaml:"employees" json:"employees"`
}

// Agent returns one employee by ID.
func (o *Organization) Agent(id string) (types.Agent, bool) {
	for _, a := range o.Employees {
		if a.ID == id {
			return a, true
		}
	}
	return types.Agent{}, false
}

// Load parses and validates one organization document.
func Load(r io.Reader) (*Organization, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var o Organization
	if err := dec.Decode(&o); err != nil {
		return nil, types.WrapError(types.CodeInvalidArgument, err, "malformed organization document")
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	return &o, nil
}

// LoadFile loads one organization from a YAML file.
func LoadFile(path string) (*Organization, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, types.WrapError(types.CodeInvalidArgument, err, "cannot open organization file %s", path)
	}
	defer f.Close()
	o, err := Load(f)
	if err != nil {
		return nil, types.WrapError(types.CodeOf(err), err, "organization file %s", path)
	}
	return o, nil
}

// LoadDir loads every *.yaml / *.yml file in dir, keyed by organization ID.
func LoadDir(dir string) (map[string]*Organization, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, types.WrapError(types.CodeInvalidArgument, err, "cannot read organization directory %s", dir)
	}
	out := make(map[string]*Organization)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		o, err := LoadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		if _, ok := out[o.ID]; ok {
			return nil, types.Errorf(types.CodeInvalidArgument,
				"duplicate organization ID %s in %s", o.ID, dir)
		}
		out[o.ID] = o
	}
	return out, nil
}

// Validate checks document-level invariants: a non-empty ID, unique employee
// IDs, per-agent scalar ranges, and referential integrity of direct reports
// and relationships. Departments are derived from employees when the
// document lists none.
func (o *Organization) Validate() error {
	if o.ID == "" {
		return types.Errorf(types.CodeInvalidArgument, "organization ID cannot be empty")
	}
	if len(o.Employees) == 0 {
		return types.Errorf(types.CodeInvalidArgument, "organization %s has no employees", o.ID)
	}

	ids := make(map[string]bool, len(o.Employees))
	for i := range o.Employees {
		a := &o.Employees[i]
		if err := a.Validate(); err != nil {
			return err
		}
		if ids[a.ID] {
			return types.Errorf(types.CodeInvalidArgument,
				"organization %s: duplicate employee ID %s", o.ID, a.ID)
		}
		ids[a.ID] = true
	}
	for i := range o.Employees {
		a := &o.Employees[i]
		for _, rep := range a.Profile.DirectReports {
			if !ids[rep] {
				return types.Errorf(types.CodeInvalidArgument,
					"organization %s: %s lists unknown direct report %s", o.ID, a.ID, rep)
			}
		}
		for other := range a.Relationships {
			if !ids[other] {
				return types.Errorf(types.CodeInvalidArgument,
					"organization %s: %s has a relationship with unknown employee %s", o.ID, a.ID, other)
			}
		}
	}

	if len(o.Departments) == 0 {
		seen := make(map[string]bool)
		for i := range o.Employees {
			d := o.Employees[i].Profile.Department
			if d != "" && !seen[d] {
				seen[d] = true
				o.Departments = append(o.Departments, d)
			}
		}
		sort.Strings(o.Departments)
	}
	return nil
}
