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

package server

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/ripple/pkg/org"
	"github.com/teradata-labs/ripple/pkg/sim"
	"github.com/teradata-labs/ripple/pkg/types"
)

// organizationInfo is the wire shape of one organization.
type organizationInfo struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Description   string   `json:"description,omitempty"`
	Departments   []string `json:"departments"`
	EmployeeCount int      `json:"employee_count"`
}

// agentView is the reduced wire shape of one employee. Mutable scalars
// reflect the registry when the simulation is running, the source document
// otherwise.
type agentView struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Department   string   `json:"department"`
	Role         string   `json:"role"`
	Seniority    int      `json:"seniority"`
	Expertise    []string `json:"expertise,omitempty"`
	Workload     float64  `json:"workload"`
	Stress       float64  `json:"stress"`
	Satisfaction float64  `json:"satisfaction"`
}

// communicationRequest is the POST /communications body. Only externally
// injectable directive kinds are accepted; consultations and catchball
// rounds originate inside the simulation.
type communicationRequest struct {
	SenderID          string   `json:"sender_id"`
	RecipientIDs      []string `json:"recipient_ids"`
	CommunicationType string   `json:"communication_type"`
	Subject           string   `json:"subject,omitempty"`
	Content           string   `json:"content"`
	Priority          string   `json:"priority,omitempty"`
	StrategicGoal     string   `json:"strategic_goal,omitempty"`
	ThreadID          string   `json:"thread_id,omitempty"`
}

type startRequest struct {
	OrgID      string           `json:"org_id"`
	Parameters types.Parameters `json:"parameters"`
}

type startResponse struct {
	Organization organizationInfo `json:"organization"`
	StartedAt    time.Time        `json:"started_at"`
}

type stopResponse struct {
	StoppedAt time.Time `json:"stopped_at"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

var wirePriorities = map[string]int{
	"low":      2,
	"medium":   3,
	"high":     4,
	"critical": 5,
}

var wireKinds = map[string]types.CommunicationKind{
	"nudge":          types.KindNudge,
	"recommendation": types.KindRecommendation,
	"direct_order":   types.KindDirectOrder,
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.kernel.Status(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleOrganizations(w http.ResponseWriter, _ *http.Request) {
	ids := make([]string, 0, len(s.orgs))
	for id := range s.orgs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	s.writeJSON(w, http.StatusOK, ids)
}

func (s *Server) handleOrganization(w http.ResponseWriter, r *http.Request) {
	o, ok := s.orgs[r.PathValue("id")]
	if !ok {
		s.writeError(w, types.Errorf(types.CodeNotFound, "organization %s not found", r.PathValue("id")))
		return
	}
	s.writeJSON(w, http.StatusOK, infoOf(o))
}

func (s *Server) handleOrganizationEmployees(w http.ResponseWriter, r *http.Request) {
	o, ok := s.orgs[r.PathValue("id")]
	if !ok {
		s.writeError(w, types.Errorf(types.CodeNotFound, "organization %s not found", r.PathValue("id")))
		return
	}
	views := make([]agentView, 0, len(o.Employees))
	for i := range o.Employees {
		views = append(views, viewOf(o.Employees[i]))
	}
	s.writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, types.WrapError(types.CodeInvalidArgument, err, "malformed start request"))
		return
	}
	o, ok := s.orgs[req.OrgID]
	if !ok {
		s.writeError(w, types.Errorf(types.CodeNotFound, "organization %s not found", req.OrgID))
		return
	}
	if err := s.kernel.Start(r.Context(), o.ID, o.Employees, req.Parameters); err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.Info("simulation started via API", zap.String("organization_id", o.ID))
	s.writeJSON(w, http.StatusOK, startResponse{
		Organization: infoOf(o),
		StartedAt:    time.Now().UTC(),
	})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	status, err := s.kernel.Status(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !status.Running {
		s.writeError(w, types.Errorf(types.CodeConflict, "simulation is not running"))
		return
	}
	s.kernel.Stop()
	s.logger.Info("simulation stopped via API")
	s.writeJSON(w, http.StatusOK, stopResponse{StoppedAt: time.Now().UTC()})
}

func (s *Server) handleSendCommunication(w http.ResponseWriter, r *http.Request) {
	var req communicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, types.WrapError(types.CodeInvalidArgument, err, "malformed communication request"))
		return
	}
	kind, ok := wireKinds[req.CommunicationType]
	if !ok {
		s.writeError(w, types.Errorf(types.CodeInvalidArgument,
			"communication_type %q is not one of nudge, recommendation, direct_order", req.CommunicationType))
		return
	}
	priority := 0
	if req.Priority != "" {
		priority, ok = wirePriorities[req.Priority]
		if !ok {
			s.writeError(w, types.Errorf(types.CodeInvalidArgument,
				"priority %q is not one of low, medium, high, critical", req.Priority))
			return
		}
	}

	c, err := s.kernel.Send(r.Context(), sim.SendRequest{
		SenderID:      req.SenderID,
		RecipientIDs:  req.RecipientIDs,
		Kind:          kind,
		Priority:      priority,
		Subject:       req.Subject,
		Body:          req.Content,
		StrategicGoal: req.StrategicGoal,
		ThreadID:      req.ThreadID,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleWisdom(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("communication_id")
	if key == "" {
		key = r.URL.Query().Get("topic")
	}
	if key == "" {
		s.writeError(w, types.Errorf(types.CodeInvalidArgument, "communication_id or topic query parameter required"))
		return
	}
	wisdom, err := s.kernel.Wisdom(r.Context(), key)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, wisdom)
}

func (s *Server) handleEmployees(w http.ResponseWriter, _ *http.Request) {
	agents := s.kernel.Agents()
	views := make([]agentView, 0, len(agents))
	for i := range agents {
		views = append(views, viewOf(agents[i]))
	}
	s.writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := s.kernel.Metrics(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, metrics)
}

func infoOf(o *org.Organization) organizationInfo {
	return organizationInfo{
		ID:            o.ID,
		Name:          o.Name,
		Description:   o.Description,
		Departments:   o.Departments,
		EmployeeCount: len(o.Employees),
	}
}

func viewOf(a types.Agent) agentView {
	return agentView{
		ID:           a.ID,
		Name:         a.Name,
		Department:   a.Profile.Department,
		Role:         a.Profile.Role,
		Seniority:    a.Profile.Seniority,
		Expertise:    a.Profile.Expertise,
		Workload:     a.Workload,
		Stress:       a.Stress,
		Satisfaction: a.Satisfaction,
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := types.CodeOf(err)
	s.writeJSON(w, httpStatusOf(code), errorResponse{
		Code:    string(code),
		Message: err.Error(),
	})
}

func httpStatusOf(code types.ErrorCode) int {
	switch code {
	case types.CodeInvalidArgument:
		return http.StatusBadRequest
	case types.CodeNotFound:
		return http.StatusNotFound
	case types.CodeConflict:
		return http.StatusConflict
	case types.CodeOverloaded:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
