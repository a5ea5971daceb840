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

// Package anthropic implements the behavior.Generator contract against the
// Anthropic Messages API.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/teradata-labs/ripple/pkg/behavior"
	"github.com/teradata-labs/ripple/pkg/types"
)

const (
	// DefaultModel is the default Claude model.
	DefaultModel = "claude-sonnet-4-5-20250929"
	// DefaultEndpoint is the default Anthropic API endpoint.
	DefaultEndpoint = "https://api.anthropic.com/v1/messages"
	// DefaultMaxTokens caps the drafted reply length.
	DefaultMaxTokens = 512
	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 2 * time.Second

	apiVersion = "2023-06-01"
)

// Client calls the Anthropic Messages API to classify and draft responses.
type Client struct {
	apiKey     string
	model      string
	endpoint   string
	maxTokens  int
	httpClient *http.Client
}

// Config holds configuration for the Anthropic client.
type Config struct {
	APIKey    string // falls back to ANTHROPIC_API_KEY
	Model     string // Default: claude-sonnet-4-5-20250929
	Endpoint  string // Default: https://api.anthropic.com/v1/messages
	Timeout   time.Duration
	MaxTokens int
}

// NewClient creates a new Anthropic client.
func NewClient(config Config) *Client {
	if config.APIKey == "" {
		config.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if config.Model == "" {
		if envModel := os.Getenv("ANTHROPIC_DEFAULT_MODEL"); envModel != "" {
			config.Model = envModel
		} else {
			config.Model = DefaultModel
		}
	}
	if config.Endpoint == "" {
		config.Endpoint = DefaultEndpoint
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = DefaultMaxTokens
	}
	return &Client{
		apiKey:     config.APIKey,
		model:      config.Model,
		endpoint:   config.Endpoint,
		maxTokens:  config.MaxTokens,
		httpClient: &http.Client{Timeout: config.Timeout},
	}
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// draft is the JSON document the model is instructed to emit.
type draft struct {
	Response   string   `json:"response"`
	Content    string   `json:"content"`
	Confidence float64  `json:"confidence"`
	Hesitation []string `json:"hesitation_markers"`
}

const systemPrompt = `You simulate one employee's reaction to an internal
communication. Reply with a single JSON object and nothing else:
{"response": one of ignore|take_action|seek_clarification|provide_feedback|escalate|delegate,
 "content": a one-to-three sentence in-character reply,
 "confidence": a number in [0,1],
 "hesitation_markers": a possibly empty subset of
   [uncertainty, priority_conflict, resource_constraint, strategic_misalignment, needs_consensus, capacity_saturation]}`

func buildPrompt(req behavior.GenerateRequest) string {
	var b strings.Builder
	a := req.Agent
	c := req.Communication
	fmt.Fprintf(&b, "You are %s, a %s in %s (seniority %d/5).\n",
		a.ID, a.Profile.Role, a.Profile.Department, a.Profile.Seniority)
	fmt.Fprintf(&b, "Personality: risk_tolerance=%.2f authority_response=%.2f workload_sensitivity=%.2f change_adaptability=%.2f collaboration_preference=%.2f.\n",
		a.Personality.RiskTolerance, a.Personality.AuthorityResponse,
		a.Personality.WorkloadSensitivity, a.Personality.ChangeAdaptability,
		a.Personality.CollaborationPreference)
	fmt.Fprintf(&b, "Current state: workload=%.2f stress=%.2f affinity_to_sender=%.2f open_high_priority_threads=%d.\n",
		a.Workload, a.Stress, a.AffinityToSender, a.OpenHighPriorityThreads)
	if len(a.Memory) > 0 {
		fmt.Fprintf(&b, "Recent interactions (newest first):\n")
		for i, it := range a.Memory {
			if i >= 5 {
				break
			}
			fmt.Fprintf(&b, "- %s from %s, you responded %s\n", it.Kind, it.WithAgent, it.Response)
		}
	}
	fmt.Fprintf(&b, "\nIncoming %s (priority %d/5) from %s.\nSubject: %s\n%s\n",
		c.Kind, c.Priority, c.SenderID, c.Subject, c.Body)
	fmt.Fprintf(&b, "\nA first-pass classifier suggests %q; override it if your character would react differently.\n", req.RuleKind)
	return b.String()
}

// ClassifyAndDraft implements behavior.Generator.
func (c *Client) ClassifyAndDraft(ctx context.Context, req behavior.GenerateRequest) (behavior.GenerateResult, error) {
	if c.apiKey == "" {
		return behavior.GenerateResult{}, types.Errorf(types.CodeBackendUnavailable, "no API key configured")
	}

	body, err := json.Marshal(messagesRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System:    systemPrompt,
		Messages:  []message{{Role: "user", Content: buildPrompt(req)}},
	})
	if err != nil {
		return behavior.GenerateResult{}, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return behavior.GenerateResult{}, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return behavior.GenerateResult{}, types.WrapError(types.CodeBackendUnavailable, err, "request failed")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return behavior.GenerateResult{}, types.WrapError(types.CodeBackendUnavailable, err, "failed to read response")
	}
	if resp.StatusCode != http.StatusOK {
		return behavior.GenerateResult{}, types.Errorf(types.CodeBackendUnavailable,
			"API returned status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var parsed messagesResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return behavior.GenerateResult{}, types.WrapError(types.CodeBackendUnavailable, err, "failed to decode response")
	}
	if parsed.Error != nil {
		return behavior.GenerateResult{}, types.Errorf(types.CodeBackendUnavailable,
			"API error %s: %s", parsed.Error.Type, parsed.Error.Message)
	}

	var text string
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return parseDraft(text)
}

// parseDraft extracts the JSON document from the model output, tolerating
// surrounding prose and code fences.
func parseDraft(text string) (behavior.GenerateResult, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return behavior.GenerateResult{}, types.Errorf(types.CodeBackendUnavailable,
			"no JSON object in model output")
	}
	var d draft
	if err := json.Unmarshal([]byte(text[start:end+1]), &d); err != nil {
		return behavior.GenerateResult{}, types.WrapError(types.CodeBackendUnavailable, err,
			"model output is not valid JSON")
	}
	kind, err := types.ParseResponseKind(d.Response)
	if err != nil {
		return behavior.GenerateResult{}, err
	}
	res := behavior.GenerateResult{
		Kind:       kind,
		Content:    d.Content,
		Confidence: d.Confidence,
	}
	for _, m := range d.Hesitation {
		res.Hesitation = append(res.Hesitation, types.HesitationMarker(m))
	}
	return res, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var _ behavior.Generator = (*Client)(nil)
