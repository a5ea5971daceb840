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

package tracking

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	_ "github.com/teradata-labs/ripple/internal/sqlitedriver" // registers sqlite3
	"github.com/teradata-labs/ripple/pkg/observability"
	"github.com/teradata-labs/ripple/pkg/types"
)

// SQLiteStore is the durable Store backed by SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
	tracer observability.Tracer
	closed atomic.Bool
}

// SetTracer installs a tracer for write-path spans.
func (s *SQLiteStore) SetTracer(tracer observability.Tracer) {
	if tracer != nil {
		s.tracer = tracer
	}
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS communications (
	id TEXT PRIMARY KEY,
	sender_id TEXT NOT NULL,
	recipient_ids TEXT NOT NULL,
	kind TEXT NOT NULL,
	priority INTEGER NOT NULL,
	subject TEXT,
	body TEXT,
	strategic_goal TEXT,
	thread_id TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	ttl_ns INTEGER NOT NULL,
	deadline INTEGER NOT NULL DEFAULT 0,
	seq INTEGER
);
CREATE INDEX IF NOT EXISTS idx_communications_thread ON communications(thread_id, seq);
CREATE INDEX IF NOT EXISTS idx_communications_goal ON communications(strategic_goal);

CREATE TABLE IF NOT EXISTS deliveries (
	communication_id TEXT NOT NULL,
	recipient_id TEXT NOT NULL,
	status TEXT NOT NULL,
	scheduled_at INTEGER NOT NULL,
	delivered_at INTEGER NOT NULL DEFAULT 0,
	attempts INTEGER NOT NULL DEFAULT 0,
	seq INTEGER,
	PRIMARY KEY (communication_id, recipient_id)
);

CREATE TABLE IF NOT EXISTS responses (
	id TEXT PRIMARY KEY,
	communication_id TEXT NOT NULL,
	thread_id TEXT NOT NULL,
	agent_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	content TEXT,
	confidence REAL NOT NULL,
	hesitation TEXT,
	action_status TEXT,
	stated_latency_ns INTEGER NOT NULL DEFAULT 0,
	fallback_used INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	seq INTEGER
);
CREATE INDEX IF NOT EXISTS idx_responses_communication ON responses(communication_id, seq);
CREATE INDEX IF NOT EXISTS idx_responses_thread ON responses(thread_id, seq);
CREATE INDEX IF NOT EXISTS idx_responses_agent ON responses(agent_id, seq);

CREATE TABLE IF NOT EXISTS escalations (
	thread_id TEXT NOT NULL,
	recipient_id TEXT NOT NULL,
	sender_id TEXT,
	level TEXT NOT NULL,
	nudges_ignored INTEGER NOT NULL DEFAULT 0,
	recommendations_ignored INTEGER NOT NULL DEFAULT 0,
	communication_ids TEXT,
	compliance_failure INTEGER NOT NULL DEFAULT 0,
	terminal_level TEXT,
	PRIMARY KEY (thread_id, recipient_id)
);

CREATE TABLE IF NOT EXISTS seq_counter (n INTEGER NOT NULL);
`

// NewSQLiteStore opens (or creates) the tracking database at dbPath.
// Use ":memory:" for an ephemeral database.
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dbURL := dbPath
	if dbPath == ":memory:" {
		// Shared-cache URI so all pool connections see one database.
		dbURL = "file::memory:?mode=memory&cache=shared&_busy_timeout=5000"
	}
	db, err := sql.Open("sqlite3", dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open tracking database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			logger.Warn("Failed to enable WAL mode", zap.Error(err))
		}
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		logger.Warn("Failed to set busy timeout", zap.Error(err))
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tracking schema: %w", err)
	}
	logger.Info("tracking store opened", zap.String("path", dbPath))
	return &SQLiteStore{db: db, logger: logger, tracer: observability.NewNoOpTracer()}, nil
}

// nextSeq hands out a monotonically increasing insertion sequence.
// Simulated timestamps can collide, so ordering keys on seq instead.
func (s *SQLiteStore) nextSeq(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO seq_counter (n)
		 SELECT COALESCE(MAX(n), 0) + 1 FROM seq_counter
		 RETURNING n`).Scan(&n)
	return n, err
}

func (s *SQLiteStore) guard() error {
	if s.closed.Load() {
		return types.Errorf(types.CodeInternal, "tracking store is closed")
	}
	return nil
}

func encodeTime(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func decodeTime(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

// RecordCommunication appends one communication.
func (s *SQLiteStore) RecordCommunication(ctx context.Context, c types.Communication) error {
	if err := s.guard(); err != nil {
		return err
	}
	ctx, span := s.tracer.StartSpan(ctx, "tracking.record_communication",
		observability.WithAttribute("communication_id", c.ID))
	defer s.tracer.EndSpan(span)
	recipients, err := json.Marshal(c.RecipientIDs)
	if err != nil {
		return fmt.Errorf("failed to encode recipients: %w", err)
	}
	seq, err := s.nextSeq(ctx)
	if err != nil {
		return fmt.Errorf("failed to allocate sequence: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO communications
		 (id, sender_id, recipient_ids, kind, priority, subject, body,
		  strategic_goal, thread_id, created_at, ttl_ns, deadline, seq)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.SenderID, string(recipients), string(c.Kind), c.Priority,
		c.Subject, c.Body, c.StrategicGoal, c.ThreadID,
		encodeTime(c.CreatedAt), int64(c.TTL), encodeTime(c.Deadline), seq)
	if err != nil {
		if isConstraintError(err) {
			return types.Errorf(types.CodeConflict, "communication %s already recorded", c.ID)
		}
		return fmt.Errorf("failed to record communication: %w", err)
	}
	return nil
}

func isConstraintError(err error) bool {
	// modernc reports constraint violations with this substring; matching
	// on it avoids a direct driver dependency here.
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint") ||
		strings.Contains(err.Error(), "constraint failed"))
}

const communicationColumns = `id, sender_id, recipient_ids, kind, priority, subject, body,
	strategic_goal, thread_id, created_at, ttl_ns, deadline`

func scanCommunication(row interface{ Scan(...interface{}) error }) (types.Communication, error) {
	var c types.Communication
	var recipients string
	var createdAt, ttl, deadline int64
	var kind string
	err := row.Scan(&c.ID, &c.SenderID, &recipients, &kind, &c.Priority,
		&c.Subject, &c.Body, &c.StrategicGoal, &c.ThreadID, &createdAt, &ttl, &deadline)
	if err != nil {
		return types.Communication{}, err
	}
	if err := json.Unmarshal([]byte(recipients), &c.RecipientIDs); err != nil {
		return types.Communication{}, fmt.Errorf("failed to decode recipients: %w", err)
	}
	c.Kind = types.CommunicationKind(kind)
	c.CreatedAt = decodeTime(createdAt)
	c.TTL = time.Duration(ttl)
	c.Deadline = decodeTime(deadline)
	return c, nil
}

// Communication fetches one communication.
func (s *SQLiteStore) Communication(ctx context.Context, id string) (types.Communication, error) {
	if err := s.guard(); err != nil {
		return types.Communication{}, err
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+communicationColumns+` FROM communications WHERE id = ?`, id)
	c, err := scanCommunication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Communication{}, types.Errorf(types.CodeNotFound, "communication %s not found", id)
	}
	if err != nil {
		return types.Communication{}, fmt.Errorf("failed to load communication: %w", err)
	}
	return c, nil
}

// Thread returns a thread's communications, oldest first.
func (s *SQLiteStore) Thread(ctx context.Context, threadID string) ([]types.Communication, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+communicationColumns+` FROM communications WHERE thread_id = ? ORDER BY seq`, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to load thread: %w", err)
	}
	defer rows.Close()
	var out []types.Communication
	for rows.Next() {
		c, err := scanCommunication(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan communication: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, types.Errorf(types.CodeNotFound, "thread %s not found", threadID)
	}
	return out, nil
}

// UpsertDelivery writes one delivery record.
func (s *SQLiteStore) UpsertDelivery(ctx context.Context, d types.DeliveryRecord) error {
	if err := s.guard(); err != nil {
		return err
	}
	seq, err := s.nextSeq(ctx)
	if err != nil {
		return fmt.Errorf("failed to allocate sequence: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO deliveries
		 (communication_id, recipient_id, status, scheduled_at, delivered_at, attempts, seq)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (communication_id, recipient_id) DO UPDATE SET
		   status = excluded.status,
		   scheduled_at = excluded.scheduled_at,
		   delivered_at = excluded.delivered_at,
		   attempts = excluded.attempts`,
		d.CommunicationID, d.RecipientID, string(d.Status),
		encodeTime(d.ScheduledAt), encodeTime(d.DeliveredAt), d.Attempts, seq)
	if err != nil {
		return fmt.Errorf("failed to upsert delivery: %w", err)
	}
	return nil
}

func scanDelivery(row interface{ Scan(...interface{}) error }) (types.DeliveryRecord, error) {
	var d types.DeliveryRecord
	var status string
	var scheduled, delivered int64
	err := row.Scan(&d.CommunicationID, &d.RecipientID, &status, &scheduled, &delivered, &d.Attempts)
	if err != nil {
		return types.DeliveryRecord{}, err
	}
	d.Status = types.DeliveryStatus(status)
	d.ScheduledAt = decodeTime(scheduled)
	d.DeliveredAt = decodeTime(delivered)
	return d, nil
}

// Delivery fetches one delivery record.
func (s *SQLiteStore) Delivery(ctx context.Context, communicationID, recipientID string) (types.DeliveryRecord, error) {
	if err := s.guard(); err != nil {
		return types.DeliveryRecord{}, err
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT communication_id, recipient_id, status, scheduled_at, delivered_at, attempts
		 FROM deliveries WHERE communication_id = ? AND recipient_id = ?`,
		communicationID, recipientID)
	d, err := scanDelivery(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.DeliveryRecord{}, types.Errorf(types.CodeNotFound,
			"no delivery record for communication %s recipient %s", communicationID, recipientID)
	}
	if err != nil {
		return types.DeliveryRecord{}, fmt.Errorf("failed to load delivery: %w", err)
	}
	return d, nil
}

// DeliveriesForCommunication lists a communication's delivery records.
func (s *SQLiteStore) DeliveriesForCommunication(ctx context.Context, communicationID string) ([]types.DeliveryRecord, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT communication_id, recipient_id, status, scheduled_at, delivered_at, attempts
		 FROM deliveries WHERE communication_id = ? ORDER BY seq`, communicationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list deliveries: %w", err)
	}
	defer rows.Close()
	var out []types.DeliveryRecord
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan delivery: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// RecordResponse appends one response.
func (s *SQLiteStore) RecordResponse(ctx context.Context, r types.Response) error {
	if err := s.guard(); err != nil {
		return err
	}
	ctx, span := s.tracer.StartSpan(ctx, "tracking.record_response",
		observability.WithAttribute("response_id", r.ID))
	defer s.tracer.EndSpan(span)
	hesitation, err := json.Marshal(r.Hesitation)
	if err != nil {
		return fmt.Errorf("failed to encode hesitation markers: %w", err)
	}
	seq, err := s.nextSeq(ctx)
	if err != nil {
		return fmt.Errorf("failed to allocate sequence: %w", err)
	}
	fallback := 0
	if r.FallbackUsed {
		fallback = 1
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO responses
		 (id, communication_id, thread_id, agent_id, kind, content, confidence,
		  hesitation, action_status, stated_latency_ns, fallback_used, created_at, seq)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.CommunicationID, r.ThreadID, r.AgentID, string(r.Kind),
		r.Content, r.Confidence, string(hesitation), string(r.ActionStatus),
		int64(r.StatedLatency), fallback, encodeTime(r.CreatedAt), seq)
	if err != nil {
		if isConstraintError(err) {
			return types.Errorf(types.CodeConflict, "response %s already recorded", r.ID)
		}
		return fmt.Errorf("failed to record response: %w", err)
	}
	return nil
}

const responseColumns = `id, communication_id, thread_id, agent_id, kind, content,
	confidence, hesitation, action_status, stated_latency_ns, fallback_used, created_at`

func scanResponse(row interface{ Scan(...interface{}) error }) (types.Response, error) {
	var r types.Response
	var kind, hesitation, actionStatus string
	var latency, createdAt int64
	var fallback int
	err := row.Scan(&r.ID, &r.CommunicationID, &r.ThreadID, &r.AgentID, &kind,
		&r.Content, &r.Confidence, &hesitation, &actionStatus, &latency, &fallback, &createdAt)
	if err != nil {
		return types.Response{}, err
	}
	r.Kind = types.ResponseKind(kind)
	if hesitation != "" {
		if err := json.Unmarshal([]byte(hesitation), &r.Hesitation); err != nil {
			return types.Response{}, fmt.Errorf("failed to decode hesitation markers: %w", err)
		}
	}
	r.ActionStatus = types.ActionStatus(actionStatus)
	r.StatedLatency = time.Duration(latency)
	r.FallbackUsed = fallback != 0
	r.CreatedAt = decodeTime(createdAt)
	return r, nil
}

func (s *SQLiteStore) queryResponses(ctx context.Context, where string, args ...interface{}) ([]types.Response, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+responseColumns+` FROM responses WHERE `+where+` ORDER BY seq`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list responses: %w", err)
	}
	defer rows.Close()
	var out []types.Response
	for rows.Next() {
		r, err := scanResponse(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan response: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ResponsesForCommunication lists responses to one communication.
func (s *SQLiteStore) ResponsesForCommunication(ctx context.Context, communicationID string) ([]types.Response, error) {
	return s.queryResponses(ctx, "communication_id = ?", communicationID)
}

// ResponsesForThread lists responses across a thread.
func (s *SQLiteStore) ResponsesForThread(ctx context.Context, threadID string) ([]types.Response, error) {
	return s.queryResponses(ctx, "thread_id = ?", threadID)
}

// ResponsesByAgent lists one agent's responses.
func (s *SQLiteStore) ResponsesByAgent(ctx context.Context, agentID string) ([]types.Response, error) {
	return s.queryResponses(ctx, "agent_id = ?", agentID)
}

// ResponsesForGoal lists responses to communications tagged with goal.
func (s *SQLiteStore) ResponsesForGoal(ctx context.Context, goal string) ([]types.Response, error) {
	return s.queryResponses(ctx,
		"communication_id IN (SELECT id FROM communications WHERE strategic_goal = ?)", goal)
}

// SaveEscalation upserts one escalation state.
func (s *SQLiteStore) SaveEscalation(ctx context.Context, st types.EscalationState) error {
	if err := s.guard(); err != nil {
		return err
	}
	commIDs, err := json.Marshal(st.CommunicationIDs)
	if err != nil {
		return fmt.Errorf("failed to encode communication IDs: %w", err)
	}
	failure := 0
	if st.ComplianceFailure {
		failure = 1
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO escalations
		 (thread_id, recipient_id, sender_id, level, nudges_ignored,
		  recommendations_ignored, communication_ids, compliance_failure, terminal_level)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (thread_id, recipient_id) DO UPDATE SET
		   sender_id = excluded.sender_id,
		   level = excluded.level,
		   nudges_ignored = excluded.nudges_ignored,
		   recommendations_ignored = excluded.recommendations_ignored,
		   communication_ids = excluded.communication_ids,
		   compliance_failure = excluded.compliance_failure,
		   terminal_level = excluded.terminal_level`,
		st.ThreadID, st.RecipientID, st.SenderID, string(st.Level),
		st.NudgesIgnored, st.RecommendationsIgnored, string(commIDs),
		failure, string(st.TerminalLevel))
	if err != nil {
		return fmt.Errorf("failed to save escalation state: %w", err)
	}
	return nil
}

// Escalation fetches one escalation state.
func (s *SQLiteStore) Escalation(ctx context.Context, threadID, recipientID string) (types.EscalationState, error) {
	if err := s.guard(); err != nil {
		return types.EscalationState{}, err
	}
	var st types.EscalationState
	var level, terminal, commIDs string
	var failure int
	err := s.db.QueryRowContext(ctx,
		`SELECT thread_id, recipient_id, sender_id, level, nudges_ignored,
		        recommendations_ignored, communication_ids, compliance_failure, terminal_level
		 FROM escalations WHERE thread_id = ? AND recipient_id = ?`,
		threadID, recipientID).Scan(
		&st.ThreadID, &st.RecipientID, &st.SenderID, &level, &st.NudgesIgnored,
		&st.RecommendationsIgnored, &commIDs, &failure, &terminal)
	if errors.Is(err, sql.ErrNoRows) {
		return types.EscalationState{}, types.Errorf(types.CodeNotFound,
			"no escalation state for thread %s recipient %s", threadID, recipientID)
	}
	if err != nil {
		return types.EscalationState{}, fmt.Errorf("failed to load escalation state: %w", err)
	}
	st.Level = types.EscalationLevel(level)
	st.TerminalLevel = types.EscalationLevel(terminal)
	st.ComplianceFailure = failure != 0
	if commIDs != "" {
		if err := json.Unmarshal([]byte(commIDs), &st.CommunicationIDs); err != nil {
			return types.EscalationState{}, fmt.Errorf("failed to decode communication IDs: %w", err)
		}
	}
	return st, nil
}

// Stats aggregates the whole store.
func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	if err := s.guard(); err != nil {
		return Stats{}, err
	}
	st := Stats{ResponseKindCounts: make(map[types.ResponseKind]int)}

	row := s.db.QueryRowContext(ctx, `
		SELECT
		  (SELECT COUNT(*) FROM communications),
		  (SELECT COUNT(DISTINCT thread_id) FROM communications),
		  (SELECT COUNT(*) FROM deliveries),
		  (SELECT COUNT(*) FROM deliveries WHERE status = 'delivered'),
		  (SELECT COUNT(*) FROM responses),
		  (SELECT COALESCE(SUM(confidence), 0) FROM responses),
		  (SELECT COUNT(*) FROM escalations WHERE compliance_failure = 1),
		  (SELECT COUNT(DISTINCT thread_id) FROM escalations
		     WHERE json_array_length(communication_ids) > 1)`)
	if err := row.Scan(&st.TotalCommunications, &st.ThreadCount, &st.TotalDeliveries,
		&st.Delivered, &st.TotalResponses, &st.SumConfidence,
		&st.ComplianceFailures, &st.EscalatedThreads); err != nil {
		return Stats{}, fmt.Errorf("failed to aggregate stats: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT kind, COUNT(*) FROM responses GROUP BY kind`)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count response kinds: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return Stats{}, err
		}
		st.ResponseKindCounts[types.ResponseKind(kind)] = n
		if types.ResponseKind(kind) == types.ResponseIgnore {
			st.Ignores = n
		}
	}
	if err := rows.Err(); err != nil {
		return Stats{}, err
	}

	var latency sql.NullInt64
	err = s.db.QueryRowContext(ctx, `
		SELECT SUM(r.created_at - d.delivered_at)
		FROM responses r
		JOIN deliveries d
		  ON d.communication_id = r.communication_id AND d.recipient_id = r.agent_id
		WHERE d.delivered_at > 0`).Scan(&latency)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to sum response latency: %w", err)
	}
	if latency.Valid {
		st.SumLatency = time.Duration(latency.Int64)
	}
	return st, nil
}

// Close closes the underlying database. Idempotent.
func (s *SQLiteStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.db.Close()
}

var _ Store = (*SQLiteStore)(nil)
