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

package observability

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LogTracer exports completed spans and metrics to a zap logger at debug
// level. It is the built-in backend for local runs; production deployments
// plug in their own Tracer.
type LogTracer struct {
	logger *zap.Logger
}

// NewLogTracer creates a tracer writing to logger.
func NewLogTracer(logger *zap.Logger) *LogTracer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogTracer{logger: logger}
}

// StartSpan creates a span linked to any parent found in ctx.
func (t *LogTracer) StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, *Span) {
	span := &Span{
		TraceID:    uuid.New().String(),
		SpanID:     uuid.New().String(),
		Name:       name,
		StartTime:  time.Now(),
		Attributes: make(map[string]interface{}),
	}
	for _, opt := range opts {
		opt(span)
	}
	if parent := SpanFromContext(ctx); parent != nil {
		span.TraceID = parent.TraceID
		span.ParentID = parent.SpanID
	}
	return ContextWithSpan(ctx, span), span
}

// EndSpan completes the span and writes it to the log.
func (t *LogTracer) EndSpan(span *Span) {
	if span == nil {
		return
	}
	span.EndTime = time.Now()
	span.Duration = span.EndTime.Sub(span.StartTime)

	fields := []zap.Field{
		zap.String("trace_id", span.TraceID),
		zap.String("span_id", span.SpanID),
		zap.Duration("duration", span.Duration),
		zap.String("status", span.Status.Code.String()),
	}
	if span.ParentID != "" {
		fields = append(fields, zap.String("parent_id", span.ParentID))
	}
	for k, v := range span.Attributes {
		fields = append(fields, zap.Any(k, v))
	}
	t.logger.Debug("span "+span.Name, fields...)
}

// RecordMetric writes the metric to the log.
func (t *LogTracer) RecordMetric(name string, value float64, labels map[string]string) {
	fields := []zap.Field{zap.Float64("value", value)}
	for k, v := range labels {
		fields = append(fields, zap.String(k, v))
	}
	t.logger.Debug("metric "+name, fields...)
}

// RecordEvent writes the event to the log.
func (t *LogTracer) RecordEvent(ctx context.Context, name string, attributes map[string]interface{}) {
	fields := make([]zap.Field, 0, len(attributes)+1)
	if span := SpanFromContext(ctx); span != nil {
		fields = append(fields, zap.String("trace_id", span.TraceID))
	}
	for k, v := range attributes {
		fields = append(fields, zap.Any(k, v))
	}
	t.logger.Debug("event "+name, fields...)
}

// Flush is a no-op; the logger owns buffering.
func (t *LogTracer) Flush(ctx context.Context) error {
	return nil
}

var _ Tracer = (*LogTracer)(nil)
