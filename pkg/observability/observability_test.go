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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestSpanParentLinking(t *testing.T) {
	tracer := NewNoOpTracer()

	ctx, parent := tracer.StartSpan(context.Background(), "kernel.send")
	ctx, child := tracer.StartSpan(ctx, "distribution.process")

	assert.Equal(t, parent.TraceID, child.TraceID)
	assert.Equal(t, parent.SpanID, child.ParentID)
	assert.Same(t, child, SpanFromContext(ctx))

	tracer.EndSpan(child)
	tracer.EndSpan(parent)
	assert.False(t, child.EndTime.IsZero())
	assert.GreaterOrEqual(t, child.Duration, time.Duration(0))
}

func TestSpanAttributesAndStatus(t *testing.T) {
	tracer := NewNoOpTracer()
	_, span := tracer.StartSpan(context.Background(), "tracking.record_response",
		WithAttribute("communication_id", "c-1"))

	span.SetAttribute("agent_id", "riley")
	span.AddEvent("retry", map[string]interface{}{"attempt": 2})
	span.RecordError(errors.New("disk full"))

	assert.Equal(t, "c-1", span.Attributes["communication_id"])
	assert.Equal(t, "riley", span.Attributes["agent_id"])
	require.Len(t, span.Events, 1)
	assert.Equal(t, StatusError, span.Status.Code)
	assert.Equal(t, "disk full", span.Status.Message)
}

func TestLogTracer(t *testing.T) {
	tracer := NewLogTracer(zaptest.NewLogger(t))

	ctx, span := tracer.StartSpan(context.Background(), "http.request",
		WithAttribute("method", "GET"))
	tracer.RecordEvent(ctx, "routed", map[string]interface{}{"path": "/status"})
	tracer.RecordMetric("distribution.queue_depth", 3, map[string]string{"org": "acme"})
	tracer.EndSpan(span)

	assert.False(t, span.EndTime.IsZero())
	require.NoError(t, tracer.Flush(context.Background()))
}

func TestLogTracerNilLogger(t *testing.T) {
	tracer := NewLogTracer(nil)
	_, span := tracer.StartSpan(context.Background(), "noop")
	tracer.EndSpan(span)
	assert.False(t, span.EndTime.IsZero())
}
