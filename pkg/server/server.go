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

// Package server exposes the simulation kernel over HTTP/JSON, plus a
// server-sent-events stream of simulation events. The adapter carries no
// state of its own; everything is translated into kernel calls.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/r3labs/sse/v2"
	"go.uber.org/zap"

	"github.com/teradata-labs/ripple/pkg/observability"
	"github.com/teradata-labs/ripple/pkg/org"
	"github.com/teradata-labs/ripple/pkg/sim"
	"github.com/teradata-labs/ripple/pkg/types"
)

// eventStream is the SSE stream name served under /events.
const eventStream = "simulation"

// Server is the HTTP adapter.
type Server struct {
	kernel *sim.Kernel
	orgs   map[string]*org.Organization
	logger *zap.Logger
	tracer observability.Tracer

	events      *sse.Server
	unsubscribe func()
	pumpDone    chan struct{}

	httpServer *http.Server
}

// New creates a server for one kernel and a catalogue of loadable
// organizations. addr is the listen address for Start; handlers also work
// standalone via Handler (used by tests).
func New(kernel *sim.Kernel, orgs map[string]*org.Organization, addr string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if orgs == nil {
		orgs = map[string]*org.Organization{}
	}

	events := sse.New()
	events.AutoReplay = false
	events.CreateStream(eventStream)

	s := &Server{
		kernel:   kernel,
		orgs:     orgs,
		logger:   logger,
		tracer:   observability.NewNoOpTracer(),
		events:   events,
		pumpDone: make(chan struct{}),
	}
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // no timeout, /events streams indefinitely
		IdleTimeout:  120 * time.Second,
	}

	ch, cancel := kernel.SubscribeEvents()
	s.unsubscribe = cancel
	go s.pump(ch)
	return s
}

// SetTracer installs a tracer for per-request spans. Call before Start.
func (s *Server) SetTracer(tracer observability.Tracer) {
	if tracer != nil {
		s.tracer = tracer
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /organizations", s.handleOrganizations)
	mux.HandleFunc("GET /organizations/{id}", s.handleOrganization)
	mux.HandleFunc("GET /organizations/{id}/employees", s.handleOrganizationEmployees)
	mux.HandleFunc("POST /simulation/start", s.handleStart)
	mux.HandleFunc("POST /simulation/stop", s.handleStop)
	mux.HandleFunc("POST /communications", s.handleSendCommunication)
	mux.HandleFunc("GET /wisdom", s.handleWisdom)
	mux.HandleFunc("GET /employees", s.handleEmployees)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	})
	return s.accessLog(mux)
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return types.WrapError(types.CodeInternal, err, "HTTP server failed")
	}
	return nil
}

// Shutdown gracefully stops the listener and releases the event stream.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")
	err := s.httpServer.Shutdown(ctx)
	s.Close()
	return err
}

// Close releases the kernel event subscription and the SSE broker. Safe to
// call on a server that never started listening.
func (s *Server) Close() {
	s.unsubscribe()
	<-s.pumpDone
	s.events.Close()
}

// pump republishes kernel events onto the SSE stream until the
// subscription is cancelled.
func (s *Server) pump(ch <-chan types.SimulationEvent) {
	defer close(s.pumpDone)
	for e := range ch {
		data, err := json.Marshal(e)
		if err != nil {
			s.logger.Error("failed to marshal simulation event", zap.Error(err))
			continue
		}
		s.events.Publish(eventStream, &sse.Event{
			Event: []byte(string(e.Kind)),
			Data:  data,
		})
	}
}

// handleEvents bridges to the SSE broker, which keys streams off a query
// parameter.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	q.Set("stream", eventStream)
	r.URL.RawQuery = q.Encode()
	s.events.ServeHTTP(w, r)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx, span := s.tracer.StartSpan(r.Context(), "http.request",
			observability.WithAttribute("method", r.Method),
			observability.WithAttribute("path", r.URL.Path))
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))
		span.SetAttribute("status", rec.status)
		s.tracer.EndSpan(span)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}
