// Copyright 2026 Wikisoft
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

// Package server is the HTTP boundary. It accepts roster uploads, runs the
// validation agent, and returns the result envelope; malformed requests get
// stable 4xx codes, every completed agent run is a 200 regardless of grade.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/wikisoft/rostercheck/pkg/agent"
	"github.com/wikisoft/rostercheck/pkg/casestore"
	"github.com/wikisoft/rostercheck/pkg/events"
)

// Config tunes the HTTP boundary.
type Config struct {
	Addr          string
	CORSOrigins   []string
	MaxUploadMB   int
	RequestLogger bool
}

// Server wires the agent pipeline behind a chi router.
type Server struct {
	agent   *agent.Agent
	cases   *casestore.Store
	emitter *events.Emitter
	logger  *zap.Logger
	config  Config

	httpServer *http.Server
}

// New builds the server. emitter may be a sink-less emitter; it is never
// nil-checked per request.
func New(config Config, ag *agent.Agent, cases *casestore.Store, emitter *events.Emitter, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Addr == "" {
		config.Addr = ":8080"
	}
	if config.MaxUploadMB <= 0 {
		config.MaxUploadMB = 20
	}
	s := &Server{
		agent:   ag,
		cases:   cases,
		emitter: emitter,
		logger:  logger,
		config:  config,
	}
	s.httpServer = &http.Server{
		Addr:         config.Addr,
		Handler:      s.Router(),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Router builds the route tree. Exposed separately so tests can drive the
// handlers through httptest without binding a socket.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if s.config.RequestLogger {
		r.Use(s.logRequests)
	}
	r.Use(middleware.Recoverer)

	origins := s.config.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Session-ID"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Get("/diagnostic-questions", s.handleQuestions)
	r.Get("/cases/stats", s.handleCaseStats)
	r.Post("/validate", s.handleValidate)
	r.Post("/webhook/generic", s.handleWebhook)
	return r
}

// Start serves until ctx is cancelled, then drains in-flight requests and
// flushes pending events.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.config.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	err := s.httpServer.Shutdown(shutdownCtx)
	s.emitter.Flush()
	s.logger.Info("http server stopped")
	return err
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// apiError is the stable 4xx shape.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, apiError{Code: code, Message: message})
}
