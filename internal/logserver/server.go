// SPDX-License-Identifier: MPL-2.0

package logserver

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"trainctl/internal/supervisor"
)

// Controller is the supervisor surface the server needs.
// *supervisor.Supervisor satisfies it; tests substitute fakes.
type Controller interface {
	Start(ctx context.Context, command []string, workDir string) (supervisor.Status, bool, error)
	Stop(ctx context.Context) (supervisor.Status, bool, error)
	Status() supervisor.Status
	Logs() []string
	Relay() *supervisor.Relay
}

// subscriberBuffer is the per-client pending-line capacity for streamed
// logs. A client further behind than this loses its oldest lines.
const subscriberBuffer = 256

// Server is the localhost control server.
type Server struct {
	httpServer *http.Server
	listener   net.Listener
	addr       string
	token      string
	ctrl       Controller
	logger     *log.Logger
}

// New creates a server bound to addr (loopback; ":0" picks a free port)
// with a freshly generated token. The server does not accept connections
// until Start is called.
func New(addr string, ctrl Controller, logger *log.Logger) (*Server, error) {
	if addr == "" {
		addr = "127.0.0.1:0"
	}
	if logger == nil {
		logger = log.Default()
	}

	token, err := generateToken(32)
	if err != nil {
		return nil, fmt.Errorf("generating server token: %w", err)
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	s := &Server{
		listener: listener,
		addr:     listener.Addr().String(),
		token:    token,
		ctrl:     ctrl,
		logger:   logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/v1/start", s.authed(s.handleStart))
	mux.HandleFunc("/v1/stop", s.authed(s.handleStop))
	mux.HandleFunc("/v1/status", s.authed(s.handleStatus))
	mux.HandleFunc("/v1/logs", s.authed(s.handleLogs))

	s.httpServer = &http.Server{
		Handler:     mux,
		ReadTimeout: 30 * time.Second,
		// No write timeout: /v1/logs?follow=1 streams indefinitely.
		IdleTimeout: 60 * time.Second,
	}

	return s, nil
}

// Start begins accepting connections. Non-blocking.
func (s *Server) Start() {
	go func() {
		if err := s.httpServer.Serve(s.listener); err != http.ErrServerClosed {
			s.logger.Error("control server stopped unexpectedly", "err", err)
		}
	}()
	s.logger.Info("control server listening", "addr", s.addr)
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

// Address returns the bound address, e.g. "127.0.0.1:54321".
func (s *Server) Address() string { return s.addr }

// URL returns the full base URL.
func (s *Server) URL() string { return "http://" + s.addr }

// Token returns the bearer token clients must present.
func (s *Server) Token() string { return s.token }

// authed wraps a handler with bearer-token verification.
func (s *Server) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		expected := "Bearer " + s.token
		if subtle.ConstantTimeCompare([]byte(auth), []byte(expected)) != 1 {
			s.sendError(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.Command) == 0 {
		s.sendError(w, "command must not be empty", http.StatusBadRequest)
		return
	}

	st, started, err := s.ctrl.Start(r.Context(), req.Command, req.WorkDir)
	if err != nil {
		s.sendError(w, err.Error(), http.StatusConflict)
		return
	}

	s.sendJSON(w, StartResponse{Status: st, Started: started})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	st, stopped, err := s.ctrl.Stop(r.Context())
	if err != nil {
		s.sendError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.sendJSON(w, StopResponse{Status: st, Stopped: stopped})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.sendJSON(w, StatusResponse{Status: s.ctrl.Status()})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.URL.Query().Get("follow") == "" {
		s.sendJSON(w, LogsResponse{Lines: s.ctrl.Logs()})
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.sendError(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	// Subscribe before the replay so no line can fall between snapshot
	// and live delivery; duplicates are preferable to gaps.
	ch, cancel := s.ctrl.Relay().Subscribe(subscriberBuffer)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	for _, line := range s.ctrl.Logs() {
		writeEvent(w, line)
	}
	flusher.Flush()

	for {
		select {
		case line := <-ch:
			writeEvent(w, line)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, line string) {
	fmt.Fprintf(w, "data: %s\n\n", line)
}

func (s *Server) sendJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) sendError(w http.ResponseWriter, msg string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: msg})
}

// generateToken returns a random hex token of the given byte length.
func generateToken(bytes int) (string, error) {
	b := make([]byte, bytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
