// Package server provides the daemon's HTTP surface: a chat endpoint that
// runs one assistant turn, supervisor health, and a ping for liveness
// probes.
package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/SusuLegend/anima-project/pkg/anima/assistant"
	"github.com/SusuLegend/anima-project/pkg/anima/supervisor"
)

// maxChatBody caps the request body for /chat.
const maxChatBody = 1 << 20 // 1 MiB

// TurnRunner runs one conversation turn. Implemented by
// assistant.Orchestrator.
type TurnRunner interface {
	Turn(ctx context.Context, persona, userPrompt string) (*assistant.FinalReply, error)
}

// HealthSource reports the listener process state. Implemented by
// supervisor.Supervisor.
type HealthSource interface {
	Health() supervisor.Health
}

// Server is the daemon's HTTP surface.
type Server struct {
	runner  TurnRunner
	health  HealthSource
	persona string
	server  *http.Server
	logger  *slog.Logger
}

// New creates a server bound to addr.
func New(addr, persona string, runner TurnRunner, health HealthSource, logger *slog.Logger) *Server {
	s := &Server{
		runner:  runner,
		health:  health,
		persona: persona,
		logger:  logger.With("component", "server"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handlePing)
	mux.HandleFunc("/chat", s.handleChat)
	mux.HandleFunc("/health", s.handleHealth)

	s.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the route table, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start begins serving in the background.
func (s *Server) Start() {
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("server error", "error", err)
		}
	}()
	s.logger.Info("server started", "address", s.server.Addr)
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("server stopping")
	return s.server.Shutdown(ctx)
}

type chatRequest struct {
	Prompt string `json:"prompt"`
}

type chatResponse struct {
	TurnID     string             `json:"turn_id"`
	Reply      string             `json:"reply"`
	ToolUsed   string             `json:"tool_used,omitempty"`
	ToolResult *assistant.Outcome `json:"tool_result,omitempty"`
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"service": "anima", "status": "ok"})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxChatBody))
	if err != nil {
		s.writeError(w, "reading request", http.StatusBadRequest)
		return
	}
	var req chatRequest
	if err := json.Unmarshal(body, &req); err != nil || req.Prompt == "" {
		s.writeError(w, `expected {"prompt": "..."}`, http.StatusBadRequest)
		return
	}

	reply, err := s.runner.Turn(r.Context(), s.persona, req.Prompt)
	if err != nil {
		s.logger.Error("turn failed", "error", err)
		s.writeError(w, "model unavailable", http.StatusBadGateway)
		return
	}

	s.writeJSON(w, http.StatusOK, chatResponse{
		TurnID:     reply.TurnID,
		Reply:      reply.Text,
		ToolUsed:   reply.ToolUsed,
		ToolResult: reply.ToolResult,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, s.health.Health())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("writing response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, msg string, code int) {
	s.writeJSON(w, code, map[string]string{"error": msg})
}
