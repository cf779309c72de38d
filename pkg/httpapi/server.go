// Package httpapi exposes the chat engine over HTTP: the chat endpoint,
// conversation management, health, and metrics.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"finchat/pkg/engine"
	"finchat/pkg/logx"
	"finchat/pkg/persistence"
)

// Server serves the chat API.
type Server struct {
	engine   *engine.Engine
	store    *persistence.Store
	registry *prometheus.Registry
	logger   *logx.Logger
}

// NewServer creates the API server. registry may be nil to disable /metrics.
func NewServer(eng *engine.Engine, store *persistence.Store, registry *prometheus.Registry) *Server {
	return &Server{
		engine:   eng,
		store:    store,
		registry: registry,
		logger:   logx.NewLogger("httpapi"),
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /api/conversations/{user_id}", s.handleListConversations)
	mux.HandleFunc("DELETE /api/conversations/{conversation_id}", s.handleDeleteConversation)
	mux.HandleFunc("GET /health", s.handleHealth)
	if s.registry != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}
	return mux
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	UserID         string `json:"user_id"`
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// ChatResponse is the reply of POST /api/chat.
type ChatResponse struct {
	ConversationID string `json:"conversation_id"`
	Response       string `json:"response"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" || req.Message == "" {
		s.writeError(w, http.StatusBadRequest, "user_id and message are required")
		return
	}

	result, err := s.engine.ProcessMessage(r.Context(), req.UserID, req.Message, req.ConversationID)
	if err != nil && result.ConversationID == "" {
		s.logger.Error("chat turn failed: %v", err)
		s.writeError(w, http.StatusInternalServerError, "error processing message")
		return
	}
	// A node failure still yields a persisted state and an apologetic reply;
	// the client gets a 200 with that reply.
	if err != nil {
		s.logger.Warn("chat turn degraded in conversation %s: %v", result.ConversationID, err)
	}

	s.writeJSON(w, http.StatusOK, ChatResponse{
		ConversationID: result.ConversationID,
		Response:       result.Reply,
	})
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")

	infos, err := s.store.ListConversations(r.Context(), userID)
	if err != nil {
		s.logger.Error("failed to list conversations for %s: %v", userID, err)
		s.writeError(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}
	if infos == nil {
		infos = []persistence.ConversationInfo{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"conversations": infos})
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	conversationID := r.PathValue("conversation_id")

	if err := s.store.DeleteConversation(r.Context(), conversationID); err != nil {
		s.logger.Error("failed to delete conversation %s: %v", conversationID, err)
		s.writeError(w, http.StatusInternalServerError, "failed to delete conversation")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "Conversation deleted successfully"})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"detail": msg})
}
