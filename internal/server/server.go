package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/chris/parley/internal/chat"
	"github.com/chris/parley/internal/llm"
)

// Server exposes the conversation API over HTTP. A nil manager answers every
// conversation route with 503 so the process can come up before its
// dependencies do.
type Server struct {
	manager *chat.Manager
}

func New(manager *chat.Manager) *Server {
	return &Server{manager: manager}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /conversations", s.requireManager(s.handleCreate))
	mux.HandleFunc("GET /conversations", s.requireManager(s.handleList))
	mux.HandleFunc("GET /conversations/{id}", s.requireManager(s.handleGet))
	mux.HandleFunc("DELETE /conversations/{id}", s.requireManager(s.handleDelete))
	mux.HandleFunc("POST /conversations/{id}/chat", s.requireManager(s.handleChat))
	return cors(mux)
}

// cors allows any origin. The service fronts local tooling, not the open
// internet.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireManager(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.manager == nil {
			writeError(w, http.StatusServiceUnavailable, "service not initialized")
			return
		}
		next(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":                           "healthy",
		"conversation_manager_initialized": s.manager != nil,
	})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	conv, err := s.manager.Create(req.Title)
	if err != nil {
		log.Printf("creating conversation: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create conversation")
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.manager.List()
	if err != nil {
		log.Printf("listing conversations: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": summaries})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	conv, err := s.manager.Get(id)
	if err != nil {
		log.Printf("loading conversation %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}
	if conv == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("conversation %s not found", id))
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	deleted, err := s.manager.Delete(id)
	if err != nil {
		log.Printf("deleting conversation %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to delete conversation")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, fmt.Sprintf("conversation %s not found", id))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("conversation %s deleted", id),
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req struct {
		Message string `json:"message"`
		Stream  bool   `json:"stream"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	userMessage := llm.Message{Role: llm.RoleUser, Content: req.Message}

	if !req.Stream {
		result, err := s.manager.Chat(r.Context(), id, userMessage)
		if err != nil {
			writeChatError(w, id, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
		return
	}

	frames, err := s.manager.ChatStream(r.Context(), id, userMessage)
	if err != nil {
		writeChatError(w, id, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher, _ := w.(http.Flusher)
	for frame := range frames {
		if _, err := fmt.Fprint(w, frame); err != nil {
			log.Printf("writing stream for %s: %v", id, err)
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func writeChatError(w http.ResponseWriter, id string, err error) {
	if errors.Is(err, chat.ErrConversationNotFound) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("conversation %s not found", id))
		return
	}
	log.Printf("chat turn for %s: %v", id, err)
	writeError(w, http.StatusInternalServerError, "chat turn failed")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
