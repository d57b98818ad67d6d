package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/user/agendabot/internal/auth"
	"github.com/user/agendabot/internal/gateway"
	"github.com/user/agendabot/internal/types"
)

// Server is the HTTP front door for the chat endpoint and the debug API.
// It verifies the bearer credential before anything touches a session, so
// unauthenticated requests never create sessions or reach the model.
type Server struct {
	verifier *auth.Verifier
	gateway  *gateway.Gateway
	sessions types.SessionStore
	mux      *http.ServeMux
}

// NewServer creates a Server wired to the verifier, gateway, and session store.
func NewServer(verifier *auth.Verifier, gw *gateway.Gateway, sessions types.SessionStore) *Server {
	s := &Server{
		verifier: verifier,
		gateway:  gw,
		sessions: sessions,
		mux:      http.NewServeMux(),
	}
	s.mux.HandleFunc("POST /chat", s.handleChat)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/sessions", s.handleAPISessions)
	return s
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// chatRequest is the JSON body for POST /chat.
type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type chatResponse struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	credential, ok := bearerToken(r)
	if !ok {
		http.Error(w, `{"error":"missing bearer token"}`, http.StatusUnauthorized)
		return
	}
	if _, err := s.verifier.Verify(r.Context(), credential); err != nil {
		if errors.Is(err, auth.ErrRejected) {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		slog.Error("credential check failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		http.Error(w, `{"error":"message is required"}`, http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	msg := &types.InboundMessage{
		Source:     "http",
		SessionKey: types.NewSessionKey("http", req.SessionID),
		Credential: credential,
		Text:       req.Message,
	}

	type outcome struct {
		reply string
		err   error
	}
	done := make(chan outcome, 1)
	err := s.gateway.HandleInbound(r.Context(), msg,
		gateway.WithOnComplete(func(reply string) { done <- outcome{reply: reply} }),
		gateway.WithOnError(func(err error) { done <- outcome{err: err} }))
	if err != nil {
		slog.Error("enqueue chat run failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	select {
	case out := <-done:
		if out.err != nil {
			writeError(w, http.StatusInternalServerError, out.err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatResponse{Message: out.reply, SessionID: req.SessionID})
	case <-r.Context().Done():
		// Client went away; the turn keeps running and lands in the transcript.
		writeError(w, http.StatusInternalServerError, "request cancelled")
	}
}

func (s *Server) handleAPISessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.sessions.List(r.Context())
	if err != nil {
		slog.Error("list sessions failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sessions)
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		return "", false
	}
	return token, true
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
