package httpapi

import (
	"encoding/json"
	"errors"
	"html"
	"net/http"
	"strings"
	"unicode/utf8"

	"chatgate/internal/chat"
	"chatgate/internal/learning"
	"chatgate/internal/ratelimit"
	"chatgate/internal/session"
)

const (
	maxCommentLength       = 500
	escalationContextTurns = 5
)

// Server exposes the chat pipeline over HTTP.
type Server struct {
	orchestrator *chat.Orchestrator
	limiter      *ratelimit.Limiter
	learning     *learning.Engine
	auth         *Authenticator
	contactURL   string
}

func NewServer(orchestrator *chat.Orchestrator, limiter *ratelimit.Limiter,
	engine *learning.Engine, auth *Authenticator, contactURL string) http.Handler {
	s := &Server{
		orchestrator: orchestrator,
		limiter:      limiter,
		learning:     engine,
		auth:         auth,
		contactURL:   contactURL,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat/send", s.handleSend)
	mux.HandleFunc("/api/chat/history", s.handleHistory)
	mux.HandleFunc("/api/chat/session", s.handleSession)
	mux.HandleFunc("/api/chat/feedback", s.handleFeedback)
	mux.HandleFunc("/api/chat/escalate", s.handleEscalate)
	mux.HandleFunc("/api/chat/learning", s.handleLearning)
	mux.HandleFunc("/api/chat/learning/analyze", s.handleAnalyze)
	mux.HandleFunc("/api/chat/ws", s.handleWS)
	mux.HandleFunc("/api/admin/login", s.handleLogin)
	mux.HandleFunc("/api/admin/logout", s.handleLogout)
	mux.HandleFunc("/healthz", s.handleHealth)

	// Unmatched /api/ paths get the JSON error envelope, not the
	// stdlib plain-text 404.
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		notFound(w, "unknown endpoint")
	})

	return chainMiddlewares(mux, withCORS, withLogging)
}

type sendRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId,omitempty"`
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	// Rate limiting runs before validation so malformed requests still
	// consume a slot.
	decision := s.limiter.CheckAndRecord(clientKey(r, req.SessionID), "chat")
	if !decision.Allowed {
		tooManyRequests(w, decision.Reason, decision.RetryAfterSeconds)
		return
	}

	out, err := s.orchestrator.Handle(r.Context(), chat.Input{
		SessionID: req.SessionID,
		Message:   req.Message,
		OwnerRef:  clientIP(r),
	})
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrEmptyMessage):
			badRequest(w, "message is required")
		case errors.Is(err, chat.ErrMessageTooLong):
			badRequest(w, "message exceeds maximum length")
		default:
			internalError(w)
		}
		return
	}

	writeJSON(w, http.StatusOK, out)
}

type historyResponse struct {
	SessionID string       `json:"sessionId"`
	Turns     []*chat.Turn `json:"turns"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		badRequest(w, "sessionId is required")
		return
	}

	decision := s.limiter.CheckAndRecord(clientKey(r, sessionID), "history")
	if !decision.Allowed {
		tooManyRequests(w, decision.Reason, decision.RetryAfterSeconds)
		return
	}

	turns, err := s.orchestrator.History(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) || errors.Is(err, session.ErrExpired) {
			unauthorized(w, "session not found or expired")
			return
		}
		internalError(w)
		return
	}
	if turns == nil {
		turns = []*chat.Turn{}
	}

	writeJSON(w, http.StatusOK, historyResponse{SessionID: sessionID, Turns: turns})
}

type sessionResponse struct {
	SessionID string           `json:"sessionId"`
	Valid     bool             `json:"valid"`
	Session   *session.Session `json:"session"`
}

// handleSession validates the claimed session and issues a fresh one when
// it is missing or expired, so the widget always leaves with a usable id.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	sessionID := r.URL.Query().Get("sessionId")
	decision := s.limiter.CheckAndRecord(clientKey(r, sessionID), "session")
	if !decision.Allowed {
		tooManyRequests(w, decision.Reason, decision.RetryAfterSeconds)
		return
	}

	sess, valid, err := s.orchestrator.EnsureSession(r.Context(), sessionID, clientIP(r))
	if err != nil {
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		SessionID: sess.ID,
		Valid:     valid,
		Session:   sess,
	})
}

type feedbackRequest struct {
	SessionID string `json:"sessionId,omitempty"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment,omitempty"`
	Category  string `json:"category,omitempty"`
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	decision := s.limiter.CheckAndRecord(clientKey(r, req.SessionID), "feedback")
	if !decision.Allowed {
		tooManyRequests(w, decision.Reason, decision.RetryAfterSeconds)
		return
	}

	if req.Rating < 1 || req.Rating > 5 {
		badRequest(w, "rating must be between 1 and 5")
		return
	}
	if utf8.RuneCountInString(req.Comment) > maxCommentLength {
		badRequest(w, "comment exceeds maximum length")
		return
	}

	average := s.learning.RecordFeedback(req.Rating, html.EscapeString(req.Comment), req.Category)
	writeJSON(w, http.StatusOK, map[string]float64{"averageRating": average})
}

type escalateRequest struct {
	SessionID string `json:"sessionId,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

type escalateResponse struct {
	ContactURL    string       `json:"contactUrl"`
	RecentContext []*chat.Turn `json:"recentContext"`
}

func (s *Server) handleEscalate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req escalateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	decision := s.limiter.CheckAndRecord(clientKey(r, req.SessionID), "escalate")
	if !decision.Allowed {
		tooManyRequests(w, decision.Reason, decision.RetryAfterSeconds)
		return
	}

	recent := s.orchestrator.RecentContext(r.Context(), req.SessionID, escalationContextTurns)
	if recent == nil {
		recent = []*chat.Turn{}
	}

	s.learning.RecordEscalation()
	writeJSON(w, http.StatusOK, escalateResponse{
		ContactURL:    s.contactURL,
		RecentContext: recent,
	})
}

func (s *Server) handleLearning(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if !s.auth.Verify(r.Context(), adminToken(r)) {
		unauthorized(w, "admin session required")
		return
	}

	writeJSON(w, http.StatusOK, s.learning.Snapshot())
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.auth.Verify(r.Context(), adminToken(r)) {
		unauthorized(w, "admin session required")
		return
	}

	insights := s.learning.Analyze()
	if insights == nil {
		insights = []learning.Insight{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"insights": insights})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		badRequest(w, "username and password are required")
		return
	}

	token, err := s.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		unauthorized(w, "invalid credentials")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	token := adminToken(r)
	if token == "" {
		badRequest(w, "token is required")
		return
	}
	if err := s.auth.Logout(r.Context(), token); err != nil {
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
