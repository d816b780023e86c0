package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"waitroom-triage/internal/core"
	"waitroom-triage/internal/db"
	"waitroom-triage/pkg"
)

const (
	transcriptLimit = 50
	listLimit       = 100
	maxBodyBytes    = 64 << 10
)

// Server bundles together the dependencies required by HTTP handlers. It
// implements http.Handler so it can be passed to http.Server.
type Server struct {
	Store          db.Store
	Orchestrator   *core.Orchestrator
	Summarizer     *core.Summarizer
	Logger         *zap.Logger
	RequestTimeout time.Duration
}

// NewServer constructs a Server.
func NewServer(store db.Store, orch *core.Orchestrator, logger *zap.Logger, timeout time.Duration) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		Store:          store,
		Orchestrator:   orch,
		Summarizer:     core.NewSummarizer(),
		Logger:         logger,
		RequestTimeout: timeout,
	}
}

// chatReply is the body of POST /api/chat.
type chatReply struct {
	pkg.ChatResponse
	HandoffTicket *pkg.HandoffTicket `json:"handoff_ticket,omitempty"`
}

// ServeHTTP dispatches incoming requests based on the URL path.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.RequestTimeout)
		defer cancel()
	}
	r = r.WithContext(ctx)

	path := strings.TrimSuffix(r.URL.Path, "/")
	switch {
	case path == "/health" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	// Patient turn: POST /api/chat
	case path == "/api/chat" && r.Method == http.MethodPost:
		s.handleChat(w, r)
	case path == "/api/sessions" && r.Method == http.MethodGet:
		s.handleListSessions(w, r)
	// Clinician views: GET /api/sessions/{id}[/transcript|/summary|/assessment]
	case strings.HasPrefix(path, "/api/sessions/") && r.Method == http.MethodGet:
		parts := strings.Split(strings.TrimPrefix(path, "/api/sessions/"), "/")
		switch {
		case len(parts) == 1 && parts[0] != "":
			s.handleSession(w, r, parts[0])
		case len(parts) == 2 && parts[1] == "transcript":
			s.handleTranscript(w, r, parts[0])
		case len(parts) == 2 && parts[1] == "summary":
			s.handleSummary(w, r, parts[0])
		case len(parts) == 2 && parts[1] == "assessment":
			s.handleAssessment(w, r, parts[0])
		default:
			http.NotFound(w, r)
		}
	case path == "/api/tickets" && r.Method == http.MethodGet:
		s.handleListTickets(w, r)
	// POST /api/tickets/{id}/resolve
	case strings.HasPrefix(path, "/api/tickets/") && strings.HasSuffix(path, "/resolve") && r.Method == http.MethodPost:
		parts := strings.Split(path, "/")
		if len(parts) != 5 || parts[3] == "" {
			http.NotFound(w, r)
			return
		}
		s.handleResolveTicket(w, r, parts[3])
	default:
		http.NotFound(w, r)
	}
}

// handleChat runs one triage turn. Store failures become a failsafe reply
// so the patient is always told to seek care.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req pkg.ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.ConversationID) == "" {
		writeError(w, http.StatusBadRequest, "conversation_id is required")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "empty message")
		return
	}

	res, err := s.Orchestrator.Process(ctx, req)
	if err != nil {
		if errors.Is(err, core.ErrEmptyMessage) || errors.Is(err, core.ErrMissingConversation) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.failsafe(w, req.ConversationID, err)
		return
	}
	writeJSON(w, http.StatusOK, chatReply{ChatResponse: res.Response, HandoffTicket: res.Ticket})
}

func (s *Server) failsafe(w http.ResponseWriter, conversationID string, err error) {
	s.Logger.Error("turn failed, returning failsafe reply",
		zap.String("conversation_id", conversationID), zap.Error(err))
	reason := core.ReasonFailsafe
	writeJSON(w, http.StatusServiceUnavailable, chatReply{ChatResponse: pkg.ChatResponse{
		ConversationID:  conversationID,
		Response:        core.FailsafeReply,
		State:           pkg.StateEmergency,
		RequiresHandoff: true,
		HandoffReason:   &reason,
		UrgencyLevel:    pkg.UrgencyEmergency,
		Disclaimer:      pkg.Disclaimer,
	}})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.Store.ListSessions(r.Context(), limitParam(r, listLimit))
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request, id string) {
	sess, err := s.Store.GetSession(r.Context(), id)
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request, id string) {
	msgs, err := s.Store.GetTranscript(r.Context(), id, limitParam(r, transcriptLimit))
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request, id string) {
	sess, err := s.Store.GetSession(r.Context(), id)
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Summarizer.Summarize(sess))
}

func (s *Server) handleAssessment(w http.ResponseWriter, r *http.Request, id string) {
	a, err := s.Orchestrator.Assess(r.Context(), id)
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleListTickets(w http.ResponseWriter, r *http.Request) {
	tickets, err := s.Store.ListHandoffTickets(r.Context(), limitParam(r, listLimit))
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tickets)
}

func (s *Server) handleResolveTicket(w http.ResponseWriter, r *http.Request, id string) {
	remaining, err := s.Store.ResolveHandoffTicket(r.Context(), id)
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"resolved": id, "remaining": remaining})
}

func (s *Server) storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, db.ErrSessionNotFound), errors.Is(err, db.ErrTicketNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		s.Logger.Error("store request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func limitParam(r *http.Request, def int) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
