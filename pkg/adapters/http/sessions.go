package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aretw0/triagem/pkg/domain"
	"github.com/aretw0/triagem/pkg/runner"
)

type startRequest struct {
	SessionID string `json:"sessionId"`
}

type resumeRequest struct {
	Input string `json:"input"`
}

// StartSession handles POST /flows/{flowID}/sessions. The body is optional;
// without a session ID one is generated.
func (s *Server) StartSession(w http.ResponseWriter, r *http.Request) {
	if !s.requireSessions(w) {
		return
	}
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	state, err := s.Sessions.Start(r.Context(), chi.URLParam(r, "flowID"), req.SessionID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.broadcast(nil, state)
	s.writeJSON(w, http.StatusCreated, state)
}

// ListSessions handles GET /sessions.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	if !s.requireSessions(w) {
		return
	}
	ids, err := s.Sessions.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	s.writeJSON(w, http.StatusOK, ids)
}

// GetSession handles GET /sessions/{sessionID}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	if !s.requireSessions(w) {
		return
	}
	state, err := s.Sessions.Load(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, state)
}

// DeleteSession handles DELETE /sessions/{sessionID}.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if !s.requireSessions(w) {
		return
	}
	if err := s.Sessions.Delete(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ResumeSession handles POST /sessions/{sessionID}/resume.
func (s *Server) ResumeSession(w http.ResponseWriter, r *http.Request) {
	if !s.requireSessions(w) {
		return
	}
	var req resumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	input, err := runner.Sanitize(req.Input, s.maxInputSize)
	if err != nil {
		s.logger.Warn("input rejected", "error", err, "size", len(req.Input))
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid input: %v", err))
		return
	}

	id := chi.URLParam(r, "sessionID")
	prev, err := s.Sessions.Load(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	state, err := s.Sessions.Resume(r.Context(), id, input)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.broadcast(prev, state)
	s.writeJSON(w, http.StatusOK, state)
}

// ResetSession handles POST /sessions/{sessionID}/reset.
func (s *Server) ResetSession(w http.ResponseWriter, r *http.Request) {
	if !s.requireSessions(w) {
		return
	}
	id := chi.URLParam(r, "sessionID")
	prev, err := s.Sessions.Load(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	state, err := s.Sessions.Reset(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.broadcast(prev, state)
	s.writeJSON(w, http.StatusOK, state)
}

func (s *Server) broadcast(prev, next *domain.SimulationState) {
	diff := domain.Diff(prev, next)
	if diff == nil {
		return
	}
	payload, err := json.Marshal(diff)
	if err != nil {
		s.logger.Error("diff encode failed", "error", err)
		return
	}
	s.Streams.Broadcast(next.SessionID, string(payload))
}

func (s *Server) requireSessions(w http.ResponseWriter) bool {
	if s.Sessions == nil {
		s.writeError(w, http.StatusNotImplemented, "no session manager configured")
		return false
	}
	return true
}
