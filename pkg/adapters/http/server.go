package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/aretw0/triagem"
	"github.com/aretw0/triagem/pkg/domain"
	"github.com/aretw0/triagem/pkg/ports"
	"github.com/aretw0/triagem/pkg/runner"
	"github.com/aretw0/triagem/pkg/session"
)

// maxBodyBytes caps flow documents and visual graphs sent to the API.
const maxBodyBytes = 4 << 20

// Server exposes flow tooling and conversation sessions over HTTP.
type Server struct {
	Engine   *triagem.Engine
	Flows    ports.FlowRepository
	Sessions *session.Manager
	Streams  *StreamManager

	metrics      http.Handler
	logger       *slog.Logger
	maxInputSize int
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics mounts h at GET /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithMaxInputSize sets the byte limit for answers sent to /resume.
func WithMaxInputSize(n int) Option {
	return func(s *Server) {
		s.maxInputSize = n
	}
}

// NewServer wires the collaborators. Sessions and Flows may be nil, in which
// case only the stateless flow tooling routes respond.
func NewServer(engine *triagem.Engine, flows ports.FlowRepository, sessions *session.Manager, opts ...Option) *Server {
	s := &Server{
		Engine:       engine,
		Flows:        flows,
		Sessions:     sessions,
		Streams:      NewStreamManager(),
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		maxInputSize: runner.MaxInputSize(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.Engine == nil {
		s.Engine = triagem.New(triagem.WithLogger(s.logger))
	}
	s.Streams.logger = s.logger
	return s
}

// NewHandler builds the router for a new Server.
func NewHandler(engine *triagem.Engine, flows ports.FlowRepository, sessions *session.Manager, opts ...Option) http.Handler {
	return NewServer(engine, flows, sessions, opts...).Routes()
}

// Routes returns the chi router serving every endpoint.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/flows", func(r chi.Router) {
		r.Post("/validate", s.ValidateFlow)
		r.Post("/autofix", s.AutoFixFlow)
		r.Post("/visual", s.ToVisual)
		r.Post("/document", s.ToDocument)

		r.Get("/", s.ListFlows)
		r.Get("/{flowID}", s.GetFlow)
		r.Put("/{flowID}", s.PutFlow)
		r.Delete("/{flowID}", s.DeleteFlow)
		r.Post("/{flowID}/sessions", s.StartSession)
	})

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.ListSessions)
		r.Get("/{sessionID}", s.GetSession)
		r.Delete("/{sessionID}", s.DeleteSession)
		r.Post("/{sessionID}/resume", s.ResumeSession)
		r.Post("/{sessionID}/reset", s.ResetSession)
		r.Get("/{sessionID}/events", s.SubscribeEvents)
	})
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "triagem-http",
		"version": strings.TrimSpace(triagem.Version),
	})
}

type errorResponse struct {
	Error  string          `json:"error"`
	Issues []triagem.Issue `json:"issues,omitempty"`
	Cycles []string        `json:"cycles,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

// fail maps domain errors to status codes.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrFlowNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidChoice):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNotSuspended):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrNilFlow):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		s.logger.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	s.writeError(w, status, err.Error())
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
}
