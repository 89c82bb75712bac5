package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/essayflow"
	"github.com/aretw0/essayflow/internal/logging"
	"github.com/aretw0/essayflow/internal/presentation/graph"
	"github.com/aretw0/essayflow/pkg/adapters/backend"
	"github.com/aretw0/essayflow/pkg/domain"
	"github.com/aretw0/essayflow/pkg/ports"
	"github.com/aretw0/essayflow/pkg/session"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Engine is the part of the session controller driven over HTTP.
type Engine interface {
	Start(ctx context.Context) error
	SubmitEssay(ctx context.Context, essay string) error
	Retry(ctx context.Context) error
	Snapshot() domain.Snapshot
}

// EssayRequest is the body of POST /essay.
type EssayRequest struct {
	Essay string `json:"essay"`
}

// Server exposes an Engine to a browser shell.
type Server struct {
	Engine  Engine
	Streams *StreamManager

	store   ports.SessionStore
	metrics http.Handler
	logger  *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithStore serves stored snapshots under /sessions.
func WithStore(store ports.SessionStore) Option {
	return func(s *Server) { s.store = store }
}

// WithMetricsHandler replaces the default promhttp handler on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// NewServer creates a server for engine. streams must be the same manager
// the engine renders into; nil creates a fresh one.
func NewServer(engine Engine, streams *StreamManager, opts ...Option) *Server {
	s := &Server{
		Engine:  engine,
		metrics: promhttp.Handler(),
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if streams == nil {
		streams = NewStreamManager(s.logger)
	}
	s.Streams = streams
	return s
}

// Handler returns the routed http.Handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(enableCORS)

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/graph", s.GetGraph)
	r.Get("/graph/mermaid", s.GetMermaid)
	r.Post("/start", s.Start)
	r.Post("/essay", s.SubmitEssay)
	r.Post("/retry", s.Retry)
	r.Get("/events", s.SubscribeEvents)
	r.Get("/sessions", s.ListSessions)
	r.Get("/sessions/{id}", s.GetSession)
	r.Method(http.MethodGet, "/metrics", s.metrics)
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"app":     "essayflow-http",
		"version": strings.TrimSpace(essayflow.Version),
	})
}

// GetGraph handles GET /graph with the current snapshot.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Engine.Snapshot())
}

// GetMermaid handles GET /graph/mermaid.
func (s *Server) GetMermaid(w http.ResponseWriter, r *http.Request) {
	snap := s.Engine.Snapshot()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, graph.GenerateMermaid(&snap))
}

// Start handles POST /start. It returns once the essay is expected.
func (s *Server) Start(w http.ResponseWriter, r *http.Request) {
	if err := s.Engine.Start(r.Context()); err != nil {
		s.writeError(w, "start", err)
		return
	}
	writeJSON(w, http.StatusOK, s.Engine.Snapshot().Session)
}

// SubmitEssay handles POST /essay. Evaluation continues in the background
// and is reported over /events.
func (s *Server) SubmitEssay(w http.ResponseWriter, r *http.Request) {
	var body EssayRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("essay: invalid request body", "err", err)
		return
	}
	if err := s.Engine.SubmitEssay(r.Context(), body.Essay); err != nil {
		s.writeError(w, "submit essay", err)
		return
	}
	writeJSON(w, http.StatusAccepted, s.Engine.Snapshot().Session)
}

// Retry handles POST /retry.
func (s *Server) Retry(w http.ResponseWriter, r *http.Request) {
	if err := s.Engine.Retry(r.Context()); err != nil {
		s.writeError(w, "retry", err)
		return
	}
	writeJSON(w, http.StatusOK, s.Engine.Snapshot().Session)
}

// ListSessions handles GET /sessions.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	ids := []string{}
	if s.store != nil {
		listed, err := s.store.List(r.Context())
		if err != nil {
			s.writeError(w, "list sessions", err)
			return
		}
		ids = append(ids, listed...)
	}
	writeJSON(w, http.StatusOK, ids)
}

// GetSession handles GET /sessions/{id}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, "load session", domain.ErrSessionNotFound)
		return
	}
	snap, err := s.store.Load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, "load session", err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// SubscribeEvents handles GET /events (SSE). The current snapshot is sent on
// connect, then every diff and surface event as it happens.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("events: streaming not supported")
		return
	}

	ch, cancel := s.Streams.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	if data, err := json.Marshal(s.Engine.Snapshot()); err == nil {
		writeEvent(w, Message{Event: EventSnapshot, Data: data})
	}
	flusher.Flush()
	s.logger.Info("sse client connected")

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("sse client disconnected")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			writeEvent(w, msg)
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, msg Message) {
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Event, msg.Data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// StatusCode maps engine errors to HTTP status codes.
func StatusCode(err error) int {
	var se *backend.StatusError
	switch {
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrNoSession):
		return http.StatusConflict
	case errors.Is(err, domain.ErrEmptyEssay),
		errors.Is(err, session.ErrEssayTooLarge),
		errors.Is(err, session.ErrInvalidUTF8):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.As(err, &se):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, op string, err error) {
	code := StatusCode(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error(op+" failed", "err", err)
	} else {
		s.logger.Warn(op+" rejected", "err", err)
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
