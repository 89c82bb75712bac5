package sim

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/essayflow/internal/logging"
	"github.com/aretw0/essayflow/pkg/adapters/backend"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Handler serves a Backend over the same HTTP contract as the real service.
type Handler struct {
	backend *Backend
	latency time.Duration
	logger  *slog.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithHandlerLatency delays every streamed record by d.
func WithHandlerLatency(d time.Duration) HandlerOption {
	return func(h *Handler) { h.latency = d }
}

// WithHandlerLogger sets the request logger.
func WithHandlerLogger(l *slog.Logger) HandlerOption {
	return func(h *Handler) { h.logger = l }
}

// NewHandler returns an http.Handler for b.
func NewHandler(b *Backend, opts ...HandlerOption) http.Handler {
	h := &Handler{backend: b, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(h)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)
	r.Post(backend.PathStart, h.start)
	r.Post(backend.PathSubmit, h.submit)
	return r
}

func (h *Handler) start(w http.ResponseWriter, r *http.Request) {
	info := h.backend.Start()
	h.logger.Info("thread started", "thread_id", info.ID, "topic", info.Topic)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(info)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	var req backend.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	records, err := h.backend.Evaluate(req.ThreadID, req.Essay)
	if errors.Is(err, ErrUnknownThread) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	flusher, _ := w.(http.Flusher)
	w.Header().Set("Content-Type", backend.MediaTypeNDJSON)
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	for _, rec := range records {
		if h.latency > 0 {
			select {
			case <-r.Context().Done():
				return
			case <-time.After(h.latency):
			}
		}
		line, err := EncodeRecord(rec)
		if err != nil {
			h.logger.Error("encode record", "err", err)
			return
		}
		if _, err := w.Write(line); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
	h.logger.Info("evaluation streamed", "thread_id", req.ThreadID, "records", len(records))
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
