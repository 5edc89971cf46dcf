// Package handler is the HTTP surface of the answer service: the JSON API,
// the question page and the API Gateway adapter.
package handler

import (
	"context"
	"errors"
	"html/template"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"tax-assistant/internal/domain"
)

const correlationHeader = "X-Correlation-Id"

// ChatUseCase is the answer service consumed by the handlers.
type ChatUseCase interface {
	Answer(ctx context.Context, prompt string) (string, error)
	History(ctx context.Context, userID string, limit int) ([]domain.Exchange, error)
	ProbeLLM(ctx context.Context) (string, error)
	ProbeStore(ctx context.Context) error
}

type Handler struct {
	uc      ChatUseCase
	logger  *slog.Logger
	metrics http.Handler
	cors    bool
	page    *template.Template
	router  chi.Router
}

type Option func(*Handler)

func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithMetrics mounts m at /metrics.
func WithMetrics(m http.Handler) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

// WithCORS allows cross-origin calls from any origin.
func WithCORS(enabled bool) Option {
	return func(h *Handler) {
		h.cors = enabled
	}
}

func NewHandler(uc ChatUseCase, opts ...Option) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: use case must not be nil")
	}
	h := &Handler{
		uc:     uc,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With("component", "handler")

	page, err := parsePage()
	if err != nil {
		return nil, err
	}
	h.page = page
	h.router = h.routes()
	return h, nil
}

func (h *Handler) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(correlationID)
	if h.cors {
		r.Use(allowAnyOrigin)
	}

	r.Post("/api/tax-chat", h.handleTaxChat)
	r.Get("/api/health", h.handleHealth)
	r.Get("/api/history", h.handleHistory)
	r.Get("/api/test-llm", h.handleTestLLM)
	r.Get("/api/test-groq", h.handleTestLLM)
	r.Get("/api/test-db", h.handleTestDB)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}

	r.Get("/", h.handlePage)
	r.Post("/", h.handlePage)
	return r
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}
