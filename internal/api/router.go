// Package api exposes the growth engine over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"fly2any-growth/internal/domain"
	"fly2any-growth/internal/logger"
	"fly2any-growth/internal/observability"
)

// DefaultMaxBatch caps the number of user IDs in one batch request.
const DefaultMaxBatch = 1000

// Engine is the growth API consumed by the handlers.
type Engine interface {
	Evaluate(ctx context.Context, userID string) domain.GrowthDecision
	BatchEvaluate(ctx context.Context, userIDs []string) []domain.GrowthDecision
	InvalidateCache(ctx context.Context, userID string)
	ProcessEvent(ctx context.Context, ev domain.RetentionEvent) *domain.RetentionFlow
	GetFlowMetrics(ctx context.Context, userID string) domain.FlowMetrics
}

// Options for creating Handler.
type Options struct {
	Engine Engine
	Logger *logger.Logger
	// Status returns extra fields for GET /status. Optional.
	Status   func() map[string]any
	MaxBatch int
	Now      func() time.Time
	NewID    func() string
}

// Handler serves the HTTP API.
type Handler struct {
	engine   Engine
	log      *logger.Logger
	status   func() map[string]any
	maxBatch int
	now      func() time.Time
	newID    func() string
	started  time.Time
}

// NewHandler creates a new Handler.
func NewHandler(opts Options) *Handler {
	if opts.MaxBatch <= 0 {
		opts.MaxBatch = DefaultMaxBatch
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = newRequestID
	}
	return &Handler{
		engine:   opts.Engine,
		log:      logger.OrNop(opts.Logger),
		status:   opts.Status,
		maxBatch: opts.MaxBatch,
		now:      opts.Now,
		newID:    opts.NewID,
		started:  opts.Now(),
	}
}

// NewRouter registers routes and the middleware stack.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(h.recoverMiddleware)
	r.Use(h.loggingMiddleware)

	r.Get("/health", h.health)
	r.Get("/status", h.handleStatus)
	r.Method(http.MethodGet, "/metrics", observability.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/users/{userID}/decision", h.getDecision)
		r.Delete("/users/{userID}/decision", h.invalidateDecision)
		r.Get("/users/{userID}/flows", h.getFlows)
		r.Post("/decisions/batch", h.batchEvaluate)
		r.Post("/events", h.processEvent)
	})

	return r
}
