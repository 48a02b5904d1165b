// Package engine exposes the growth decision and retention API to the rest of the application.
package engine

import (
	"context"
	"time"

	"fly2any-growth/internal/analytics"
	"fly2any-growth/internal/brain"
	"fly2any-growth/internal/cache"
	"fly2any-growth/internal/dispatch"
	"fly2any-growth/internal/domain"
	"fly2any-growth/internal/logger"
	"fly2any-growth/internal/retention"
	"fly2any-growth/internal/signals"
	"fly2any-growth/internal/storage"
)

// Options for creating Engine.
type Options struct {
	// Required
	Signals storage.SignalStore
	History storage.FlowHistoryStore

	// Optional collaborators
	Cache      cache.Store         // defaults to an in-memory store
	Dispatcher dispatch.Dispatcher // defaults to logging
	Analytics  analytics.Sink      // defaults to logging
	Logger     *logger.Logger

	// Tuning
	SignalTimeout time.Duration
	BatchLimit    int
	ActiveWindow  time.Duration
	Cooldown      time.Duration
	WeeklyCap     int
	QuietHours    *retention.QuietHours

	Now       func() time.Time
	AfterFunc retention.AfterFunc
}

// Engine is the single entry point for evaluations and retention events.
// Each Engine owns its cache and scheduler state.
type Engine struct {
	brain     *brain.Brain
	policy    *retention.Policy
	scheduler *retention.Scheduler
	cache     cache.Store
	log       *logger.Logger
}

// New creates a new Engine.
func New(opts Options) *Engine {
	log := logger.OrNop(opts.Logger)
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Cache == nil {
		opts.Cache = cache.NewMemoryStore(cache.MemoryOptions{Now: opts.Now})
	}
	if opts.Dispatcher == nil {
		opts.Dispatcher = dispatch.NewLogDispatcher(log)
	}
	if opts.Analytics == nil {
		opts.Analytics = analytics.NewLogSink(log)
	}

	provider := signals.NewProvider(signals.Options{
		Store:   opts.Signals,
		Timeout: opts.SignalTimeout,
		Logger:  log.With("component", "signals"),
		Now:     opts.Now,
	})

	b := brain.New(brain.Options{
		Signals:    provider,
		Cache:      opts.Cache,
		Analytics:  opts.Analytics,
		Logger:     log.With("component", "brain"),
		Now:        opts.Now,
		BatchLimit: opts.BatchLimit,
	})

	sched := retention.NewScheduler(retention.SchedulerOptions{
		History:      opts.History,
		Dispatcher:   opts.Dispatcher,
		Analytics:    opts.Analytics,
		Logger:       log.With("component", "scheduler"),
		ActiveWindow: opts.ActiveWindow,
		Cooldown:     opts.Cooldown,
		WeeklyCap:    opts.WeeklyCap,
		QuietHours:   opts.QuietHours,
		Now:          opts.Now,
		AfterFunc:    opts.AfterFunc,
	})

	policy := retention.NewPolicy(retention.PolicyOptions{
		Brain:     b,
		Scheduler: sched,
		Logger:    log.With("component", "retention"),
	})

	return &Engine{
		brain:     b,
		policy:    policy,
		scheduler: sched,
		cache:     opts.Cache,
		log:       log,
	}
}

// Evaluate returns the user's GrowthDecision. Never fails.
func (e *Engine) Evaluate(ctx context.Context, userID string) domain.GrowthDecision {
	return e.brain.Evaluate(ctx, userID)
}

// BatchEvaluate evaluates users concurrently. The result aligns with userIDs.
func (e *Engine) BatchEvaluate(ctx context.Context, userIDs []string) []domain.GrowthDecision {
	return e.brain.BatchEvaluate(ctx, userIDs)
}

// BatchEvaluateLimit is BatchEvaluate with a caller-supplied concurrency limit.
func (e *Engine) BatchEvaluateLimit(ctx context.Context, userIDs []string, limit int) []domain.GrowthDecision {
	return e.brain.BatchEvaluateLimit(ctx, userIDs, limit)
}

// InvalidateCache forces the next Evaluate for the user to recompute.
func (e *Engine) InvalidateCache(ctx context.Context, userID string) {
	e.brain.InvalidateCache(ctx, userID)
}

// ProcessEvent returns the executed flow, or nil when no action is taken.
func (e *Engine) ProcessEvent(ctx context.Context, ev domain.RetentionEvent) *domain.RetentionFlow {
	return e.policy.ProcessEvent(ctx, ev)
}

// GetFlowMetrics returns the user's active flow and flow history.
func (e *Engine) GetFlowMetrics(ctx context.Context, userID string) domain.FlowMetrics {
	return e.scheduler.Metrics(ctx, userID)
}

// Run performs background maintenance until ctx is cancelled.
func (e *Engine) Run(ctx context.Context, pruneInterval time.Duration) {
	if pruneInterval <= 0 {
		pruneInterval = 10 * time.Minute
	}
	e.scheduler.Run(ctx, pruneInterval)
}

// Stats is a point-in-time view for status endpoints.
type Stats struct {
	CachedDecisions int `json:"cached_decisions"`
	TrackedUsers    int `json:"tracked_users"`
}

// Stats returns current cache and scheduler sizes.
func (e *Engine) Stats() Stats {
	return Stats{
		CachedDecisions: e.cache.Len(),
		TrackedUsers:    e.scheduler.TrackedUsers(),
	}
}
