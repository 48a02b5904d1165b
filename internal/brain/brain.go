// Package brain orchestrates a single evaluation:
// cache → signals → scoring → decision → personalization → cache.
package brain

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"fly2any-growth/internal/analytics"
	"fly2any-growth/internal/cache"
	"fly2any-growth/internal/decision"
	"fly2any-growth/internal/domain"
	"fly2any-growth/internal/logger"
	"fly2any-growth/internal/observability"
	"fly2any-growth/internal/scoring"
	"fly2any-growth/internal/signals"
)

// DefaultBatchLimit bounds concurrent evaluations in BatchEvaluate.
const DefaultBatchLimit = 16

// SignalSource loads the four signal groups for a user. It never fails:
// degraded groups are reported on the returned value.
type SignalSource interface {
	Fetch(ctx context.Context, userID string) domain.UserSignals
}

// Brain produces GrowthDecisions.
type Brain struct {
	signals    SignalSource
	cache      cache.Store
	analytics  analytics.Sink
	log        *logger.Logger
	now        func() time.Time
	batchLimit int
}

// Options for creating Brain.
type Options struct {
	Signals SignalSource

	// Optional collaborators
	Cache     cache.Store    // defaults to cache.Nop
	Analytics analytics.Sink // defaults to analytics.Nop
	Logger    *logger.Logger

	Now        func() time.Time
	BatchLimit int
}

// New creates a new Brain.
func New(opts Options) *Brain {
	if opts.Cache == nil {
		opts.Cache = cache.Nop{}
	}
	if opts.Analytics == nil {
		opts.Analytics = analytics.Nop{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.BatchLimit <= 0 {
		opts.BatchLimit = DefaultBatchLimit
	}
	return &Brain{
		signals:    opts.Signals,
		cache:      opts.Cache,
		analytics:  opts.Analytics,
		log:        logger.OrNop(opts.Logger),
		now:        opts.Now,
		batchLimit: opts.BatchLimit,
	}
}

// Evaluate returns the user's decision, from cache when fresh.
// An unknown user yields domain.DefaultDecision, which is never cached.
func (b *Brain) Evaluate(ctx context.Context, userID string) domain.GrowthDecision {
	start := time.Now()

	if userID == "" {
		observability.RecordEvaluation(observability.SourceDefault, 0)
		return domain.DefaultDecision(userID, b.now())
	}

	if d, ok := b.cache.Get(ctx, userID); ok {
		observability.RecordEvaluation(observability.SourceCache, time.Since(start))
		return d
	}

	s := b.signals.Fetch(ctx, userID)
	if !s.ProfileFound || signals.AllFailed(s) {
		b.log.Debug("default decision", "user_id", userID, "profile_found", s.ProfileFound)
		observability.RecordEvaluation(observability.SourceDefault, time.Since(start))
		return domain.DefaultDecision(userID, b.now())
	}

	d := Score(userID, s, b.now())

	b.cache.Set(ctx, d)
	b.analytics.RecordDecision(ctx, d)
	observability.RecordEvaluation(observability.SourceComputed, time.Since(start))
	observability.RecordDecision(string(d.LTVSegment), string(d.RecommendedAction))

	return d
}

// BatchEvaluate evaluates users concurrently, at most batchLimit at a time.
// The result is positionally aligned with userIDs.
func (b *Brain) BatchEvaluate(ctx context.Context, userIDs []string) []domain.GrowthDecision {
	return b.BatchEvaluateLimit(ctx, userIDs, b.batchLimit)
}

// BatchEvaluateLimit is BatchEvaluate with a caller-supplied concurrency limit.
func (b *Brain) BatchEvaluateLimit(ctx context.Context, userIDs []string, limit int) []domain.GrowthDecision {
	out := make([]domain.GrowthDecision, len(userIDs))
	if limit <= 0 {
		limit = b.batchLimit
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, id := range userIDs {
		g.Go(func() error {
			out[i] = b.Evaluate(gctx, id)
			return nil
		})
	}
	_ = g.Wait()

	return out
}

// InvalidateCache drops the user's cached decision.
func (b *Brain) InvalidateCache(ctx context.Context, userID string) {
	b.cache.Invalidate(ctx, userID)
}

// Score computes a decision from signals. Pure: no cache, no I/O.
func Score(userID string, s domain.UserSignals, now time.Time) domain.GrowthDecision {
	ltv := scoring.ComputeLTV(s.Profile, s.Behavioral, s.Financial, now)
	segment := scoring.SegmentLTV(ltv)
	churn := scoring.ComputeChurn(s.Behavioral, s.Engagement, s.Financial)
	level := scoring.SegmentChurn(churn)

	outcome := decision.Decide(segment, level, s.Behavioral, s.Engagement)

	var degraded []string
	if len(s.Degraded) > 0 {
		degraded = append([]string(nil), s.Degraded...)
	}

	return domain.GrowthDecision{
		UserID:            userID,
		LTVScore:          ltv,
		LTVSegment:        segment,
		ChurnProbability:  churn,
		ChurnLevel:        level,
		RecommendedAction: outcome.Action,
		Reasoning:         outcome.Reasoning,
		Confidence:        outcome.Confidence,
		Personalization:   decision.Personalize(segment, s.Behavioral, s.Engagement),
		BookingCount:      s.Behavioral.SuccessfulBookings,
		DaysInactive:      s.Engagement.DaysInactive,
		Degraded:          degraded,
		EvaluatedAt:       now,
	}
}
