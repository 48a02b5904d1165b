// Package signals fetches the four user signal groups with per-group timeouts.
// A failed or slow group is replaced by neutral defaults and recorded as degraded.
package signals

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"fly2any-growth/internal/domain"
	"fly2any-growth/internal/logger"
	"fly2any-growth/internal/observability"
	"fly2any-growth/internal/storage"
)

// DefaultTimeout bounds each signal group fetch.
const DefaultTimeout = 2 * time.Second

// Options configures a Provider.
type Options struct {
	Store   storage.SignalStore
	Timeout time.Duration
	Logger  *logger.Logger
	Now     func() time.Time
}

// Provider reads user signals from a SignalStore.
type Provider struct {
	store   storage.SignalStore
	timeout time.Duration
	log     *logger.Logger
	now     func() time.Time
}

// NewProvider creates a new Provider.
func NewProvider(opts Options) *Provider {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Provider{
		store:   opts.Store,
		timeout: opts.Timeout,
		log:     logger.OrNop(opts.Logger),
		now:     opts.Now,
	}
}

// Fetch loads all four groups concurrently. It never returns an error:
// failures are reported through UserSignals.Degraded and ProfileFound.
func (p *Provider) Fetch(ctx context.Context, userID string) domain.UserSignals {
	out := domain.UserSignals{
		Profile:      domain.DefaultProfile(userID),
		Behavioral:   domain.DefaultBehavioral(),
		Engagement:   domain.DefaultEngagement(),
		Financial:    domain.DefaultFinancial(),
		ProfileFound: true,
	}

	var (
		mu       sync.Mutex
		degraded = make(map[string]bool, 4)
	)
	fail := func(group string, err error) {
		mu.Lock()
		degraded[group] = true
		mu.Unlock()
		p.log.Warn("signal fallback", "user_id", userID, "group", group, "error", err)
		observability.RecordSignalFallback(group)
	}

	// Each group has its own deadline; one failure must not cancel the others.
	var g errgroup.Group

	g.Go(func() error {
		profile, err := fetchGroup(ctx, p.timeout, userID, p.store.GetProfile)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			mu.Lock()
			out.ProfileFound = false
			mu.Unlock()
		case err != nil:
			fail(domain.SignalGroupProfile, err)
		default:
			out.Profile = profile
		}
		return nil
	})
	g.Go(func() error {
		behavioral, err := fetchGroup(ctx, p.timeout, userID, p.store.GetBehavioral)
		switch {
		case errors.Is(err, storage.ErrNotFound):
		case err != nil:
			fail(domain.SignalGroupBehavioral, err)
		default:
			out.Behavioral = behavioral
		}
		return nil
	})
	g.Go(func() error {
		engagement, err := fetchGroup(ctx, p.timeout, userID, p.store.GetEngagement)
		switch {
		case errors.Is(err, storage.ErrNotFound):
		case err != nil:
			fail(domain.SignalGroupEngagement, err)
		default:
			out.Engagement = engagement
		}
		return nil
	})
	g.Go(func() error {
		financial, err := fetchGroup(ctx, p.timeout, userID, p.store.GetFinancial)
		switch {
		case errors.Is(err, storage.ErrNotFound):
		case err != nil:
			fail(domain.SignalGroupFinancial, err)
		default:
			out.Financial = financial
		}
		return nil
	})
	_ = g.Wait()

	for _, group := range []string{
		domain.SignalGroupProfile,
		domain.SignalGroupBehavioral,
		domain.SignalGroupEngagement,
		domain.SignalGroupFinancial,
	} {
		if degraded[group] {
			out.Degraded = append(out.Degraded, group)
		}
	}

	p.derive(&out)
	return out
}

// AllFailed reports whether every signal group fell back to defaults.
func AllFailed(s domain.UserSignals) bool {
	return len(s.Degraded) == 4
}

// derive fills fields the store may leave unset.
func (p *Provider) derive(s *domain.UserSignals) {
	if s.Engagement.DaysInactive == 0 && !s.Engagement.LastActivityAt.IsZero() {
		s.Engagement.DaysInactive = DaysSince(s.Engagement.LastActivityAt, p.now())
	}
	if s.Behavioral.PriceSensitivity == "" {
		s.Behavioral.PriceSensitivity = DerivePriceSensitivity(s.Behavioral, s.Financial)
	}
}

// DaysSince returns whole days elapsed from t to now, floored at zero.
func DaysSince(t, now time.Time) int {
	if t.IsZero() || now.Before(t) {
		return 0
	}
	return int(now.Sub(t) / (24 * time.Hour))
}

// DerivePriceSensitivity classifies a user from discount usage and search behaviour.
func DerivePriceSensitivity(b domain.BehavioralSignals, f domain.FinancialSignals) domain.PriceSensitivity {
	switch {
	case f.DiscountUsage >= 3:
		return domain.PriceSensitivityHigh
	case b.AbandonedBookings > b.SuccessfulBookings && b.WeeklySearches > 5:
		return domain.PriceSensitivityHigh
	case f.DiscountUsage == 0 && b.WeeklySearches <= 2:
		return domain.PriceSensitivityLow
	default:
		return domain.PriceSensitivityMedium
	}
}

func fetchGroup[T any](ctx context.Context, timeout time.Duration, userID string, get func(context.Context, string) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := get(ctx, userID)
		ch <- result{v, err}
	}()

	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
