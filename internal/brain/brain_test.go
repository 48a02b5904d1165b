package brain

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fly2any-growth/internal/cache"
	"fly2any-growth/internal/domain"
	"fly2any-growth/internal/signals"
	"fly2any-growth/internal/storage/memory"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return testNow }

// countingSource counts Fetch calls and tracks peak concurrency.
type countingSource struct {
	inner  SignalSource
	delay  time.Duration
	calls  atomic.Int32
	active atomic.Int32
	peak   atomic.Int32
	peakMu sync.Mutex
}

func (c *countingSource) Fetch(ctx context.Context, userID string) domain.UserSignals {
	c.calls.Add(1)
	n := c.active.Add(1)
	defer c.active.Add(-1)

	c.peakMu.Lock()
	if n > c.peak.Load() {
		c.peak.Store(n)
	}
	c.peakMu.Unlock()

	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	return c.inner.Fetch(ctx, userID)
}

func vipSignals(userID string) *domain.UserSignals {
	return &domain.UserSignals{
		Profile:    domain.UserProfile{UserID: userID, RegisteredAt: testNow.AddDate(0, 0, -10)},
		Behavioral: domain.BehavioralSignals{SuccessfulBookings: 5, BookingAttempts: 5, RecentDestinations: []string{"LIS", "NRT"}},
		Engagement: domain.EngagementSignals{DaysInactive: 2, EmailOpenRate: 0.8, ClickThroughRate: 0.6},
		Financial:  domain.FinancialSignals{TotalRevenue: 10000},
	}
}

func setup(t *testing.T, users ...*domain.UserSignals) (*Brain, *memory.SignalStore, *countingSource) {
	t.Helper()
	store := memory.NewSignalStore()
	for _, u := range users {
		require.NoError(t, store.UpsertSignals(context.Background(), u))
	}
	src := &countingSource{inner: signals.NewProvider(signals.Options{Store: store, Now: clock})}
	b := New(Options{
		Signals: src,
		Cache:   cache.NewMemoryStore(cache.MemoryOptions{Now: clock}),
		Now:     clock,
	})
	return b, store, src
}

func TestEvaluate_VIPHealthy(t *testing.T) {
	b, _, _ := setup(t, vipSignals("vip-1"))

	d := b.Evaluate(context.Background(), "vip-1")

	assert.Equal(t, domain.SegmentVIP, d.LTVSegment)
	assert.Equal(t, domain.ChurnLow, d.ChurnLevel)
	assert.Equal(t, domain.ActionNone, d.RecommendedAction)
	assert.Equal(t, 95, d.Confidence)
	assert.Equal(t, 5, d.BookingCount)
	assert.Equal(t, domain.TonePremium, d.Personalization.Tone)
	assert.Equal(t, []string{"LIS", "NRT"}, d.Personalization.Destinations)
	assert.Equal(t, testNow, d.EvaluatedAt)
}

func TestEvaluate_UnknownUserIsDefaultAndNotCached(t *testing.T) {
	b, _, src := setup(t)

	d := b.Evaluate(context.Background(), "ghost")
	assert.True(t, d.IsDefault())
	assert.Equal(t, domain.ActionNone, d.RecommendedAction)
	assert.Equal(t, 0, d.Confidence)
	assert.Equal(t, domain.ReasonUserNotFound, d.Reasoning)

	b.Evaluate(context.Background(), "ghost")
	assert.Equal(t, int32(2), src.calls.Load(), "default decisions must not be cached")
}

func TestEvaluate_EmptyUserID(t *testing.T) {
	b, _, src := setup(t)
	d := b.Evaluate(context.Background(), "")
	assert.True(t, d.IsDefault())
	assert.Equal(t, int32(0), src.calls.Load())
}

func TestEvaluate_CachedDecisionIsIdentical(t *testing.T) {
	b, _, src := setup(t, vipSignals("vip-1"))
	ctx := context.Background()

	first := b.Evaluate(ctx, "vip-1")
	second := b.Evaluate(ctx, "vip-1")

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestEvaluate_InvalidateReflectsNewSignals(t *testing.T) {
	b, store, _ := setup(t, vipSignals("vip-1"))
	ctx := context.Background()

	before := b.Evaluate(ctx, "vip-1")
	require.Equal(t, domain.ChurnLow, before.ChurnLevel)

	changed := vipSignals("vip-1")
	changed.Engagement = domain.EngagementSignals{DaysInactive: 60}
	changed.Behavioral.AbandonedBookings = 5
	changed.Financial.Refunds = 7
	require.NoError(t, store.UpsertSignals(ctx, changed))

	stale := b.Evaluate(ctx, "vip-1")
	assert.Equal(t, before, stale, "cache still serves the old decision")

	b.InvalidateCache(ctx, "vip-1")
	after := b.Evaluate(ctx, "vip-1")
	assert.Equal(t, domain.ChurnCritical, after.ChurnLevel)
	assert.Equal(t, domain.ActionValue, after.RecommendedAction)
}

func TestEvaluate_CallerMutationDoesNotLeakIntoCache(t *testing.T) {
	b, _, _ := setup(t, vipSignals("vip-1"))
	ctx := context.Background()

	d := b.Evaluate(ctx, "vip-1")
	d.Personalization.Destinations[0] = "XXX"

	again := b.Evaluate(ctx, "vip-1")
	assert.Equal(t, "LIS", again.Personalization.Destinations[0])
}

func TestEvaluate_ActiveSearcher(t *testing.T) {
	u := &domain.UserSignals{
		Profile:    domain.UserProfile{UserID: "low-1", RegisteredAt: testNow.AddDate(-1, 0, 0)},
		Behavioral: domain.BehavioralSignals{WeeklySearches: 4},
		Engagement: domain.EngagementSignals{DaysInactive: 1, EmailOpenRate: 0.7, ClickThroughRate: 0.5},
		Financial:  domain.FinancialSignals{TotalRevenue: 300},
	}
	b, _, _ := setup(t, u)

	d := b.Evaluate(context.Background(), "low-1")

	assert.Equal(t, domain.SegmentLow, d.LTVSegment)
	assert.Equal(t, domain.ChurnLow, d.ChurnLevel)
	assert.Equal(t, domain.ActionAlert, d.RecommendedAction)
	assert.Equal(t, 65, d.Confidence)
}

func TestBatchEvaluate_AlignedWithInput(t *testing.T) {
	users := []*domain.UserSignals{vipSignals("a"), vipSignals("c")}
	b, _, _ := setup(t, users...)

	ids := []string{"a", "ghost", "c", "a"}
	got := b.BatchEvaluate(context.Background(), ids)

	require.Len(t, got, len(ids))
	for i, id := range ids {
		assert.Equal(t, id, got[i].UserID)
	}
	assert.True(t, got[1].IsDefault(), "a missing user must not fail the batch")
	assert.Equal(t, domain.SegmentVIP, got[2].LTVSegment)
}

func TestBatchEvaluate_RespectsLimit(t *testing.T) {
	var users []*domain.UserSignals
	var ids []string
	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("user-%d", i)
		users = append(users, vipSignals(id))
		ids = append(ids, id)
	}
	b, _, src := setup(t, users...)
	src.delay = 10 * time.Millisecond

	got := b.BatchEvaluateLimit(context.Background(), ids, 4)

	assert.Len(t, got, 20)
	assert.LessOrEqual(t, src.peak.Load(), int32(4))
	assert.Equal(t, int32(20), src.calls.Load())
}

func TestBatchEvaluate_Empty(t *testing.T) {
	b, _, _ := setup(t)
	assert.Empty(t, b.BatchEvaluate(context.Background(), nil))
}

func TestScore_CarriesDegradedGroups(t *testing.T) {
	s := *vipSignals("vip-1")
	s.Degraded = []string{domain.SignalGroupEngagement}

	d := Score("vip-1", s, testNow)
	s.Degraded[0] = "mutated"

	assert.Equal(t, []string{domain.SignalGroupEngagement}, d.Degraded)
}
