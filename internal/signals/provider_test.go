package signals

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fly2any-growth/internal/domain"
	"fly2any-growth/internal/storage"
	"fly2any-growth/internal/storage/memory"
)

// faultyStore wraps a SignalStore, failing or stalling selected groups.
type faultyStore struct {
	storage.SignalStore
	fail  map[string]error
	stall map[string]bool
}

func (s *faultyStore) check(ctx context.Context, group string) error {
	if s.stall[group] {
		<-ctx.Done()
		return ctx.Err()
	}
	return s.fail[group]
}

func (s *faultyStore) GetProfile(ctx context.Context, userID string) (domain.UserProfile, error) {
	if err := s.check(ctx, domain.SignalGroupProfile); err != nil {
		return domain.UserProfile{}, err
	}
	return s.SignalStore.GetProfile(ctx, userID)
}

func (s *faultyStore) GetBehavioral(ctx context.Context, userID string) (domain.BehavioralSignals, error) {
	if err := s.check(ctx, domain.SignalGroupBehavioral); err != nil {
		return domain.BehavioralSignals{}, err
	}
	return s.SignalStore.GetBehavioral(ctx, userID)
}

func (s *faultyStore) GetEngagement(ctx context.Context, userID string) (domain.EngagementSignals, error) {
	if err := s.check(ctx, domain.SignalGroupEngagement); err != nil {
		return domain.EngagementSignals{}, err
	}
	return s.SignalStore.GetEngagement(ctx, userID)
}

func (s *faultyStore) GetFinancial(ctx context.Context, userID string) (domain.FinancialSignals, error) {
	if err := s.check(ctx, domain.SignalGroupFinancial); err != nil {
		return domain.FinancialSignals{}, err
	}
	return s.SignalStore.GetFinancial(ctx, userID)
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func seededStore(t *testing.T) *memory.SignalStore {
	t.Helper()
	store := memory.NewSignalStore()
	require.NoError(t, store.UpsertSignals(context.Background(), &domain.UserSignals{
		Profile: domain.UserProfile{UserID: "user-1", RegisteredAt: testNow.AddDate(0, -6, 0)},
		Behavioral: domain.BehavioralSignals{
			WeeklySearches:     4,
			SuccessfulBookings: 2,
			PriceSensitivity:   domain.PriceSensitivityLow,
		},
		Engagement: domain.EngagementSignals{
			EmailOpenRate:  0.4,
			LastActivityAt: testNow.Add(-10*24*time.Hour - time.Hour),
		},
		Financial: domain.FinancialSignals{TotalRevenue: 1200},
	}))
	return store
}

func TestFetch_AllGroups(t *testing.T) {
	p := NewProvider(Options{Store: seededStore(t), Now: func() time.Time { return testNow }})

	s := p.Fetch(context.Background(), "user-1")

	assert.True(t, s.ProfileFound)
	assert.Empty(t, s.Degraded)
	assert.Equal(t, 2, s.Behavioral.SuccessfulBookings)
	assert.Equal(t, 1200.0, s.Financial.TotalRevenue)
	assert.Equal(t, 10, s.Engagement.DaysInactive, "days inactive derived from last activity")
}

func TestFetch_UnknownUser(t *testing.T) {
	p := NewProvider(Options{Store: memory.NewSignalStore()})

	s := p.Fetch(context.Background(), "ghost")

	assert.False(t, s.ProfileFound)
	assert.Empty(t, s.Degraded, "missing rows are not failures")
	assert.Equal(t, "ghost", s.Profile.UserID)
}

func TestFetch_GroupErrorFallsBack(t *testing.T) {
	store := &faultyStore{
		SignalStore: seededStore(t),
		fail:        map[string]error{domain.SignalGroupFinancial: errors.New("connection refused")},
	}
	p := NewProvider(Options{Store: store})

	s := p.Fetch(context.Background(), "user-1")

	assert.True(t, s.ProfileFound)
	assert.Equal(t, []string{domain.SignalGroupFinancial}, s.Degraded)
	assert.Equal(t, domain.DefaultFinancial(), s.Financial)
	assert.Equal(t, 2, s.Behavioral.SuccessfulBookings, "healthy groups are kept")
	assert.False(t, AllFailed(s))
}

func TestFetch_TimeoutFallsBack(t *testing.T) {
	store := &faultyStore{
		SignalStore: seededStore(t),
		stall:       map[string]bool{domain.SignalGroupEngagement: true},
	}
	p := NewProvider(Options{Store: store, Timeout: 20 * time.Millisecond})

	start := time.Now()
	s := p.Fetch(context.Background(), "user-1")

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, []string{domain.SignalGroupEngagement}, s.Degraded)
	assert.Equal(t, 0.5, s.Engagement.EmailOpenRate)
}

func TestFetch_AllGroupsFail(t *testing.T) {
	boom := errors.New("boom")
	store := &faultyStore{
		SignalStore: seededStore(t),
		fail: map[string]error{
			domain.SignalGroupProfile:    boom,
			domain.SignalGroupBehavioral: boom,
			domain.SignalGroupEngagement: boom,
			domain.SignalGroupFinancial:  boom,
		},
	}
	p := NewProvider(Options{Store: store})

	s := p.Fetch(context.Background(), "user-1")

	assert.True(t, AllFailed(s))
	assert.Equal(t, []string{
		domain.SignalGroupProfile,
		domain.SignalGroupBehavioral,
		domain.SignalGroupEngagement,
		domain.SignalGroupFinancial,
	}, s.Degraded)
}

func TestDerivePriceSensitivity(t *testing.T) {
	tests := []struct {
		name string
		b    domain.BehavioralSignals
		f    domain.FinancialSignals
		want domain.PriceSensitivity
	}{
		{"heavy discount user", domain.BehavioralSignals{}, domain.FinancialSignals{DiscountUsage: 3}, domain.PriceSensitivityHigh},
		{"abandoning shopper", domain.BehavioralSignals{WeeklySearches: 8, AbandonedBookings: 3, SuccessfulBookings: 1}, domain.FinancialSignals{}, domain.PriceSensitivityHigh},
		{"casual no discounts", domain.BehavioralSignals{WeeklySearches: 1}, domain.FinancialSignals{}, domain.PriceSensitivityLow},
		{"in between", domain.BehavioralSignals{WeeklySearches: 4}, domain.FinancialSignals{DiscountUsage: 1}, domain.PriceSensitivityMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DerivePriceSensitivity(tt.b, tt.f); got != tt.want {
				t.Errorf("DerivePriceSensitivity() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDaysSince(t *testing.T) {
	assert.Equal(t, 0, DaysSince(time.Time{}, testNow))
	assert.Equal(t, 0, DaysSince(testNow.Add(time.Hour), testNow))
	assert.Equal(t, 40, DaysSince(testNow.AddDate(0, 0, -40), testNow))
}
