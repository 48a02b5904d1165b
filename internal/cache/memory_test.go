package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"fly2any-growth/internal/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func decisionFor(userID string) domain.GrowthDecision {
	return domain.GrowthDecision{
		UserID:            userID,
		LTVScore:          62,
		LTVSegment:        domain.SegmentHigh,
		ChurnProbability:  40,
		ChurnLevel:        domain.ChurnMedium,
		RecommendedAction: domain.ActionContent,
		Reasoning:         "engaged high-value user",
		Confidence:        90,
		Personalization: domain.Personalization{
			Tone:         domain.TonePremium,
			Destinations: []string{"LIS", "NRT"},
			Urgency:      domain.UrgencyLow,
		},
		Degraded: []string{domain.SignalGroupFinancial},
	}
}

func TestMemoryStore_GetSet(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	s := NewMemoryStore(MemoryOptions{Now: clock.Now})

	if _, ok := s.Get(ctx, "user-1"); ok {
		t.Fatal("expected miss on empty cache")
	}

	s.Set(ctx, decisionFor("user-1"))
	got, ok := s.Get(ctx, "user-1")
	if !ok {
		t.Fatal("expected hit after Set")
	}
	if got.LTVScore != 62 || got.RecommendedAction != domain.ActionContent {
		t.Errorf("unexpected decision: %+v", got)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestMemoryStore_TTL(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	s := NewMemoryStore(MemoryOptions{TTL: time.Hour, Now: clock.Now})

	s.Set(ctx, decisionFor("user-1"))

	clock.Advance(59 * time.Minute)
	if _, ok := s.Get(ctx, "user-1"); !ok {
		t.Fatal("expected hit before TTL")
	}

	clock.Advance(time.Minute)
	if _, ok := s.Get(ctx, "user-1"); ok {
		t.Fatal("expected miss at TTL")
	}
	if s.Len() != 0 {
		t.Errorf("stale entry should be evicted on read, Len() = %d", s.Len())
	}
}

func TestMemoryStore_Invalidate(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(MemoryOptions{})

	s.Set(ctx, decisionFor("user-1"))
	s.Invalidate(ctx, "user-1")
	s.Invalidate(ctx, "never-cached")

	if _, ok := s.Get(ctx, "user-1"); ok {
		t.Fatal("expected miss after Invalidate")
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
}

func TestMemoryStore_CopiesOnReadAndWrite(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(MemoryOptions{})

	d := decisionFor("user-1")
	s.Set(ctx, d)
	d.Personalization.Destinations[0] = "XXX"
	d.Degraded[0] = "XXX"

	got, _ := s.Get(ctx, "user-1")
	if got.Personalization.Destinations[0] != "LIS" || got.Degraded[0] != domain.SignalGroupFinancial {
		t.Fatal("mutating the input after Set changed the cached value")
	}

	got.Personalization.Destinations[1] = "YYY"
	again, _ := s.Get(ctx, "user-1")
	if again.Personalization.Destinations[1] != "NRT" {
		t.Fatal("mutating a Get result changed the cached value")
	}
}

func TestMemoryStore_SweepRemovesExpired(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	s := NewMemoryStore(MemoryOptions{TTL: time.Hour, MaxSize: 10, Now: clock.Now, SyncSweep: true})

	for i := 0; i < 10; i++ {
		s.Set(ctx, decisionFor(fmt.Sprintf("old-%d", i)))
	}
	clock.Advance(2 * time.Hour)

	// The 11th entry crosses the bound and triggers the sweep.
	s.Set(ctx, decisionFor("fresh"))

	if s.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 after sweep", s.Len())
	}
	if _, ok := s.Get(ctx, "fresh"); !ok {
		t.Error("fresh entry must survive the sweep")
	}
}

func TestMemoryStore_SweepEnforcesBound(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	s := NewMemoryStore(MemoryOptions{MaxSize: 50, Now: clock.Now, SyncSweep: true})

	for i := 0; i < 200; i++ {
		clock.Advance(time.Second)
		s.Set(ctx, decisionFor(fmt.Sprintf("user-%d", i)))
	}

	if s.Len() > 50 {
		t.Fatalf("Len() = %d, want <= 50", s.Len())
	}
	if _, ok := s.Get(ctx, "user-199"); !ok {
		t.Error("most recent entry must survive capacity eviction")
	}
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(MemoryOptions{MaxSize: 100})

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				id := fmt.Sprintf("user-%d", (w*500+i)%300)
				s.Set(ctx, decisionFor(id))
				s.Get(ctx, id)
				if i%7 == 0 {
					s.Invalidate(ctx, id)
				}
			}
		}(w)
	}
	wg.Wait()

	if s.Len() < 0 {
		t.Fatalf("negative Len(): %d", s.Len())
	}
}

func TestNop(t *testing.T) {
	var s Store = Nop{}
	s.Set(context.Background(), decisionFor("user-1"))
	if _, ok := s.Get(context.Background(), "user-1"); ok {
		t.Fatal("Nop must never hit")
	}
}
