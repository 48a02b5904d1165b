// Package cache holds per-user GrowthDecisions for a bounded time.
package cache

import (
	"context"
	"time"

	"fly2any-growth/internal/domain"
)

const (
	// DefaultTTL is how long a decision stays fresh.
	DefaultTTL = 60 * time.Minute
	// DefaultMaxSize is the entry count above which expired entries are swept.
	DefaultMaxSize = 1000
)

// Store is a decision cache keyed by user ID.
// Implementations return deep copies; callers may mutate what they receive.
type Store interface {
	// Get returns a fresh decision. Stale entries are evicted and reported as a miss.
	Get(ctx context.Context, userID string) (domain.GrowthDecision, bool)
	// Set stores a decision under d.UserID.
	Set(ctx context.Context, d domain.GrowthDecision)
	// Invalidate drops the user's decision so the next evaluation recomputes.
	Invalidate(ctx context.Context, userID string)
	// Len returns the number of stored entries, or -1 if unknown.
	Len() int
}

// Nop is a Store that never caches.
type Nop struct{}

func (Nop) Get(context.Context, string) (domain.GrowthDecision, bool) {
	return domain.GrowthDecision{}, false
}
func (Nop) Set(context.Context, domain.GrowthDecision) {}
func (Nop) Invalidate(context.Context, string)         {}
func (Nop) Len() int                                   { return 0 }

var _ Store = Nop{}
