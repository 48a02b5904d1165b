package ingestion

import (
	"cmp"
	"errors"
	"sort"

	"fly2any-growth/internal/domain"
)

// ErrInvalidOrdering is returned when events are not properly ordered.
var ErrInvalidOrdering = errors.New("events are not in deterministic order")

// SortEvents orders events by (timestamp ASC, user_id ASC, id ASC).
// Stable, so events equal on all keys keep their input order.
func SortEvents(events []domain.RetentionEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return compareEvents(&events[i], &events[j]) < 0
	})
}

// ValidateEventOrdering checks that events are non-decreasing in sort order.
// Returns ErrInvalidOrdering if not.
func ValidateEventOrdering(events []domain.RetentionEvent) error {
	for i := 1; i < len(events); i++ {
		if compareEvents(&events[i-1], &events[i]) > 0 {
			return ErrInvalidOrdering
		}
	}
	return nil
}

// compareEvents orders by (timestamp, user_id, id), all ascending.
func compareEvents(a, b *domain.RetentionEvent) int {
	if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
		return c
	}
	if c := cmp.Compare(a.UserID, b.UserID); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}
