package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"fly2any-growth/internal/domain"
	"fly2any-growth/internal/storage"
)

// DecisionSnapshotStore is an in-memory implementation of storage.DecisionSnapshotStore.
type DecisionSnapshotStore struct {
	mu   sync.RWMutex
	data []domain.GrowthDecision
}

// NewDecisionSnapshotStore creates a new in-memory decision snapshot store.
func NewDecisionSnapshotStore() *DecisionSnapshotStore {
	return &DecisionSnapshotStore{}
}

// InsertBulk appends decision snapshots.
func (s *DecisionSnapshotStore) InsertBulk(_ context.Context, decisions []domain.GrowthDecision) error {
	for _, d := range decisions {
		if d.UserID == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range decisions {
		s.data = append(s.data, d.Clone())
	}
	return nil
}

// GetByUser returns snapshots for a user, ordered by evaluated_at ASC.
func (s *DecisionSnapshotStore) GetByUser(_ context.Context, userID string) ([]domain.GrowthDecision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.GrowthDecision
	for _, d := range s.data {
		if d.UserID == userID {
			result = append(result, d.Clone())
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].EvaluatedAt.Before(result[j].EvaluatedAt)
	})

	return result, nil
}

// SegmentDistribution counts snapshots per LTV segment within [start, end].
func (s *DecisionSnapshotStore) SegmentDistribution(_ context.Context, start, end time.Time) (map[domain.LTVSegment]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[domain.LTVSegment]int)
	for _, d := range s.data {
		if inRange(d.EvaluatedAt, start, end) {
			counts[d.LTVSegment]++
		}
	}
	return counts, nil
}

var _ storage.DecisionSnapshotStore = (*DecisionSnapshotStore)(nil)
