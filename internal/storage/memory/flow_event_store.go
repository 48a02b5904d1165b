package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"fly2any-growth/internal/domain"
	"fly2any-growth/internal/storage"
)

// FlowEventStore is an in-memory implementation of storage.FlowEventStore.
type FlowEventStore struct {
	mu   sync.RWMutex
	data map[string]domain.RetentionFlow // keyed by flow_id
}

// NewFlowEventStore creates a new in-memory flow event store.
func NewFlowEventStore() *FlowEventStore {
	return &FlowEventStore{
		data: make(map[string]domain.RetentionFlow),
	}
}

// InsertBulk adds multiple flow events atomically. Fails entire batch on any duplicate.
func (s *FlowEventStore) InsertBulk(_ context.Context, flows []domain.RetentionFlow) error {
	if len(flows) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(flows))
	for _, f := range flows {
		if f.FlowID == "" || f.ExecutedAt == nil {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[f.FlowID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[f.FlowID]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[f.FlowID] = struct{}{}
	}

	for _, f := range flows {
		s.data[f.FlowID] = f.Clone()
	}
	return nil
}

// GetByTimeRange returns flows executed within [start, end], ordered by executed_at ASC.
func (s *FlowEventStore) GetByTimeRange(_ context.Context, start, end time.Time) ([]domain.RetentionFlow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.RetentionFlow
	for _, f := range s.data {
		if inRange(*f.ExecutedAt, start, end) {
			result = append(result, f.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].ExecutedAt.Equal(*result[j].ExecutedAt) {
			return result[i].FlowID < result[j].FlowID
		}
		return result[i].ExecutedAt.Before(*result[j].ExecutedAt)
	})

	return result, nil
}

// CountByType returns executed flow counts per flow type within [start, end].
func (s *FlowEventStore) CountByType(_ context.Context, start, end time.Time) (map[domain.FlowType]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[domain.FlowType]int)
	for _, f := range s.data {
		if inRange(*f.ExecutedAt, start, end) {
			counts[f.FlowType]++
		}
	}
	return counts, nil
}

func inRange(t, start, end time.Time) bool {
	return !t.Before(start) && !t.After(end)
}

var _ storage.FlowEventStore = (*FlowEventStore)(nil)
