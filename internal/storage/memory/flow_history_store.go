package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"fly2any-growth/internal/domain"
	"fly2any-growth/internal/storage"
)

// FlowHistoryStore is an in-memory implementation of storage.FlowHistoryStore.
type FlowHistoryStore struct {
	mu     sync.RWMutex
	byUser map[string][]domain.RetentionFlow
	ids    map[string]struct{} // flow_id set for duplicate detection
}

// NewFlowHistoryStore creates a new in-memory flow history store.
func NewFlowHistoryStore() *FlowHistoryStore {
	return &FlowHistoryStore{
		byUser: make(map[string][]domain.RetentionFlow),
		ids:    make(map[string]struct{}),
	}
}

// Append adds an executed flow. Returns ErrDuplicateKey if flow_id exists.
func (s *FlowHistoryStore) Append(_ context.Context, f *domain.RetentionFlow) error {
	if f == nil || f.FlowID == "" || f.UserID == "" || !f.Executed || f.ExecutedAt == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ids[f.FlowID]; exists {
		return storage.ErrDuplicateKey
	}

	s.ids[f.FlowID] = struct{}{}
	s.byUser[f.UserID] = append(s.byUser[f.UserID], f.Clone())
	return nil
}

// GetByUser returns all flows for a user, ordered by executed_at ASC.
func (s *FlowHistoryStore) GetByUser(_ context.Context, userID string) ([]domain.RetentionFlow, error) {
	return s.collect(userID, time.Time{}), nil
}

// GetByUserSince returns flows for a user executed at or after since.
func (s *FlowHistoryStore) GetByUserSince(_ context.Context, userID string, since time.Time) ([]domain.RetentionFlow, error) {
	return s.collect(userID, since), nil
}

func (s *FlowHistoryStore) collect(userID string, since time.Time) []domain.RetentionFlow {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.RetentionFlow
	for _, f := range s.byUser[userID] {
		if f.ExecutedAt.Before(since) {
			continue
		}
		result = append(result, f.Clone())
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].ExecutedAt.Before(*result[j].ExecutedAt)
	})

	return result
}

var _ storage.FlowHistoryStore = (*FlowHistoryStore)(nil)
