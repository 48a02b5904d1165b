package memory

import (
	"context"
	"sync"

	"fly2any-growth/internal/domain"
	"fly2any-growth/internal/storage"
)

// SignalStore is an in-memory implementation of storage.SignalStore and storage.SignalWriter.
type SignalStore struct {
	mu   sync.RWMutex
	data map[string]*domain.UserSignals // keyed by user_id
}

// NewSignalStore creates a new in-memory signal store.
func NewSignalStore() *SignalStore {
	return &SignalStore{
		data: make(map[string]*domain.UserSignals),
	}
}

// UpsertSignals replaces all four groups for the user.
func (s *SignalStore) UpsertSignals(_ context.Context, sig *domain.UserSignals) error {
	if sig == nil || sig.Profile.UserID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := cloneSignals(sig)
	s.data[sig.Profile.UserID] = &c
	return nil
}

// Delete removes a user entirely.
func (s *SignalStore) Delete(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, userID)
}

// GetProfile returns the user's profile. Returns ErrNotFound if not exists.
func (s *SignalStore) GetProfile(_ context.Context, userID string) (domain.UserProfile, error) {
	sig, ok := s.get(userID)
	if !ok {
		return domain.UserProfile{}, storage.ErrNotFound
	}
	return sig.Profile, nil
}

// GetBehavioral returns the user's behavioral signals. Returns ErrNotFound if not exists.
func (s *SignalStore) GetBehavioral(_ context.Context, userID string) (domain.BehavioralSignals, error) {
	sig, ok := s.get(userID)
	if !ok {
		return domain.BehavioralSignals{}, storage.ErrNotFound
	}
	return sig.Behavioral, nil
}

// GetEngagement returns the user's engagement signals. Returns ErrNotFound if not exists.
func (s *SignalStore) GetEngagement(_ context.Context, userID string) (domain.EngagementSignals, error) {
	sig, ok := s.get(userID)
	if !ok {
		return domain.EngagementSignals{}, storage.ErrNotFound
	}
	return sig.Engagement, nil
}

// GetFinancial returns the user's financial signals. Returns ErrNotFound if not exists.
func (s *SignalStore) GetFinancial(_ context.Context, userID string) (domain.FinancialSignals, error) {
	sig, ok := s.get(userID)
	if !ok {
		return domain.FinancialSignals{}, storage.ErrNotFound
	}
	return sig.Financial, nil
}

func (s *SignalStore) get(userID string) (domain.UserSignals, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sig, ok := s.data[userID]
	if !ok {
		return domain.UserSignals{}, false
	}
	return cloneSignals(sig), true
}

func cloneSignals(sig *domain.UserSignals) domain.UserSignals {
	c := *sig
	if sig.Behavioral.RecentDestinations != nil {
		c.Behavioral.RecentDestinations = append([]string(nil), sig.Behavioral.RecentDestinations...)
	}
	c.Degraded = nil
	return c
}

var (
	_ storage.SignalStore  = (*SignalStore)(nil)
	_ storage.SignalWriter = (*SignalStore)(nil)
)
