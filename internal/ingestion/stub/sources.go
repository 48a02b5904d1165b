// Package stub provides in-memory event sources for tests and local runs.
package stub

import (
	"context"

	"fly2any-growth/internal/domain"
)

// Source emits a fixed list of events, then closes its channel.
// Implements ingestion.Source interface.
type Source struct {
	name   string
	events []domain.RetentionEvent
	hold   bool
}

// NewSource creates a stub source that closes after the last event.
func NewSource(name string, events []domain.RetentionEvent) *Source {
	return &Source{name: name, events: events}
}

// NewHoldingSource creates a stub source that stays open until ctx is cancelled.
func NewHoldingSource(name string, events []domain.RetentionEvent) *Source {
	return &Source{name: name, events: events, hold: true}
}

// Name returns the source name.
func (s *Source) Name() string { return s.name }

// Subscribe emits copies of the configured events in order.
func (s *Source) Subscribe(ctx context.Context) (<-chan domain.RetentionEvent, error) {
	ch := make(chan domain.RetentionEvent)
	go func() {
		defer close(ch)
		for _, ev := range s.events {
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
		if s.hold {
			<-ctx.Done()
		}
	}()
	return ch, nil
}
