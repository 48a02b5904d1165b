package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"fly2any-growth/internal/domain"
)

// Source delivers retention events from an external system.
type Source interface {
	// Name identifies the source in logs and metrics.
	Name() string
	// Subscribe returns a channel of decoded events.
	// The channel is closed when ctx is cancelled or the source gives up.
	Subscribe(ctx context.Context) (<-chan domain.RetentionEvent, error)
}

var (
	// ErrMissingUser is returned for events without a user ID.
	ErrMissingUser = errors.New("event has no user_id")
	// ErrUnknownType is returned for events with an unsupported type.
	ErrUnknownType = errors.New("unknown event type")
)

// DecodeEvent parses a JSON event and checks the fields every event needs.
func DecodeEvent(raw []byte) (domain.RetentionEvent, error) {
	var ev domain.RetentionEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return domain.RetentionEvent{}, fmt.Errorf("decode event: %w", err)
	}
	if err := ValidateEvent(ev); err != nil {
		return domain.RetentionEvent{}, err
	}
	return ev, nil
}

// ValidateEvent checks that the event can be routed to a user.
func ValidateEvent(ev domain.RetentionEvent) error {
	if ev.UserID == "" {
		return ErrMissingUser
	}
	if !ev.Type.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnknownType, ev.Type)
	}
	return nil
}
