package ingestion

import (
	"errors"
	"testing"
	"time"

	"fly2any-growth/internal/domain"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func ev(offset time.Duration, user, id string) domain.RetentionEvent {
	return domain.RetentionEvent{ID: id, Type: domain.EventError, UserID: user, Timestamp: t0.Add(offset)}
}

func TestSortEvents(t *testing.T) {
	// Intentionally unordered events
	events := []domain.RetentionEvent{
		ev(2*time.Minute, "u1", "e5"),
		ev(time.Minute, "u2", "e3"),
		ev(time.Minute, "u1", "e2"),
		ev(time.Minute, "u1", "e1"),
		ev(0, "u9", "e0"),
	}

	SortEvents(events)

	expected := []string{"e0", "e1", "e2", "e3", "e5"}
	for i, id := range expected {
		if events[i].ID != id {
			t.Errorf("Index %d: got %s, want %s", i, events[i].ID, id)
		}
	}
	if err := ValidateEventOrdering(events); err != nil {
		t.Errorf("sorted events failed validation: %v", err)
	}
}

func TestSortEvents_Empty(t *testing.T) {
	var events []domain.RetentionEvent
	SortEvents(events) // Should not panic
}

func TestSortEvents_StableForTies(t *testing.T) {
	a := ev(0, "u1", "")
	a.Email = "first"
	b := ev(0, "u1", "")
	b.Email = "second"
	events := []domain.RetentionEvent{a, b}

	SortEvents(events)

	if events[0].Email != "first" {
		t.Error("equal events should keep input order")
	}
}

func TestValidateEventOrdering_Invalid(t *testing.T) {
	events := []domain.RetentionEvent{
		ev(time.Minute, "u1", "e1"),
		ev(0, "u1", "e0"),
	}
	if err := ValidateEventOrdering(events); !errors.Is(err, ErrInvalidOrdering) {
		t.Errorf("expected ErrInvalidOrdering, got %v", err)
	}
}

func TestDecodeEvent(t *testing.T) {
	got, err := DecodeEvent([]byte(`{"id":"e1","type":"abandonment","user_id":"u1","data":{"stage":"booking"},"timestamp":"2026-03-01T09:00:00Z"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Type != domain.EventAbandonment || got.Data.Stage != domain.StageBooking || !got.Timestamp.Equal(t0) {
		t.Errorf("decoded event mismatch: %+v", got)
	}

	cases := map[string]error{
		`{"type":"error"}`:                  ErrMissingUser,
		`{"type":"teleport","user_id":"u"}`: ErrUnknownType,
	}
	for raw, want := range cases {
		if _, err := DecodeEvent([]byte(raw)); !errors.Is(err, want) {
			t.Errorf("DecodeEvent(%s) error = %v, want %v", raw, err, want)
		}
	}
	if _, err := DecodeEvent([]byte(`not json`)); err == nil {
		t.Error("expected decode error for malformed input")
	}
}
