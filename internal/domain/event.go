package domain

import "time"

// EventType is the kind of inbound behavioral event.
type EventType string

const (
	EventSearch      EventType = "search"
	EventAbandonment EventType = "abandonment"
	EventPriceDrop   EventType = "price_drop"
	EventInactivity  EventType = "inactivity"
	EventError       EventType = "error"
	EventBooking     EventType = "booking"
	EventReturnVisit EventType = "return_visit"
)

// String returns the string representation of EventType.
func (e EventType) String() string {
	return string(e)
}

// IsValid checks if the event type is a valid value.
func (e EventType) IsValid() bool {
	switch e {
	case EventSearch, EventAbandonment, EventPriceDrop, EventInactivity,
		EventError, EventBooking, EventReturnVisit:
		return true
	}
	return false
}

// Abandonment stages.
const (
	StageSearch  = "search"
	StageBooking = "booking"
)

// EventData carries the type-specific payload of an event.
type EventData struct {
	Stage            string  `json:"stage,omitempty"`
	Route            string  `json:"route,omitempty"`
	Watched          bool    `json:"watched,omitempty"`
	DaysAbsent       int     `json:"days_absent,omitempty"`
	PriceFrom        float64 `json:"price_from,omitempty"`
	PriceTo          float64 `json:"price_to,omitempty"`
	ErrorCode        string  `json:"error_code,omitempty"`
	BookingID        string  `json:"booking_id,omitempty"`
	PreferredChannel Channel `json:"preferred_channel,omitempty"`
}

// RetentionEvent is an inbound behavioral event for one user.
type RetentionEvent struct {
	ID        string    `json:"id,omitempty"`
	Type      EventType `json:"type"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email,omitempty"`
	Data      EventData `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}
