package retention

import (
	"fmt"
	"time"

	"fly2any-growth/internal/domain"
)

// QuietHours is a daily window during which interruptive channels are held back.
// A window whose end is before its start spans midnight.
type QuietHours struct {
	start time.Duration // offset from local midnight
	end   time.Duration
	loc   *time.Location
}

// ParseQuietHours parses "HH:MM" bounds in the given IANA zone (empty means UTC).
func ParseQuietHours(start, end, zone string) (*QuietHours, error) {
	s, err := parseClock(start)
	if err != nil {
		return nil, fmt.Errorf("quiet hours start: %w", err)
	}
	e, err := parseClock(end)
	if err != nil {
		return nil, fmt.Errorf("quiet hours end: %w", err)
	}
	if s == e {
		return nil, fmt.Errorf("quiet hours start and end are equal (%s)", start)
	}

	loc := time.UTC
	if zone != "" {
		loc, err = time.LoadLocation(zone)
		if err != nil {
			return nil, fmt.Errorf("quiet hours zone: %w", err)
		}
	}
	return &QuietHours{start: s, end: e, loc: loc}, nil
}

// Contains reports whether t falls inside the window. The end bound is exclusive.
func (q *QuietHours) Contains(t time.Time) bool {
	if q == nil {
		return false
	}
	local := t.In(q.loc)
	offset := time.Duration(local.Hour())*time.Hour + time.Duration(local.Minute())*time.Minute

	if q.start < q.end {
		return offset >= q.start && offset < q.end
	}
	return offset >= q.start || offset < q.end
}

// Blocks reports whether f must be held back at t.
// Only EMAIL and PUSH are interruptive; TRUST flows always go out.
func (q *QuietHours) Blocks(f *domain.RetentionFlow, t time.Time) bool {
	if q == nil || f.FlowType == domain.FlowTrust {
		return false
	}
	if f.Channel != domain.ChannelEmail && f.Channel != domain.ChannelPush {
		return false
	}
	return q.Contains(t)
}

func parseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}
