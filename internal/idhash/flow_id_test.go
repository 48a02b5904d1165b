package idhash

import (
	"testing"
	"time"

	"github.com/mr-tron/base58"

	"fly2any-growth/internal/domain"
)

func TestComputeFlowID(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		userID   string
		flowType domain.FlowType
		reason   string
		channel  domain.Channel
		eventID  string
	}{
		{"intent search", "user-1", domain.FlowIntent, "search:JFK-LAX", domain.ChannelInApp, "evt-1"},
		{"abandonment booking", "user-2", domain.FlowAbandonment, "abandonment:booking", domain.ChannelEmail, "evt-2"},
		{"no event id", "user-3", domain.FlowTrust, "inactivity", domain.ChannelEmail, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeFlowID(tt.userID, tt.flowType, tt.reason, tt.channel, tt.eventID, at)

			raw, err := base58.Decode(got)
			if err != nil {
				t.Fatalf("ComputeFlowID() is not base58: %v", err)
			}
			if len(raw) != 32 {
				t.Errorf("decoded length = %d, want 32", len(raw))
			}

			// Verify determinism: same inputs should produce same output
			got2 := ComputeFlowID(tt.userID, tt.flowType, tt.reason, tt.channel, tt.eventID, at)
			if got != got2 {
				t.Errorf("ComputeFlowID() not deterministic: %s != %s", got, got2)
			}
		})
	}
}

func TestComputeFlowID_Uniqueness(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	base := ComputeFlowID("user-1", domain.FlowIntent, "search", domain.ChannelInApp, "evt-1", at)

	variants := map[string]string{
		"user":    ComputeFlowID("user-2", domain.FlowIntent, "search", domain.ChannelInApp, "evt-1", at),
		"type":    ComputeFlowID("user-1", domain.FlowLoyalty, "search", domain.ChannelInApp, "evt-1", at),
		"reason":  ComputeFlowID("user-1", domain.FlowIntent, "price_drop", domain.ChannelInApp, "evt-1", at),
		"channel": ComputeFlowID("user-1", domain.FlowIntent, "search", domain.ChannelPush, "evt-1", at),
		"event":   ComputeFlowID("user-1", domain.FlowIntent, "search", domain.ChannelInApp, "evt-2", at),
		"time":    ComputeFlowID("user-1", domain.FlowIntent, "search", domain.ChannelInApp, "evt-1", at.Add(time.Nanosecond)),
	}

	for field, id := range variants {
		if id == base {
			t.Errorf("changing %s did not change the flow id", field)
		}
	}
}

func TestComputeFlowID_TimezoneInsensitive(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata not available")
	}

	a := ComputeFlowID("user-1", domain.FlowIntent, "search", domain.ChannelInApp, "", at)
	b := ComputeFlowID("user-1", domain.FlowIntent, "search", domain.ChannelInApp, "", at.In(ny))
	if a != b {
		t.Error("same instant in different zones must produce the same id")
	}
}

func TestFlowIDFor(t *testing.T) {
	if got := FlowIDFor(&domain.RetentionFlow{UserID: "u"}); got != "" {
		t.Errorf("unexecuted flow should have no id, got %q", got)
	}

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f := &domain.RetentionFlow{
		UserID:        "u",
		FlowType:      domain.FlowTrust,
		TriggerReason: "error:PAYMENT_DECLINED",
		Channel:       domain.ChannelInApp,
		ExecutedAt:    &at,
	}
	want := ComputeFlowID("u", domain.FlowTrust, "error:PAYMENT_DECLINED", domain.ChannelInApp, "", at)
	if got := FlowIDFor(f); got != want {
		t.Errorf("FlowIDFor() = %s, want %s", got, want)
	}
}
