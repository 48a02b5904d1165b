package domain

import "time"

// FlowType classifies a retention flow.
type FlowType string

const (
	FlowPassive      FlowType = "PASSIVE"
	FlowReengagement FlowType = "REENGAGEMENT"
	FlowIntent       FlowType = "INTENT"
	FlowAbandonment  FlowType = "ABANDONMENT"
	FlowTrust        FlowType = "TRUST"
	FlowLoyalty      FlowType = "LOYALTY"
)

// String returns the string representation of FlowType.
func (f FlowType) String() string {
	return string(f)
}

// Channel is the delivery channel for a flow.
type Channel string

const (
	ChannelInApp Channel = "IN_APP"
	ChannelEmail Channel = "EMAIL"
	ChannelPush  Channel = "PUSH"
	ChannelAlert Channel = "ALERT"
)

// String returns the string representation of Channel.
func (c Channel) String() string {
	return string(c)
}

// IsValid checks if the channel is a valid value.
func (c Channel) IsValid() bool {
	switch c {
	case ChannelInApp, ChannelEmail, ChannelPush, ChannelAlert:
		return true
	}
	return false
}

// ExpectedOutcome is what a flow is meant to achieve.
type ExpectedOutcome string

const (
	OutcomeRetention  ExpectedOutcome = "Retention"
	OutcomeBooking    ExpectedOutcome = "Booking"
	OutcomeEngagement ExpectedOutcome = "Engagement"
)

// IncentiveType describes the incentive attached to a flow.
type IncentiveType string

const (
	IncentiveNone     IncentiveType = ""
	IncentiveCredit   IncentiveType = "credit"
	IncentiveValueAdd IncentiveType = "value_addon"
	IncentiveDiscount IncentiveType = "discount"
)

// RetentionFlow is one concrete, channel-bound retention action.
// Created by the flow policy, marked executed once by the scheduler, then immutable.
type RetentionFlow struct {
	FlowID          string          `json:"flow_id,omitempty"`
	UserID          string          `json:"user_id"`
	FlowType        FlowType        `json:"flow_type"`
	TriggerReason   string          `json:"trigger_reason"`
	Channel         Channel         `json:"channel"`
	IncentiveUsed   bool            `json:"incentive_used"`
	IncentiveType   IncentiveType   `json:"incentive_type,omitempty"`
	ExpectedOutcome ExpectedOutcome `json:"expected_outcome"`
	Confidence      int             `json:"confidence"`
	Personalization Personalization `json:"personalization"`
	Segment         LTVSegment      `json:"segment"`
	EventID         string          `json:"event_id,omitempty"`
	Executed        bool            `json:"executed"`
	ExecutedAt      *time.Time      `json:"executed_at,omitempty"`
}

// Clone returns a deep copy of the flow.
func (f RetentionFlow) Clone() RetentionFlow {
	out := f
	if f.Personalization.Destinations != nil {
		out.Personalization.Destinations = append([]string(nil), f.Personalization.Destinations...)
	}
	if f.ExecutedAt != nil {
		t := *f.ExecutedAt
		out.ExecutedAt = &t
	}
	return out
}

// FlowMetrics is the per-user view returned by GetFlowMetrics.
type FlowMetrics struct {
	UserID     string          `json:"user_id"`
	ActiveFlow *RetentionFlow  `json:"active_flow"`
	History    []RetentionFlow `json:"history"`
	LastFlowAt *time.Time      `json:"last_flow_at,omitempty"`
}
