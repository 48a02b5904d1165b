package domain

// LTVSegment is the discretized lifetime-value tier of a user.
type LTVSegment string

const (
	SegmentLow    LTVSegment = "LOW"
	SegmentMedium LTVSegment = "MEDIUM"
	SegmentHigh   LTVSegment = "HIGH"
	SegmentVIP    LTVSegment = "VIP"
)

// String returns the string representation of LTVSegment.
func (s LTVSegment) String() string {
	return string(s)
}

// IsValid checks if the segment is a valid value.
func (s LTVSegment) IsValid() bool {
	switch s {
	case SegmentLow, SegmentMedium, SegmentHigh, SegmentVIP:
		return true
	}
	return false
}

// IsPremium reports whether the segment is protected from discounting.
func (s LTVSegment) IsPremium() bool {
	return s == SegmentHigh || s == SegmentVIP
}

// ChurnLevel is the discretized churn risk tier of a user.
type ChurnLevel string

const (
	ChurnLow      ChurnLevel = "LOW"
	ChurnMedium   ChurnLevel = "MEDIUM"
	ChurnHigh     ChurnLevel = "HIGH"
	ChurnCritical ChurnLevel = "CRITICAL"
)

// String returns the string representation of ChurnLevel.
func (l ChurnLevel) String() string {
	return string(l)
}

// IsValid checks if the churn level is a valid value.
func (l ChurnLevel) IsValid() bool {
	switch l {
	case ChurnLow, ChurnMedium, ChurnHigh, ChurnCritical:
		return true
	}
	return false
}

// Action is the recommended growth action for a user.
type Action string

const (
	ActionNone     Action = "NONE"
	ActionContent  Action = "CONTENT"
	ActionAlert    Action = "ALERT"
	ActionEmail    Action = "EMAIL"
	ActionPush     Action = "PUSH"
	ActionValue    Action = "VALUE"
	ActionDiscount Action = "DISCOUNT"
)

// String returns the string representation of Action.
func (a Action) String() string {
	return string(a)
}

// IsValid checks if the action is a valid value.
func (a Action) IsValid() bool {
	switch a {
	case ActionNone, ActionContent, ActionAlert, ActionEmail, ActionPush, ActionValue, ActionDiscount:
		return true
	}
	return false
}

// PriceSensitivity is derived from search and discount behaviour.
type PriceSensitivity string

const (
	PriceSensitivityLow    PriceSensitivity = "low"
	PriceSensitivityMedium PriceSensitivity = "medium"
	PriceSensitivityHigh   PriceSensitivity = "high"
)

// Tone is the messaging tone chosen for a user.
type Tone string

const (
	ToneDeal    Tone = "deal"
	ToneValue   Tone = "value"
	TonePremium Tone = "premium"
)

// Urgency is the messaging urgency chosen for a user.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)
