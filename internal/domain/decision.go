package domain

import "time"

// ReasonUserNotFound is the reasoning attached to the default decision.
const ReasonUserNotFound = "User not found"

// Personalization holds messaging hints derived from segment and signals.
type Personalization struct {
	Tone         Tone     `json:"tone"`
	Destinations []string `json:"destinations"`
	Urgency      Urgency  `json:"urgency"`
}

// GrowthDecision is the scored output of one evaluation.
// Value object: callers receive copies and never share mutable state.
type GrowthDecision struct {
	UserID            string          `json:"user_id"`
	LTVScore          int             `json:"ltv_score"`
	LTVSegment        LTVSegment      `json:"ltv_segment"`
	ChurnProbability  int             `json:"churn_probability"`
	ChurnLevel        ChurnLevel      `json:"churn_level"`
	RecommendedAction Action          `json:"recommended_action"`
	Reasoning         string          `json:"reasoning"`
	Confidence        int             `json:"confidence"`
	Personalization   Personalization `json:"personalization"`

	// BookingCount is the number of successful bookings, used by the repeat-customer rule.
	BookingCount int `json:"booking_count"`
	// DaysInactive is carried for flow personalization.
	DaysInactive int `json:"days_inactive"`
	// Degraded lists signal groups that fell back to defaults.
	Degraded    []string  `json:"degraded,omitempty"`
	EvaluatedAt time.Time `json:"evaluated_at"`
}

// Clone returns a deep copy of the decision.
func (d GrowthDecision) Clone() GrowthDecision {
	out := d
	if d.Personalization.Destinations != nil {
		out.Personalization.Destinations = append([]string(nil), d.Personalization.Destinations...)
	}
	if d.Degraded != nil {
		out.Degraded = append([]string(nil), d.Degraded...)
	}
	return out
}

// IsDefault reports whether d is the sentinel decision for an unknown user.
func (d GrowthDecision) IsDefault() bool {
	return d.Confidence == 0 && d.Reasoning == ReasonUserNotFound
}

// DefaultDecision returns the sentinel decision used when the user cannot be found.
func DefaultDecision(userID string, now time.Time) GrowthDecision {
	return GrowthDecision{
		UserID:            userID,
		LTVSegment:        SegmentLow,
		ChurnLevel:        ChurnLow,
		RecommendedAction: ActionNone,
		Reasoning:         ReasonUserNotFound,
		Confidence:        0,
		Personalization: Personalization{
			Tone:    ToneValue,
			Urgency: UrgencyLow,
		},
		EvaluatedAt: now,
	}
}
