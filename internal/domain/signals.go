package domain

import "time"

// UserProfile is identity data owned by the user-account system.
type UserProfile struct {
	UserID       string    `json:"user_id"`
	Email        string    `json:"email,omitempty"`
	RegisteredAt time.Time `json:"registered_at"` // zero if unknown
	Locale       string    `json:"locale,omitempty"`
	Country      string    `json:"country,omitempty"`
}

// BehavioralSignals describes search and booking behaviour.
// Recomputed by the signal provider on every evaluation.
type BehavioralSignals struct {
	WeeklySearches     float64          `json:"weekly_searches"`
	RecentDestinations []string         `json:"recent_destinations,omitempty"` // most recent first
	PriceSensitivity   PriceSensitivity `json:"price_sensitivity"`
	BookingAttempts    int              `json:"booking_attempts"`
	SuccessfulBookings int              `json:"successful_bookings"`
	AbandonedBookings  int              `json:"abandoned_bookings"`
	AncillaryPurchases int              `json:"ancillary_purchases"`
}

// EngagementSignals describes messaging and session engagement.
type EngagementSignals struct {
	EmailOpenRate    float64   `json:"email_open_rate"`    // 0..1
	ClickThroughRate float64   `json:"click_through_rate"` // 0..1
	SessionFrequency float64   `json:"session_frequency"`  // sessions per week
	LastActivityAt   time.Time `json:"last_activity_at"`
	DaysInactive     int       `json:"days_inactive"`
}

// FinancialSignals describes realized revenue and negative financial events.
type FinancialSignals struct {
	TotalRevenue      float64 `json:"total_revenue"`
	AverageOrderValue float64 `json:"average_order_value"`
	DiscountUsage     int     `json:"discount_usage"`
	Refunds           int     `json:"refunds"`
	Cancellations     int     `json:"cancellations"`
}

// Signal group names, used for fallback accounting.
const (
	SignalGroupProfile    = "profile"
	SignalGroupBehavioral = "behavioral"
	SignalGroupEngagement = "engagement"
	SignalGroupFinancial  = "financial"
)

// UserSignals bundles the four signal groups for one evaluation.
type UserSignals struct {
	Profile    UserProfile       `json:"profile"`
	Behavioral BehavioralSignals `json:"behavioral"`
	Engagement EngagementSignals `json:"engagement"`
	Financial  FinancialSignals  `json:"financial"`

	// Degraded lists signal groups replaced by defaults.
	Degraded []string `json:"-"`
	// ProfileFound is false when the user does not exist at all.
	ProfileFound bool `json:"-"`
}

// DefaultProfile returns the neutral profile used when lookup fails.
func DefaultProfile(userID string) UserProfile {
	return UserProfile{UserID: userID}
}

// DefaultBehavioral returns neutral behavioral signals.
func DefaultBehavioral() BehavioralSignals {
	return BehavioralSignals{PriceSensitivity: PriceSensitivityMedium}
}

// DefaultEngagement returns neutral engagement signals.
// Rates of 0.5 yield an engagement-decline sub-score of 50.
func DefaultEngagement() EngagementSignals {
	return EngagementSignals{
		EmailOpenRate:    0.5,
		ClickThroughRate: 0.5,
	}
}

// DefaultFinancial returns neutral financial signals.
func DefaultFinancial() FinancialSignals {
	return FinancialSignals{}
}
