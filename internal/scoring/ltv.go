// Package scoring turns user signals into lifetime-value and churn scores.
// All functions are pure: no I/O, deterministic for the same inputs.
package scoring

import (
	"math"
	"time"

	"fly2any-growth/internal/domain"
)

// LTVNormalization divides the weighted revenue before clamping.
// A weighted revenue of 10000 maps to the maximum score.
const LTVNormalization = 100.0

// LTV segment thresholds (inclusive lower bounds).
const (
	LTVThresholdVIP    = 80
	LTVThresholdHigh   = 50
	LTVThresholdMedium = 25
)

const day = 24 * time.Hour

// ComputeLTV returns the lifetime-value score in [0,100].
// Zero revenue yields 0, never an error.
func ComputeLTV(profile domain.UserProfile, behavioral domain.BehavioralSignals, financial domain.FinancialSignals, now time.Time) int {
	value := math.Max(0, financial.TotalRevenue)

	value *= recencyMultiplier(profile.RegisteredAt, now)
	value *= frequencyMultiplier(profile.RegisteredAt, behavioral.SuccessfulBookings, now)

	// Engagement bonuses
	if behavioral.WeeklySearches > 3 {
		value *= 1.1
	}
	if behavioral.AncillaryPurchases > 0 {
		value *= 1.15
	}

	// Penalties
	if financial.Refunds > 0 {
		value *= 0.9
	}
	if financial.Cancellations > 1 {
		value *= 0.85
	}

	return clampScore(value / LTVNormalization)
}

// SegmentLTV maps a score to its segment. Total over all ints.
func SegmentLTV(score int) domain.LTVSegment {
	switch {
	case score >= LTVThresholdVIP:
		return domain.SegmentVIP
	case score >= LTVThresholdHigh:
		return domain.SegmentHigh
	case score >= LTVThresholdMedium:
		return domain.SegmentMedium
	default:
		return domain.SegmentLow
	}
}

// recencyMultiplier rewards recently registered users.
// Unknown registration earns no boost.
func recencyMultiplier(registeredAt, now time.Time) float64 {
	if registeredAt.IsZero() {
		return 1.0
	}
	age := now.Sub(registeredAt)
	switch {
	case age < 30*day:
		return 1.2
	case age < 90*day:
		return 1.1
	default:
		return 1.0
	}
}

// frequencyMultiplier is 1 + 0.2 * bookings / max(1, monthsSinceRegistration).
func frequencyMultiplier(registeredAt time.Time, successfulBookings int, now time.Time) float64 {
	if registeredAt.IsZero() || successfulBookings <= 0 {
		return 1.0
	}
	months := monthsBetween(registeredAt, now)
	if months < 1 {
		months = 1
	}
	return 1 + 0.2*float64(successfulBookings)/float64(months)
}

// monthsBetween counts whole 30-day months between two instants.
func monthsBetween(from, to time.Time) int {
	if !to.After(from) {
		return 0
	}
	return int(to.Sub(from) / (30 * day))
}

// clampScore rounds v and clamps it to [0,100].
func clampScore(v float64) int {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	r := math.Round(v)
	if r > 100 {
		return 100
	}
	return int(r)
}
