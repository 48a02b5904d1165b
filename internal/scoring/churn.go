package scoring

import "fly2any-growth/internal/domain"

// Churn level thresholds (inclusive lower bounds).
const (
	ChurnThresholdCritical = 86
	ChurnThresholdHigh     = 61
	ChurnThresholdMedium   = 31
)

// Sub-score weights. Sum to 1.
const (
	weightInactivity  = 0.35
	weightEngagement  = 0.25
	weightAbandonment = 0.20
	weightFinancial   = 0.20
)

// ChurnBreakdown exposes the four capped sub-scores behind a churn probability.
type ChurnBreakdown struct {
	Inactivity        float64
	EngagementDecline float64
	AbandonmentRate   float64
	NegativeFinancial float64
}

// Probability returns the weighted, rounded and clamped churn probability.
func (b ChurnBreakdown) Probability() int {
	return clampScore(
		b.Inactivity*weightInactivity +
			b.EngagementDecline*weightEngagement +
			b.AbandonmentRate*weightAbandonment +
			b.NegativeFinancial*weightFinancial,
	)
}

// ComputeChurn returns the churn probability in [0,100].
func ComputeChurn(behavioral domain.BehavioralSignals, engagement domain.EngagementSignals, financial domain.FinancialSignals) int {
	return Breakdown(behavioral, engagement, financial).Probability()
}

// Breakdown computes the individual churn sub-scores, each capped to [0,100].
func Breakdown(behavioral domain.BehavioralSignals, engagement domain.EngagementSignals, financial domain.FinancialSignals) ChurnBreakdown {
	var abandonment float64
	if behavioral.BookingAttempts > 0 {
		abandonment = float64(behavioral.AbandonedBookings) / float64(behavioral.BookingAttempts) * 100
	}

	return ChurnBreakdown{
		Inactivity:        capUnit(float64(engagement.DaysInactive) * 2),
		EngagementDecline: capUnit(100 - (engagement.EmailOpenRate*50 + engagement.ClickThroughRate*50)),
		AbandonmentRate:   capUnit(abandonment),
		NegativeFinancial: capUnit(float64(financial.Refunds)*15 + float64(financial.Cancellations)*10),
	}
}

// SegmentChurn maps a probability to its churn level. Total over all ints.
func SegmentChurn(probability int) domain.ChurnLevel {
	switch {
	case probability >= ChurnThresholdCritical:
		return domain.ChurnCritical
	case probability >= ChurnThresholdHigh:
		return domain.ChurnHigh
	case probability >= ChurnThresholdMedium:
		return domain.ChurnMedium
	default:
		return domain.ChurnLow
	}
}

func capUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
