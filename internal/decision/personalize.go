package decision

import "fly2any-growth/internal/domain"

// MaxDestinations bounds the destinations carried in personalization.
const MaxDestinations = 3

// Personalize derives messaging hints for a scored user.
func Personalize(segment domain.LTVSegment, behavioral domain.BehavioralSignals, engagement domain.EngagementSignals) domain.Personalization {
	return domain.Personalization{
		Tone:         tone(segment, behavioral.PriceSensitivity),
		Destinations: topDestinations(behavioral.RecentDestinations),
		Urgency:      urgency(engagement.DaysInactive),
	}
}

func tone(segment domain.LTVSegment, sensitivity domain.PriceSensitivity) domain.Tone {
	switch {
	case sensitivity == domain.PriceSensitivityHigh:
		return domain.ToneDeal
	case segment.IsPremium():
		return domain.TonePremium
	default:
		return domain.ToneValue
	}
}

func urgency(daysInactive int) domain.Urgency {
	switch {
	case daysInactive > 21:
		return domain.UrgencyHigh
	case daysInactive > 7:
		return domain.UrgencyMedium
	default:
		return domain.UrgencyLow
	}
}

// topDestinations copies at most MaxDestinations entries.
func topDestinations(recent []string) []string {
	n := len(recent)
	if n > MaxDestinations {
		n = MaxDestinations
	}
	out := make([]string, n)
	copy(out, recent[:n])
	return out
}
