// Package decision maps scored users to a recommended growth action.
package decision

import (
	"fmt"

	"fly2any-growth/internal/domain"
)

// Decide applies the decision table to a scored user.
// Segments are evaluated VIP -> HIGH -> MEDIUM -> LOW; each has its own churn sub-branches.
// The HIGH and VIP branches have no DISCOUNT row.
func Decide(segment domain.LTVSegment, level domain.ChurnLevel, behavioral domain.BehavioralSignals, engagement domain.EngagementSignals) Outcome {
	switch segment {
	case domain.SegmentVIP:
		return decideVIP(level)
	case domain.SegmentHigh:
		return decideHigh(level)
	case domain.SegmentMedium:
		return decideMedium(level, engagement)
	default:
		return decideLow(level, behavioral)
	}
}

func decideVIP(level domain.ChurnLevel) Outcome {
	switch level {
	case domain.ChurnCritical:
		return Outcome{domain.ActionValue, "VIP at critical churn risk: offer added value, never discount", 90}
	case domain.ChurnHigh:
		return Outcome{domain.ActionEmail, "VIP showing elevated churn risk: personal outreach", 85}
	default:
		return Outcome{domain.ActionNone, "VIP is healthy: do not disturb", 95}
	}
}

func decideHigh(level domain.ChurnLevel) Outcome {
	switch level {
	case domain.ChurnCritical:
		return Outcome{domain.ActionValue, "High-value user at critical churn risk: value offer instead of discount", 85}
	case domain.ChurnHigh:
		return Outcome{domain.ActionAlert, "High-value user drifting away: surface relevant deals", 80}
	default:
		return Outcome{domain.ActionContent, "High-value user engaged: nurture with content", 90}
	}
}

func decideMedium(level domain.ChurnLevel, engagement domain.EngagementSignals) Outcome {
	switch level {
	case domain.ChurnCritical:
		return Outcome{domain.ActionDiscount, "Medium-value user about to churn: discount to win back", 75}
	case domain.ChurnHigh:
		return Outcome{domain.ActionEmail, "Medium-value user at high churn risk: re-engagement email", 80}
	}
	if engagement.DaysInactive > 14 {
		return Outcome{
			domain.ActionPush,
			fmt.Sprintf("Medium-value user inactive for %d days: gentle push", engagement.DaysInactive),
			70,
		}
	}
	return Outcome{domain.ActionNone, "Medium-value user stable: no action needed", 85}
}

func decideLow(level domain.ChurnLevel, behavioral domain.BehavioralSignals) Outcome {
	if level == domain.ChurnCritical && behavioral.SuccessfulBookings > 0 {
		return Outcome{domain.ActionEmail, "Past booker at critical churn risk: reminder email", 60}
	}
	if behavioral.WeeklySearches > 2 {
		return Outcome{domain.ActionAlert, "Active searcher: send price alerts", 65}
	}
	return Outcome{domain.ActionNone, "Low-value user with little activity: stay passive", 90}
}
