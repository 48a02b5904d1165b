// Package fixtures provides demo user signals for offline evaluation and replay.
package fixtures

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"fly2any-growth/internal/domain"
	"fly2any-growth/internal/storage"
)

// Users returns a fixed demo population relative to now. One user per
// segment/churn combination the decision table cares about.
func Users(now time.Time) []domain.UserSignals {
	daysAgo := func(d int) time.Time { return now.AddDate(0, 0, -d) }

	return []domain.UserSignals{
		{
			// Healthy VIP: leave alone
			Profile: domain.UserProfile{UserID: "user_vip_active", Email: "vip@example.com", RegisteredAt: daysAgo(900), Country: "US"},
			Behavioral: domain.BehavioralSignals{
				WeeklySearches: 6, RecentDestinations: []string{"NRT", "CDG", "LIS", "JFK"},
				BookingAttempts: 40, SuccessfulBookings: 38, AbandonedBookings: 2, AncillaryPurchases: 12,
			},
			Engagement: domain.EngagementSignals{EmailOpenRate: 0.8, ClickThroughRate: 0.5, SessionFrequency: 5, LastActivityAt: daysAgo(1), DaysInactive: 1},
			Financial:  domain.FinancialSignals{TotalRevenue: 42000, AverageOrderValue: 1100},
		},
		{
			// VIP drifting away: value, never discount
			Profile: domain.UserProfile{UserID: "user_vip_at_risk", Email: "vip2@example.com", RegisteredAt: daysAgo(720), Country: "GB"},
			Behavioral: domain.BehavioralSignals{
				WeeklySearches: 0, RecentDestinations: []string{"DXB"},
				BookingAttempts: 12, SuccessfulBookings: 5, AbandonedBookings: 7,
			},
			Engagement: domain.EngagementSignals{EmailOpenRate: 0.05, ClickThroughRate: 0, SessionFrequency: 0, LastActivityAt: daysAgo(45), DaysInactive: 45},
			Financial:  domain.FinancialSignals{TotalRevenue: 25000, AverageOrderValue: 2500, Refunds: 3, Cancellations: 2},
		},
		{
			// Active searcher who never books
			Profile:    domain.UserProfile{UserID: "user_searcher", Email: "search@example.com", RegisteredAt: daysAgo(60), Country: "BR"},
			Behavioral: domain.BehavioralSignals{WeeklySearches: 4, RecentDestinations: []string{"GIG", "MIA"}},
			Engagement: domain.EngagementSignals{EmailOpenRate: 0.4, ClickThroughRate: 0.2, SessionFrequency: 3, LastActivityAt: daysAgo(2), DaysInactive: 2},
			Financial:  domain.FinancialSignals{TotalRevenue: 300, AverageOrderValue: 300},
		},
		{
			// Price-sensitive abandoner
			Profile: domain.UserProfile{UserID: "user_abandoner", Email: "deal@example.com", Country: "DE"},
			Behavioral: domain.BehavioralSignals{
				WeeklySearches: 1, RecentDestinations: []string{"BCN"},
				BookingAttempts: 4, SuccessfulBookings: 1, AbandonedBookings: 3,
			},
			Engagement: domain.EngagementSignals{EmailOpenRate: 0.1, ClickThroughRate: 0.05, SessionFrequency: 0.5, LastActivityAt: daysAgo(40), DaysInactive: 40},
			Financial:  domain.FinancialSignals{TotalRevenue: 3000, AverageOrderValue: 750, DiscountUsage: 4, Cancellations: 1},
		},
		{
			// Dormant low-value user
			Profile:    domain.UserProfile{UserID: "user_dormant", Email: "gone@example.com", RegisteredAt: daysAgo(400), Country: "FR"},
			Behavioral: domain.BehavioralSignals{BookingAttempts: 1, SuccessfulBookings: 1},
			Engagement: domain.EngagementSignals{EmailOpenRate: 0, ClickThroughRate: 0, LastActivityAt: daysAgo(120), DaysInactive: 120},
			Financial:  domain.FinancialSignals{TotalRevenue: 150, AverageOrderValue: 150, Refunds: 1},
		},
		{
			// Steady repeat customer
			Profile: domain.UserProfile{UserID: "user_repeat", Email: "repeat@example.com", RegisteredAt: daysAgo(300), Country: "ES"},
			Behavioral: domain.BehavioralSignals{
				WeeklySearches: 2, RecentDestinations: []string{"MAD", "LHR"},
				BookingAttempts: 6, SuccessfulBookings: 5, AbandonedBookings: 1, AncillaryPurchases: 2,
			},
			Engagement: domain.EngagementSignals{EmailOpenRate: 0.5, ClickThroughRate: 0.3, SessionFrequency: 2, LastActivityAt: daysAgo(5), DaysInactive: 5},
			Financial:  domain.FinancialSignals{TotalRevenue: 4200, AverageOrderValue: 700},
		},
	}
}

// Load upserts the demo population into w.
func Load(ctx context.Context, w storage.SignalWriter, now time.Time) (int, error) {
	return upsertAll(ctx, w, Users(now))
}

// LoadFile upserts signals from a JSON array file into w.
func LoadFile(ctx context.Context, w storage.SignalWriter, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open fixtures: %w", err)
	}
	defer f.Close()
	return LoadReader(ctx, w, f)
}

// LoadReader upserts signals from a JSON array into w.
func LoadReader(ctx context.Context, w storage.SignalWriter, in io.Reader) (int, error) {
	var users []domain.UserSignals
	if err := json.NewDecoder(in).Decode(&users); err != nil {
		return 0, fmt.Errorf("decode fixtures: %w", err)
	}
	return upsertAll(ctx, w, users)
}

func upsertAll(ctx context.Context, w storage.SignalWriter, users []domain.UserSignals) (int, error) {
	for i := range users {
		if err := w.UpsertSignals(ctx, &users[i]); err != nil {
			return i, fmt.Errorf("upsert %q: %w", users[i].Profile.UserID, err)
		}
	}
	return len(users), nil
}

// UserIDs returns the IDs of the demo population in order.
func UserIDs() []string {
	users := Users(time.Time{})
	ids := make([]string, len(users))
	for i, u := range users {
		ids[i] = u.Profile.UserID
	}
	return ids
}
