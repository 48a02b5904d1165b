package postgres

import (
	"context"
	"fmt"
	"time"

	"fly2any-growth/internal/domain"
	"fly2any-growth/internal/storage"
)

// SignalStore implements storage.SignalStore and storage.SignalWriter using PostgreSQL.
type SignalStore struct {
	pool *Pool
}

// NewSignalStore creates a new SignalStore.
func NewSignalStore(pool *Pool) *SignalStore {
	return &SignalStore{pool: pool}
}

// Compile-time interface checks.
var (
	_ storage.SignalStore  = (*SignalStore)(nil)
	_ storage.SignalWriter = (*SignalStore)(nil)
)

// GetProfile returns the user's profile. Returns ErrNotFound if not exists.
func (s *SignalStore) GetProfile(ctx context.Context, userID string) (domain.UserProfile, error) {
	query := `
		SELECT user_id, email, registered_at, locale, country
		FROM user_profiles
		WHERE user_id = $1
	`

	var (
		p            domain.UserProfile
		registeredAt *time.Time
	)
	err := s.pool.scanRow(ctx, "get_profile", query, []any{userID}, &p.UserID, &p.Email, &registeredAt, &p.Locale, &p.Country)
	if err != nil {
		if isNotFoundError(err) {
			return domain.UserProfile{}, storage.ErrNotFound
		}
		return domain.UserProfile{}, fmt.Errorf("get user profile: %w", err)
	}
	if registeredAt != nil {
		p.RegisteredAt = registeredAt.UTC()
	}
	return p, nil
}

// GetBehavioral returns the user's behavioral signals. Returns ErrNotFound if not exists.
func (s *SignalStore) GetBehavioral(ctx context.Context, userID string) (domain.BehavioralSignals, error) {
	query := `
		SELECT weekly_searches, recent_destinations, price_sensitivity,
			booking_attempts, successful_bookings, abandoned_bookings, ancillary_purchases
		FROM behavioral_signals
		WHERE user_id = $1
	`

	var (
		b           domain.BehavioralSignals
		sensitivity string
	)
	err := s.pool.scanRow(ctx, "get_behavioral", query, []any{userID},
		&b.WeeklySearches, &b.RecentDestinations, &sensitivity,
		&b.BookingAttempts, &b.SuccessfulBookings, &b.AbandonedBookings, &b.AncillaryPurchases,
	)
	if err != nil {
		if isNotFoundError(err) {
			return domain.BehavioralSignals{}, storage.ErrNotFound
		}
		return domain.BehavioralSignals{}, fmt.Errorf("get behavioral signals: %w", err)
	}
	b.PriceSensitivity = domain.PriceSensitivity(sensitivity)
	return b, nil
}

// GetEngagement returns the user's engagement signals. Returns ErrNotFound if not exists.
func (s *SignalStore) GetEngagement(ctx context.Context, userID string) (domain.EngagementSignals, error) {
	query := `
		SELECT email_open_rate, click_through_rate, session_frequency, last_activity_at, days_inactive
		FROM engagement_signals
		WHERE user_id = $1
	`

	var (
		e            domain.EngagementSignals
		lastActivity *time.Time
	)
	err := s.pool.scanRow(ctx, "get_engagement", query, []any{userID},
		&e.EmailOpenRate, &e.ClickThroughRate, &e.SessionFrequency, &lastActivity, &e.DaysInactive,
	)
	if err != nil {
		if isNotFoundError(err) {
			return domain.EngagementSignals{}, storage.ErrNotFound
		}
		return domain.EngagementSignals{}, fmt.Errorf("get engagement signals: %w", err)
	}
	if lastActivity != nil {
		e.LastActivityAt = lastActivity.UTC()
	}
	return e, nil
}

// GetFinancial returns the user's financial signals. Returns ErrNotFound if not exists.
func (s *SignalStore) GetFinancial(ctx context.Context, userID string) (domain.FinancialSignals, error) {
	query := `
		SELECT total_revenue, average_order_value, discount_usage, refunds, cancellations
		FROM financial_signals
		WHERE user_id = $1
	`

	var f domain.FinancialSignals
	err := s.pool.scanRow(ctx, "get_financial", query, []any{userID},
		&f.TotalRevenue, &f.AverageOrderValue, &f.DiscountUsage, &f.Refunds, &f.Cancellations,
	)
	if err != nil {
		if isNotFoundError(err) {
			return domain.FinancialSignals{}, storage.ErrNotFound
		}
		return domain.FinancialSignals{}, fmt.Errorf("get financial signals: %w", err)
	}
	return f, nil
}

// UpsertSignals replaces all four groups for the user in one transaction.
func (s *SignalStore) UpsertSignals(ctx context.Context, sig *domain.UserSignals) error {
	if sig == nil || sig.Profile.UserID == "" {
		return storage.ErrInvalidInput
	}
	userID := sig.Profile.UserID

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	p := sig.Profile
	_, err = tx.Exec(ctx, `
		INSERT INTO user_profiles (user_id, email, registered_at, locale, country, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (user_id) DO UPDATE SET
			email = EXCLUDED.email,
			registered_at = EXCLUDED.registered_at,
			locale = EXCLUDED.locale,
			country = EXCLUDED.country,
			updated_at = now()
	`, userID, p.Email, nullableTime(p.RegisteredAt), p.Locale, p.Country)
	if err != nil {
		return fmt.Errorf("upsert user profile: %w", err)
	}

	b := sig.Behavioral
	destinations := b.RecentDestinations
	if destinations == nil {
		destinations = []string{}
	}
	sensitivity := b.PriceSensitivity
	if sensitivity == "" {
		sensitivity = domain.PriceSensitivityMedium
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO behavioral_signals (
			user_id, weekly_searches, recent_destinations, price_sensitivity,
			booking_attempts, successful_bookings, abandoned_bookings, ancillary_purchases, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (user_id) DO UPDATE SET
			weekly_searches = EXCLUDED.weekly_searches,
			recent_destinations = EXCLUDED.recent_destinations,
			price_sensitivity = EXCLUDED.price_sensitivity,
			booking_attempts = EXCLUDED.booking_attempts,
			successful_bookings = EXCLUDED.successful_bookings,
			abandoned_bookings = EXCLUDED.abandoned_bookings,
			ancillary_purchases = EXCLUDED.ancillary_purchases,
			updated_at = now()
	`, userID, b.WeeklySearches, destinations, string(sensitivity),
		b.BookingAttempts, b.SuccessfulBookings, b.AbandonedBookings, b.AncillaryPurchases)
	if err != nil {
		return fmt.Errorf("upsert behavioral signals: %w", err)
	}

	e := sig.Engagement
	_, err = tx.Exec(ctx, `
		INSERT INTO engagement_signals (
			user_id, email_open_rate, click_through_rate, session_frequency,
			last_activity_at, days_inactive, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (user_id) DO UPDATE SET
			email_open_rate = EXCLUDED.email_open_rate,
			click_through_rate = EXCLUDED.click_through_rate,
			session_frequency = EXCLUDED.session_frequency,
			last_activity_at = EXCLUDED.last_activity_at,
			days_inactive = EXCLUDED.days_inactive,
			updated_at = now()
	`, userID, e.EmailOpenRate, e.ClickThroughRate, e.SessionFrequency,
		nullableTime(e.LastActivityAt), e.DaysInactive)
	if err != nil {
		return fmt.Errorf("upsert engagement signals: %w", err)
	}

	f := sig.Financial
	_, err = tx.Exec(ctx, `
		INSERT INTO financial_signals (
			user_id, total_revenue, average_order_value, discount_usage, refunds, cancellations, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (user_id) DO UPDATE SET
			total_revenue = EXCLUDED.total_revenue,
			average_order_value = EXCLUDED.average_order_value,
			discount_usage = EXCLUDED.discount_usage,
			refunds = EXCLUDED.refunds,
			cancellations = EXCLUDED.cancellations,
			updated_at = now()
	`, userID, f.TotalRevenue, f.AverageOrderValue, f.DiscountUsage, f.Refunds, f.Cancellations)
	if err != nil {
		return fmt.Errorf("upsert financial signals: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// nullableTime maps the zero time to SQL NULL.
func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
