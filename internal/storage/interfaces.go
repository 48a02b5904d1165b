package storage

import (
	"context"
	"time"

	"fly2any-growth/internal/domain"
)

// SignalStore provides read access to the four user signal groups.
// Each getter returns ErrNotFound when the user has no row for that group.
type SignalStore interface {
	GetProfile(ctx context.Context, userID string) (domain.UserProfile, error)
	GetBehavioral(ctx context.Context, userID string) (domain.BehavioralSignals, error)
	GetEngagement(ctx context.Context, userID string) (domain.EngagementSignals, error)
	GetFinancial(ctx context.Context, userID string) (domain.FinancialSignals, error)
}

// SignalWriter upserts signal snapshots. Used by fixtures and seeding, never by the engine.
type SignalWriter interface {
	// UpsertSignals replaces all four groups for s.Profile.UserID.
	// Returns ErrInvalidInput if the user ID is empty.
	UpsertSignals(ctx context.Context, s *domain.UserSignals) error
}

// FlowHistoryStore is the append-only record of executed flows.
type FlowHistoryStore interface {
	// Append adds an executed flow. Returns ErrDuplicateKey if flow_id exists,
	// ErrInvalidInput if the flow has no ID or was never executed.
	Append(ctx context.Context, f *domain.RetentionFlow) error

	// GetByUser returns all flows for a user, ordered by executed_at ASC.
	GetByUser(ctx context.Context, userID string) ([]domain.RetentionFlow, error)

	// GetByUserSince returns flows for a user executed at or after since, ordered by executed_at ASC.
	GetByUserSince(ctx context.Context, userID string, since time.Time) ([]domain.RetentionFlow, error)
}

// FlowEventStore is the analytics store for executed flows.
type FlowEventStore interface {
	// InsertBulk appends flow events. Duplicate flow IDs are rejected with ErrDuplicateKey.
	InsertBulk(ctx context.Context, flows []domain.RetentionFlow) error

	// GetByTimeRange returns flows executed within [start, end], ordered by executed_at ASC.
	GetByTimeRange(ctx context.Context, start, end time.Time) ([]domain.RetentionFlow, error)

	// CountByType returns executed flow counts per flow type within [start, end].
	CountByType(ctx context.Context, start, end time.Time) (map[domain.FlowType]int, error)
}

// DecisionSnapshotStore is the analytics store for freshly computed decisions.
type DecisionSnapshotStore interface {
	// InsertBulk appends decision snapshots.
	InsertBulk(ctx context.Context, decisions []domain.GrowthDecision) error

	// GetByUser returns snapshots for a user, ordered by evaluated_at ASC.
	GetByUser(ctx context.Context, userID string) ([]domain.GrowthDecision, error)

	// SegmentDistribution counts snapshots per LTV segment within [start, end].
	SegmentDistribution(ctx context.Context, start, end time.Time) (map[domain.LTVSegment]int, error)
}
