package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"fly2any-growth/internal/domain"
	"fly2any-growth/internal/storage"
)

// FlowHistoryStore implements storage.FlowHistoryStore using PostgreSQL.
type FlowHistoryStore struct {
	pool *Pool
}

// NewFlowHistoryStore creates a new FlowHistoryStore.
func NewFlowHistoryStore(pool *Pool) *FlowHistoryStore {
	return &FlowHistoryStore{pool: pool}
}

// Compile-time interface check.
var _ storage.FlowHistoryStore = (*FlowHistoryStore)(nil)

const flowHistoryColumns = `
	flow_id, user_id, flow_type, trigger_reason, channel,
	incentive_used, incentive_type, expected_outcome, confidence,
	tone, destinations, urgency, segment, event_id, executed_at
`

// Append adds an executed flow. Returns ErrDuplicateKey if flow_id exists.
func (s *FlowHistoryStore) Append(ctx context.Context, f *domain.RetentionFlow) error {
	if f == nil || f.FlowID == "" || f.UserID == "" || !f.Executed || f.ExecutedAt == nil {
		return storage.ErrInvalidInput
	}

	destinations := f.Personalization.Destinations
	if destinations == nil {
		destinations = []string{}
	}

	query := `
		INSERT INTO flow_history (` + flowHistoryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := s.pool.Exec(ctx, query,
		f.FlowID, f.UserID, string(f.FlowType), f.TriggerReason, string(f.Channel),
		f.IncentiveUsed, string(f.IncentiveType), string(f.ExpectedOutcome), f.Confidence,
		string(f.Personalization.Tone), destinations, string(f.Personalization.Urgency),
		string(f.Segment), f.EventID, f.ExecutedAt.UTC(),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert flow history: %w", err)
	}
	return nil
}

// GetByUser returns all flows for a user, ordered by executed_at ASC.
func (s *FlowHistoryStore) GetByUser(ctx context.Context, userID string) ([]domain.RetentionFlow, error) {
	query := `
		SELECT ` + flowHistoryColumns + `
		FROM flow_history
		WHERE user_id = $1
		ORDER BY executed_at ASC, flow_id ASC
	`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("get flow history by user: %w", err)
	}
	defer rows.Close()

	return scanFlows(rows)
}

// GetByUserSince returns flows for a user executed at or after since.
func (s *FlowHistoryStore) GetByUserSince(ctx context.Context, userID string, since time.Time) ([]domain.RetentionFlow, error) {
	query := `
		SELECT ` + flowHistoryColumns + `
		FROM flow_history
		WHERE user_id = $1 AND executed_at >= $2
		ORDER BY executed_at ASC, flow_id ASC
	`

	rows, err := s.pool.Query(ctx, query, userID, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("get flow history since: %w", err)
	}
	defer rows.Close()

	return scanFlows(rows)
}

// scanFlows scans multiple rows into executed RetentionFlows.
func scanFlows(rows pgx.Rows) ([]domain.RetentionFlow, error) {
	var flows []domain.RetentionFlow

	for rows.Next() {
		var f domain.RetentionFlow
		var flowType, channel, incentiveType, outcome, tone, urgency, segment string
		var executedAt time.Time

		err := rows.Scan(
			&f.FlowID, &f.UserID, &flowType, &f.TriggerReason, &channel,
			&f.IncentiveUsed, &incentiveType, &outcome, &f.Confidence,
			&tone, &f.Personalization.Destinations, &urgency, &segment, &f.EventID, &executedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan flow history row: %w", err)
		}

		f.FlowType = domain.FlowType(flowType)
		f.Channel = domain.Channel(channel)
		f.IncentiveType = domain.IncentiveType(incentiveType)
		f.ExpectedOutcome = domain.ExpectedOutcome(outcome)
		f.Personalization.Tone = domain.Tone(tone)
		f.Personalization.Urgency = domain.Urgency(urgency)
		f.Segment = domain.LTVSegment(segment)
		executedAt = executedAt.UTC()
		f.Executed = true
		f.ExecutedAt = &executedAt

		flows = append(flows, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate flow history rows: %w", err)
	}

	return flows, nil
}
