package clickhouse

import (
	"context"
	"fmt"
	"time"

	"fly2any-growth/internal/domain"
	"fly2any-growth/internal/storage"
)

// DecisionSnapshotStore implements storage.DecisionSnapshotStore using ClickHouse.
type DecisionSnapshotStore struct {
	conn *Conn
}

// NewDecisionSnapshotStore creates a new DecisionSnapshotStore.
func NewDecisionSnapshotStore(conn *Conn) *DecisionSnapshotStore {
	return &DecisionSnapshotStore{conn: conn}
}

// Compile-time interface check.
var _ storage.DecisionSnapshotStore = (*DecisionSnapshotStore)(nil)

// InsertBulk appends decision snapshots in one batch.
func (s *DecisionSnapshotStore) InsertBulk(ctx context.Context, decisions []domain.GrowthDecision) error {
	if len(decisions) == 0 {
		return nil
	}
	for _, d := range decisions {
		if d.UserID == "" {
			return storage.ErrInvalidInput
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO decision_snapshots (
			user_id, ltv_score, ltv_segment, churn_probability, churn_level,
			recommended_action, reasoning, confidence, tone, urgency,
			booking_count, days_inactive, degraded, evaluated_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, d := range decisions {
		degraded := d.Degraded
		if degraded == nil {
			degraded = []string{}
		}
		err = batch.Append(
			d.UserID, uint8(d.LTVScore), string(d.LTVSegment), uint8(d.ChurnProbability), string(d.ChurnLevel),
			string(d.RecommendedAction), d.Reasoning, uint8(d.Confidence),
			string(d.Personalization.Tone), string(d.Personalization.Urgency),
			uint32(max(d.BookingCount, 0)), uint32(max(d.DaysInactive, 0)), degraded, d.EvaluatedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := sendBatch("insert_decision_snapshots", batch); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByUser returns snapshots for a user, ordered by evaluated_at ASC.
func (s *DecisionSnapshotStore) GetByUser(ctx context.Context, userID string) ([]domain.GrowthDecision, error) {
	query := `
		SELECT
			user_id, ltv_score, ltv_segment, churn_probability, churn_level,
			recommended_action, reasoning, confidence, tone, urgency,
			booking_count, days_inactive, degraded, evaluated_at
		FROM decision_snapshots
		WHERE user_id = ?
		ORDER BY evaluated_at ASC
	`

	rows, err := s.conn.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query decision snapshots by user: %w", err)
	}
	defer rows.Close()

	var decisions []domain.GrowthDecision
	for rows.Next() {
		var d domain.GrowthDecision
		var ltv, churn, confidence uint8
		var segment, level, action, tone, urgency string
		var bookings, inactive uint32
		var degraded []string

		err := rows.Scan(
			&d.UserID, &ltv, &segment, &churn, &level,
			&action, &d.Reasoning, &confidence, &tone, &urgency,
			&bookings, &inactive, &degraded, &d.EvaluatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan decision snapshot row: %w", err)
		}

		d.LTVScore = int(ltv)
		d.LTVSegment = domain.LTVSegment(segment)
		d.ChurnProbability = int(churn)
		d.ChurnLevel = domain.ChurnLevel(level)
		d.RecommendedAction = domain.Action(action)
		d.Confidence = int(confidence)
		d.Personalization.Tone = domain.Tone(tone)
		d.Personalization.Urgency = domain.Urgency(urgency)
		d.BookingCount = int(bookings)
		d.DaysInactive = int(inactive)
		if len(degraded) > 0 {
			d.Degraded = degraded
		}
		d.EvaluatedAt = d.EvaluatedAt.UTC()

		decisions = append(decisions, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate decision snapshot rows: %w", err)
	}

	return decisions, nil
}

// SegmentDistribution counts snapshots per LTV segment within [start, end].
func (s *DecisionSnapshotStore) SegmentDistribution(ctx context.Context, start, end time.Time) (map[domain.LTVSegment]int, error) {
	query := `
		SELECT ltv_segment, count(*)
		FROM decision_snapshots
		WHERE evaluated_at >= ? AND evaluated_at <= ?
		GROUP BY ltv_segment
	`

	rows, err := s.conn.Query(ctx, query, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("query segment distribution: %w", err)
	}
	defer rows.Close()

	dist := make(map[domain.LTVSegment]int)
	for rows.Next() {
		var (
			segment string
			n       uint64
		)
		if err := rows.Scan(&segment, &n); err != nil {
			return nil, fmt.Errorf("scan segment count: %w", err)
		}
		dist[domain.LTVSegment(segment)] = int(n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate segment counts: %w", err)
	}

	return dist, nil
}
