package clickhouse

import (
	"context"
	"fmt"
	"time"

	"fly2any-growth/internal/domain"
	"fly2any-growth/internal/storage"
)

// FlowEventStore implements storage.FlowEventStore using ClickHouse.
type FlowEventStore struct {
	conn *Conn
}

// NewFlowEventStore creates a new FlowEventStore.
func NewFlowEventStore(conn *Conn) *FlowEventStore {
	return &FlowEventStore{conn: conn}
}

// Compile-time interface check.
var _ storage.FlowEventStore = (*FlowEventStore)(nil)

// InsertBulk appends flow events in one batch. Fails entire batch on any duplicate.
func (s *FlowEventStore) InsertBulk(ctx context.Context, flows []domain.RetentionFlow) error {
	if len(flows) == 0 {
		return nil
	}

	// ReplacingMergeTree collapses duplicates eventually; reject them up front for append-only semantics.
	ids := make([]string, 0, len(flows))
	seen := make(map[string]struct{}, len(flows))
	for _, f := range flows {
		if f.FlowID == "" || f.ExecutedAt == nil {
			return storage.ErrInvalidInput
		}
		if _, exists := seen[f.FlowID]; exists {
			return storage.ErrDuplicateKey
		}
		seen[f.FlowID] = struct{}{}
		ids = append(ids, f.FlowID)
	}

	var existing uint64
	if err := s.conn.QueryRow(ctx, `SELECT count(*) FROM flow_events WHERE flow_id IN ?`, ids).Scan(&existing); err != nil {
		return fmt.Errorf("check existing flow events: %w", err)
	}
	if existing > 0 {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO flow_events (
			flow_id, user_id, flow_type, trigger_reason, channel,
			incentive_used, incentive_type, expected_outcome, confidence,
			segment, event_id, executed_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, f := range flows {
		var incentive uint8
		if f.IncentiveUsed {
			incentive = 1
		}
		err = batch.Append(
			f.FlowID, f.UserID, string(f.FlowType), f.TriggerReason, string(f.Channel),
			incentive, string(f.IncentiveType), string(f.ExpectedOutcome), uint8(f.Confidence),
			string(f.Segment), f.EventID, f.ExecutedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := sendBatch("insert_flow_events", batch); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByTimeRange returns flows executed within [start, end], ordered by executed_at ASC.
func (s *FlowEventStore) GetByTimeRange(ctx context.Context, start, end time.Time) ([]domain.RetentionFlow, error) {
	query := `
		SELECT
			flow_id, user_id, flow_type, trigger_reason, channel,
			incentive_used, incentive_type, expected_outcome, confidence,
			segment, event_id, executed_at
		FROM flow_events FINAL
		WHERE executed_at >= ? AND executed_at <= ?
		ORDER BY executed_at ASC, flow_id ASC
	`

	rows, err := s.conn.Query(ctx, query, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("query flow events by time range: %w", err)
	}
	defer rows.Close()

	return scanFlowEvents(rows)
}

// CountByType returns executed flow counts per flow type within [start, end].
func (s *FlowEventStore) CountByType(ctx context.Context, start, end time.Time) (map[domain.FlowType]int, error) {
	query := `
		SELECT flow_type, count(*)
		FROM flow_events FINAL
		WHERE executed_at >= ? AND executed_at <= ?
		GROUP BY flow_type
	`

	rows, err := s.conn.Query(ctx, query, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("count flow events by type: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.FlowType]int)
	for rows.Next() {
		var (
			flowType string
			n        uint64
		)
		if err := rows.Scan(&flowType, &n); err != nil {
			return nil, fmt.Errorf("scan flow type count: %w", err)
		}
		counts[domain.FlowType(flowType)] = int(n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate flow type counts: %w", err)
	}

	return counts, nil
}

// scanFlowEvents scans multiple rows into executed RetentionFlows.
func scanFlowEvents(rows chRows) ([]domain.RetentionFlow, error) {
	var flows []domain.RetentionFlow

	for rows.Next() {
		var f domain.RetentionFlow
		var flowType, channel, incentiveType, outcome, segment string
		var incentive, confidence uint8
		var executedAt time.Time

		err := rows.Scan(
			&f.FlowID, &f.UserID, &flowType, &f.TriggerReason, &channel,
			&incentive, &incentiveType, &outcome, &confidence,
			&segment, &f.EventID, &executedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan flow event row: %w", err)
		}

		f.FlowType = domain.FlowType(flowType)
		f.Channel = domain.Channel(channel)
		f.IncentiveUsed = incentive == 1
		f.IncentiveType = domain.IncentiveType(incentiveType)
		f.ExpectedOutcome = domain.ExpectedOutcome(outcome)
		f.Confidence = int(confidence)
		f.Segment = domain.LTVSegment(segment)
		executedAt = executedAt.UTC()
		f.Executed = true
		f.ExecutedAt = &executedAt

		flows = append(flows, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate flow event rows: %w", err)
	}

	return flows, nil
}
