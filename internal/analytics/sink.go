// Package analytics records executed flows and computed decisions for reporting.
// Recording is best effort: sinks never return errors to the hot path.
package analytics

import (
	"context"

	"fly2any-growth/internal/domain"
	"fly2any-growth/internal/logger"
)

// Sink receives analytics records.
type Sink interface {
	RecordFlow(ctx context.Context, f domain.RetentionFlow)
	RecordDecision(ctx context.Context, d domain.GrowthDecision)
}

// LogSink writes records to the log at debug level.
type LogSink struct {
	log *logger.Logger
}

// NewLogSink creates a new LogSink.
func NewLogSink(log *logger.Logger) *LogSink {
	return &LogSink{log: logger.OrNop(log)}
}

func (s *LogSink) RecordFlow(_ context.Context, f domain.RetentionFlow) {
	s.log.Debug("analytics flow",
		"flow_id", f.FlowID,
		"user_id", f.UserID,
		"flow_type", f.FlowType,
		"channel", f.Channel,
		"incentive_used", f.IncentiveUsed,
		"outcome", f.ExpectedOutcome,
	)
}

func (s *LogSink) RecordDecision(_ context.Context, d domain.GrowthDecision) {
	s.log.Debug("analytics decision",
		"user_id", d.UserID,
		"segment", d.LTVSegment,
		"churn_level", d.ChurnLevel,
		"action", d.RecommendedAction,
		"confidence", d.Confidence,
	)
}

// Fanout forwards every record to each sink in order.
type Fanout []Sink

func (f Fanout) RecordFlow(ctx context.Context, flow domain.RetentionFlow) {
	for _, s := range f {
		s.RecordFlow(ctx, flow)
	}
}

func (f Fanout) RecordDecision(ctx context.Context, d domain.GrowthDecision) {
	for _, s := range f {
		s.RecordDecision(ctx, d)
	}
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordFlow(context.Context, domain.RetentionFlow)      {}
func (Nop) RecordDecision(context.Context, domain.GrowthDecision) {}

var (
	_ Sink = (*LogSink)(nil)
	_ Sink = Fanout(nil)
	_ Sink = Nop{}
)
