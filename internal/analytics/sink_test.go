package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"fly2any-growth/internal/domain"
	"fly2any-growth/internal/logger"
	"fly2any-growth/internal/storage/memory"
)

var testTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func executed(id, userID string) domain.RetentionFlow {
	at := testTime
	return domain.RetentionFlow{
		FlowID:          id,
		UserID:          userID,
		FlowType:        domain.FlowIntent,
		TriggerReason:   "search",
		Channel:         domain.ChannelInApp,
		ExpectedOutcome: domain.OutcomeBooking,
		Confidence:      75,
		Segment:         domain.SegmentMedium,
		Executed:        true,
		ExecutedAt:      &at,
	}
}

func TestStoreSink_BuffersUntilFlush(t *testing.T) {
	ctx := context.Background()
	flows := memory.NewFlowEventStore()
	decisions := memory.NewDecisionSnapshotStore()
	s := NewStoreSink(StoreSinkOptions{Flows: flows, Decisions: decisions, BatchSize: 10})

	s.RecordFlow(ctx, executed("f1", "u1"))
	s.RecordDecision(ctx, domain.GrowthDecision{UserID: "u1", LTVSegment: domain.SegmentHigh, EvaluatedAt: testTime})
	assert.Equal(t, 2, s.Pending())

	got, err := flows.GetByTimeRange(ctx, testTime.Add(-time.Hour), testTime.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, got, "nothing written before flush")

	s.Flush(ctx)
	assert.Equal(t, 0, s.Pending())

	got, err = flows.GetByTimeRange(ctx, testTime.Add(-time.Hour), testTime.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, got, 1)

	snaps, err := decisions.GetByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, snaps, 1)
}

func TestStoreSink_FlushesWhenBatchFull(t *testing.T) {
	ctx := context.Background()
	flows := memory.NewFlowEventStore()
	s := NewStoreSink(StoreSinkOptions{Flows: flows, BatchSize: 2})

	s.RecordFlow(ctx, executed("f1", "u1"))
	s.RecordFlow(ctx, executed("f2", "u2"))

	assert.Equal(t, 0, s.Pending())
	counts, err := flows.CountByType(ctx, testTime.Add(-time.Hour), testTime.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, counts[domain.FlowIntent])
}

func TestStoreSink_WriteErrorIsLogged(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zap.ErrorLevel)
	flows := memory.NewFlowEventStore()
	s := NewStoreSink(StoreSinkOptions{Flows: flows, Logger: logger.FromZap(zap.New(core))})

	s.RecordFlow(ctx, executed("dup", "u1"))
	s.Flush(ctx)
	s.RecordFlow(ctx, executed("dup", "u1"))
	s.Flush(ctx)

	assert.Equal(t, 1, logs.FilterMessage("analytics flow write failed").Len())
}

func TestStoreSink_NilStoresDrop(t *testing.T) {
	s := NewStoreSink(StoreSinkOptions{})
	s.RecordFlow(context.Background(), executed("f1", "u1"))
	s.RecordDecision(context.Background(), domain.GrowthDecision{UserID: "u1"})
	assert.Equal(t, 0, s.Pending())
}

func TestStoreSink_RunFlushesOnCancel(t *testing.T) {
	flows := memory.NewFlowEventStore()
	s := NewStoreSink(StoreSinkOptions{Flows: flows, FlushInterval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	s.RecordFlow(ctx, executed("f1", "u1"))
	cancel()
	<-done

	assert.Equal(t, 0, s.Pending())
}

type countingSink struct {
	flows, decisions int
}

func (c *countingSink) RecordFlow(context.Context, domain.RetentionFlow)      { c.flows++ }
func (c *countingSink) RecordDecision(context.Context, domain.GrowthDecision) { c.decisions++ }

func TestFanout(t *testing.T) {
	a, b := &countingSink{}, &countingSink{}
	f := Fanout{a, b, NewLogSink(nil)}

	f.RecordFlow(context.Background(), executed("f1", "u1"))
	f.RecordDecision(context.Background(), domain.GrowthDecision{})

	assert.Equal(t, 1, a.flows)
	assert.Equal(t, 1, b.decisions)
}

func TestLogSink(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	s := NewLogSink(logger.FromZap(zap.New(core)))

	s.RecordFlow(context.Background(), executed("f1", "u1"))

	entries := logs.FilterMessage("analytics flow").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "f1", entries[0].ContextMap()["flow_id"])
}
