package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"fly2any-growth/internal/domain"
	"fly2any-growth/internal/storage"
)

func TestFlowEventStore_InsertBulkAndQuery(t *testing.T) {
	store := NewFlowEventStore()
	ctx := context.Background()
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	flows := []domain.RetentionFlow{
		*executedFlow("f1", "u1", base),
		*executedFlow("f2", "u2", base.Add(time.Hour)),
		*executedFlow("f3", "u3", base.Add(48*time.Hour)),
	}
	flows[1].FlowType = domain.FlowIntent

	if err := store.InsertBulk(ctx, flows); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByTimeRange(ctx, base, base.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if len(got) != 2 || got[0].FlowID != "f1" || got[1].FlowID != "f2" {
		t.Errorf("unexpected range result: %+v", got)
	}

	counts, err := store.CountByType(ctx, base, base.Add(72*time.Hour))
	if err != nil {
		t.Fatalf("CountByType failed: %v", err)
	}
	if counts[domain.FlowTrust] != 2 || counts[domain.FlowIntent] != 1 {
		t.Errorf("unexpected counts: %v", counts)
	}
}

func TestFlowEventStore_DuplicateFailsWholeBatch(t *testing.T) {
	store := NewFlowEventStore()
	ctx := context.Background()
	at := time.Now()

	_ = store.InsertBulk(ctx, []domain.RetentionFlow{*executedFlow("f1", "u1", at)})

	err := store.InsertBulk(ctx, []domain.RetentionFlow{
		*executedFlow("f2", "u1", at),
		*executedFlow("f1", "u1", at),
	})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("Expected ErrDuplicateKey, got %v", err)
	}

	got, _ := store.GetByTimeRange(ctx, at.Add(-time.Minute), at.Add(time.Minute))
	if len(got) != 1 {
		t.Errorf("batch should be atomic, got %d rows", len(got))
	}
}

func TestDecisionSnapshotStore(t *testing.T) {
	store := NewDecisionSnapshotStore()
	ctx := context.Background()
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	err := store.InsertBulk(ctx, []domain.GrowthDecision{
		{UserID: "u1", LTVSegment: domain.SegmentVIP, EvaluatedAt: base.Add(time.Hour)},
		{UserID: "u1", LTVSegment: domain.SegmentHigh, EvaluatedAt: base},
		{UserID: "u2", LTVSegment: domain.SegmentVIP, EvaluatedAt: base},
	})
	if err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("GetByUser failed: %v", err)
	}
	if len(got) != 2 || got[0].LTVSegment != domain.SegmentHigh {
		t.Errorf("unexpected snapshots: %+v", got)
	}

	dist, err := store.SegmentDistribution(ctx, base, base.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("SegmentDistribution failed: %v", err)
	}
	if dist[domain.SegmentVIP] != 2 || dist[domain.SegmentHigh] != 1 {
		t.Errorf("unexpected distribution: %v", dist)
	}

	if err := store.InsertBulk(ctx, []domain.GrowthDecision{{}}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}
