package analytics

import (
	"context"
	"sync"
	"time"

	"fly2any-growth/internal/domain"
	"fly2any-growth/internal/logger"
	"fly2any-growth/internal/observability"
	"fly2any-growth/internal/storage"
)

const (
	defaultBatchSize     = 500
	defaultFlushInterval = 5 * time.Second
)

// StoreSinkOptions configures a StoreSink.
type StoreSinkOptions struct {
	Flows         storage.FlowEventStore
	Decisions     storage.DecisionSnapshotStore
	BatchSize     int
	FlushInterval time.Duration
	Logger        *logger.Logger
}

// StoreSink buffers records and writes them in batches to analytics stores.
// Either store may be nil, in which case that record kind is dropped.
type StoreSink struct {
	flows     storage.FlowEventStore
	decisions storage.DecisionSnapshotStore
	batchSize int
	interval  time.Duration
	log       *logger.Logger

	mu          sync.Mutex
	pendingFlow []domain.RetentionFlow
	pendingDec  []domain.GrowthDecision
}

// NewStoreSink creates a new StoreSink.
func NewStoreSink(opts StoreSinkOptions) *StoreSink {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = defaultFlushInterval
	}
	return &StoreSink{
		flows:     opts.Flows,
		decisions: opts.Decisions,
		batchSize: opts.BatchSize,
		interval:  opts.FlushInterval,
		log:       logger.OrNop(opts.Logger),
	}
}

func (s *StoreSink) RecordFlow(ctx context.Context, f domain.RetentionFlow) {
	if s.flows == nil {
		return
	}
	s.mu.Lock()
	s.pendingFlow = append(s.pendingFlow, f.Clone())
	full := len(s.pendingFlow) >= s.batchSize
	s.mu.Unlock()

	if full {
		s.flushFlows(ctx)
	}
}

func (s *StoreSink) RecordDecision(ctx context.Context, d domain.GrowthDecision) {
	if s.decisions == nil {
		return
	}
	s.mu.Lock()
	s.pendingDec = append(s.pendingDec, d.Clone())
	full := len(s.pendingDec) >= s.batchSize
	s.mu.Unlock()

	if full {
		s.flushDecisions(ctx)
	}
}

// Flush writes all buffered records.
func (s *StoreSink) Flush(ctx context.Context) {
	s.flushFlows(ctx)
	s.flushDecisions(ctx)
}

// Run flushes on an interval until ctx is cancelled, then flushes once more.
func (s *StoreSink) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Use a fresh context so the final flush is not cancelled.
			flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			s.Flush(flushCtx)
			cancel()
			return
		case <-ticker.C:
			s.Flush(ctx)
		}
	}
}

// Pending returns the number of buffered records.
func (s *StoreSink) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pendingFlow) + len(s.pendingDec)
}

func (s *StoreSink) flushFlows(ctx context.Context) {
	s.mu.Lock()
	batch := s.pendingFlow
	s.pendingFlow = nil
	s.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	if err := s.flows.InsertBulk(ctx, batch); err != nil {
		observability.RecordAnalyticsError("flow")
		s.log.Error("analytics flow write failed", "count", len(batch), "error", err)
	}
}

func (s *StoreSink) flushDecisions(ctx context.Context) {
	s.mu.Lock()
	batch := s.pendingDec
	s.pendingDec = nil
	s.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	if err := s.decisions.InsertBulk(ctx, batch); err != nil {
		observability.RecordAnalyticsError("decision")
		s.log.Error("analytics decision write failed", "count", len(batch), "error", err)
	}
}

var _ Sink = (*StoreSink)(nil)
