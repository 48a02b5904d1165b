package ingestion

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"fly2any-growth/internal/domain"
	"fly2any-growth/internal/logger"
)

// maxLineSize bounds a single JSONL record.
const maxLineSize = 1 << 20

// Replayer feeds recorded events through a Processor in event-time order.
type Replayer struct {
	processor Processor
	setClock  func(time.Time)
	logger    *logger.Logger
}

// ReplayerOptions contains configuration for creating a Replayer.
type ReplayerOptions struct {
	Processor Processor
	// SetClock is called with each event's timestamp before it is processed,
	// so cooldowns and windows are evaluated against recorded time.
	SetClock func(time.Time)
	Logger   *logger.Logger
}

// NewReplayer creates a new event replayer.
func NewReplayer(opts ReplayerOptions) *Replayer {
	setClock := opts.SetClock
	if setClock == nil {
		setClock = func(time.Time) {}
	}
	return &Replayer{
		processor: opts.Processor,
		setClock:  setClock,
		logger:    logger.OrNop(opts.Logger),
	}
}

// ReplayResult contains statistics from a replay operation.
type ReplayResult struct {
	EventsRead      int
	EventsSkipped   int
	EventsProcessed int
	Flows           []domain.RetentionFlow
	FlowsByType     map[domain.FlowType]int
	Duration        time.Duration
}

// ReadEvents parses JSON lines. Blank lines are ignored; malformed or invalid
// lines are counted in skipped and logged with their line number.
func (r *Replayer) ReadEvents(in io.Reader) (events []domain.RetentionEvent, skipped int, err error) {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		ev, err := DecodeEvent(raw)
		if err != nil {
			skipped++
			r.logger.Warn("skipping event", "line", line, "error", err)
			continue
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, skipped, fmt.Errorf("read events: %w", err)
	}
	return events, skipped, nil
}

// Replay sorts events by time and processes them sequentially.
func (r *Replayer) Replay(ctx context.Context, events []domain.RetentionEvent) (*ReplayResult, error) {
	start := time.Now()
	result := &ReplayResult{
		EventsRead:  len(events),
		FlowsByType: make(map[domain.FlowType]int),
	}

	ordered := make([]domain.RetentionEvent, len(events))
	copy(ordered, events)
	SortEvents(ordered)

	r.logger.Info("starting replay", "events", len(ordered))

	for i, ev := range ordered {
		if err := ctx.Err(); err != nil {
			result.Duration = time.Since(start)
			return result, err
		}
		if ev.ID == "" {
			ev.ID = fmt.Sprintf("replay-%d", i)
		}
		if !ev.Timestamp.IsZero() {
			r.setClock(ev.Timestamp)
		}

		flow := r.processor.ProcessEvent(ctx, ev)
		result.EventsProcessed++
		if flow != nil {
			result.Flows = append(result.Flows, *flow)
			result.FlowsByType[flow.FlowType]++
		}
	}

	result.Duration = time.Since(start)
	r.logger.Info("replay complete",
		"processed", result.EventsProcessed,
		"flows", len(result.Flows),
		"duration", result.Duration)
	return result, nil
}

// ReplayReader reads JSON lines from in and replays them.
func (r *Replayer) ReplayReader(ctx context.Context, in io.Reader) (*ReplayResult, error) {
	events, skipped, err := r.ReadEvents(in)
	if err != nil {
		return nil, err
	}
	result, err := r.Replay(ctx, events)
	if result != nil {
		result.EventsSkipped = skipped
	}
	return result, err
}
