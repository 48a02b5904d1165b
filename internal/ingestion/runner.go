package ingestion

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"fly2any-growth/internal/domain"
	"fly2any-growth/internal/logger"
)

// ErrSourcesClosed is returned by Run when every source closed its channel.
var ErrSourcesClosed = errors.New("all event sources closed")

// Processor handles one retention event.
type Processor interface {
	ProcessEvent(ctx context.Context, ev domain.RetentionEvent) *domain.RetentionFlow
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	Sources   []Source
	Processor Processor
	Workers   int // Default: 8
	QueueSize int // per worker. Default: 256
	Logger    *logger.Logger
	Now       func() time.Time
	NewID     func() string
}

// RunnerStats are cumulative counters since the runner was created.
type RunnerStats struct {
	Received  int64 `json:"received"`
	Processed int64 `json:"processed"`
	Flows     int64 `json:"flows"`
}

// Runner fans events from all sources out to a fixed worker pool.
// Events are partitioned by user so one user's events are handled in arrival order.
type Runner struct {
	sources   []Source
	processor Processor
	workers   int
	queueSize int
	log       *logger.Logger
	now       func() time.Time
	newID     func() string

	received  atomic.Int64
	processed atomic.Int64
	flows     atomic.Int64
}

// NewRunner creates a new ingestion runner.
func NewRunner(opts RunnerOptions) *Runner {
	workers := opts.Workers
	if workers <= 0 {
		workers = 8
	}
	queueSize := opts.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	return &Runner{
		sources:   opts.Sources,
		processor: opts.Processor,
		workers:   workers,
		queueSize: queueSize,
		log:       logger.OrNop(opts.Logger),
		now:       now,
		newID:     newID,
	}
}

// Run subscribes to every source and processes events until ctx is cancelled
// or all sources close. Events already queued are processed before returning.
func (r *Runner) Run(ctx context.Context) error {
	if len(r.sources) == 0 {
		return fmt.Errorf("ingestion runner: no sources configured")
	}

	channels := make([]<-chan domain.RetentionEvent, 0, len(r.sources))
	for _, src := range r.sources {
		ch, err := src.Subscribe(ctx)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", src.Name(), err)
		}
		channels = append(channels, ch)
		r.log.Info("source subscribed", "source", src.Name())
	}

	queues := make([]chan domain.RetentionEvent, r.workers)
	for i := range queues {
		queues[i] = make(chan domain.RetentionEvent, r.queueSize)
	}

	// Queued events finish even after shutdown starts.
	workCtx := context.WithoutCancel(ctx)
	var workers errgroup.Group
	for _, q := range queues {
		workers.Go(func() error {
			for ev := range q {
				r.handle(workCtx, ev)
			}
			return nil
		})
	}

	var forwarders sync.WaitGroup
	for i, ch := range channels {
		forwarders.Add(1)
		go func(name string, ch <-chan domain.RetentionEvent) {
			defer forwarders.Done()
			r.forward(ctx, name, ch, queues)
		}(r.sources[i].Name(), ch)
	}

	r.log.Info("ingestion runner started", "sources", len(channels), "workers", r.workers)

	forwarders.Wait()
	for _, q := range queues {
		close(q)
	}
	workers.Wait()

	r.log.Info("ingestion runner stopped", "received", r.received.Load(), "processed", r.processed.Load(), "flows", r.flows.Load())
	if err := ctx.Err(); err != nil {
		return err
	}
	return ErrSourcesClosed
}

func (r *Runner) forward(ctx context.Context, name string, ch <-chan domain.RetentionEvent, queues []chan domain.RetentionEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				r.log.Warn("source closed", "source", name)
				return
			}
			r.received.Add(1)
			if ev.ID == "" {
				ev.ID = r.newID()
			}
			if ev.Timestamp.IsZero() {
				ev.Timestamp = r.now()
			}
			select {
			case queues[Partition(ev.UserID, len(queues))] <- ev:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (r *Runner) handle(ctx context.Context, ev domain.RetentionEvent) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("event processing panicked", "event_id", ev.ID, "user_id", ev.UserID, "panic", p)
		}
	}()

	flow := r.processor.ProcessEvent(ctx, ev)
	r.processed.Add(1)
	if flow != nil {
		r.flows.Add(1)
	}
}

// Stats returns the runner's counters.
func (r *Runner) Stats() RunnerStats {
	return RunnerStats{
		Received:  r.received.Load(),
		Processed: r.processed.Load(),
		Flows:     r.flows.Load(),
	}
}

// Partition maps a user to a worker index in [0, n).
func Partition(userID string, n int) int {
	if n <= 1 {
		return 0
	}
	h := fnv.New32a()
	h.Write([]byte(userID))
	return int(h.Sum32() % uint32(n))
}
