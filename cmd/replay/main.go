// Package main replays a JSONL event log against fixture signals using event time.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"fly2any-growth/internal/analytics"
	"fly2any-growth/internal/domain"
	"fly2any-growth/internal/engine"
	"fly2any-growth/internal/fixtures"
	"fly2any-growth/internal/ingestion"
	"fly2any-growth/internal/logger"
	"fly2any-growth/internal/reporting"
	"fly2any-growth/internal/retention"
	"fly2any-growth/internal/storage/memory"
)

// eventClock is set to each event's timestamp before it is processed.
type eventClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *eventClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *eventClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.After(c.t) {
		c.t = t
	}
}

// noTimer disables wall-clock expiry; the scheduler re-checks windows against the event clock.
func noTimer(time.Duration, func()) func() bool { return func() bool { return false } }

func main() {
	// Parse flags
	eventsFile := flag.String("events", "", "JSONL event log to replay (required)")
	fixturesFile := flag.String("fixtures", "", "JSON file of user signals (default: built-in demo users)")
	outputDir := flag.String("output-dir", "", "Write REPLAY_REPORT.md and FLOWS.csv to this directory")
	outputJSON := flag.Bool("json", false, "Output flows as JSON")
	cooldown := flag.Duration("cooldown", 24*time.Hour, "Per-user flow cooldown")
	weeklyCap := flag.Int("weekly-cap", 3, "Maximum flows per user per 7 days")
	logLevel := flag.String("log-level", "warn", "Log level")
	flag.Parse()

	log, err := logger.New("dev", *logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Validate required flags
	if *eventsFile == "" {
		log.Fatal("--events is required")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("received signal, shutting down", "signal", sig.String())
		cancel()
	}()

	clock := &eventClock{}
	replayer := ingestion.NewReplayer(ingestion.ReplayerOptions{SetClock: clock.Set, Logger: log})

	f, err := os.Open(*eventsFile)
	if err != nil {
		log.Fatal("open events", "error", err)
	}
	events, skipped, err := replayer.ReadEvents(f)
	f.Close()
	if err != nil {
		log.Fatal("read events", "error", err)
	}
	if len(events) == 0 {
		log.Fatal("no valid events in log", "skipped", skipped)
	}

	first, last := timeRange(events)
	clock.Set(first)

	// Fixture ages are anchored at the first event so scores match recorded time.
	signals := memory.NewSignalStore()
	if *fixturesFile != "" {
		_, err = fixtures.LoadFile(ctx, signals, *fixturesFile)
	} else {
		_, err = fixtures.Load(ctx, signals, first)
	}
	if err != nil {
		log.Fatal("load fixtures", "error", err)
	}

	flowStore := memory.NewFlowEventStore()
	sink := analytics.NewStoreSink(analytics.StoreSinkOptions{Flows: flowStore, Logger: log})

	eng := engine.New(engine.Options{
		Signals:   signals,
		History:   memory.NewFlowHistoryStore(),
		Analytics: sink,
		Logger:    log,
		Cooldown:  *cooldown,
		WeeklyCap: *weeklyCap,
		Now:       clock.Now,
		AfterFunc: retention.AfterFunc(noTimer),
	})

	replayer = ingestion.NewReplayer(ingestion.ReplayerOptions{
		Processor: eng,
		SetClock:  clock.Set,
		Logger:    log,
	})
	result, err := replayer.Replay(ctx, events)
	if err != nil {
		log.Fatal("replay failed", "error", err)
	}
	result.EventsSkipped += skipped
	sink.Flush(ctx)

	if *outputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result.Flows); err != nil {
			log.Fatal("encode flows", "error", err)
		}
	} else {
		printResult(result)
	}

	if *outputDir != "" {
		if err := writeReport(ctx, eng, flowStore, *outputDir, eventUsers(events), first, last); err != nil {
			log.Fatal("write report", "error", err)
		}
	}
}

func timeRange(events []domain.RetentionEvent) (first, last time.Time) {
	for i, ev := range events {
		if i == 0 || ev.Timestamp.Before(first) {
			first = ev.Timestamp
		}
		if ev.Timestamp.After(last) {
			last = ev.Timestamp
		}
	}
	return first, last
}

func printResult(r *ingestion.ReplayResult) {
	fmt.Printf("Events: %d read, %d skipped, %d processed in %v\n",
		r.EventsRead, r.EventsSkipped, r.EventsProcessed, r.Duration)
	fmt.Printf("Flows: %d\n", len(r.Flows))
	for _, row := range reporting.FlowRows(r.Flows) {
		fmt.Printf("  %-13s %-7s %d (incentive: %d)\n", row.FlowType, row.Channel, row.Count, row.IncentiveCount)
	}
}

// eventUsers returns the distinct user IDs in first-seen order.
func eventUsers(events []domain.RetentionEvent) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, ev := range events {
		if !seen[ev.UserID] {
			seen[ev.UserID] = true
			ids = append(ids, ev.UserID)
		}
	}
	return ids
}

// writeReport evaluates every user in the log at the final event time and renders
// their decisions together with the flows executed during the replay.
func writeReport(ctx context.Context, eng *engine.Engine, flows *memory.FlowEventStore, dir string, users []string, first, last time.Time) error {
	decisions := eng.BatchEvaluate(ctx, users)

	window := last.Sub(first) + time.Second
	report, err := reporting.NewGenerator(flows, window).
		WithClock(func() time.Time { return last }).
		Generate(ctx, decisions)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "REPLAY_REPORT.md"), []byte(reporting.RenderMarkdown(report)), 0644); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "FLOWS.csv"), []byte(reporting.RenderFlowsCSV(report.Flows)), 0644); err != nil {
		return err
	}
	fmt.Printf("Report written to %s/\n", dir)
	return nil
}
