// Package main evaluates a batch of users and writes CSV and markdown reports.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fly2any-growth/internal/analytics"
	"fly2any-growth/internal/decision"
	"fly2any-growth/internal/engine"
	"fly2any-growth/internal/fixtures"
	"fly2any-growth/internal/logger"
	"fly2any-growth/internal/reporting"
	"fly2any-growth/internal/storage"
	chstore "fly2any-growth/internal/storage/clickhouse"
	"fly2any-growth/internal/storage/memory"
	pgstore "fly2any-growth/internal/storage/postgres"
)

func main() {
	// Parse flags (env vars as defaults)
	idsFile := flag.String("ids", "", "File with one user ID per line (default: positional args, or all fixture users)")
	outputDir := flag.String("output-dir", "output", "Output directory for generated files")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string for signals")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string for flow analytics")
	fixturesFile := flag.String("fixtures", "", "JSON file of user signals (implies in-memory signals)")
	useFixtures := flag.Bool("use-fixtures", false, "Use built-in demo users instead of PostgreSQL")
	flowsWindow := flag.Duration("flows-window", 7*24*time.Hour, "Flow activity window for the report (needs ClickHouse)")
	concurrency := flag.Int("concurrency", 16, "Maximum concurrent evaluations")
	explain := flag.String("explain", "", "Print the decision breakdown for one user ID")
	logLevel := flag.String("log-level", envOr("LOG_LEVEL", "warn"), "Log level")
	flag.Parse()

	log, err := logger.New("dev", *logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := context.Background()
	inMemory := *useFixtures || *fixturesFile != ""

	if !inMemory && *postgresDSN == "" {
		fmt.Fprintln(os.Stderr, "Error: --postgres-dsn is required when not using fixtures")
		fmt.Fprintln(os.Stderr, "Use --use-fixtures to run with demo users instead")
		os.Exit(1)
	}

	// Signals
	var signals storage.SignalStore
	if inMemory {
		store := memory.NewSignalStore()
		var n int
		if *fixturesFile != "" {
			n, err = fixtures.LoadFile(ctx, store, *fixturesFile)
		} else {
			n, err = fixtures.Load(ctx, store, time.Now())
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading fixtures: %v\n", err)
			os.Exit(1)
		}
		log.Info("loaded fixture users", "users", n)
		signals = store
	} else {
		pool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error connecting to postgres: %v\n", err)
			os.Exit(1)
		}
		defer pool.Close()
		signals = pgstore.NewSignalStore(pool)
	}

	// Flow analytics (optional)
	var flowStore storage.FlowEventStore
	if *clickhouseDSN != "" && !inMemory {
		conn, err := chstore.NewConn(ctx, *clickhouseDSN)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error connecting to clickhouse: %v\n", err)
			os.Exit(1)
		}
		defer conn.Close()
		flowStore = chstore.NewFlowEventStore(conn)
	}

	ids, err := userIDs(*idsFile, flag.Args(), *useFixtures && *fixturesFile == "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading user IDs: %v\n", err)
		os.Exit(1)
	}
	if len(ids) == 0 {
		fmt.Fprintln(os.Stderr, "Error: no user IDs given")
		os.Exit(1)
	}

	eng := engine.New(engine.Options{
		Signals:    signals,
		History:    memory.NewFlowHistoryStore(),
		Analytics:  analytics.Nop{},
		Logger:     log,
		BatchLimit: *concurrency,
	})

	start := time.Now()
	decisions := eng.BatchEvaluate(ctx, ids)
	log.Info("batch evaluated", "users", len(decisions), "duration", time.Since(start))

	report, err := reporting.NewGenerator(flowStore, *flowsWindow).Generate(ctx, decisions)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating report: %v\n", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}
	files := map[string]string{
		"GROWTH_REPORT.md": reporting.RenderMarkdown(report),
		"DECISIONS.csv":    reporting.RenderCSV(report.Decisions),
	}
	if flowStore != nil {
		files["FLOWS.csv"] = reporting.RenderFlowsCSV(report.Flows)
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(*outputDir, name), []byte(content), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", name, err)
			os.Exit(1)
		}
	}

	if *explain != "" {
		d := eng.Evaluate(ctx, *explain)
		fmt.Println(decision.RenderMarkdown(d))
	}

	fmt.Printf("Evaluated %d users (%d unknown):\n", report.UserCount, report.Summary.UnknownUsers)
	fmt.Printf("  - %s/GROWTH_REPORT.md\n", *outputDir)
	fmt.Printf("  - %s/DECISIONS.csv\n", *outputDir)
	if flowStore != nil {
		fmt.Printf("  - %s/FLOWS.csv\n", *outputDir)
	}
}

// userIDs reads IDs from file, else positional args, else the fixture population.
func userIDs(path string, args []string, demo bool) ([]string, error) {
	if path == "" {
		if len(args) == 0 && demo {
			return fixtures.UserIDs(), nil
		}
		return args, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var ids []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids = append(ids, line)
	}
	return ids, scanner.Err()
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
