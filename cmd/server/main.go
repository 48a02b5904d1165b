// Package main runs the growth engine service:
// - HTTP API (decisions, events, flow metrics, health/metrics/status)
// - Event ingestion (WebSocket and Kafka sources)
// - Scheduler maintenance and analytics flushing
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"fly2any-growth/internal/analytics"
	"fly2any-growth/internal/api"
	"fly2any-growth/internal/cache"
	"fly2any-growth/internal/config"
	"fly2any-growth/internal/dispatch"
	"fly2any-growth/internal/engine"
	"fly2any-growth/internal/fixtures"
	"fly2any-growth/internal/ingestion"
	"fly2any-growth/internal/logger"
	"fly2any-growth/internal/retention"
	"fly2any-growth/internal/storage"
	chstore "fly2any-growth/internal/storage/clickhouse"
	"fly2any-growth/internal/storage/memory"
	"fly2any-growth/internal/storage/migrations"
	pgstore "fly2any-growth/internal/storage/postgres"
)

// stores holds the storage implementations chosen at startup.
type stores struct {
	signals   storage.SignalStore
	history   storage.FlowHistoryStore
	flows     storage.FlowEventStore
	decisions storage.DecisionSnapshotStore
	cache     cache.Store
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogMode, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())

	st, cleanup, err := createStores(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to create stores", "error", err)
	}
	defer cleanup()

	dispatcher, closeDispatcher, err := createDispatcher(cfg, log)
	if err != nil {
		log.Fatal("failed to create dispatcher", "error", err)
	}
	defer closeDispatcher()

	storeSink := analytics.NewStoreSink(analytics.StoreSinkOptions{
		Flows:     st.flows,
		Decisions: st.decisions,
		Logger:    log.With("component", "analytics"),
	})

	var quiet *retention.QuietHours
	if cfg.QuietHoursEnabled() {
		quiet, err = retention.ParseQuietHours(cfg.QuietHoursStart, cfg.QuietHoursEnd, cfg.QuietHoursZone)
		if err != nil {
			log.Fatal("invalid quiet hours", "error", err)
		}
	}

	eng := engine.New(engine.Options{
		Signals:       st.signals,
		History:       st.history,
		Cache:         st.cache,
		Dispatcher:    dispatcher,
		Analytics:     analytics.Fanout{storeSink, analytics.NewLogSink(log.With("component", "analytics"))},
		Logger:        log,
		SignalTimeout: cfg.SignalTimeout,
		BatchLimit:    cfg.BatchConcurrency,
		ActiveWindow:  cfg.ActiveWindow,
		Cooldown:      cfg.Cooldown,
		WeeklyCap:     cfg.WeeklyCap,
		QuietHours:    quiet,
	})

	sources, err := createSources(cfg, log)
	if err != nil {
		log.Fatal("failed to create event sources", "error", err)
	}

	var runner *ingestion.Runner
	if len(sources) > 0 {
		runner = ingestion.NewRunner(ingestion.RunnerOptions{
			Sources:   sources,
			Processor: eng,
			Workers:   cfg.IngestWorkers,
			Logger:    log.With("component", "ingestion"),
		})
	}

	handler := api.NewHandler(api.Options{
		Engine: eng,
		Logger: log.With("component", "api"),
		Status: func() map[string]any {
			status := map[string]any{"engine": eng.Stats()}
			if runner != nil {
				status["ingestion"] = runner.Stats()
			}
			return status
		},
	})
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to signal completion
	done := make(chan struct{})

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info("received signal, initiating graceful shutdown", "signal", sig.String())
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			log.Warn("received second signal, forcing immediate shutdown", "signal", sig.String())
			os.Exit(1)
		case <-time.After(30 * time.Second):
			log.Error("graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting HTTP server", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
		defer stop()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		eng.Run(gctx, cfg.PruneInterval)
		return nil
	})
	g.Go(func() error {
		storeSink.Run(gctx)
		return nil
	})
	if runner != nil {
		g.Go(func() error {
			err := runner.Run(gctx)
			if err == nil || errors.Is(err, context.Canceled) {
				return nil
			}
			if errors.Is(err, ingestion.ErrSourcesClosed) {
				log.Warn("all event sources closed; serving API only")
				return nil
			}
			return fmt.Errorf("ingestion: %w", err)
		})
	} else {
		log.Info("no event sources configured; ingestion disabled")
	}

	err = g.Wait()
	close(done)
	cancel()

	if err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}

// createStores picks in-memory or database-backed stores from config.
// Postgres holds signals and flow history; ClickHouse holds analytics; Redis holds the decision cache.
func createStores(ctx context.Context, cfg *config.Config, log *logger.Logger) (*stores, func(), error) {
	memCache := cache.NewMemoryStore(cache.MemoryOptions{TTL: cfg.CacheTTL, MaxSize: cfg.CacheMaxSize})

	if cfg.UseMemory || cfg.PostgresDSN == "" {
		signals := memory.NewSignalStore()
		n, err := fixtures.Load(ctx, signals, time.Now())
		if err != nil {
			return nil, nil, fmt.Errorf("load fixtures: %w", err)
		}
		log.Info("using in-memory stores with demo users", "users", n)
		return &stores{
			signals:   signals,
			history:   memory.NewFlowHistoryStore(),
			flows:     memory.NewFlowEventStore(),
			decisions: memory.NewDecisionSnapshotStore(),
			cache:     memCache,
		}, func() {}, nil
	}

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	// PostgreSQL
	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	closers = append(closers, pool.Close)
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	st := &stores{
		signals: pgstore.NewSignalStore(pool),
		history: pgstore.NewFlowHistoryStore(pool),
		cache:   memCache,
	}

	// ClickHouse
	if cfg.ClickHouseDSN != "" {
		chConn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickHouseDSN)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("clickhouse: %w", err)
		}
		closers = append(closers, func() { chConn.Close() })
		st.flows = chstore.NewFlowEventStore(chConn)
		st.decisions = chstore.NewDecisionSnapshotStore(chConn)
	} else {
		log.Warn("CLICKHOUSE_DSN not set; analytics records are logged only")
	}

	// Redis
	if cfg.RedisAddr != "" {
		client, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("connect to redis: %w", err)
		}
		closers = append(closers, func() { client.Close() })
		st.cache = cache.NewRedisStore(cache.RedisOptions{
			Client: client,
			TTL:    cfg.CacheTTL,
			Logger: log.With("component", "cache"),
		})
	}

	return st, cleanup, nil
}

// createDispatcher logs every flow and, when a flow topic is configured, also publishes it to Kafka.
func createDispatcher(cfg *config.Config, log *logger.Logger) (dispatch.Dispatcher, func(), error) {
	logDispatcher := dispatch.NewLogDispatcher(log.With("component", "dispatch"))
	if cfg.KafkaFlowTopic == "" {
		return logDispatcher, func() {}, nil
	}

	kd, err := dispatch.NewKafkaDispatcher(cfg.KafkaBrokers, cfg.KafkaFlowTopic)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := kd.Close(); err != nil {
			log.Warn("close kafka dispatcher", "error", err)
		}
	}
	return dispatch.Multi{logDispatcher, kd}, closeFn, nil
}

// createSources builds the configured event sources.
func createSources(cfg *config.Config, log *logger.Logger) ([]ingestion.Source, error) {
	var sources []ingestion.Source

	if cfg.WSURL != "" {
		sources = append(sources, ingestion.NewWSSource(cfg.WSURL, nil, log.With("component", "ingestion")))
	}

	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic != "" {
		ks, err := ingestion.NewKafkaSource(ingestion.KafkaOptions{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
			GroupID: cfg.KafkaGroupID,
			Logger:  log.With("component", "ingestion"),
		})
		if err != nil {
			return nil, err
		}
		sources = append(sources, ks)
	}

	return sources, nil
}
