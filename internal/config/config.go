// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all runtime settings for the growth engine.
type Config struct {
	// Server
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	// Logging
	LogMode  string `env:"LOG_MODE" envDefault:"dev"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Storage. Empty DSNs fall back to in-memory stores.
	UseMemory     bool   `env:"USE_MEMORY" envDefault:"false"`
	PostgresDSN   string `env:"POSTGRES_DSN"`
	ClickHouseDSN string `env:"CLICKHOUSE_DSN"`
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Decision cache
	CacheTTL     time.Duration `env:"CACHE_TTL" envDefault:"60m"`
	CacheMaxSize int           `env:"CACHE_MAX_SIZE" envDefault:"1000"`

	// Evaluation
	SignalTimeout    time.Duration `env:"SIGNAL_TIMEOUT" envDefault:"2s"`
	BatchConcurrency int           `env:"BATCH_CONCURRENCY" envDefault:"16"`

	// Scheduler
	ActiveWindow    time.Duration `env:"FLOW_ACTIVE_WINDOW" envDefault:"1h"`
	Cooldown        time.Duration `env:"FLOW_COOLDOWN" envDefault:"24h"`
	WeeklyCap       int           `env:"FLOW_WEEKLY_CAP" envDefault:"3"`
	PruneInterval   time.Duration `env:"FLOW_PRUNE_INTERVAL" envDefault:"10m"`
	QuietHoursStart string        `env:"QUIET_HOURS_START"`
	QuietHoursEnd   string        `env:"QUIET_HOURS_END"`
	QuietHoursZone  string        `env:"QUIET_HOURS_ZONE" envDefault:"UTC"`

	// Event ingestion
	WSURL          string   `env:"EVENTS_WS_URL"`
	KafkaBrokers   []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic     string   `env:"KAFKA_EVENTS_TOPIC" envDefault:"growth.events"`
	KafkaGroupID   string   `env:"KAFKA_GROUP_ID" envDefault:"growth-engine"`
	KafkaFlowTopic string   `env:"KAFKA_FLOWS_TOPIC"`
	IngestWorkers  int      `env:"INGEST_WORKERS" envDefault:"8"`
}

// Load reads an optional .env file and parses the environment into Config.
// Variables already present in the environment take precedence over the file.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges that env tags cannot express.
func (c *Config) Validate() error {
	if c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive, got %s", c.CacheTTL)
	}
	if c.CacheMaxSize <= 0 {
		return fmt.Errorf("CACHE_MAX_SIZE must be positive, got %d", c.CacheMaxSize)
	}
	if c.SignalTimeout <= 0 {
		return fmt.Errorf("SIGNAL_TIMEOUT must be positive, got %s", c.SignalTimeout)
	}
	if c.BatchConcurrency <= 0 {
		return fmt.Errorf("BATCH_CONCURRENCY must be positive, got %d", c.BatchConcurrency)
	}
	if c.WeeklyCap <= 0 {
		return fmt.Errorf("FLOW_WEEKLY_CAP must be positive, got %d", c.WeeklyCap)
	}
	if (c.QuietHoursStart == "") != (c.QuietHoursEnd == "") {
		return errors.New("QUIET_HOURS_START and QUIET_HOURS_END must be set together")
	}
	if c.IngestWorkers <= 0 {
		return fmt.Errorf("INGEST_WORKERS must be positive, got %d", c.IngestWorkers)
	}
	return nil
}

// QuietHoursEnabled reports whether a quiet-hours window is configured.
func (c *Config) QuietHoursEnabled() bool {
	return c.QuietHoursStart != "" && c.QuietHoursEnd != ""
}
