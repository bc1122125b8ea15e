package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Environment represents different deployment environments.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvProduction  Environment = "production"
)

// Config holds the configuration for the enrichment worker.
// Environment variables are parsed from the PULSEKEEP_ prefix,
// e.g. PULSEKEEP_POSTGRES_DSN, PULSEKEEP_MODEL_PROVIDER.
type Config struct {
	// Build target selects the high-level environment: local or cloud.
	BuildTarget string `envconfig:"BUILD_TARGET" default:"local"`

	Environment Environment `envconfig:"ENVIRONMENT" default:"development"`

	// Store selection. "auto" derives from BuildTarget.
	DBDriver    string `envconfig:"DB_DRIVER" default:"auto"`
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:""`

	// Ops HTTP surface (health and stats).
	HTTPPort int `envconfig:"HTTP_PORT" default:"8090"`

	// Generative model.
	ModelProvider string `envconfig:"MODEL_PROVIDER" default:"http"`
	ModelName     string `envconfig:"MODEL_NAME" default:"gemini-2.5-flash-lite"`
	ModelBaseURL  string `envconfig:"MODEL_BASE_URL" default:"http://localhost:11434"`
	GeminiAPIKey  string `envconfig:"GEMINI_API_KEY" default:""`

	// Queue worker cadence.
	QueueBatchSize      int `envconfig:"QUEUE_BATCH_SIZE" default:"50"`
	QueuePollIntervalMS int `envconfig:"QUEUE_POLL_INTERVAL_MS" default:"2000"`
	QueueMaxDeliveries  int `envconfig:"QUEUE_MAX_DELIVERIES" default:"8"`
	QueueVisibilityMS   int `envconfig:"QUEUE_VISIBILITY_MS" default:"30000"`
	QueueBackoffCapMS   int `envconfig:"QUEUE_BACKOFF_CAP_MS" default:"300000"`

	// AI enrichment bounds.
	MaxConcurrentEnrichments int   `envconfig:"MAX_CONCURRENT_ENRICHMENTS" default:"8"`
	AIBudgetLatencyMS        int   `envconfig:"AI_BUDGET_LATENCY_MS" default:"8000"`
	AIBudgetLatencyLongMS    int   `envconfig:"AI_BUDGET_LATENCY_LONG_MS" default:"12000"`
	AIBudgetCostUnits        int64 `envconfig:"AI_BUDGET_COST_UNITS" default:"50"`
	AIMaxAttempts            int   `envconfig:"AI_MAX_ATTEMPTS" default:"3"`

	// Circuit breaker over the model dependency.
	BreakerFailureThreshold uint32 `envconfig:"BREAKER_FAILURE_THRESHOLD" default:"5"`
	BreakerWindowSeconds    int    `envconfig:"BREAKER_WINDOW_SECONDS" default:"60"`
	BreakerCooloffSeconds   int    `envconfig:"BREAKER_COOLOFF_SECONDS" default:"30"`
}

// ResolveDefaults validates BuildTarget and derives DBDriver when "auto".
func (c *Config) ResolveDefaults() error {
	var defaultDB string
	switch c.BuildTarget {
	case "local":
		defaultDB = "sqlite"
	case "cloud":
		defaultDB = "postgres"
	default:
		return fmt.Errorf("unsupported BUILD_TARGET: %s", c.BuildTarget)
	}

	if c.DBDriver == "" || c.DBDriver == "auto" {
		c.DBDriver = defaultDB
	}
	allowedDB := map[string]bool{"postgres": true, "sqlite": true}
	if !allowedDB[c.DBDriver] {
		return fmt.Errorf("unsupported DB_DRIVER: %s", c.DBDriver)
	}
	if c.DBDriver == "postgres" && c.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required with DB_DRIVER=postgres")
	}
	if c.DBDriver == "sqlite" && c.SQLitePath == "" {
		c.SQLitePath = "pulsekeep.db"
	}

	switch c.ModelProvider {
	case "gemini":
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required with MODEL_PROVIDER=gemini")
		}
	case "http":
		if c.ModelBaseURL == "" {
			return fmt.Errorf("MODEL_BASE_URL is required with MODEL_PROVIDER=http")
		}
	default:
		return fmt.Errorf("unsupported MODEL_PROVIDER: %s", c.ModelProvider)
	}

	if c.AIBudgetLatencyMS <= 0 || c.AIBudgetLatencyLongMS < c.AIBudgetLatencyMS {
		return fmt.Errorf("invalid AI latency budget: base=%dms long=%dms", c.AIBudgetLatencyMS, c.AIBudgetLatencyLongMS)
	}
	if c.AIBudgetCostUnits <= 0 {
		return fmt.Errorf("AI_BUDGET_COST_UNITS must be positive")
	}
	if c.QueueMaxDeliveries <= 0 {
		return fmt.Errorf("QUEUE_MAX_DELIVERIES must be positive")
	}
	return nil
}

// New creates a Config by parsing PULSEKEEP_-prefixed environment variables.
func New() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("PULSEKEEP", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}
	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// NewForTesting creates a config suitable for unit tests: sqlite store,
// http model provider, tight budgets.
func NewForTesting() *Config {
	cfg := &Config{
		BuildTarget:   "local",
		Environment:   EnvTesting,
		DBDriver:      "sqlite",
		SQLitePath:    ":memory:",
		HTTPPort:      8090,
		ModelProvider: "http",
		ModelName:     "test-model",
		ModelBaseURL:  "http://localhost:11434",

		QueueBatchSize:      10,
		QueuePollIntervalMS: 50,
		QueueMaxDeliveries:  3,
		QueueVisibilityMS:   1000,
		QueueBackoffCapMS:   2000,

		MaxConcurrentEnrichments: 2,
		AIBudgetLatencyMS:        500,
		AIBudgetLatencyLongMS:    1000,
		AIBudgetCostUnits:        50,
		AIMaxAttempts:            2,

		BreakerFailureThreshold: 3,
		BreakerWindowSeconds:    10,
		BreakerCooloffSeconds:   5,
	}
	return cfg
}

// IsTesting returns true if the environment is set to testing.
func (c *Config) IsTesting() bool { return c.Environment == EnvTesting }

// IsProduction returns true if the environment is set to production.
func (c *Config) IsProduction() bool { return c.Environment == EnvProduction }

// PollInterval returns the queue poll cadence as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.QueuePollIntervalMS) * time.Millisecond
}

// Visibility returns how long a leased message stays invisible before
// becoming eligible for redelivery.
func (c *Config) Visibility() time.Duration {
	return time.Duration(c.QueueVisibilityMS) * time.Millisecond
}

// BackoffCap returns the ceiling on the queue's exponential redelivery backoff.
func (c *Config) BackoffCap() time.Duration {
	return time.Duration(c.QueueBackoffCapMS) * time.Millisecond
}

// GetHTTPAddr returns the ops HTTP listen address.
func (c *Config) GetHTTPAddr() string { return fmt.Sprintf(":%d", c.HTTPPort) }
