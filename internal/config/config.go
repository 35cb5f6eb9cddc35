package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the runtime configuration, loaded from the environment.
type Config struct {
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`
	DBPath   string `envconfig:"DB_PATH" default:"data/balances.db"`

	AMQPURL      string `envconfig:"AMQP_URL"`
	AMQPExchange string `envconfig:"AMQP_EXCHANGE" default:"splitter.events"`

	// REDIS_URL enables the summary cache; leave empty to run without it.
	RedisURL string        `envconfig:"REDIS_URL"`
	CacheTTL time.Duration `envconfig:"CACHE_TTL" default:"5m"`

	CurrencyServiceURL string        `envconfig:"CURRENCY_SERVICE_URL"`
	CurrencyTimeout    time.Duration `envconfig:"CURRENCY_TIMEOUT" default:"2s"`

	// Entries older than the retention horizon are pruned; zero disables pruning.
	RetentionDays int           `envconfig:"RETENTION_DAYS" default:"0"`
	PruneInterval time.Duration `envconfig:"PRUNE_INTERVAL" default:"24h"`

	DispatcherBuffer int `envconfig:"DISPATCHER_BUFFER" default:"64"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the loaded values for obvious mistakes.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH must not be empty")
	}
	if c.RetentionDays < 0 {
		return fmt.Errorf("RETENTION_DAYS must not be negative")
	}
	if c.DispatcherBuffer <= 0 {
		return fmt.Errorf("DISPATCHER_BUFFER must be positive")
	}
	return nil
}
