// Package config loads and validates pipeline configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	DB        DBConfig        `mapstructure:"db"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Queues    QueuesConfig    `mapstructure:"queues"`
	Workers   WorkersConfig   `mapstructure:"workers"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// DBConfig controls the persistence backend.
type DBConfig struct {
	Provider string `mapstructure:"provider"` // "postgres" or "memory"
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// QueuesConfig sets per-queue depths.
type QueuesConfig struct {
	DiscoveryDepth int `mapstructure:"discovery_depth"`
	DetailDepth    int `mapstructure:"detail_depth"`
	ReviewDepth    int `mapstructure:"review_depth"`
}

// WorkersConfig sets per-queue concurrency ceilings and the job-level
// retry policy. Discovery runs widest (cheap listing calls), reviews
// narrowest (pagination amplifies request volume).
type WorkersConfig struct {
	Discovery        int `mapstructure:"discovery"`
	Detail           int `mapstructure:"detail"`
	Review           int `mapstructure:"review"`
	MaxAttempts      int `mapstructure:"max_attempts"`
	BackoffInitialMs int `mapstructure:"backoff_initial_ms"`
}

// FetchConfig configures upstream fetch behavior for all connectors.
type FetchConfig struct {
	TimeoutSeconds   int     `mapstructure:"timeout_seconds"`
	MaxRetries       int     `mapstructure:"max_retries"`
	BackoffInitialMs int     `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int     `mapstructure:"backoff_max_ms"`
	UserAgent        string  `mapstructure:"user_agent"`
	RPS              float64 `mapstructure:"rps"`
	Burst            int     `mapstructure:"burst"`
}

// SchedulerConfig governs the sweep and deep-refresh cadences.
type SchedulerConfig struct {
	SweepIntervalHours int      `mapstructure:"sweep_interval_hours"`
	Countries          []string `mapstructure:"countries"`
	Marketplaces       []string `mapstructure:"marketplaces"`
	DiscoveryLimit     int      `mapstructure:"discovery_limit"`
	DeepRefreshTopN    int      `mapstructure:"deep_refresh_top_n"`
	ReviewMaxPages     int      `mapstructure:"review_max_pages"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("APPRADAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
	v.SetDefault("db.provider", "memory")
	v.SetDefault("db.max_conns", 8)
	v.SetDefault("db.min_conns", 1)
	v.SetDefault("pubsub.enabled", false)
	v.SetDefault("queues.discovery_depth", 256)
	v.SetDefault("queues.detail_depth", 4096)
	v.SetDefault("queues.review_depth", 4096)
	v.SetDefault("workers.discovery", 8)
	v.SetDefault("workers.detail", 4)
	v.SetDefault("workers.review", 2)
	v.SetDefault("workers.max_attempts", 3)
	v.SetDefault("workers.backoff_initial_ms", 1000)
	v.SetDefault("fetch.timeout_seconds", 15)
	v.SetDefault("fetch.max_retries", 2)
	v.SetDefault("fetch.backoff_initial_ms", 250)
	v.SetDefault("fetch.backoff_max_ms", 2000)
	v.SetDefault("fetch.user_agent", "appradar-bot/0.1")
	v.SetDefault("fetch.rps", 2.0)
	v.SetDefault("fetch.burst", 4)
	v.SetDefault("scheduler.sweep_interval_hours", 6)
	v.SetDefault("scheduler.countries", []string{"us", "gb", "de", "fr", "jp"})
	v.SetDefault("scheduler.marketplaces", []string{"google-play", "apple-appstore"})
	v.SetDefault("scheduler.discovery_limit", 100)
	v.SetDefault("scheduler.deep_refresh_top_n", 200)
	v.SetDefault("scheduler.review_max_pages", 5)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	switch c.DB.Provider {
	case "postgres":
		if c.DB.DSN == "" {
			return fmt.Errorf("db.dsn must be set when db.provider is postgres")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown db.provider %q", c.DB.Provider)
	}
	if c.PubSub.Enabled && (c.PubSub.ProjectID == "" || c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set when pubsub is enabled")
	}
	if c.Workers.Discovery <= 0 || c.Workers.Detail <= 0 || c.Workers.Review <= 0 {
		return fmt.Errorf("workers counts must be > 0")
	}
	if c.Workers.MaxAttempts <= 0 {
		return fmt.Errorf("workers.max_attempts must be > 0")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if c.Scheduler.SweepIntervalHours <= 0 {
		return fmt.Errorf("scheduler.sweep_interval_hours must be > 0")
	}
	if len(c.Scheduler.Countries) == 0 {
		return fmt.Errorf("scheduler.countries must not be empty")
	}
	return nil
}

// FetchTimeout converts the fetch timeout config into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// SweepInterval converts the sweep cadence config into a duration.
func (c Config) SweepInterval() time.Duration {
	return time.Duration(c.Scheduler.SweepIntervalHours) * time.Hour
}

// JobBackoff converts the worker backoff config into a duration.
func (c Config) JobBackoff() time.Duration {
	return time.Duration(c.Workers.BackoffInitialMs) * time.Millisecond
}
