// Package config provides configuration management for landscout runs.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Configuration validation errors.
var (
	ErrInvalidProvider          = errors.New("search.provider must be 'cse' or 'brave'")
	ErrInvalidItemsPerQuery     = errors.New("search.items_per_query must be between 1 and 10")
	ErrInvalidSearchTimeout     = errors.New("search.timeout_sec must be at least 1")
	ErrInvalidMaxQPS            = errors.New("search.max_qps must be positive")
	ErrInvalidInterQueryDelay   = errors.New("pipeline.inter_query_delay_ms must be non-negative")
	ErrInvalidExplorationRate   = errors.New("pipeline.exploration_rate must be between 0 and 1")
	ErrInvalidWorkers           = errors.New("pipeline.workers must be at least 1")
	ErrInvalidRunTimeout        = errors.New("pipeline.run_timeout_sec must be non-negative")
	ErrInvalidGlobalBudget      = errors.New("budget.global must be at least 1")
	ErrInvalidPerHostBudget     = errors.New("budget.per_host must be at least 1")
	ErrInvalidRPS               = errors.New("politeness.requests_per_second must be positive")
	ErrInvalidJitter            = errors.New("politeness jitter range must satisfy 0 <= jitter_min_ms <= jitter_max_ms")
	ErrInvalidMaxAttempts       = errors.New("retry.max_attempts must be at least 1")
	ErrInvalidInitialDelay      = errors.New("retry.initial_delay_ms must be non-negative")
	ErrInvalidBackoffMultiplier = errors.New("retry.backoff_multiplier must be >= 1.0")
	ErrInvalidTimeout           = errors.New("retry.timeout_sec must be at least 1")
	ErrInvalidBufferSize        = errors.New("crawler.buffer_size_kb must be at least 1")
	ErrInvalidSink              = errors.New("output.sinks entries must be one of: jsonl, sqlite, postgres, webhook")
	ErrMissingOutputPath        = errors.New("output.path is required for the jsonl sink")
	ErrMissingSQLitePath        = errors.New("output.sqlite_path is required for the sqlite sink")
	ErrMissingPostgresDSN       = errors.New("output.postgres_dsn is required for the postgres sink")
	ErrMissingWebhookURL        = errors.New("output.webhook_url is required for the webhook sink")
	ErrInvalidLogLevel          = errors.New("logging.level must be one of: debug, info, warn, error")
	ErrInvalidLogFormat         = errors.New("logging.format must be 'text' or 'json'")
)

// Search providers.
const (
	ProviderCSE   = "cse"
	ProviderBrave = "brave"
)

// Sink kinds.
const (
	SinkJSONL    = "jsonl"
	SinkSQLite   = "sqlite"
	SinkPostgres = "postgres"
	SinkWebhook  = "webhook"
)

// Config represents the complete landscout configuration.
type Config struct {
	Search     SearchConfig     `yaml:"search"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Budget     BudgetConfig     `yaml:"budget"`
	Politeness PolitenessConfig `yaml:"politeness"`
	Crawler    CrawlerConfig    `yaml:"crawler"`
	Output     OutputConfig     `yaml:"output"`
	Logging    LoggingConfig    `yaml:"logging"`
	Schedule   ScheduleConfig   `yaml:"schedule"`
}

// SearchConfig configures the discovery provider.
type SearchConfig struct {
	Provider         string   `yaml:"provider"`
	APIKey           string   `yaml:"api_key"`
	ScopeID          string   `yaml:"scope_id"`
	Endpoint         string   `yaml:"endpoint"`
	PreferredSources []string `yaml:"preferred_sources"`
	ItemsPerQuery    int      `yaml:"items_per_query"`
	TimeoutSec       int      `yaml:"timeout_sec"`
	MaxQPS           float64  `yaml:"max_qps"`
}

// PipelineConfig configures ranking, gating and pacing of a run.
type PipelineConfig struct {
	SourceName        string  `yaml:"source_name"`
	InterQueryDelayMs int     `yaml:"inter_query_delay_ms"`
	ScoreThreshold    float64 `yaml:"score_threshold"`
	ExplorationRate   float64 `yaml:"exploration_rate"`
	Workers           int     `yaml:"workers"`
	RunTimeoutSec     int     `yaml:"run_timeout_sec"`
}

// BudgetConfig holds the per-run crawl caps.
type BudgetConfig struct {
	Global  int `yaml:"global"`
	PerHost int `yaml:"per_host"`
}

// PolitenessConfig holds the per-host request cadence.
type PolitenessConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	JitterMinMs       int     `yaml:"jitter_min_ms"`
	JitterMaxMs       int     `yaml:"jitter_max_ms"`
}

// CrawlerConfig contains page fetch settings used by link verification.
type CrawlerConfig struct {
	UserAgent         string      `yaml:"user_agent"`
	BlockedDomains    []string    `yaml:"blocked_domains"`
	Retry             RetryPolicy `yaml:"retry"`
	BufferSizeKb      int         `yaml:"buffer_size_kb"`
	AllowPrivateHosts bool        `yaml:"allow_private_hosts"`
}

// RetryPolicy defines retry behavior.
type RetryPolicy struct {
	MaxAttempts       int     `yaml:"max_attempts"`
	InitialDelayMs    int     `yaml:"initial_delay_ms"`
	MaxDelayMs        int     `yaml:"max_delay_ms"`
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`
	TimeoutSec        int     `yaml:"timeout_sec"`
}

// OutputConfig defines where emitted listings go.
type OutputConfig struct {
	Sinks          []string `yaml:"sinks"`
	Path           string   `yaml:"path"`
	SQLitePath     string   `yaml:"sqlite_path"`
	PostgresDSN    string   `yaml:"postgres_dsn"`
	PostgresSchema string   `yaml:"postgres_schema"`
	WebhookURL     string   `yaml:"webhook_url"`
	WebhookToken   string   `yaml:"webhook_token"`
	WebhookSecret  string   `yaml:"webhook_secret"`
	ReportPath     string   `yaml:"report_path"`
}

// LoggingConfig defines logging behavior.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ScheduleConfig enables recurring runs. An empty cron expression runs once.
type ScheduleConfig struct {
	Cron string `yaml:"cron"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Search: SearchConfig{
			Provider:      ProviderCSE,
			ItemsPerQuery: 10,
			TimeoutSec:    20,
			MaxQPS:        1,
		},
		Pipeline: PipelineConfig{
			SourceName:        "websearch",
			InterQueryDelayMs: 1000,
			ScoreThreshold:    1.0,
			ExplorationRate:   0.1,
			Workers:           1,
		},
		Budget: BudgetConfig{
			Global:  60,
			PerHost: 8,
		},
		Politeness: PolitenessConfig{
			RequestsPerSecond: 0.5,
			JitterMinMs:       250,
			JitterMaxMs:       1250,
		},
		Crawler: CrawlerConfig{
			Retry: RetryPolicy{
				MaxAttempts:       3,
				InitialDelayMs:    500,
				MaxDelayMs:        8000,
				BackoffMultiplier: 2.0,
				TimeoutSec:        15,
			},
			BufferSizeKb: 2048,
		},
		Output: OutputConfig{
			Sinks:          []string{SinkJSONL},
			Path:           "./output/listings.jsonl",
			PostgresSchema: "public",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig loads configuration from a YAML file layered over the defaults,
// then applies environment overrides. An empty path skips the file.
func LoadConfig(filepath string) (*Config, error) {
	cfg := Default()

	if filepath != "" {
		data, err := os.ReadFile(filepath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, fmt.Errorf("invalid environment override: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves configuration to YAML file.
func (c *Config) SaveConfig(filepath string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filepath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Search.Provider != ProviderCSE && c.Search.Provider != ProviderBrave {
		return fmt.Errorf("%w: %q", ErrInvalidProvider, c.Search.Provider)
	}

	if c.Search.ItemsPerQuery < 1 || c.Search.ItemsPerQuery > 10 {
		return ErrInvalidItemsPerQuery
	}

	if c.Search.TimeoutSec < 1 {
		return ErrInvalidSearchTimeout
	}

	if c.Search.MaxQPS <= 0 {
		return ErrInvalidMaxQPS
	}

	if c.Pipeline.InterQueryDelayMs < 0 {
		return ErrInvalidInterQueryDelay
	}

	if c.Pipeline.ExplorationRate < 0 || c.Pipeline.ExplorationRate > 1 {
		return ErrInvalidExplorationRate
	}

	if c.Pipeline.Workers < 1 {
		return ErrInvalidWorkers
	}

	if c.Pipeline.RunTimeoutSec < 0 {
		return ErrInvalidRunTimeout
	}

	if c.Budget.Global < 1 {
		return ErrInvalidGlobalBudget
	}

	if c.Budget.PerHost < 1 {
		return ErrInvalidPerHostBudget
	}

	if c.Politeness.RequestsPerSecond <= 0 {
		return ErrInvalidRPS
	}

	if c.Politeness.JitterMinMs < 0 || c.Politeness.JitterMinMs > c.Politeness.JitterMaxMs {
		return ErrInvalidJitter
	}

	// Validate retry policy
	if c.Crawler.Retry.MaxAttempts < 1 {
		return ErrInvalidMaxAttempts
	}

	if c.Crawler.Retry.InitialDelayMs < 0 {
		return ErrInvalidInitialDelay
	}

	if c.Crawler.Retry.BackoffMultiplier < 1.0 {
		return ErrInvalidBackoffMultiplier
	}

	if c.Crawler.Retry.TimeoutSec < 1 {
		return ErrInvalidTimeout
	}

	if c.Crawler.BufferSizeKb < 1 {
		return ErrInvalidBufferSize
	}

	if err := c.Output.validate(); err != nil {
		return err
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return ErrInvalidLogLevel
	}

	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return ErrInvalidLogFormat
	}

	return nil
}

func (o *OutputConfig) validate() error {
	for _, kind := range o.Sinks {
		switch kind {
		case SinkJSONL:
			if o.Path == "" {
				return ErrMissingOutputPath
			}
		case SinkSQLite:
			if o.SQLitePath == "" {
				return ErrMissingSQLitePath
			}
		case SinkPostgres:
			if o.PostgresDSN == "" {
				return ErrMissingPostgresDSN
			}
		case SinkWebhook:
			if o.WebhookURL == "" {
				return ErrMissingWebhookURL
			}
		default:
			return fmt.Errorf("%w: %q", ErrInvalidSink, kind)
		}
	}

	return nil
}

// HasCredentials reports whether the configured provider can be called.
func (s *SearchConfig) HasCredentials() bool {
	if s.APIKey == "" {
		return false
	}

	if s.Provider == ProviderCSE {
		return s.ScopeID != ""
	}

	return true
}

// InterQueryDelay returns the pause between queries.
func (p *PipelineConfig) InterQueryDelay() time.Duration {
	return time.Duration(p.InterQueryDelayMs) * time.Millisecond
}

// RunTimeout returns the overall run deadline, zero for none.
func (p *PipelineConfig) RunTimeout() time.Duration {
	return time.Duration(p.RunTimeoutSec) * time.Second
}

// MinInterval returns 1/requests_per_second.
func (p *PolitenessConfig) MinInterval() time.Duration {
	return time.Duration(float64(time.Second) / p.RequestsPerSecond)
}

// JitterRange returns the configured jitter bounds.
func (p *PolitenessConfig) JitterRange() (time.Duration, time.Duration) {
	return time.Duration(p.JitterMinMs) * time.Millisecond, time.Duration(p.JitterMaxMs) * time.Millisecond
}

// GetRetryDelay calculates exponential backoff delay for attempt number.
func (rp *RetryPolicy) GetRetryDelay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}

	delayMs := float64(rp.InitialDelayMs)
	for i := 2; i < attempt; i++ {
		delayMs *= rp.BackoffMultiplier
	}

	// Cap at max delay
	if rp.MaxDelayMs > 0 && int(delayMs) > rp.MaxDelayMs {
		delayMs = float64(rp.MaxDelayMs)
	}

	return time.Duration(int(delayMs)) * time.Millisecond
}

// GetTimeout returns the per-request timeout duration.
func (rp *RetryPolicy) GetTimeout() time.Duration {
	return time.Duration(rp.TimeoutSec) * time.Second
}

// String returns a string representation of the config.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Provider: %s, Budget: %d/%d, RPS: %.2f, Sinks: %v}",
		c.Search.Provider,
		c.Budget.Global,
		c.Budget.PerHost,
		c.Politeness.RequestsPerSecond,
		c.Output.Sinks,
	)
}
