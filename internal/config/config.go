// internal/config/config.go

// Package config loads and validates the pipeline configuration from YAML.
// Credentials and connection strings are injected through ${ENV} expansion;
// a missing credential is a startup failure, never a runtime one.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the ingestion service.
type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	Fetcher  FetcherConfig  `yaml:"fetcher"`
	Storage  StorageConfig  `yaml:"storage"`
	Database DatabaseConfig `yaml:"database"`
	Artifact ArtifactConfig `yaml:"artifacts"`
	Alerts   AlertConfig    `yaml:"alerts"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServiceConfig controls the processing service itself.
type ServiceConfig struct {
	ListenAddress string        `yaml:"listen_address"`
	Workers       int           `yaml:"workers"`
	QueueSize     int           `yaml:"queue_size"`
	LoadTimeout   time.Duration `yaml:"load_timeout"`
	LogLevel      string        `yaml:"log_level"`
}

// FetcherConfig configures the external render API used to fetch profile
// pages. The API key comes from the environment, never from source.
type FetcherConfig struct {
	BaseURL    string        `yaml:"base_url"`
	APIKey     string        `yaml:"api_key"`
	RenderJS   bool          `yaml:"render_js"`
	WaitMillis int           `yaml:"wait_ms"`
	Timeout    time.Duration `yaml:"timeout"`
	RatePerSec float64       `yaml:"rate_per_sec"`
}

// StorageConfig names the blob buckets for raw and processed documents.
type StorageConfig struct {
	Root            string `yaml:"root"`
	RawBucket       string `yaml:"raw_bucket"`
	ProcessedBucket string `yaml:"processed_bucket"`
}

// DatabaseConfig configures the warehouse connection.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // postgres, sqlite3 or mysql
	DSN    string `yaml:"dsn"`

	// Strategy selects the reconciliation mode: "merge" (stage-then-merge,
	// default) or "replace" (delete-then-insert).
	Strategy string `yaml:"strategy"`
}

// ArtifactConfig configures the processed-document audit sink.
type ArtifactConfig struct {
	Backend string `yaml:"backend"` // filesystem or mongodb

	// MongoDB backend settings.
	MongoURI        string `yaml:"mongo_uri"`
	MongoDatabase   string `yaml:"mongo_database"`
	MongoCollection string `yaml:"mongo_collection"`
}

// AlertConfig configures the outbound monitoring signal.
type AlertConfig struct {
	WebhookURL string `yaml:"webhook_url"`
}

// MetricsConfig configures the Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(filename string) (*Config, error) {
	if filename == "" {
		return nil, fmt.Errorf("configuration filename cannot be empty")
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}

	return LoadFromBytes(data)
}

// LoadFromBytes loads configuration from YAML bytes.
func LoadFromBytes(data []byte) (*Config, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("configuration data cannot be empty")
	}

	// Substitute environment variables before parsing.
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML configuration: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyDefaults applies default values to the configuration.
func applyDefaults(cfg *Config) {
	if cfg.Service.ListenAddress == "" {
		cfg.Service.ListenAddress = ":8080"
	}
	if cfg.Service.Workers == 0 {
		cfg.Service.Workers = 4
	}
	if cfg.Service.QueueSize == 0 {
		cfg.Service.QueueSize = 256
	}
	if cfg.Service.LoadTimeout == 0 {
		cfg.Service.LoadTimeout = 30 * time.Second
	}
	if cfg.Service.LogLevel == "" {
		cfg.Service.LogLevel = "info"
	}

	if cfg.Fetcher.BaseURL == "" {
		cfg.Fetcher.BaseURL = "https://app.scrapingbee.com/api/v1/"
	}
	if cfg.Fetcher.WaitMillis == 0 {
		cfg.Fetcher.WaitMillis = 2000
	}
	if cfg.Fetcher.Timeout == 0 {
		cfg.Fetcher.Timeout = 60 * time.Second
	}
	if cfg.Fetcher.RatePerSec == 0 {
		cfg.Fetcher.RatePerSec = 1
	}

	if cfg.Storage.Root == "" {
		cfg.Storage.Root = "data"
	}
	if cfg.Storage.RawBucket == "" {
		cfg.Storage.RawBucket = "tiktok-raw-data"
	}
	if cfg.Storage.ProcessedBucket == "" {
		cfg.Storage.ProcessedBucket = "tiktok-processed-data"
	}

	if cfg.Database.Strategy == "" {
		cfg.Database.Strategy = "merge"
	}

	if cfg.Artifact.Backend == "" {
		cfg.Artifact.Backend = "filesystem"
	}
	if cfg.Artifact.MongoDatabase == "" {
		cfg.Artifact.MongoDatabase = "tiktok_pipeline"
	}
	if cfg.Artifact.MongoCollection == "" {
		cfg.Artifact.MongoCollection = "artifacts"
	}

	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "tiktokingester"
	}
}

// Validate checks the configuration for startup-time errors.
func (c *Config) Validate() error {
	if c.Service.Workers < 1 {
		return fmt.Errorf("service.workers must be at least 1")
	}

	switch c.Database.Driver {
	case "postgres", "sqlite3", "mysql":
	case "":
		return fmt.Errorf("database.driver is required")
	default:
		return fmt.Errorf("unsupported database.driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	switch c.Database.Strategy {
	case "merge", "replace":
	default:
		return fmt.Errorf("database.strategy must be merge or replace, got %q", c.Database.Strategy)
	}

	switch c.Artifact.Backend {
	case "filesystem":
	case "mongodb":
		if c.Artifact.MongoURI == "" {
			return fmt.Errorf("artifacts.mongo_uri is required for the mongodb backend")
		}
	default:
		return fmt.Errorf("unsupported artifacts.backend %q", c.Artifact.Backend)
	}

	return nil
}

// ValidateFetcher checks the fetcher credentials. Split from Validate so
// process-only invocations (local file replay) can run without a render key.
func (c *Config) ValidateFetcher() error {
	if c.Fetcher.APIKey == "" {
		return fmt.Errorf("fetcher.api_key is required (set it via environment expansion)")
	}
	if c.Fetcher.BaseURL == "" {
		return fmt.Errorf("fetcher.base_url is required")
	}
	return nil
}
