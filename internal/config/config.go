package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

type Config struct {
	Engine  EngineConfig  `json:"engine"`
	API     APIConfig     `json:"api"`
	Storage StorageConfig `json:"storage"`
	Metrics MetricsConfig `json:"metrics"`
	Logging LoggingConfig `json:"logging"`

	mu       sync.RWMutex
	filePath string
}

// EngineConfig holds service-wide defaults and ceilings applied to job
// submissions that omit the corresponding field.
type EngineConfig struct {
	DefaultRequests         int   `json:"default_requests"`
	DefaultWorkers          int   `json:"default_workers"`
	MaxRequests             int   `json:"max_requests"`
	MaxWorkers              int   `json:"max_workers"`
	DefaultTimeoutSeconds   int   `json:"default_timeout_seconds"`
	ProxyTimeoutSeconds     int   `json:"proxy_timeout_seconds"`
	PreflightTimeoutMs      int   `json:"preflight_timeout_ms"`
	PreflightConcurrency    int   `json:"preflight_concurrency"`
	RandomSeed              int64 `json:"random_seed"`
	MaxFinishedJobsRetained int   `json:"max_finished_jobs_retained"`
}

type APIConfig struct {
	Addr               string `json:"addr"`
	APIKeyEnv          string `json:"api_key_env"`
	RateLimitPerMinute int    `json:"rate_limit_per_minute"`
	EnableAPIKeyAuth   bool   `json:"enable_api_key_auth"`
	EnableIPRateLimit  bool   `json:"enable_ip_rate_limit"`
}

type StorageConfig struct {
	Type                   string `json:"type"` // "file", "sqlite", "redis"
	Path                   string `json:"path"`
	PersistIntervalSeconds int    `json:"persist_interval_seconds"`
}

type MetricsConfig struct {
	Enabled   bool   `json:"enabled"`
	Endpoint  string `json:"endpoint"`
	Namespace string `json:"namespace"`
}

type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

var (
	globalConfig *Config
	configMu     sync.RWMutex
)

// Load reads configuration from JSON file
func Load(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config JSON: %w", err)
	}

	cfg.filePath = filePath
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	configMu.Lock()
	globalConfig = &cfg
	configMu.Unlock()

	return &cfg, nil
}

// ApplyDefaults fills zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Engine.DefaultRequests == 0 {
		c.Engine.DefaultRequests = 100
	}
	if c.Engine.DefaultWorkers == 0 {
		c.Engine.DefaultWorkers = 10
	}
	if c.Engine.MaxRequests == 0 {
		c.Engine.MaxRequests = 100000
	}
	if c.Engine.MaxWorkers == 0 {
		c.Engine.MaxWorkers = 1000
	}
	if c.Engine.DefaultTimeoutSeconds == 0 {
		c.Engine.DefaultTimeoutSeconds = 30
	}
	if c.Engine.ProxyTimeoutSeconds == 0 {
		c.Engine.ProxyTimeoutSeconds = 3
	}
	if c.Engine.PreflightTimeoutMs == 0 {
		c.Engine.PreflightTimeoutMs = 1500
	}
	if c.Engine.PreflightConcurrency == 0 {
		c.Engine.PreflightConcurrency = 50
	}
	if c.Engine.MaxFinishedJobsRetained == 0 {
		c.Engine.MaxFinishedJobsRetained = 200
	}
	if c.API.Addr == "" {
		c.API.Addr = ":8084"
	}
	if c.API.RateLimitPerMinute == 0 {
		c.API.RateLimitPerMinute = 1200
	}
	if c.Storage.Type == "" {
		c.Storage.Type = "file"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "/data/jobs.json"
	}
	if c.Storage.PersistIntervalSeconds == 0 {
		c.Storage.PersistIntervalSeconds = 300
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "loadtester"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Reload reloads configuration from file
func (c *Config) Reload() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	newCfg, err := Load(c.filePath)
	if err != nil {
		return err
	}

	*c = *newCfg
	return nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if c.Engine.MaxWorkers < 1 || c.Engine.MaxWorkers > 100000 {
		return fmt.Errorf("max_workers must be between 1 and 100000")
	}
	if c.Engine.DefaultTimeoutSeconds < 1 || c.Engine.DefaultTimeoutSeconds > 300 {
		return fmt.Errorf("default_timeout_seconds must be between 1 and 300")
	}
	if c.Engine.DefaultWorkers > c.Engine.MaxWorkers {
		return fmt.Errorf("default_workers must not exceed max_workers")
	}
	if c.Storage.Type != "file" && c.Storage.Type != "sqlite" && c.Storage.Type != "redis" {
		return fmt.Errorf("storage type must be 'file', 'sqlite', or 'redis'")
	}
	return nil
}

// GetGlobal returns global config instance
func GetGlobal() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
