package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type ServerConfig struct {
	Port          int           `yaml:"port"`
	SessionSecret string        `yaml:"session_secret"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
	WebhookSecret string        `yaml:"webhook_secret"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"` // optional; empty disables the scan-job journal
	MaxConns int    `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type ScanConfig struct {
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

type RecordsConfig struct {
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

type PipelineConfig struct {
	PollAttempts int           `yaml:"poll_attempts"`
	PollInterval time.Duration `yaml:"poll_interval"`
	CacheWindow  time.Duration `yaml:"cache_window"`
	Workers      int           `yaml:"workers"`        // poll-loop worker pool size
	IdleEviction time.Duration `yaml:"idle_eviction"`  // drop pipelines idle longer than this
	ScansPerHour int           `yaml:"scans_per_hour"` // per-user analysis rate limit
}

type Config struct {
	Log      LogConfig      `yaml:"log"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Scan     ScanConfig     `yaml:"scan"`
	Records  RecordsConfig  `yaml:"records"`
	Pipeline PipelineConfig `yaml:"pipeline"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.SessionTTL <= 0 {
		cfg.Server.SessionTTL = 12 * time.Hour
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Scan.Timeout <= 0 {
		cfg.Scan.Timeout = 30 * time.Second
	}
	if cfg.Records.Timeout <= 0 {
		cfg.Records.Timeout = 15 * time.Second
	}
	if cfg.Pipeline.PollAttempts <= 0 {
		cfg.Pipeline.PollAttempts = 20
	}
	if cfg.Pipeline.PollInterval <= 0 {
		cfg.Pipeline.PollInterval = time.Second
	}
	if cfg.Pipeline.CacheWindow <= 0 {
		cfg.Pipeline.CacheWindow = 24 * time.Hour
	}
	if cfg.Pipeline.Workers <= 0 {
		cfg.Pipeline.Workers = 8
	}
	if cfg.Pipeline.IdleEviction <= 0 {
		cfg.Pipeline.IdleEviction = 30 * time.Minute
	}
	if cfg.Pipeline.ScansPerHour <= 0 {
		cfg.Pipeline.ScansPerHour = 20
	}

	// Minimal validation
	if cfg.Scan.BaseURL == "" {
		return nil, errors.New("scan.base_url is required")
	}
	if cfg.Records.BaseURL == "" {
		return nil, errors.New("records.base_url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Server.SessionSecret == "" && !dev {
		return nil, errors.New("server.session_secret is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
