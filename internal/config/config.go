// Package config loads the aide configuration from an optional YAML file,
// a .env file, and environment variables. Environment variables win.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the complete service configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Ollama   OllamaConfig   `yaml:"ollama"`
	Query    QueryConfig    `yaml:"query"`
	Practice PracticeConfig `yaml:"practice"`
}

// ServerConfig configures the HTTP gateway.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// DatabaseConfig configures the shared PostgreSQL pool.
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// OllamaConfig configures the question generator backend.
type OllamaConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// QueryConfig bounds SQL execution.
type QueryConfig struct {
	MaxRows        int `yaml:"max_rows"`
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// PracticeConfig bounds practice sessions and schema reclamation.
type PracticeConfig struct {
	MaxTables          int    `yaml:"max_tables"`
	MaxRows            int    `yaml:"max_rows"`
	RateLimitPerMinute int    `yaml:"rate_limit_per_minute"`
	SweepMaxAgeHours   int    `yaml:"sweep_max_age_hours"`
	SweepSchedule      string `yaml:"sweep_schedule"` // 5-field cron; empty disables scheduled sweeps
	SweepStrategy      string `yaml:"sweep_strategy"` // metadata | heuristic
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr: ":8000",
		},
		Database: DatabaseConfig{
			URL:          "postgres://localhost:5432/aide?sslmode=disable",
			MaxOpenConns: 10,
			MaxIdleConns: 2,
		},
		Ollama: OllamaConfig{
			BaseURL: "http://localhost:11434",
			Model:   "qwen3:4b",
		},
		Query: QueryConfig{
			MaxRows:        1000,
			TimeoutSeconds: 30,
		},
		Practice: PracticeConfig{
			MaxTables:          5,
			MaxRows:            100,
			RateLimitPerMinute: 3,
			SweepMaxAgeHours:   2,
			SweepSchedule:      "*/30 * * * *",
			SweepStrategy:      "metadata",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// any), then .env, then process environment variables.
func Load(path string) (*Config, error) {
	// Load .env if present; real environment variables still take priority.
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Server.ListenAddr, "AIDE_LISTEN_ADDR")
	setString(&c.Database.URL, "AIDE_DATABASE_URL")
	setInt(&c.Database.MaxOpenConns, "AIDE_DB_MAX_OPEN_CONNS")
	setInt(&c.Database.MaxIdleConns, "AIDE_DB_MAX_IDLE_CONNS")
	setString(&c.Ollama.BaseURL, "AIDE_OLLAMA_BASE_URL")
	setString(&c.Ollama.Model, "AIDE_OLLAMA_MODEL")
	setInt(&c.Query.MaxRows, "AIDE_MAX_QUERY_ROWS")
	setInt(&c.Query.TimeoutSeconds, "AIDE_QUERY_TIMEOUT_SECONDS")
	setInt(&c.Practice.RateLimitPerMinute, "AIDE_RATE_LIMIT_PER_MINUTE")
	setInt(&c.Practice.SweepMaxAgeHours, "AIDE_SWEEP_MAX_AGE_HOURS")
	setString(&c.Practice.SweepSchedule, "AIDE_SWEEP_SCHEDULE")
	setString(&c.Practice.SweepStrategy, "AIDE_SWEEP_STRATEGY")
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database url is required")
	}
	if c.Query.MaxRows <= 0 {
		return fmt.Errorf("query max_rows must be positive")
	}
	if c.Query.TimeoutSeconds <= 0 {
		return fmt.Errorf("query timeout_seconds must be positive")
	}
	switch c.Practice.SweepStrategy {
	case "metadata", "heuristic":
	default:
		return fmt.Errorf("unknown sweep_strategy %q", c.Practice.SweepStrategy)
	}
	return nil
}

// QueryTimeout returns the execution deadline as a duration.
func (c *Config) QueryTimeout() time.Duration {
	return time.Duration(c.Query.TimeoutSeconds) * time.Second
}

// SweepMaxAge returns the sweep age threshold as a duration.
func (c *Config) SweepMaxAge() time.Duration {
	return time.Duration(c.Practice.SweepMaxAgeHours) * time.Hour
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
