// Package config loads the arena configuration from YAML plus
// environment overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full arena configuration.
type Config struct {
	Arena      ArenaConfig      `yaml:"arena"`
	Agents     []AgentConfig    `yaml:"agents"`
	Feed       FeedConfig       `yaml:"feed"`
	OpenRouter OpenRouterConfig `yaml:"openrouter"`
	Storage    StorageConfig    `yaml:"storage"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Log        LogConfig        `yaml:"log"`
}

// ArenaConfig controls the competition rules.
type ArenaConfig struct {
	Symbol                 string  `yaml:"symbol"`
	InitialBalance         float64 `yaml:"initial_balance"`
	EliminationFloor       float64 `yaml:"elimination_floor"`
	ActiveSeconds          int     `yaml:"active_seconds"`
	DiscussionSeconds      int     `yaml:"discussion_seconds"`
	DecisionIntervalSecs   int     `yaml:"decision_interval_seconds"`
	SessionHours           int     `yaml:"session_hours"`
	MaxHoldingHours        int     `yaml:"max_holding_hours"`
}

// AgentConfig seeds one competing agent.
type AgentConfig struct {
	ID               string `yaml:"id"`
	Name             string `yaml:"name"`
	Style            string `yaml:"style"`
	Model            string `yaml:"model"`
	DecisionInterval int    `yaml:"decision_interval_seconds"`
	InitialCountdown int    `yaml:"initial_countdown_seconds"`
}

// FeedConfig points at the price stream.
type FeedConfig struct {
	URL string `yaml:"url"`
}

// OpenRouterConfig holds the oracle client settings. The API key only
// comes from the environment, never from YAML.
type OpenRouterConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	APIKey  string `yaml:"-"`
}

// StorageConfig controls where snapshots and trades are persisted.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // SQLite file path, or ":memory:"
}

// MetricsConfig controls the HTTP listener for metrics and operator
// endpoints.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig controls the logging format and level.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load reads the YAML file and the .env file if present. Environment
// variables override the YAML for the keys they cover.
func Load(path string) (*Config, error) {
	// Load .env if present (missing file is fine)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// SessionDuration returns the session length as a time.Duration.
func (c *Config) SessionDuration() time.Duration {
	return time.Duration(c.Arena.SessionHours) * time.Hour
}

// MaxHolding returns the position timeout as a time.Duration.
func (c *Config) MaxHolding() time.Duration {
	return time.Duration(c.Arena.MaxHoldingHours) * time.Hour
}

// applyEnvOverrides replaces values with environment variables where
// set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OPENROUTER_API_KEY"); v != "" {
		cfg.OpenRouter.APIKey = v
	}
	if v := os.Getenv("OPENROUTER_MODEL"); v != "" {
		cfg.OpenRouter.Model = v
	}
	if v := os.Getenv("ARENA_DB"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// setDefaults fills in anything the YAML left out.
func setDefaults(cfg *Config) {
	if cfg.Arena.Symbol == "" {
		cfg.Arena.Symbol = "BTCUSDT"
	}
	if cfg.Arena.InitialBalance <= 0 {
		cfg.Arena.InitialBalance = 1000
	}
	if cfg.Arena.EliminationFloor <= 0 {
		cfg.Arena.EliminationFloor = 10
	}
	if cfg.Arena.ActiveSeconds <= 0 {
		cfg.Arena.ActiveSeconds = 300
	}
	if cfg.Arena.DiscussionSeconds <= 0 {
		cfg.Arena.DiscussionSeconds = 120
	}
	if cfg.Arena.DecisionIntervalSecs <= 0 {
		cfg.Arena.DecisionIntervalSecs = 30
	}
	if cfg.Arena.SessionHours <= 0 {
		cfg.Arena.SessionHours = 8
	}
	if cfg.Arena.MaxHoldingHours <= 0 {
		cfg.Arena.MaxHoldingHours = 3
	}
	if cfg.Feed.URL == "" {
		cfg.Feed.URL = "wss://stream.binance.com:9443/ws"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "neuroarena.db"
	}
	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9090"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

// validate rejects configurations the engine cannot run with.
func validate(cfg *Config) error {
	if len(cfg.Agents) == 0 {
		return fmt.Errorf("no agents configured")
	}
	seen := make(map[string]bool, len(cfg.Agents))
	for i, a := range cfg.Agents {
		if a.ID == "" {
			return fmt.Errorf("agent %d: missing id", i)
		}
		if seen[a.ID] {
			return fmt.Errorf("agent %d: duplicate id %q", i, a.ID)
		}
		seen[a.ID] = true
	}
	return nil
}
