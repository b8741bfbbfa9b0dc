package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/rewired-gh/polygraph/internal/models"
)

// Config represents the complete application configuration
type Config struct {
	Polymarket PolymarketConfig `mapstructure:"polymarket"`
	Graph      GraphConfig      `mapstructure:"graph"`
	Digest     DigestConfig     `mapstructure:"digest"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Server     ServerConfig     `mapstructure:"server"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// PolymarketConfig holds Polymarket API configuration
type PolymarketConfig struct {
	GammaAPIURL      string        `mapstructure:"gamma_api_url"`
	ClobAPIURL       string        `mapstructure:"clob_api_url"`
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	Categories       []string      `mapstructure:"categories"`
	Limit            int           `mapstructure:"limit"`
	Timeout          time.Duration `mapstructure:"timeout"`
	MaxRetries       int           `mapstructure:"max_retries"`
	RetryDelayBase   time.Duration `mapstructure:"retry_delay_base"`
	HistoryBatchSize int           `mapstructure:"history_batch_size"`
	HistoryMarkets   int           `mapstructure:"history_markets"`
}

// GraphConfig holds the default graph filter values used when a request
// leaves them unset
type GraphConfig struct {
	MaxEdges             int     `mapstructure:"max_edges"`
	CorrelationThreshold float64 `mapstructure:"correlation_threshold"`
	Window               string  `mapstructure:"window"`
	CrossEvent           bool    `mapstructure:"cross_event"`
	MinSharedEntities    int     `mapstructure:"min_shared_entities"`
	MaxDaysDiff          float64 `mapstructure:"max_days_diff"`
}

// DigestConfig holds correlation digest configuration
type DigestConfig struct {
	Enabled            bool    `mapstructure:"enabled"`
	Threshold          float64 `mapstructure:"threshold"`
	TopK               int     `mapstructure:"top_k"`
	CooldownMultiplier int     `mapstructure:"cooldown_multiplier"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// ServerConfig holds HTTP API configuration
type ServerConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	ListenAddr     string   `mapstructure:"listen_addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// StorageConfig holds storage and persistence configuration
type StorageConfig struct {
	DBPath    string `mapstructure:"db_path"`
	MaxEvents int    `mapstructure:"max_events"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)

	setDefaults(v)

	v.SetEnvPrefix("POLYGRAPH")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Polymarket defaults
	v.SetDefault("polymarket.gamma_api_url", "https://gamma-api.polymarket.com")
	v.SetDefault("polymarket.clob_api_url", "https://clob.polymarket.com")
	v.SetDefault("polymarket.poll_interval", "5m")
	v.SetDefault("polymarket.limit", 100)
	v.SetDefault("polymarket.timeout", "30s")
	v.SetDefault("polymarket.max_retries", 3)
	v.SetDefault("polymarket.retry_delay_base", "1s")
	v.SetDefault("polymarket.history_batch_size", 5)
	v.SetDefault("polymarket.history_markets", 40)

	// Graph defaults
	v.SetDefault("graph.max_edges", 25)
	v.SetDefault("graph.correlation_threshold", 0.3)
	v.SetDefault("graph.window", "24h")
	v.SetDefault("graph.cross_event", true)
	v.SetDefault("graph.min_shared_entities", 1)
	v.SetDefault("graph.max_days_diff", 30)

	// Digest defaults
	v.SetDefault("digest.enabled", false)
	v.SetDefault("digest.threshold", 0.8)
	v.SetDefault("digest.top_k", 10)
	v.SetDefault("digest.cooldown_multiplier", 12)

	// Telegram defaults
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// Server defaults
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Storage defaults
	v.SetDefault("storage.db_path", "./data/polygraph.db")
	v.SetDefault("storage.max_events", 1000)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.Polymarket.GammaAPIURL == "" {
		return fmt.Errorf("polymarket.gamma_api_url is required")
	}
	if c.Polymarket.ClobAPIURL == "" {
		return fmt.Errorf("polymarket.clob_api_url is required")
	}
	if c.Polymarket.PollInterval < 1*time.Minute {
		return fmt.Errorf("polymarket.poll_interval must be at least 1 minute")
	}
	if c.Polymarket.Limit < 1 || c.Polymarket.Limit > 1000 {
		return fmt.Errorf("polymarket.limit must be between 1 and 1000")
	}
	if c.Polymarket.HistoryBatchSize < 1 {
		return fmt.Errorf("polymarket.history_batch_size must be at least 1")
	}
	if c.Polymarket.HistoryMarkets < 1 {
		return fmt.Errorf("polymarket.history_markets must be at least 1")
	}

	f := c.GraphFilter()
	if err := f.Validate(); err != nil {
		return fmt.Errorf("invalid graph defaults: %w", err)
	}

	if c.Digest.Enabled {
		if c.Digest.Threshold < 0.0 || c.Digest.Threshold > 1.0 {
			return fmt.Errorf("digest.threshold must be between 0.0 and 1.0")
		}
		if c.Digest.TopK < 1 {
			return fmt.Errorf("digest.top_k must be at least 1")
		}
		if c.Digest.CooldownMultiplier < 1 {
			return fmt.Errorf("digest.cooldown_multiplier must be at least 1")
		}
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	if c.Server.Enabled && c.Server.ListenAddr == "" {
		return fmt.Errorf("server.listen_addr is required when server is enabled")
	}

	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required")
	}
	if c.Storage.MaxEvents < 1 {
		return fmt.Errorf("storage.max_events must be at least 1")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// GraphFilter builds the default assembly filter from the graph section.
func (c *Config) GraphFilter() models.Filter {
	return models.Filter{
		CorrelationThreshold: c.Graph.CorrelationThreshold,
		Window:               models.Window(c.Graph.Window),
		Type:                 models.DependencyTypeAll,
		CrossEvent:           c.Graph.CrossEvent,
		MaxEdges:             c.Graph.MaxEdges,
		MinSharedEntities:    c.Graph.MinSharedEntities,
		MaxDaysDiff:          c.Graph.MaxDaysDiff,
	}
}
