package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadAndValidate(t *testing.T) {
	// Create temp config file
	content := `
polymarket:
  poll_interval: 5m
  categories:
    - politics
    - economy
  limit: 50

graph:
  max_edges: 30
  correlation_threshold: 0.4
  window: "7d"

digest:
  enabled: true
  threshold: 0.85
  top_k: 5
  cooldown_multiplier: 10

telegram:
  bot_token: "test_token"
  chat_id: "test_chat_id"
  enabled: true

server:
  listen_addr: ":9090"

storage:
  db_path: "./data/test.db"

logging:
  level: "info"
  format: "json"
`
	tmpfile, err := os.CreateTemp("", "config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Remove(tmpfile.Name()) }()

	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(tmpfile.Name())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Polymarket.PollInterval != 5*time.Minute {
		t.Errorf("Unexpected poll interval: %v", cfg.Polymarket.PollInterval)
	}
	if len(cfg.Polymarket.Categories) != 2 {
		t.Errorf("Expected 2 categories, got %d", len(cfg.Polymarket.Categories))
	}
	if cfg.Graph.MaxEdges != 30 {
		t.Errorf("Unexpected max edges: %d", cfg.Graph.MaxEdges)
	}
	if cfg.Graph.Window != "7d" {
		t.Errorf("Unexpected window: %s", cfg.Graph.Window)
	}

	// Defaults fill in everything the file leaves out.
	if cfg.Polymarket.GammaAPIURL == "" {
		t.Error("Expected default gamma API URL")
	}
	if cfg.Polymarket.HistoryBatchSize != 5 {
		t.Errorf("Unexpected default history batch size: %d", cfg.Polymarket.HistoryBatchSize)
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	f := cfg.GraphFilter()
	if f.CorrelationThreshold != 0.4 || f.MaxEdges != 30 {
		t.Errorf("GraphFilter() = %+v", f)
	}
}

func TestValidateErrors(t *testing.T) {
	base := func() *Config {
		return &Config{
			Polymarket: PolymarketConfig{
				GammaAPIURL:      "https://example.com",
				ClobAPIURL:       "https://example.com",
				PollInterval:     5 * time.Minute,
				Limit:            100,
				HistoryBatchSize: 5,
				HistoryMarkets:   40,
			},
			Graph: GraphConfig{
				MaxEdges:             25,
				CorrelationThreshold: 0.3,
				Window:               "24h",
				CrossEvent:           true,
				MinSharedEntities:    1,
				MaxDaysDiff:          30,
			},
			Server: ServerConfig{Enabled: true, ListenAddr: ":8080"},
			Storage: StorageConfig{
				DBPath:    "./data/test.db",
				MaxEvents: 1000,
			},
			Logging: LoggingConfig{Level: "info", Format: "json"},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing gamma URL", func(c *Config) { c.Polymarket.GammaAPIURL = "" }},
		{"short poll interval", func(c *Config) { c.Polymarket.PollInterval = time.Second }},
		{"bad graph window", func(c *Config) { c.Graph.Window = "3d" }},
		{"zero max edges", func(c *Config) { c.Graph.MaxEdges = 0 }},
		{"telegram enabled without token", func(c *Config) { c.Telegram.Enabled = true; c.Telegram.ChatID = "x" }},
		{"digest enabled with bad threshold", func(c *Config) { c.Digest.Enabled = true; c.Digest.Threshold = 1.5 }},
		{"missing db path", func(c *Config) { c.Storage.DBPath = "" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() expected error, got nil")
			}
		})
	}

	if err := base().Validate(); err != nil {
		t.Errorf("Base config should validate, got: %v", err)
	}
}
