// Package config provides environment-based configuration for the collaboration service.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the collaboration service.
type Config struct {
	// Database configuration
	DatabaseDSN string `yaml:"database_dsn"`

	// Authentication
	JWTSecret string        `yaml:"jwt_secret"`
	JWTExpiry time.Duration `yaml:"jwt_expiry"`

	// Server configuration
	APIHost string `yaml:"api_host"`
	APIPort int    `yaml:"api_port"`

	// Graceful shutdown timeout
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Chat provider configuration
	Chat ChatConfig `yaml:"chat"`

	// Realtime transport configuration
	Realtime RealtimeConfig `yaml:"realtime"`
}

// ChatConfig holds configuration for the external messaging provider.
type ChatConfig struct {
	// BaseURL is the provider's REST endpoint.
	BaseURL string `yaml:"base_url"`
	// APIKey authenticates this service against the provider.
	APIKey string `yaml:"api_key"`
	// RequestTimeout bounds each provider call.
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// RealtimeConfig holds configuration for the websocket hub.
type RealtimeConfig struct {
	// WriteTimeout bounds a single frame write to a client.
	WriteTimeout time.Duration `yaml:"write_timeout"`
	// PingInterval is the keepalive ping cadence.
	PingInterval time.Duration `yaml:"ping_interval"`
	// SendBuffer is the per-connection outbound queue size.
	SendBuffer int `yaml:"send_buffer"`
}

// Load reads configuration from the environment. If COLLAB_CONFIG_FILE
// points at a YAML file, that file is read first and environment
// variables override its values.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("COLLAB_CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadWithDefaults loads configuration with defaults for development.
// It does not validate required fields, useful for testing.
func LoadWithDefaults() *Config {
	cfg := defaults()
	cfg.JWTSecret = "development-secret-key-min-32-chars"
	cfg.applyEnv()
	return cfg
}

func defaults() *Config {
	return &Config{
		DatabaseDSN:     "postgres://localhost:5432/collab?sslmode=disable",
		JWTExpiry:       24 * time.Hour,
		APIHost:         "0.0.0.0",
		APIPort:         8080,
		ShutdownTimeout: 30 * time.Second,
		Chat: ChatConfig{
			BaseURL:        "http://localhost:3030",
			RequestTimeout: 10 * time.Second,
		},
		Realtime: RealtimeConfig{
			WriteTimeout: 10 * time.Second,
			PingInterval: 30 * time.Second,
			SendBuffer:   64,
		},
	}
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.DatabaseDSN = getEnv("DATABASE_URL", c.DatabaseDSN)
	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.JWTExpiry = getDurationEnv("JWT_EXPIRY", c.JWTExpiry)
	c.APIHost = getEnv("API_HOST", c.APIHost)
	c.APIPort = getIntEnv("API_PORT", c.APIPort)
	c.ShutdownTimeout = getDurationEnv("SHUTDOWN_TIMEOUT", c.ShutdownTimeout)

	c.Chat.BaseURL = getEnv("CHAT_BASE_URL", c.Chat.BaseURL)
	c.Chat.APIKey = getEnv("CHAT_API_KEY", c.Chat.APIKey)
	c.Chat.RequestTimeout = getDurationEnv("CHAT_REQUEST_TIMEOUT", c.Chat.RequestTimeout)

	c.Realtime.WriteTimeout = getDurationEnv("REALTIME_WRITE_TIMEOUT", c.Realtime.WriteTimeout)
	c.Realtime.PingInterval = getDurationEnv("REALTIME_PING_INTERVAL", c.Realtime.PingInterval)
	c.Realtime.SendBuffer = getIntEnv("REALTIME_SEND_BUFFER", c.Realtime.SendBuffer)
}

// Validate checks that required configuration values are set.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}
	if c.Chat.BaseURL == "" {
		return fmt.Errorf("CHAT_BASE_URL is required")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
