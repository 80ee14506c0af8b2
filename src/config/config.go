package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/ryawaa/twinkle/src/helpers"
	"github.com/ryawaa/twinkle/src/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults applied before validation
const (
	DefaultName          = "twinkle"
	DefaultHost          = "0.0.0.0"
	DefaultPort          = 3000
	DefaultWSPath        = "/ws/trades"
	DefaultStartPath     = "/ws/start-websocket"
	DefaultRunningStatus = "WebSocket server is running"
	DefaultTimeout       = 10
	DefaultSendBuffer    = 256
	DefaultDBType        = "sqlite"
	DefaultDBPath        = "twinkle.db"
	DefaultMIC           = "xnys"
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// LoadEnv loads .env style files into the process environment. Missing files
// are skipped; variables already set win.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env", ".env.local"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load env file '%s': %w", p, err)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

// NewConfig creates a new Config from YAML file, env overrides and defaults
func NewConfig(configPath string) (*Config, error) {
	// 1. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	// 2. Unmarshal data into the models struct
	var modelConfig models.MConfig
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	config := &Config{MConfig: &modelConfig}
	config.applyEnvOverrides()
	config.applyDefaults()

	// 3. Validate the loaded configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

func (c *Config) applyEnvOverrides() {
	// The front end historically read the public variant; the plain name wins.
	if v := os.Getenv("NEXT_PUBLIC_SPARKLE_BASE_URL"); v != "" {
		c.Sparkle.BaseURL = v
	}
	if v := os.Getenv("SPARKLE_BASE_URL"); v != "" {
		c.Sparkle.BaseURL = v
	}
	if v := os.Getenv("TWINKLE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Storage.DBConnectionString = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Storage.RedisAddr = v
	}
}

// -----------------------------------------------------------------------------

func (c *Config) applyDefaults() {
	if c.Name == "" {
		c.Name = DefaultName
	}
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.LogLevel == "" {
		c.LogLevel = "INFO"
	}

	c.Sparkle.BaseURL = strings.TrimRight(c.Sparkle.BaseURL, "/")
	if c.Sparkle.WSPath == "" {
		c.Sparkle.WSPath = DefaultWSPath
	}
	if c.Sparkle.StartPath == "" {
		c.Sparkle.StartPath = DefaultStartPath
	}
	if c.Sparkle.RunningStatus == "" {
		c.Sparkle.RunningStatus = DefaultRunningStatus
	}
	if c.Sparkle.Timeout == 0 {
		c.Sparkle.Timeout = DefaultTimeout
	}
	if c.Network.RequestTimeout == 0 {
		c.Network.RequestTimeout = DefaultTimeout
	}

	if c.Ticker.SendBuffer == 0 {
		c.Ticker.SendBuffer = DefaultSendBuffer
	}

	if c.Storage.DBType == "" {
		c.Storage.DBType = DefaultDBType
	}
	if c.Storage.DBType == "sqlite" && c.Storage.DBPath == "" {
		c.Storage.DBPath = DefaultDBPath
	}
	if c.Storage.Schema == "" {
		c.Storage.Schema = c.Name
	}

	if c.Calendar.MIC == "" {
		c.Calendar.MIC = DefaultMIC
	}
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation. Failures are
// *helpers.ConfigurationError.
func (c *Config) Validate() error {
	if err := c.validate(); err != nil {
		return helpers.NewConfigurationError("invalid configuration", err)
	}
	return nil
}

func (c *Config) validate() error {
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}

	if c.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid server port number: %d (must be between 1 and 65535)", c.Port)
	}

	// Sparkle
	if c.Sparkle.BaseURL == "" {
		return fmt.Errorf("sparkle base url cannot be empty (set sparkle.base_url or SPARKLE_BASE_URL)")
	}
	u, err := url.Parse(c.Sparkle.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("sparkle base url must be an http(s) url, got %q", c.Sparkle.BaseURL)
	}
	if !strings.HasPrefix(c.Sparkle.WSPath, "/") || !strings.HasPrefix(c.Sparkle.StartPath, "/") {
		return fmt.Errorf("sparkle paths must start with '/'")
	}
	if c.Sparkle.Timeout < 0 {
		return fmt.Errorf("sparkle timeout cannot be negative")
	}

	// Network
	if c.Network.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be greater than 0")
	}

	// Ticker
	if c.Ticker.SendBuffer <= 0 {
		return fmt.Errorf("ticker send buffer must be greater than 0")
	}

	// Storage
	switch c.Storage.DBType {
	case "sqlite":
		if c.Storage.DBPath == "" {
			return fmt.Errorf("database path cannot be empty for sqlite")
		}
	case "postgres":
		if c.Storage.DBConnectionString == "" {
			return fmt.Errorf("database connection string cannot be empty for postgres")
		}
	case "redis":
		if c.Storage.RedisAddr == "" {
			return fmt.Errorf("redis address cannot be empty for redis")
		}
	case "memory":
	default:
		return fmt.Errorf("unsupported database type: %s", c.Storage.DBType)
	}

	return nil
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path
func (c *Config) Save(configPath string) error {
	// 1. Marshal the struct to YAML
	data, err := yaml.Marshal(c.MConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	// 2. Write to file (0644 permissions)
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}
