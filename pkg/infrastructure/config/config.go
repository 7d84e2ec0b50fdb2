package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all huffpool configuration
type Config struct {
	// Compression engine
	Workers WorkersConfig `json:"workers"`
	Output  OutputConfig  `json:"output"`

	// System configuration
	Logging LoggingConfig `json:"logging"`

	// Service surfaces
	Server ServerConfig `json:"server"`
	Store  StoreConfig  `json:"store"`
	Watch  WatchConfig  `json:"watch"`
}

// WorkersConfig holds worker pool settings
type WorkersConfig struct {
	Count           int `json:"count"` // 0 = runtime.NumCPU()
	QueueCapacity   int `json:"queue_capacity"`
	ShutdownTimeout int `json:"shutdown_timeout_seconds"`
}

// OutputConfig selects the serialization of compressed output
type OutputConfig struct {
	Format string `json:"format"` // raw, container
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Output string `json:"output"` // console, file, both
	File   string `json:"file,omitempty"`
	Format string `json:"format"` // text, json
}

// ServerConfig holds HTTP API settings
type ServerConfig struct {
	Addr         string `json:"addr"`
	MaxBodyMB    int    `json:"max_body_mb"`
	CacheEntries int    `json:"cache_entries"`
}

// StoreConfig selects where job records are kept
type StoreConfig struct {
	Driver         string `json:"driver"` // memory, postgres
	DSN            string `json:"dsn,omitempty"`
	MaxConnections int    `json:"max_connections"`
	MemoryLimit    int    `json:"memory_limit"`
}

// WatchConfig holds directory watcher settings
type WatchConfig struct {
	Dir        string `json:"dir"`
	OutputDir  string `json:"output_dir"`
	Suffix     string `json:"suffix"`
	DebounceMS int    `json:"debounce_ms"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Workers: WorkersConfig{
			Count:           0,
			QueueCapacity:   100,
			ShutdownTimeout: 30,
		},
		Output: OutputConfig{
			Format: "raw",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: "console",
			File:   "",
			Format: "text",
		},
		Server: ServerConfig{
			Addr:         "127.0.0.1:8089",
			MaxBodyMB:    64,
			CacheEntries: 128,
		},
		Store: StoreConfig{
			Driver:         "memory",
			MaxConnections: 10,
			MemoryLimit:    1000,
		},
		Watch: WatchConfig{
			Suffix:     ".huff",
			DebounceMS: 200,
		},
	}
}

// LoadConfig loads configuration from file with environment variable overrides
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	// Load from file if it exists
	if configPath != "" {
		if err := config.loadFromFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// Apply environment variable overrides
	config.applyEnvironmentOverrides()

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// loadFromFile loads configuration from a JSON file
func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// File doesn't exist, use defaults
			return nil
		}
		return err
	}

	return json.Unmarshal(data, c)
}

// applyEnvironmentOverrides applies environment variable overrides
func (c *Config) applyEnvironmentOverrides() {
	// Worker overrides
	if val := os.Getenv("HUFFPOOL_WORKERS"); val != "" {
		if count, err := strconv.Atoi(val); err == nil {
			c.Workers.Count = count
		}
	}
	if val := os.Getenv("HUFFPOOL_QUEUE_CAPACITY"); val != "" {
		if capacity, err := strconv.Atoi(val); err == nil {
			c.Workers.QueueCapacity = capacity
		}
	}

	// Output overrides
	if val := os.Getenv("HUFFPOOL_FORMAT"); val != "" {
		c.Output.Format = strings.ToLower(val)
	}

	// Logging overrides
	if val := os.Getenv("HUFFPOOL_LOG_LEVEL"); val != "" {
		c.Logging.Level = val
	}
	if val := os.Getenv("HUFFPOOL_LOG_OUTPUT"); val != "" {
		c.Logging.Output = val
	}
	if val := os.Getenv("HUFFPOOL_LOG_FILE"); val != "" {
		c.Logging.File = val
	}

	// Server overrides
	if val := os.Getenv("HUFFPOOL_SERVER_ADDR"); val != "" {
		c.Server.Addr = val
	}

	// Store overrides
	if val := os.Getenv("HUFFPOOL_STORE_DRIVER"); val != "" {
		c.Store.Driver = strings.ToLower(val)
	}
	if val := os.Getenv("HUFFPOOL_STORE_DSN"); val != "" {
		c.Store.DSN = val
	}

	// Watch overrides
	if val := os.Getenv("HUFFPOOL_WATCH_DIR"); val != "" {
		c.Watch.Dir = val
	}
	if val := os.Getenv("HUFFPOOL_WATCH_OUTPUT_DIR"); val != "" {
		c.Watch.OutputDir = val
	}
}

// Validate validates the configuration and provides helpful suggestions
func (c *Config) Validate() error {
	// Validate worker configuration
	if c.Workers.Count < 0 {
		return fmt.Errorf("worker count cannot be negative (current: %d). Use 0 to match the number of CPUs", c.Workers.Count)
	}
	if c.Workers.QueueCapacity <= 0 {
		return fmt.Errorf("queue capacity must be positive (current: %d). Use 100 for default", c.Workers.QueueCapacity)
	}
	if c.Workers.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive (current: %d seconds)", c.Workers.ShutdownTimeout)
	}

	// Validate output configuration
	validFormats := map[string]bool{
		"raw": true, "container": true,
	}
	if !validFormats[c.Output.Format] {
		return fmt.Errorf("invalid output format '%s'. Valid options: raw, container", c.Output.Format)
	}

	// Validate logging configuration
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level '%s'. Valid options: debug, info, warn, error", c.Logging.Level)
	}

	validOutputs := map[string]bool{
		"console": true, "file": true, "both": true,
	}
	if !validOutputs[c.Logging.Output] {
		return fmt.Errorf("invalid log output '%s'. Valid options: console, file, both", c.Logging.Output)
	}

	// Check if file output is configured properly
	if c.Logging.Output != "console" && c.Logging.File == "" {
		return fmt.Errorf("log file path is required when output is '%s'", c.Logging.Output)
	}

	validLogFormats := map[string]bool{
		"text": true, "json": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format '%s'. Valid options: text, json", c.Logging.Format)
	}

	// Validate server configuration
	if c.Server.Addr == "" {
		return fmt.Errorf("server address cannot be empty. Set it to '127.0.0.1:8089' for local use")
	}
	if c.Server.MaxBodyMB <= 0 {
		return fmt.Errorf("max body size must be positive (current: %d MB)", c.Server.MaxBodyMB)
	}
	if c.Server.CacheEntries < 0 {
		return fmt.Errorf("cache entries cannot be negative (current: %d). Use 0 to disable the result cache", c.Server.CacheEntries)
	}

	// Validate store configuration
	switch c.Store.Driver {
	case "memory":
		if c.Store.MemoryLimit <= 0 {
			return fmt.Errorf("memory store limit must be positive (current: %d)", c.Store.MemoryLimit)
		}
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("store DSN is required when driver is 'postgres'. Set HUFFPOOL_STORE_DSN")
		}
		if c.Store.MaxConnections <= 0 {
			return fmt.Errorf("max connections must be positive (current: %d)", c.Store.MaxConnections)
		}
	default:
		return fmt.Errorf("invalid store driver '%s'. Valid options: memory, postgres", c.Store.Driver)
	}

	// Validate watch configuration
	if c.Watch.Suffix == "" {
		return fmt.Errorf("watch suffix cannot be empty. Use '.huff' for default")
	}
	if c.Watch.DebounceMS < 0 {
		return fmt.Errorf("watch debounce cannot be negative (current: %d ms)", c.Watch.DebounceMS)
	}

	return nil
}

// ShutdownTimeout returns the pool shutdown timeout as a duration
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Workers.ShutdownTimeout) * time.Second
}

// MaxBodyBytes returns the HTTP request body limit in bytes
func (c *Config) MaxBodyBytes() int64 {
	return int64(c.Server.MaxBodyMB) << 20
}

// Debounce returns the watcher debounce interval
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Watch.DebounceMS) * time.Millisecond
}

// SaveToFile saves the configuration to a JSON file
func (c *Config) SaveToFile(path string) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Marshal to JSON with proper formatting
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write to file
	return os.WriteFile(path, data, 0644)
}

// GetDefaultConfigPath returns the default configuration file path
func GetDefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return filepath.Join(homeDir, ".huffpool", "config.json"), nil
}
