// Package config loads pakctl/archive runtime configuration from a JSON
// file, with environment variable overrides, the way the rest of this
// codebase's infrastructure layer does.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config holds archive and tooling configuration.
type Config struct {
	// Crypto holds key-derivation configuration for passphrase-based keys.
	Crypto CryptoConfig `json:"crypto"`

	// Archive holds defaults applied when creating or opening archives.
	Archive ArchiveConfig `json:"archive"`

	// Logging configures the structured logger.
	Logging LoggingConfig `json:"logging"`
}

// CryptoConfig holds Argon2id cost parameters for passphrase-to-key
// derivation. Its defaults equal the constants in pkg/core/crypto; the
// crypto package uses those constants and does not read this struct.
type CryptoConfig struct {
	ArgonTime    uint32 `json:"argon_time"`
	ArgonMemory  uint32 `json:"argon_memory_kib"`
	ArgonThreads uint8  `json:"argon_threads"`
}

// ArchiveConfig holds defaults for archive creation and editing.
type ArchiveConfig struct {
	// FileBackedThresholdBytes is an archive size in bytes above which the
	// streaming file façade is to be chosen over the in-memory one. It is
	// loaded and validated here; pakctl does not read it and picks the
	// façade per subcommand.
	FileBackedThresholdBytes int64 `json:"file_backed_threshold_bytes"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
	Output string `json:"output"`
	File   string `json:"file"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Crypto: CryptoConfig{
			ArgonTime:    1,
			ArgonMemory:  64 * 1024,
			ArgonThreads: 4,
		},
		Archive: ArchiveConfig{
			FileBackedThresholdBytes: 64 * 1024 * 1024,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "console",
		},
	}
}

// Load reads configuration from path if it exists, applies environment
// variable overrides, and validates the result.
func Load(path string) (*Config, error) {
	c := DefaultConfig()

	if path != "" {
		if err := c.loadFromFile(path); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	c.applyEnvironmentOverrides()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return c, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return json.Unmarshal(data, c)
}

func (c *Config) applyEnvironmentOverrides() {
	if val := os.Getenv("PAK_ARGON_TIME"); val != "" {
		if n, err := strconv.ParseUint(val, 10, 32); err == nil {
			c.Crypto.ArgonTime = uint32(n)
		}
	}
	if val := os.Getenv("PAK_ARGON_MEMORY_KIB"); val != "" {
		if n, err := strconv.ParseUint(val, 10, 32); err == nil {
			c.Crypto.ArgonMemory = uint32(n)
		}
	}
	if val := os.Getenv("PAK_ARGON_THREADS"); val != "" {
		if n, err := strconv.ParseUint(val, 10, 8); err == nil {
			c.Crypto.ArgonThreads = uint8(n)
		}
	}
	if val := os.Getenv("PAK_FILE_BACKED_THRESHOLD_BYTES"); val != "" {
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			c.Archive.FileBackedThresholdBytes = n
		}
	}
	if val := os.Getenv("PAK_LOG_LEVEL"); val != "" {
		c.Logging.Level = val
	}
	if val := os.Getenv("PAK_LOG_FORMAT"); val != "" {
		c.Logging.Format = val
	}
	if val := os.Getenv("PAK_LOG_OUTPUT"); val != "" {
		c.Logging.Output = val
	}
	if val := os.Getenv("PAK_LOG_FILE"); val != "" {
		c.Logging.File = val
	}
}

// Validate reports whether the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Crypto.ArgonTime == 0 {
		return fmt.Errorf("argon time must be positive")
	}
	if c.Crypto.ArgonMemory == 0 {
		return fmt.Errorf("argon memory must be positive")
	}
	if c.Crypto.ArgonThreads == 0 {
		return fmt.Errorf("argon threads must be positive")
	}
	if c.Archive.FileBackedThresholdBytes < 0 {
		return fmt.Errorf("file backed threshold must not be negative")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}
	validOutputs := map[string]bool{"console": true, "file": true, "both": true}
	if !validOutputs[strings.ToLower(c.Logging.Output)] {
		return fmt.Errorf("invalid log output: %s", c.Logging.Output)
	}
	return nil
}

// SaveToFile writes the configuration as indented JSON to path, creating
// its parent directory if necessary.
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// DefaultConfigPath returns the default configuration file path under the
// user's home directory.
func DefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".pak", "config.json"), nil
}
