// Package config handles the configuration management for vaultbook.
// It provides functionality to load, save, and manage application configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/vaultbook/vaultbook/internal/catalog"
	"github.com/vaultbook/vaultbook/internal/domain"
)

// Config represents the vaultbook configuration
type Config struct {
	DataDir            string        `yaml:"data_dir"`
	DefaultCurrency    string        `yaml:"default_currency"`
	DefaultSort        string        `yaml:"default_sort"`
	ReconcileOnStart   bool          `yaml:"reconcile_on_start"`
	OutputFormat       string        `yaml:"output_format"`
	ConfirmDestructive bool          `yaml:"confirm_destructive"`
	LockTimeout        time.Duration `yaml:"lock_timeout"`
	ClipboardTTL       time.Duration `yaml:"clipboard_ttl"`
	Log                LogConfig     `yaml:"log"`
}

// LogConfig controls structured logging and file rotation
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	JSON       bool   `yaml:"json"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Keys lists every settable key in display order
var Keys = []string{
	"data_dir",
	"default_currency",
	"default_sort",
	"reconcile_on_start",
	"output_format",
	"confirm_destructive",
	"lock_timeout",
	"clipboard_ttl",
	"log.level",
	"log.file",
	"log.json",
	"log.max_size_mb",
	"log.max_backups",
	"log.max_age_days",
}

// DefaultDataDir returns ~/.local/share/vaultbook
func DefaultDataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "vaultbook")
}

// DefaultConfigPath returns ~/.config/vaultbook/config.yaml
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "vaultbook", "config.yaml"), nil
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		DataDir:            DefaultDataDir(),
		DefaultCurrency:    "USD",
		DefaultSort:        string(catalog.SortCustom),
		ReconcileOnStart:   true,
		OutputFormat:       "table",
		ConfirmDestructive: true,
		LockTimeout:        catalog.DefaultLockTimeout,
		ClipboardTTL:       30 * time.Second,
		Log: LogConfig{
			Level:      "warn",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// LoadConfig loads configuration from file or returns default
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath == "" {
		return cfg, nil
	}

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		// Create default config file
		if err := SaveConfig(cfg, configPath); err != nil {
			return cfg, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	cleanPath := filepath.Clean(configPath)

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config file %s: %w", cleanPath, err)
	}

	return cfg, nil
}

// SaveConfig saves configuration to file
func SaveConfig(cfg *Config, configPath string) error {
	cleanPath := filepath.Clean(configPath)

	// Create directory if it doesn't exist
	dir := filepath.Dir(cleanPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(cleanPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks values that would otherwise fail deep inside a command
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if err := domain.ValidateCurrency(c.DefaultCurrency); err != nil {
		return fmt.Errorf("default_currency: %w", err)
	}
	if _, err := catalog.ParseSortOption(c.DefaultSort); err != nil {
		return fmt.Errorf("default_sort: %w", err)
	}
	if c.OutputFormat != "table" && c.OutputFormat != "json" {
		return fmt.Errorf("invalid output format: %s (valid: table, json)", c.OutputFormat)
	}
	if c.LockTimeout < 0 {
		return fmt.Errorf("lock_timeout cannot be negative")
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

func normalizeKey(key string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(key)), "-", "_")
}

// Get returns the string form of one configuration value
func (c *Config) Get(key string) (string, error) {
	switch normalizeKey(key) {
	case "data_dir":
		return c.DataDir, nil
	case "default_currency":
		return c.DefaultCurrency, nil
	case "default_sort":
		return c.DefaultSort, nil
	case "reconcile_on_start":
		return strconv.FormatBool(c.ReconcileOnStart), nil
	case "output_format":
		return c.OutputFormat, nil
	case "confirm_destructive":
		return strconv.FormatBool(c.ConfirmDestructive), nil
	case "lock_timeout":
		return c.LockTimeout.String(), nil
	case "clipboard_ttl":
		return c.ClipboardTTL.String(), nil
	case "log.level":
		return c.Log.Level, nil
	case "log.file":
		return c.Log.File, nil
	case "log.json":
		return strconv.FormatBool(c.Log.JSON), nil
	case "log.max_size_mb":
		return strconv.Itoa(c.Log.MaxSizeMB), nil
	case "log.max_backups":
		return strconv.Itoa(c.Log.MaxBackups), nil
	case "log.max_age_days":
		return strconv.Itoa(c.Log.MaxAgeDays), nil
	}
	return "", fmt.Errorf("unknown configuration key: %s", key)
}

// Set parses value into key. The configuration is left unchanged on error.
func (c *Config) Set(key, value string) error {
	next := *c

	switch normalizeKey(key) {
	case "data_dir":
		next.DataDir = value
	case "default_currency":
		next.DefaultCurrency = strings.ToUpper(value)
	case "default_sort":
		opt, err := catalog.ParseSortOption(value)
		if err != nil {
			return err
		}
		next.DefaultSort = string(opt)
	case "reconcile_on_start":
		boolVal, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean value: %w", err)
		}
		next.ReconcileOnStart = boolVal
	case "output_format":
		next.OutputFormat = value
	case "confirm_destructive":
		boolVal, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean value: %w", err)
		}
		next.ConfirmDestructive = boolVal
	case "lock_timeout":
		duration, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}
		next.LockTimeout = duration
	case "clipboard_ttl":
		duration, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}
		next.ClipboardTTL = duration
	case "log.level":
		next.Log.Level = strings.ToLower(value)
	case "log.file":
		next.Log.File = value
	case "log.json":
		boolVal, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean value: %w", err)
		}
		next.Log.JSON = boolVal
	case "log.max_size_mb", "log.max_backups", "log.max_age_days":
		intVal, err := strconv.Atoi(value)
		if err != nil || intVal < 0 {
			return fmt.Errorf("invalid non-negative integer: %s", value)
		}
		switch normalizeKey(key) {
		case "log.max_size_mb":
			next.Log.MaxSizeMB = intVal
		case "log.max_backups":
			next.Log.MaxBackups = intVal
		default:
			next.Log.MaxAgeDays = intVal
		}
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}

	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}
