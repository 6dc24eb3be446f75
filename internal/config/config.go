// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management for parley.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, and validation.
//
// Configuration file locations (in order of precedence):
//   - ~/.parley/config.toml
//   - ~/.parley/config.json
//   - Built-in defaults
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/jeranaias/parley/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete parley configuration.
type Config struct {
	// General settings
	Version string `toml:"version" json:"version"`

	// Gateway connection configuration
	Gateway GatewayConfig `toml:"gateway" json:"gateway"`

	// Chat defaults
	Chat ChatConfig `toml:"chat" json:"chat"`

	// Credential vault configuration
	Vault VaultConfig `toml:"vault" json:"vault"`

	// REPL configuration
	REPL REPLConfig `toml:"repl" json:"repl"`
}

// GatewayConfig contains the chat gateway connection settings.
type GatewayConfig struct {
	// URL is the base URL of the chat gateway
	URL string `toml:"url" json:"url"`
	// Token is an optional bearer token override. Normally the token lives
	// in the encrypted vault; this field exists for ephemeral environments
	// (CI, containers) where it is injected via PARLEY_TOKEN.
	// SECURITY: Never logged; redacted from String() output.
	Token string `toml:"token" json:"token"`
	// TimeoutSecs is the request timeout for non-streaming calls in seconds
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`
	// RequestsPerMinute caps outgoing request rate (0 = default)
	RequestsPerMinute int `toml:"requests_per_minute" json:"requests_per_minute"`
}

// ChatConfig contains the default generation selection.
type ChatConfig struct {
	// DefaultProvider is the provider used for new turns (e.g. "openai")
	DefaultProvider string `toml:"default_provider" json:"default_provider"`
	// DefaultModel is the model used for new turns (e.g. "gpt-4")
	DefaultModel string `toml:"default_model" json:"default_model"`
}

// VaultConfig contains credential vault settings.
type VaultConfig struct {
	// Path is the vault database path (empty = ~/.parley/vault.db)
	Path string `toml:"path" json:"path"`
}

// REPLConfig contains interactive prompt settings.
type REPLConfig struct {
	// HistoryFile is the readline history path (empty = ~/.parley/history)
	HistoryFile string `toml:"history_file" json:"history_file"`
	// MaxHistory is the maximum number of history entries retained
	MaxHistory int `toml:"max_history" json:"max_history"`
	// PreviewWidth is the rune width for conversation list previews
	PreviewWidth int `toml:"preview_width" json:"preview_width"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: "0.2.0",

		Gateway: GatewayConfig{
			URL:               "http://127.0.0.1:8000",
			TimeoutSecs:       30,
			RequestsPerMinute: 60,
		},

		Chat: ChatConfig{
			DefaultProvider: "openai",
			DefaultModel:    "gpt-4",
		},

		Vault: VaultConfig{
			Path: "",
		},

		REPL: REPLConfig{
			HistoryFile:  "",
			MaxHistory:   1000,
			PreviewWidth: 60,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the parley configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".parley"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// VaultPath returns the effective vault database path.
func (c *Config) VaultPath() (string, error) {
	if c.Vault.Path != "" {
		return c.Vault.Path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "vault.db"), nil
}

// HistoryPath returns the effective REPL history path.
func (c *Config) HistoryPath() (string, error) {
	if c.REPL.HistoryFile != "" {
		return c.REPL.HistoryFile, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// ensureSecurePermissions checks and fixes permissions on config files.
// SECURITY: Config files should be 0600 (owner read/write only) since they
// may carry a bearer token.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err // File doesn't exist or not accessible
	}

	mode := info.Mode().Perm()
	if mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}

	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	cfg := Default()
	var loadErr error

	// Try TOML first
	tomlPath, err := ConfigPathTOML()
	if err == nil {
		if _, statErr := os.Stat(tomlPath); statErr == nil {
			if err := LoadTOML(cfg, tomlPath); err != nil {
				loadErr = fmt.Errorf("failed to load TOML config: %w", err)
			} else {
				return finishLoad(cfg)
			}
		}
	}

	// Try JSON as fallback
	jsonPath, err := ConfigPathJSON()
	if err == nil {
		if _, statErr := os.Stat(jsonPath); statErr == nil {
			if err := LoadJSON(cfg, jsonPath); err != nil {
				loadErr = fmt.Errorf("failed to load JSON config: %w", err)
			} else {
				return finishLoad(cfg)
			}
		}
	}

	// Defaults only
	cfg, err = finishLoad(cfg)
	if err != nil {
		return nil, err
	}

	// Return defaults (with any load error for informational purposes)
	return cfg, loadErr
}

// finishLoad applies env overrides, fills defaults, and validates.
func finishLoad(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML loads configuration from a TOML file.
// SECURITY: Checks and fixes file permissions on load.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		// Log warning but don't fail - permissions might not be fixable on all systems
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	_, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return fillDefaults(cfg)
}

// LoadJSON loads configuration from a JSON file.
// SECURITY: Checks and fixes file permissions on load.
func LoadJSON(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return fillDefaults(cfg)
}

// LoadFromPath loads configuration from a specific file path with full validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		// Default to TOML
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	return finishLoad(cfg)
}

// fillDefaults fills in any missing values with defaults.
func fillDefaults(cfg *Config) error {
	defaults := Default()

	if cfg.Version == "" {
		cfg.Version = defaults.Version
	}
	if cfg.Gateway.URL == "" {
		cfg.Gateway.URL = defaults.Gateway.URL
	}
	if cfg.Gateway.TimeoutSecs == 0 {
		cfg.Gateway.TimeoutSecs = defaults.Gateway.TimeoutSecs
	}
	if cfg.Gateway.RequestsPerMinute == 0 {
		cfg.Gateway.RequestsPerMinute = defaults.Gateway.RequestsPerMinute
	}
	if cfg.Chat.DefaultProvider == "" {
		cfg.Chat.DefaultProvider = defaults.Chat.DefaultProvider
	}
	if cfg.Chat.DefaultModel == "" {
		cfg.Chat.DefaultModel = defaults.Chat.DefaultModel
	}
	if cfg.REPL.MaxHistory == 0 {
		cfg.REPL.MaxHistory = defaults.REPL.MaxHistory
	}
	if cfg.REPL.PreviewWidth == 0 {
		cfg.REPL.PreviewWidth = defaults.REPL.PreviewWidth
	}

	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML config file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves the configuration to a TOML file.
// SECURITY: Creates config files with 0600 permissions (owner read/write only).
// RELIABILITY: Atomic write with fsync prevents data loss on crash.
func SaveTOML(cfg *Config, path string) error {
	if err := EnsureConfigDir(); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf strings.Builder
	buf.WriteString("# parley configuration file\n")
	buf.WriteString("# Generated by parley - edit with care\n")
	buf.WriteString("#\n")
	buf.WriteString("# Documentation: https://github.com/jeranaias/parley\n")
	buf.WriteString("\n")

	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFile(path, []byte(buf.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SaveJSON saves the configuration to a JSON file.
// SECURITY: Creates config files with 0600 permissions (owner read/write only).
func SaveJSON(cfg *Config, path string) error {
	if err := EnsureConfigDir(); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	// Gateway URL must parse and carry an http(s) scheme
	if c.Gateway.URL == "" {
		errs = append(errs, ValidationError{
			Field:   "gateway.url",
			Message: "gateway URL is required",
		})
	} else {
		u, err := url.Parse(c.Gateway.URL)
		if err != nil {
			errs = append(errs, ValidationError{
				Field:   "gateway.url",
				Message: fmt.Sprintf("invalid URL: %v", err),
			})
		} else if u.Scheme != "http" && u.Scheme != "https" {
			errs = append(errs, ValidationError{
				Field:   "gateway.url",
				Message: fmt.Sprintf("unsupported scheme '%s', must be http or https", u.Scheme),
			})
		}
	}

	if c.Gateway.TimeoutSecs < 1 || c.Gateway.TimeoutSecs > 600 {
		errs = append(errs, ValidationError{
			Field:   "gateway.timeout_secs",
			Message: fmt.Sprintf("timeout_secs must be 1-600, got %d", c.Gateway.TimeoutSecs),
		})
	}

	if c.Gateway.RequestsPerMinute < 1 || c.Gateway.RequestsPerMinute > 6000 {
		errs = append(errs, ValidationError{
			Field:   "gateway.requests_per_minute",
			Message: fmt.Sprintf("requests_per_minute must be 1-6000, got %d", c.Gateway.RequestsPerMinute),
		})
	}

	if c.Chat.DefaultProvider == "" {
		errs = append(errs, ValidationError{
			Field:   "chat.default_provider",
			Message: "default_provider is required",
		})
	}
	if c.Chat.DefaultModel == "" {
		errs = append(errs, ValidationError{
			Field:   "chat.default_model",
			Message: "default_model is required",
		})
	}

	if c.REPL.MaxHistory < 0 {
		errs = append(errs, ValidationError{
			Field:   "repl.max_history",
			Message: "max_history cannot be negative",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults fills zero values that validation would otherwise reject.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.Gateway.URL == "" {
		c.Gateway.URL = defaults.Gateway.URL
	}
	if c.Gateway.TimeoutSecs <= 0 {
		c.Gateway.TimeoutSecs = defaults.Gateway.TimeoutSecs
	}
	if c.Gateway.RequestsPerMinute <= 0 {
		c.Gateway.RequestsPerMinute = defaults.Gateway.RequestsPerMinute
	}
	if c.Chat.DefaultProvider == "" {
		c.Chat.DefaultProvider = defaults.Chat.DefaultProvider
	}
	if c.Chat.DefaultModel == "" {
		c.Chat.DefaultModel = defaults.Chat.DefaultModel
	}
	if c.REPL.MaxHistory <= 0 {
		c.REPL.MaxHistory = defaults.REPL.MaxHistory
	}
	if c.REPL.PreviewWidth <= 0 {
		c.REPL.PreviewWidth = defaults.REPL.PreviewWidth
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
// Environment variables take precedence over file values.
func (c *Config) ApplyEnvOverrides() {
	// PARLEY_URL
	if gatewayURL := os.Getenv("PARLEY_URL"); gatewayURL != "" {
		c.Gateway.URL = gatewayURL
	}

	// PARLEY_TOKEN
	// SECURITY: Allows token injection without writing it to disk.
	if token := os.Getenv("PARLEY_TOKEN"); token != "" {
		c.Gateway.Token = token
	}

	// PARLEY_PROVIDER
	if provider := os.Getenv("PARLEY_PROVIDER"); provider != "" {
		c.Chat.DefaultProvider = provider
	}

	// PARLEY_MODEL
	if model := os.Getenv("PARLEY_MODEL"); model != "" {
		c.Chat.DefaultModel = model
	}

	// PARLEY_VAULT
	if vaultPath := os.Getenv("PARLEY_VAULT"); vaultPath != "" {
		c.Vault.Path = vaultPath
	}
}

// =============================================================================
// DISPLAY
// =============================================================================

// String returns a JSON representation with sensitive fields redacted.
// SECURITY: The bearer token is never included in display output.
func (c *Config) String() string {
	safe := *c
	if safe.Gateway.Token != "" {
		safe.Gateway.Token = "[REDACTED]"
	}

	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance.
// Loads configuration on first access. Thread-safe.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			// Log but don't fail - use defaults
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
		}
		if cfg == nil {
			cfg = Default()
		}
		globalConfig = cfg
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// ReloadGlobal reloads the global configuration from disk. Thread-safe.
func ReloadGlobal() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
	return nil
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state for testing.
// This should only be used in tests to reset state between test runs.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
