// Package config provides configuration structures and loading logic for the
// console gateway, plus the plugin manifest provider that feeds the menu
// aggregation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the global configuration for the gateway.
type Config struct {
	Server ServerConfig `yaml:"server"`

	UI        UIConfig        `yaml:"ui"`
	Menu      MenuConfig      `yaml:"menu"`
	Authz     AuthzConfig     `yaml:"authz"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds configuration for the HTTP server.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// UIConfig holds the console presentation keys the API hands to clients
// verbatim.
type UIConfig struct {
	InstanceName        string `yaml:"instance_name"`
	PageSize            int    `yaml:"page_size"`
	AutoRefreshInterval int    `yaml:"auto_refresh_interval"` // seconds, shared cadence for all panels
	DefaultWrap         bool   `yaml:"default_wrap"`
}

// MenuConfig locates the plugin manifests contributing menu entries. Both
// fields optional; with neither set the console simply renders no plugin
// menu.
type MenuConfig struct {
	ManifestFile string `yaml:"manifest_file"`
	ManifestDir  string `yaml:"manifest_dir"`
}

// AuthzConfig holds configuration for the entitlement policy engine.
type AuthzConfig struct {
	PolicyFile      string `yaml:"policy_file"`
	Entrypoint      string `yaml:"entrypoint"`
	CacheMaxEntries int    `yaml:"cache_max_entries"`
}

// TelemetryConfig holds configuration for OpenTelemetry.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	Insecure     bool   `yaml:"insecure"`
}

// LoggingConfig holds configuration for logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Load reads configuration from a file and applies environment variable
// overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		//nolint:gosec // Config file path is controlled by admin/operator
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("CONSOLE_ADDR"); val != "" {
		cfg.Server.Address = val
	}

	if val := os.Getenv("CONSOLE_INSTANCE_NAME"); val != "" {
		cfg.UI.InstanceName = val
	}
	if val := os.Getenv("CONSOLE_REFRESH_INTERVAL"); val != "" {
		if secs, err := strconv.Atoi(val); err == nil {
			cfg.UI.AutoRefreshInterval = secs
		}
	}

	if val := os.Getenv("CONSOLE_MANIFEST_FILE"); val != "" {
		cfg.Menu.ManifestFile = val
	}
	if val := os.Getenv("CONSOLE_MANIFEST_DIR"); val != "" {
		cfg.Menu.ManifestDir = val
	}

	if val := os.Getenv("CONSOLE_POLICY_FILE"); val != "" {
		cfg.Authz.PolicyFile = val
	}

	if val := os.Getenv("CONSOLE_OTLP_ENDPOINT"); val != "" {
		cfg.Telemetry.OTLPEndpoint = val
	}
	if val := os.Getenv("CONSOLE_OTLP_INSECURE"); val == "true" {
		cfg.Telemetry.Insecure = true
	}

	if val := os.Getenv("CONSOLE_LOG_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
}

// Validate performs comprehensive validation of the entire configuration.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server configuration: %w", err)
	}

	if err := c.UI.Validate(); err != nil {
		return fmt.Errorf("ui configuration: %w", err)
	}

	if err := c.Menu.Validate(); err != nil {
		return fmt.Errorf("menu configuration: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging configuration: %w", err)
	}

	return nil
}

// Validate performs validation of server configuration.
func (c *ServerConfig) Validate() error {
	if strings.TrimSpace(c.Address) == "" {
		c.Address = ":8085"
	}
	return nil
}

// Validate performs validation of UI configuration, applying defaults for
// unset keys.
func (c *UIConfig) Validate() error {
	if strings.TrimSpace(c.InstanceName) == "" {
		c.InstanceName = "Console"
	}

	if c.PageSize == 0 {
		c.PageSize = 50
	}
	if c.PageSize < 0 {
		return fmt.Errorf("page_size must be positive, got %d", c.PageSize)
	}

	if c.AutoRefreshInterval == 0 {
		c.AutoRefreshInterval = 30
	}
	if c.AutoRefreshInterval < 0 {
		return fmt.Errorf("auto_refresh_interval must be positive, got %d", c.AutoRefreshInterval)
	}

	return nil
}

// Validate performs validation of menu configuration.
func (c *MenuConfig) Validate() error {
	if c.ManifestFile != "" && c.ManifestDir != "" {
		return fmt.Errorf("manifest_file and manifest_dir are mutually exclusive")
	}
	return nil
}

// Validate performs validation of logging configuration.
func (c *LoggingConfig) Validate() error {
	if strings.TrimSpace(c.Level) == "" {
		c.Level = "info"
	}

	level := strings.TrimSpace(strings.ToLower(c.Level))
	switch level {
	case "debug", "info", "warn", "error":
		c.Level = level
		return nil
	default:
		return fmt.Errorf("invalid log level %q, supported levels: debug, info, warn, error", c.Level)
	}
}
