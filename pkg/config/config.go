// Package config holds application settings and the user's device bindings
// (name → address aliases and the auto-connect list).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/srg/redtooth/internal/radio"
)

// Config holds application configuration
type Config struct {
	LogLevel         logrus.Level      `yaml:"log_level"`
	ScanTimeout      time.Duration     `yaml:"scan_timeout" default:"10s"`
	AutoScan         bool              `yaml:"auto_scan" default:"true"`
	EventBuffer      int               `yaml:"event_buffer" default:"1024"`
	WatchdogInterval time.Duration     `yaml:"watchdog_interval" default:"500ms"`
	RegistryPath     string            `yaml:"registry_path"`
	OutputFormat     string            `yaml:"output_format" default:"table"`
	Devices          map[string]string `yaml:"devices"`
	AutoConnect      []string          `yaml:"auto_connect"`

	path string
}

// DefaultDir returns the default configuration directory
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "redtooth")
}

// DefaultPath returns the default config file path
func DefaultPath() string {
	return filepath.Join(DefaultDir(), "config.yaml")
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{
		LogLevel:     logrus.InfoLevel,
		RegistryPath: filepath.Join(DefaultDir(), "registry.yaml"),
		Devices:      make(map[string]string),
	}
	defaults.SetDefaults(cfg)
	return cfg
}

// Load reads the YAML config at path (DefaultPath when empty). A missing file yields
// defaults; an unparsable file yields defaults and a warning.
func Load(path string, logger *logrus.Logger) (*Config, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if path == "" {
		path = DefaultPath()
	}

	cfg := DefaultConfig()
	cfg.path = path

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logger.WithField("path", path).Info("Config file not found, using defaults")
		return cfg, nil
	case err != nil:
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		logger.WithError(err).WithField("path", path).Warn("Failed to parse config file, using defaults")
		cfg = DefaultConfig()
		cfg.path = path
		return cfg, nil
	}
	if cfg.Devices == nil {
		cfg.Devices = make(map[string]string)
	}
	cfg.RegistryPath = expandTilde(cfg.RegistryPath)

	logger.WithFields(logrus.Fields{
		"path":    path,
		"devices": len(cfg.Devices),
	}).Info("Config loaded")
	return cfg, nil
}

// Path returns the file the config is loaded from and saved to
func (c *Config) Path() string {
	if c.path == "" {
		return DefaultPath()
	}
	return c.path
}

// SetPath changes the file used by Save
func (c *Config) SetPath(path string) {
	c.path = path
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.ScanTimeout < 0 {
		return fmt.Errorf("scan_timeout must not be negative")
	}
	if c.EventBuffer <= 0 {
		return fmt.Errorf("event_buffer must be > 0")
	}
	if c.WatchdogInterval <= 0 {
		return fmt.Errorf("watchdog_interval must be > 0")
	}

	switch c.OutputFormat {
	case "table", "json":
	default:
		return fmt.Errorf("output_format must be \"table\" or \"json\", got %q", c.OutputFormat)
	}

	for name, addr := range c.Devices {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("devices: empty device name")
		}
		if _, err := radio.ParseAddress(addr); err != nil {
			return fmt.Errorf("devices[%s]: %w", name, err)
		}
	}
	return nil
}

// Save writes the config as YAML to Path()
func (c *Config) Save() error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	path := c.Path()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Resolve returns the address bound to name
func (c *Config) Resolve(name string) (uint64, bool) {
	raw, ok := c.Devices[name]
	if !ok {
		return 0, false
	}
	addr, err := radio.ParseAddress(raw)
	if err != nil {
		return 0, false
	}
	return addr, true
}

// NameOf returns the alias bound to address, if any
func (c *Config) NameOf(address uint64) (string, bool) {
	for _, name := range c.DeviceNames() {
		if addr, ok := c.Resolve(name); ok && addr == address {
			return name, true
		}
	}
	return "", false
}

// DeviceNames returns all aliases, sorted
func (c *Config) DeviceNames() []string {
	names := make([]string, 0, len(c.Devices))
	for name := range c.Devices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AutoConnectList returns the names to connect at startup, in configured order
func (c *Config) AutoConnectList() []string {
	out := make([]string, len(c.AutoConnect))
	copy(out, c.AutoConnect)
	return out
}

// AddDevice binds name to address, replacing an existing binding
func (c *Config) AddDevice(name string, address uint64) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("device name must not be empty")
	}
	if c.Devices == nil {
		c.Devices = make(map[string]string)
	}
	c.Devices[name] = radio.FormatAddress(address)
	return nil
}

// RemoveDevice drops the binding for name and reports whether it existed
func (c *Config) RemoveDevice(name string) bool {
	if _, ok := c.Devices[name]; !ok {
		return false
	}
	delete(c.Devices, name)
	return true
}

// AddAutoConnect appends name to the auto-connect list unless already present
func (c *Config) AddAutoConnect(name string) bool {
	for _, n := range c.AutoConnect {
		if n == name {
			return false
		}
	}
	c.AutoConnect = append(c.AutoConnect, name)
	return true
}

// RemoveAutoConnect drops name from the auto-connect list and reports whether it was present
func (c *Config) RemoveAutoConnect(name string) bool {
	kept := c.AutoConnect[:0]
	removed := false
	for _, n := range c.AutoConnect {
		if n == name {
			removed = true
			continue
		}
		kept = append(kept, n)
	}
	c.AutoConnect = kept
	return removed
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(c.LogLevel)

	// Use structured logging format
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}

func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
