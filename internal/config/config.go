package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Literal protocol constants for an HC-05 serial module.
const (
	DefaultDeviceName = "HC-05"
	// DefaultServiceUUID is the Bluetooth Serial Port Profile UUID.
	DefaultServiceUUID = "00001101-0000-1000-8000-00805F9B34FB"
	// DefaultCharacteristicUUID is empty: classic SPP has no characteristics.
	DefaultCharacteristicUUID = ""
)

// Config holds all application configuration.
type Config struct {
	LogLevel   string           `yaml:"log_level"`
	Device     DeviceConfig     `yaml:"device"`
	Discovery  DiscoveryConfig  `yaml:"discovery"`
	Transport  TransportConfig  `yaml:"transport"`
	Permission PermissionConfig `yaml:"permission"`
	BlueZ      BlueZConfig      `yaml:"bluez"`
}

// DeviceConfig identifies the target peripheral and its write endpoint.
type DeviceConfig struct {
	Name               string `yaml:"name"`
	ServiceUUID        string `yaml:"service_uuid"`
	CharacteristicUUID string `yaml:"characteristic_uuid"`
}

// DiscoveryConfig holds scan settings.
type DiscoveryConfig struct {
	ScanSeconds     int           `yaml:"scan_seconds"`
	Delay           time.Duration `yaml:"delay"` // wait between starting a scan and reading results
	AllowDuplicates bool          `yaml:"allow_duplicates"`
}

// TransportConfig holds write settings.
type TransportConfig struct {
	MaxByteSize int `yaml:"max_byte_size"` // largest single BLE write
}

// PermissionConfig holds runtime permission settings (Android only).
type PermissionConfig struct {
	Package string `yaml:"package"`
}

// BlueZConfig selects the Linux adapter watched for power state.
type BlueZConfig struct {
	Adapter string `yaml:"adapter"`
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "hc05-remote")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Device: DeviceConfig{
			Name:               DefaultDeviceName,
			ServiceUUID:        DefaultServiceUUID,
			CharacteristicUUID: DefaultCharacteristicUUID,
		},
		Discovery: DiscoveryConfig{
			ScanSeconds:     5,
			Delay:           5 * time.Second,
			AllowDuplicates: true,
		},
		Transport: TransportConfig{
			MaxByteSize: 20,
		},
		Permission: PermissionConfig{
			Package: "com.hc05remote",
		},
		BlueZ: BlueZConfig{
			Adapter: "hci0",
		},
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(expandTilde(path))
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.Device.Name == "" {
		return fmt.Errorf("device.name must not be empty")
	}

	if c.Device.ServiceUUID == "" {
		return fmt.Errorf("device.service_uuid must not be empty")
	}

	if c.Discovery.ScanSeconds <= 0 {
		return fmt.Errorf("discovery.scan_seconds must be > 0")
	}

	if c.Discovery.Delay < 0 {
		return fmt.Errorf("discovery.delay must not be negative")
	}

	if c.Transport.MaxByteSize <= 0 {
		return fmt.Errorf("transport.max_byte_size must be > 0")
	}

	if c.BlueZ.Adapter == "" {
		return fmt.Errorf("bluez.adapter must not be empty")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}

const defaultHeader = `# hc05-remote configuration
# device.characteristic_uuid is empty for classic HC-05 modules. BLE serial
# clones (HM-10 and friends) usually want service FFE0 / characteristic FFE1.
`

// WriteDefault writes the default config to DefaultConfigPath. It returns the
// written path, or "" if a config file already exists there.
func WriteDefault() (string, error) {
	path := DefaultConfigPath()
	if _, err := os.Stat(path); err == nil {
		return "", nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("creating config dir: %w", err)
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return "", fmt.Errorf("encoding default config: %w", err)
	}

	if err := os.WriteFile(path, append([]byte(defaultHeader), data...), 0644); err != nil {
		return "", fmt.Errorf("writing config file: %w", err)
	}
	return path, nil
}

// ParseLogLevel maps a config log level to a slog.Level. Unknown values
// fall back to info.
func ParseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// expandTilde replaces a leading ~ with the user's home directory.
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
