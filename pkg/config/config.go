// Package config provides YAML-based configuration loading for rfcoap.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is the root application configuration.
type Config struct {
	// AppName optional logical name of the node/application
	AppName string `mapstructure:"app_name"`

	// NodeID is the local node identifier stamped into beacon payloads
	NodeID string `mapstructure:"node_id"`

	// Log holds logging configuration
	Log LogConfig `mapstructure:"log"`

	// Device describes the radio device to open at startup
	Device DeviceConfig `mapstructure:"device"`

	// Radio configures the radio transport binding
	Radio RadioConfig `mapstructure:"radio"`

	// Beacon configures the periodic beacon publisher
	Beacon BeaconConfig `mapstructure:"beacon"`
}

// LogConfig defines logger settings.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `mapstructure:"level"`
	// Format: console or json
	Format string `mapstructure:"format"`
	// Outputs: list of outputs: stdout, stderr, or file paths
	Outputs []string `mapstructure:"outputs"`

	// Rotation controls file rotation when writing to files
	Rotation RotationConfig `mapstructure:"rotation"`
	// Development toggles development-friendly logging options
	Development bool `mapstructure:"development"`
}

// RotationConfig controls log file rotation for file outputs.
type RotationConfig struct {
	Enable     bool   `mapstructure:"enable"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	return &Config{
		AppName: "rfcoap-node",
		NodeID:  "node-1",
		Log: LogConfig{
			Level:       "info",
			Format:      "console",
			Outputs:     []string{"stdout"},
			Development: true,
			Rotation: RotationConfig{
				Enable:     false,
				Filename:   "logs/rfcoap.log",
				MaxSizeMB:  50,
				MaxBackups: 3,
				MaxAgeDays: 28,
				Compress:   true,
			},
		},
		Device: DeviceConfig{Name: "radio0", MTU: 127},
		Radio:  RadioConfig{Host: "10.0.0.5", Port: 5683},
		Beacon: BeaconConfig{Enable: true, IntervalMS: 5000, Format: "json"},
	}
}

// Load reads configuration from the provided path (if non-empty),
// otherwise it searches common locations and supports environment overrides.
// Environment variables use the prefix RFCOAP and `.`/`-` are replaced with `_`.
// Example: RFCOAP_LOG_LEVEL=debug
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("RFCOAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// seed defaults for viper so env-only configs work
	v.SetDefault("app_name", cfg.AppName)
	v.SetDefault("node_id", cfg.NodeID)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.outputs", cfg.Log.Outputs)
	v.SetDefault("log.development", cfg.Log.Development)
	v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
	v.SetDefault("log.rotation.filename", cfg.Log.Rotation.Filename)
	v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
	v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
	v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
	v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)
	// Device defaults
	v.SetDefault("device.name", cfg.Device.Name)
	v.SetDefault("device.mtu", cfg.Device.MTU)
	// Radio defaults
	v.SetDefault("radio.device", cfg.Radio.Device)
	v.SetDefault("radio.host", cfg.Radio.Host)
	v.SetDefault("radio.port", cfg.Radio.Port)
	// Beacon defaults
	v.SetDefault("beacon.enable", cfg.Beacon.Enable)
	v.SetDefault("beacon.interval_ms", cfg.Beacon.IntervalMS)
	v.SetDefault("beacon.format", cfg.Beacon.Format)

	// Choose config file
	if path == "" {
		// Allow override via env var
		if envPath := os.Getenv("RFCOAP_CONFIG"); envPath != "" {
			path = envPath
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		// Search common locations with base name `rfcoap`
		v.SetConfigName("rfcoap")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".rfcoap"))
		}
	}

	// Read config file if present; if not found, continue with defaults/env
	if err := v.ReadInConfig(); err != nil {
		var viperConfigFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &viperConfigFileNotFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	lvl := strings.ToLower(strings.TrimSpace(c.Log.Level))
	switch lvl {
	case "debug", "info", "warn", "warning", "error":
		// ok
	default:
		return fmt.Errorf("invalid log.level: %q", c.Log.Level)
	}

	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if len(c.Log.Outputs) == 0 {
		c.Log.Outputs = []string{"stdout"}
	}
	if strings.TrimSpace(c.NodeID) == "" {
		c.NodeID = "node-1"
	}

	c.Device.Name = strings.TrimSpace(c.Device.Name)
	if c.Device.Name == "" {
		c.Device.Name = "radio0"
	}
	if c.Device.MTU < 0 {
		return fmt.Errorf("invalid device.mtu: %d", c.Device.MTU)
	}

	// the binding sends through the configured device unless told otherwise
	c.Radio.Device = strings.TrimSpace(c.Radio.Device)
	if c.Radio.Device == "" {
		c.Radio.Device = c.Device.Name
	}
	if _, err := c.Radio.Addr(); err != nil {
		return err
	}
	if c.Radio.Port == 0 {
		return errors.New("radio.port must be non-zero")
	}

	c.Beacon.Format = strings.ToLower(strings.TrimSpace(c.Beacon.Format))
	switch c.Beacon.Format {
	case "json", "cbor", "proto":
		// ok
	case "":
		c.Beacon.Format = "json"
	default:
		return fmt.Errorf("invalid beacon.format: %q", c.Beacon.Format)
	}
	if c.Beacon.Enable && c.Beacon.IntervalMS <= 0 {
		return fmt.Errorf("invalid beacon.interval_ms: %d", c.Beacon.IntervalMS)
	}
	return nil
}

// MustLoad is a convenience that panics on error.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}
