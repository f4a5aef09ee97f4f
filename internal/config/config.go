package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/unusual-audio/workbench/internal/logger"
)

// Config represents the complete SCPI server configuration
type Config struct {
	Server   ServerConfig         `yaml:"server"`
	Identity string               `yaml:"identity"`
	Channels ChannelsConfig       `yaml:"channels"`
	MQTT     MQTTConfig           `yaml:"mqtt"`
	Metrics  MetricsConfig        `yaml:"metrics"`
	Logging  logger.LoggingConfig `yaml:"logging"`
}

// ServerConfig contains the TCP listener settings
type ServerConfig struct {
	Host string `yaml:"host"` // Empty binds all interfaces
	Port int    `yaml:"port"` // Defaults to 5025, the conventional SCPI raw socket port
}

// ChannelsConfig describes the signal generator channels and the parameter
// bounds enforced by the SOURce command handlers
type ChannelsConfig struct {
	Count     int    `yaml:"count"`
	Frequency Bounds `yaml:"frequency"` // Hz
	Amplitude Bounds `yaml:"amplitude"` // Full-scale fraction
	Offset    Bounds `yaml:"offset"`    // Full-scale fraction
}

// Bounds holds the optional minimum, maximum and default of one numeric
// parameter. A nil field means no bound applies; the matching MIN/MAX/DEF
// meta-value is then rejected as parameter-not-allowed.
type Bounds struct {
	Min     *float64 `yaml:"min,omitempty"`
	Max     *float64 `yaml:"max,omitempty"`
	Default *float64 `yaml:"default,omitempty"`
}

// MQTTConfig contains the optional availability/diagnostic publisher settings
type MQTTConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Broker          string `yaml:"broker"`
	Port            int    `yaml:"port"`
	Username        string `yaml:"username"`
	Password        string `yaml:"password"`
	ClientID        string `yaml:"client_id"`
	RetryDelay      int    `yaml:"retry_delay"` // Delay between connection retries in milliseconds
	KeepAlive       int    `yaml:"keep_alive"`  // Keep-alive interval in seconds
	StatusTopic     string `yaml:"status_topic"`
	DiagnosticTopic string `yaml:"diagnostic_topic"`
}

// MetricsConfig contains the Prometheus/health HTTP endpoint settings
type MetricsConfig struct {
	Port int `yaml:"port"` // 0 disables the endpoint
}

// LoadConfig loads configuration from the specified file, falling back to the
// standard locations when configPath is empty or unreadable
func LoadConfig(configPath string) (*Config, error) {
	paths := []string{
		configPath,
		"/etc/workbench/scpi-server.yaml",
		"./config.yaml",
	}

	var data []byte
	var err error
	var usedPath string

	for _, path := range paths {
		if path == "" {
			continue
		}
		// #nosec G304 - Paths are from a hardcoded list of safe configuration file locations
		data, err = os.ReadFile(path)
		if err == nil {
			usedPath = path
			break
		}
	}

	if err != nil {
		return nil, fmt.Errorf("cannot read configuration file from any of the locations: %v. Last error: %w", paths, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing configuration from %s: %w", usedPath, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", usedPath, err)
	}

	logger.LogInfo("Configuration loaded successfully from %s", usedPath)
	return &config, nil
}

// LoadConfigFromString loads configuration from a YAML string (for testing)
func LoadConfigFromString(yamlContent string) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal([]byte(yamlContent), &config); err != nil {
		return nil, fmt.Errorf("error parsing configuration: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate checks the configuration and fills in defaults for optional fields
func (c *Config) Validate() error {
	if c.Identity == "" {
		return fmt.Errorf("identity is not specified")
	}

	if c.Server.Port == 0 {
		c.Server.Port = 5025
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 0 and 65535")
	}

	if c.Channels.Count == 0 {
		c.Channels.Count = 2
	}
	if c.Channels.Count < 0 {
		return fmt.Errorf("channels.count must be positive")
	}
	c.Channels.Frequency.applyDefaults(1.0, 20000.0, 1000.0)
	c.Channels.Amplitude.applyDefaults(0.0, 1.0, 1.0)
	c.Channels.Offset.applyDefaults(-1.0, 1.0, 0.0)
	if err := c.Channels.Frequency.validate("channels.frequency"); err != nil {
		return err
	}
	if err := c.Channels.Amplitude.validate("channels.amplitude"); err != nil {
		return err
	}
	if err := c.Channels.Offset.validate("channels.offset"); err != nil {
		return err
	}

	if c.Metrics.Port < 0 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 0 and 65535")
	}

	if c.MQTT.Enabled {
		if c.MQTT.Broker == "" {
			return fmt.Errorf("mqtt.broker is not specified")
		}
		if c.MQTT.Port <= 0 {
			return fmt.Errorf("mqtt.port must be positive")
		}
		if c.MQTT.StatusTopic == "" {
			return fmt.Errorf("mqtt.status_topic is not specified")
		}
		if c.MQTT.DiagnosticTopic == "" {
			return fmt.Errorf("mqtt.diagnostic_topic is not specified")
		}
		if c.MQTT.ClientID == "" {
			c.MQTT.ClientID = "workbench_scpi_server"
		}
	}

	return nil
}

// applyDefaults fills unset bounds with the built-in values
func (b *Bounds) applyDefaults(min, max, def float64) {
	if b.Min == nil {
		b.Min = &min
	}
	if b.Max == nil {
		b.Max = &max
	}
	if b.Default == nil {
		b.Default = &def
	}
}

// validate checks bound consistency
func (b *Bounds) validate(field string) error {
	if b.Min != nil && b.Max != nil && *b.Min > *b.Max {
		return fmt.Errorf("%s.min must not exceed %s.max", field, field)
	}
	if b.Default != nil {
		if b.Min != nil && *b.Default < *b.Min {
			return fmt.Errorf("%s.default is below %s.min", field, field)
		}
		if b.Max != nil && *b.Default > *b.Max {
			return fmt.Errorf("%s.default is above %s.max", field, field)
		}
	}
	return nil
}
