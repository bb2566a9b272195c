// ABOUTME: Configuration file loading for the livewave client
// ABOUTME: YAML config with defaults, environment fallback and validation
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// APIKeyEnv is consulted when no API key is configured
const APIKeyEnv = "GEMINI_API_KEY"

// Config represents the complete client configuration
type Config struct {
	Live      LiveConfig      `yaml:"live"`
	Audio     AudioConfig     `yaml:"audio"`
	UI        UIConfig        `yaml:"ui"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Discovery DiscoveryConfig `yaml:"discovery"`
}

// LiveConfig contains live session parameters
type LiveConfig struct {
	APIKey            string `yaml:"api_key"`
	Endpoint          string `yaml:"endpoint"`
	Model             string `yaml:"model"`
	Voice             string `yaml:"voice"`
	SystemInstruction string `yaml:"system_instruction"`
	ConnectTimeout    int    `yaml:"connect_timeout"` // seconds
}

// AudioConfig contains device selection and input overrides
type AudioConfig struct {
	Capture   string  `yaml:"capture"` // malgo, portaudio
	Output    string  `yaml:"output"`  // oto, malgo, portaudio, null
	InputFile string  `yaml:"input_file"`
	LoopInput bool    `yaml:"loop_input"`
	Tone      float64 `yaml:"tone"` // Hz, 0 disables
	Volume    int     `yaml:"volume"`
}

// UIConfig contains terminal UI options
type UIConfig struct {
	Enabled bool `yaml:"enabled"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	File string `yaml:"file"`
}

// MetricsConfig contains the prometheus listener
type MetricsConfig struct {
	Address string `yaml:"address"` // empty disables
}

// DiscoveryConfig contains relay discovery options
type DiscoveryConfig struct {
	Enabled bool `yaml:"enabled"`
	Timeout int  `yaml:"timeout"` // seconds
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Live: LiveConfig{
			Voice:          "Puck",
			ConnectTimeout: 10,
		},
		Audio: AudioConfig{
			Capture: "malgo",
			Output:  "oto",
			Volume:  100,
		},
		UI:        UIConfig{Enabled: true},
		Logging:   LoggingConfig{File: "livewave.log"},
		Discovery: DiscoveryConfig{Enabled: true, Timeout: 5},
	}
}

// Load reads and parses the configuration file on top of the defaults.
// An empty path returns the defaults.
func Load(path string) (*Config, error) {
	config := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	config.ApplyEnv()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// ApplyEnv fills the API key from the environment when unset
func (c *Config) ApplyEnv() {
	if c.Live.APIKey == "" {
		c.Live.APIKey = os.Getenv(APIKeyEnv)
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.Live.Validate(); err != nil {
		return fmt.Errorf("live config: %w", err)
	}
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}
	if c.Discovery.Timeout < 0 {
		return fmt.Errorf("discovery config: timeout must not be negative")
	}
	return nil
}

// Validate validates live session parameters
func (l *LiveConfig) Validate() error {
	if l.ConnectTimeout < 0 {
		return fmt.Errorf("connect_timeout must not be negative")
	}
	return nil
}

// Validate validates audio parameters
func (a *AudioConfig) Validate() error {
	switch a.Capture {
	case "", "malgo", "portaudio":
	default:
		return fmt.Errorf("unknown capture backend %q", a.Capture)
	}
	switch a.Output {
	case "", "oto", "malgo", "portaudio", "null":
	default:
		return fmt.Errorf("unknown output backend %q", a.Output)
	}
	if a.Volume < 0 || a.Volume > 100 {
		return fmt.Errorf("volume must be between 0 and 100")
	}
	if a.Tone < 0 || a.Tone > 8000 {
		return fmt.Errorf("tone must be between 0 and 8000 Hz")
	}
	if a.InputFile != "" && a.Tone > 0 {
		return fmt.Errorf("input_file and tone are mutually exclusive")
	}
	return nil
}

// NeedsDiscovery reports whether the relay must be found on the network
func (c *Config) NeedsDiscovery() bool {
	return c.Live.APIKey == "" && c.Live.Endpoint == "" && c.Discovery.Enabled
}

// GetConnectTimeout returns the connect timeout as a duration
func (l *LiveConfig) GetConnectTimeout() time.Duration {
	return time.Duration(l.ConnectTimeout) * time.Second
}

// GetDiscoveryTimeout returns the discovery timeout as a duration
func (d *DiscoveryConfig) GetDiscoveryTimeout() time.Duration {
	return time.Duration(d.Timeout) * time.Second
}
