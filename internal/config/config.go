package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	// Audio capture settings
	Audio struct {
		SampleRate       int     `yaml:"sample_rate"`
		Channels         int     `yaml:"channels"`
		ChunkFrames      int     `yaml:"chunk_frames"`
		QueueDepth       int     `yaml:"queue_depth"`
		SilenceThreshold float64 `yaml:"silence_threshold"`
		// ActivationTimeoutMS bounds the device activation handshake;
		// zero waits indefinitely
		ActivationTimeoutMS int `yaml:"activation_timeout_ms"`
	} `yaml:"audio"`

	// Output settings
	Output struct {
		File   string `yaml:"file"`
		Format string `yaml:"format"`
	} `yaml:"output"`

	// Log settings
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Audio defaults: the process loopback device's native format
	cfg.Audio.SampleRate = 48000
	cfg.Audio.Channels = 2
	cfg.Audio.ChunkFrames = 480 // 10ms at 48kHz
	cfg.Audio.QueueDepth = 1000
	cfg.Audio.SilenceThreshold = 0.0001
	cfg.Audio.ActivationTimeoutMS = 0

	// Output defaults
	cfg.Output.File = "capture.wav"
	cfg.Output.Format = "text"

	// Log defaults
	cfg.Log.Level = "info"

	return cfg
}

// Load loads configuration from file
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// LoadWithFallback attempts to load configuration from multiple locations
// Priority: explicit path > ~/.loopcaprc > /etc/loopcap/config.yaml
func LoadWithFallback(explicitPath string) (*Config, error) {
	if explicitPath != "" {
		return Load(explicitPath)
	}

	homeDir, err := os.UserHomeDir()
	if err == nil {
		userConfigPath := filepath.Join(homeDir, ".loopcaprc")
		if _, err := os.Stat(userConfigPath); err == nil {
			cfg, err := Load(userConfigPath)
			if err == nil {
				return cfg, nil
			}
		}
	}

	systemConfigPath := "/etc/loopcap/config.yaml"
	if _, err := os.Stat(systemConfigPath); err == nil {
		cfg, err := Load(systemConfigPath)
		if err == nil {
			return cfg, nil
		}
	}

	// No config file found, return defaults
	return DefaultConfig(), nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
