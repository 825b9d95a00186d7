// Package config loads the transmit engine configuration from YAML.
//
// Configuration covers the capture device, working audio format, codec
// selection, announcement playback, transmit scheduling mode, and the
// optional effect chain. Everything has a sensible default so a zero
// config file produces a working 16 kHz mono poll-mode engine.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/opd-ai/audiocast/audio"
)

// Config is the complete engine configuration.
type Config struct {
	Capture      CaptureConfig      `yaml:"capture"`
	Audio        AudioConfig        `yaml:"audio"`
	Announcement AnnouncementConfig `yaml:"announcement"`
	Effects      EffectsConfig      `yaml:"effects"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// CaptureConfig selects and parameterizes the live capture device.
type CaptureConfig struct {
	Module   string `yaml:"module"`   // Registered capture module name
	Device   string `yaml:"device"`   // Module-specific device selector
	Rate     uint32 `yaml:"rate"`     // Capture sample rate in Hz
	Channels int    `yaml:"channels"` // 1 or 2
}

// AudioConfig carries the transmit-side audio parameters.
type AudioConfig struct {
	Codec         string `yaml:"codec"`          // Registered codec name
	PtimeMs       int    `yaml:"ptime_ms"`       // Packet time in milliseconds
	TxMode        string `yaml:"txmode"`         // "poll" or "thread"
	BufferPackets int    `yaml:"buffer_packets"` // Ring buffer depth in packets
}

// AnnouncementConfig configures optional announcement playback.
type AnnouncementConfig struct {
	Path string `yaml:"path"` // WAV file played once before live capture
}

// EffectsConfig toggles the encode-side effect chain.
type EffectsConfig struct {
	Gain               float64 `yaml:"gain"`                 // 0 disables, 1.0 = unity
	AutoGain           bool    `yaml:"auto_gain"`            // Enable AGC
	NoiseGateThreshold float64 `yaml:"noise_gate_threshold"` // 0 disables
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Capture: CaptureConfig{
			Module:   "tone",
			Rate:     16000,
			Channels: 1,
		},
		Audio: AudioConfig{
			Codec:         "L16",
			PtimeMs:       20,
			TxMode:        "poll",
			BufferPackets: 30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads and parses the configuration file, applying defaults for
// anything left unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks configuration consistency.
func (c *Config) Validate() error {
	if c.Capture.Module == "" {
		return fmt.Errorf("capture module must be set")
	}
	if c.Capture.Rate == 0 {
		return fmt.Errorf("capture rate must be positive")
	}
	if c.Capture.Rate > audio.MaxSampleRate {
		return fmt.Errorf("capture rate must not exceed %d Hz, got %d", audio.MaxSampleRate, c.Capture.Rate)
	}
	if c.Capture.Channels < 1 || c.Capture.Channels > 2 {
		return fmt.Errorf("capture channels must be 1 or 2, got %d", c.Capture.Channels)
	}
	if c.Audio.Codec == "" {
		return fmt.Errorf("codec must be set")
	}
	if c.Audio.PtimeMs <= 0 || c.Audio.PtimeMs > 100 {
		return fmt.Errorf("ptime_ms must be in (0,100], got %d", c.Audio.PtimeMs)
	}
	if c.Audio.TxMode != "poll" && c.Audio.TxMode != "thread" {
		return fmt.Errorf("txmode must be \"poll\" or \"thread\", got %q", c.Audio.TxMode)
	}
	if c.Audio.BufferPackets <= 0 {
		return fmt.Errorf("buffer_packets must be positive, got %d", c.Audio.BufferPackets)
	}
	if c.Effects.Gain < 0 {
		return fmt.Errorf("effects gain cannot be negative, got %f", c.Effects.Gain)
	}
	return nil
}

// Ptime returns the packet time as a duration.
func (c *Config) Ptime() time.Duration {
	return time.Duration(c.Audio.PtimeMs) * time.Millisecond
}
