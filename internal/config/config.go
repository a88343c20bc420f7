package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultBufferCapSeconds bounds each source buffer when the config leaves
// the cap unset. A few seconds favors timeline continuity over completeness
// under sustained producer overload.
const DefaultBufferCapSeconds = 5

// SourceConfig holds the initial mixing parameters for one capture source.
type SourceConfig struct {
	Enabled bool    `yaml:"enabled"`
	Gain    float32 `yaml:"gain"`
}

// MixerConfig stores mixing engine configuration.
type MixerConfig struct {
	System           SourceConfig `yaml:"system"`
	Microphone       SourceConfig `yaml:"microphone"`
	BufferCapSeconds int          `yaml:"buffer_cap_seconds"`
}

// OutputConfig selects the encoder sinks for the mixed stream. Empty paths
// disable the respective sink.
type OutputConfig struct {
	WAVPath     string `yaml:"wav_path"`
	OpusPath    string `yaml:"opus_path"`
	OpusBitrate int    `yaml:"opus_bitrate"`
}

// CaptureConfig stores the reference capture collaborators' settings.
type CaptureConfig struct {
	MicrophoneDevice     int    `yaml:"microphone_device"` // -1 selects the default input
	MicrophoneSampleRate int    `yaml:"microphone_sample_rate"`
	SystemReplayPath     string `yaml:"system_replay_path"` // WAV file standing in for loopback capture
}

// Config stores the application configuration.
type Config struct {
	Mixer    MixerConfig   `yaml:"mixer"`
	Output   OutputConfig  `yaml:"output"`
	Capture  CaptureConfig `yaml:"capture"`
	LogLevel string        `yaml:"log_level"`
}

// Default returns the configuration used for fields absent from the file:
// both sources enabled at unity gain.
func Default() *Config {
	return &Config{
		Mixer: MixerConfig{
			System:           SourceConfig{Enabled: true, Gain: 1.0},
			Microphone:       SourceConfig{Enabled: true, Gain: 1.0},
			BufferCapSeconds: DefaultBufferCapSeconds,
		},
		Output: OutputConfig{
			WAVPath:     "recording.wav",
			OpusBitrate: 64_000,
		},
		Capture: CaptureConfig{
			MicrophoneDevice:     -1,
			MicrophoneSampleRate: 44_100,
		},
		LogLevel: "info",
	}
}

// LoadConfig loads the configuration from the given file path, applying
// defaults for absent fields.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}
