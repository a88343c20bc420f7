package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
mixer:
  system:
    enabled: true
    gain: 0.8
  microphone:
    enabled: false
    gain: 1.5
  buffer_cap_seconds: 3
output:
  wav_path: /tmp/out.wav
  opus_path: /tmp/out.opuspkt
  opus_bitrate: 48000
capture:
  microphone_device: 2
  microphone_sample_rate: 16000
  system_replay_path: loopback.wav
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, float32(0.8), cfg.Mixer.System.Gain)
	assert.False(t, cfg.Mixer.Microphone.Enabled)
	assert.Equal(t, float32(1.5), cfg.Mixer.Microphone.Gain)
	assert.Equal(t, 3, cfg.Mixer.BufferCapSeconds)
	assert.Equal(t, "/tmp/out.wav", cfg.Output.WAVPath)
	assert.Equal(t, 48000, cfg.Output.OpusBitrate)
	assert.Equal(t, 2, cfg.Capture.MicrophoneDevice)
	assert.Equal(t, 16000, cfg.Capture.MicrophoneSampleRate)
	assert.Equal(t, "loopback.wav", cfg.Capture.SystemReplayPath)
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "log_level: warn\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.True(t, cfg.Mixer.System.Enabled)
	assert.Equal(t, float32(1.0), cfg.Mixer.System.Gain)
	assert.Equal(t, DefaultBufferCapSeconds, cfg.Mixer.BufferCapSeconds)
	assert.Equal(t, -1, cfg.Capture.MicrophoneDevice)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigMalformedYAML(t *testing.T) {
	path := writeConfig(t, "mixer: [not a map")
	_, err := LoadConfig(path)
	assert.Error(t, err)
}
