// Package capture hosts the reference capture collaborators that feed the
// mixing engine: a PortAudio microphone source and a WAV replay source
// standing in for system-audio loopback.
package capture

import (
	"errors"

	"go.uber.org/zap"

	"github.com/sonarkit/livemix/internal/config"
	"github.com/sonarkit/livemix/internal/mixer"
)

// Manager owns the configured capture sources and starts/stops them
// together. Sources are optional; an empty replay path or a disabled mic
// simply leaves that input silent.
type Manager struct {
	logger *zap.Logger
	mic    *Microphone
	replay *Replay
}

// NewManager wires the configured sources to the engine's push interface.
func NewManager(logger *zap.Logger, cfg *config.Config, engine *mixer.Engine) *Manager {
	m := &Manager{logger: logger}

	if cfg.Mixer.Microphone.Enabled {
		m.mic = NewMicrophone(logger, cfg.Capture, engine.PushMicrophoneAudio)
	}
	if cfg.Capture.SystemReplayPath != "" {
		m.replay = NewReplay(logger, cfg.Capture.SystemReplayPath, engine.PushSystemAudio)
	}
	return m
}

// Start starts all configured sources. A source failing to start stops the
// ones already running.
func (m *Manager) Start() error {
	if m.replay != nil {
		if err := m.replay.Start(); err != nil {
			return err
		}
	}
	if m.mic != nil {
		if err := m.mic.Start(); err != nil {
			if m.replay != nil {
				m.replay.Stop()
			}
			return err
		}
	}
	if m.mic == nil && m.replay == nil {
		m.logger.Warn("no capture source configured; output will be silence")
	}
	return nil
}

// Stop stops all running sources.
func (m *Manager) Stop() error {
	var errs []error
	if m.mic != nil {
		errs = append(errs, m.mic.Stop())
	}
	if m.replay != nil {
		errs = append(errs, m.replay.Stop())
	}
	return errors.Join(errs...)
}
