package capture

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"go.uber.org/zap"

	"github.com/sonarkit/livemix/internal/config"
	"github.com/sonarkit/livemix/internal/mixer"
	"github.com/sonarkit/livemix/pkg/pcm"
)

// PushFunc delivers one raw capture block to the engine.
type PushFunc func(mixer.Block)

// Microphone captures mono 16-bit audio from a PortAudio input device and
// pushes raw blocks into the mixing engine from the stream callback.
type Microphone struct {
	logger *zap.Logger
	cfg    config.CaptureConfig
	push   PushFunc

	mu      sync.Mutex
	stream  *portaudio.Stream
	running bool
}

// NewMicrophone prepares a capture source; the device is not opened until
// Start.
func NewMicrophone(logger *zap.Logger, cfg config.CaptureConfig, push PushFunc) *Microphone {
	return &Microphone{logger: logger, cfg: cfg, push: push}
}

// Start initializes PortAudio and begins streaming from the configured
// device (-1 selects the system default input).
func (m *Microphone) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initialize portaudio: %w", err)
	}

	device, err := m.inputDevice()
	if err != nil {
		portaudio.Terminate()
		return err
	}

	rate := m.cfg.MicrophoneSampleRate
	if rate <= 0 {
		rate = int(device.DefaultSampleRate)
	}
	format := mixer.BlockFormat{
		SampleRate:    rate,
		Channels:      1,
		BitsPerSample: 16,
	}

	params := portaudio.LowLatencyParameters(device, nil)
	params.Input.Channels = 1
	params.SampleRate = float64(rate)
	params.FramesPerBuffer = rate / 100 // 10 ms delivery blocks

	stream, err := portaudio.OpenStream(params, func(in []int16) {
		// PortAudio reuses `in` between callbacks; the block gets its
		// own copy via the byte conversion.
		m.push(mixer.Block{Format: format, Data: pcm.Int16ToLE(in)})
	})
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("open input stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("start input stream: %w", err)
	}

	m.stream = stream
	m.running = true
	m.logger.Info("microphone capture started",
		zap.String("device", device.Name),
		zap.Int("sample_rate", rate))
	return nil
}

// Stop ends the stream and releases PortAudio.
func (m *Microphone) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}
	m.running = false

	if err := m.stream.Stop(); err != nil {
		m.logger.Warn("stopping input stream", zap.Error(err))
	}
	if err := m.stream.Close(); err != nil {
		m.logger.Warn("closing input stream", zap.Error(err))
	}
	m.stream = nil

	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("terminate portaudio: %w", err)
	}
	m.logger.Info("microphone capture stopped")
	return nil
}

func (m *Microphone) inputDevice() (*portaudio.DeviceInfo, error) {
	if m.cfg.MicrophoneDevice < 0 {
		device, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("default input device: %w", err)
		}
		return device, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	if m.cfg.MicrophoneDevice >= len(devices) {
		return nil, fmt.Errorf("invalid device ID: %d", m.cfg.MicrophoneDevice)
	}
	device := devices[m.cfg.MicrophoneDevice]
	if device.MaxInputChannels <= 0 {
		return nil, fmt.Errorf("device %q has no input channels", device.Name)
	}
	return device, nil
}
