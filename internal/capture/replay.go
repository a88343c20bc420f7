package capture

import (
	"fmt"
	"os"
	"sync"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"go.uber.org/zap"

	"github.com/sonarkit/livemix/internal/mixer"
	"github.com/sonarkit/livemix/pkg/pcm"
)

// Replay feeds a WAV file into the engine at real-time pace, standing in
// for the OS system-audio loopback collaborator. Delivery is block-per-tick
// so the engine sees the same bursty arrival pattern a live capture
// produces.
type Replay struct {
	logger *zap.Logger
	path   string
	push   PushFunc

	mu      sync.Mutex
	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
}

const replayBlockDuration = 20 * time.Millisecond

// NewReplay prepares a replay source for the given WAV file.
func NewReplay(logger *zap.Logger, path string, push PushFunc) *Replay {
	return &Replay{logger: logger, path: path, push: push}
}

// Start opens the file and begins paced delivery. Delivery ends when the
// file runs out or Stop is called.
func (r *Replay) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return nil
	}

	f, err := os.Open(r.path)
	if err != nil {
		return fmt.Errorf("open replay source: %w", err)
	}

	dec := wav.NewDecoder(f)
	dec.ReadInfo()
	if !dec.IsValidFile() {
		f.Close()
		return fmt.Errorf("replay source %q is not a valid wav file", r.path)
	}
	if dec.BitDepth != 16 {
		f.Close()
		return fmt.Errorf("replay source must be 16-bit pcm, got %d-bit", dec.BitDepth)
	}

	r.stopCh = make(chan struct{})
	r.running = true
	r.wg.Add(1)
	go r.run(f, dec, r.stopCh)

	r.logger.Info("system-audio replay started",
		zap.String("path", r.path),
		zap.Uint32("sample_rate", dec.SampleRate),
		zap.Uint16("channels", dec.NumChans))
	return nil
}

// Stop ends delivery and waits for the pacing goroutine.
func (r *Replay) Stop() error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	close(r.stopCh)
	r.mu.Unlock()

	r.wg.Wait()
	return nil
}

func (r *Replay) run(f *os.File, dec *wav.Decoder, stopCh chan struct{}) {
	defer r.wg.Done()
	defer f.Close()

	rate := int(dec.SampleRate)
	channels := int(dec.NumChans)
	format := mixer.BlockFormat{
		SampleRate:    rate,
		Channels:      channels,
		BitsPerSample: 16,
	}
	blockFrames := rate / int(time.Second/replayBlockDuration)

	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{NumChannels: channels, SampleRate: rate},
		Data:   make([]int, blockFrames*channels),
	}

	ticker := time.NewTicker(replayBlockDuration)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			n, err := dec.PCMBuffer(buf)
			if err != nil {
				r.logger.Warn("replay read failed", zap.Error(err))
				return
			}
			if n == 0 {
				r.logger.Info("replay source exhausted", zap.String("path", r.path))
				return
			}

			samples := make([]int16, n)
			for i := 0; i < n; i++ {
				samples[i] = int16(buf.Data[i])
			}
			r.push(mixer.Block{Format: format, Data: pcm.Int16ToLE(samples)})
		}
	}
}
