package sink

import (
	"fmt"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"go.uber.org/zap"

	"github.com/sonarkit/livemix/internal/mixer"
	"github.com/sonarkit/livemix/pkg/pcm"
)

const wavBitDepth = 16

// WAVSink encodes mixed chunks into a 16-bit stereo 48 kHz WAV file.
type WAVSink struct {
	logger *zap.Logger
	file   *os.File
	enc    *wav.Encoder
	format *goaudio.Format
	chunks int
}

// NewWAVSink creates the output file and writes the WAV header. The header's
// length fields are finalized by Close.
func NewWAVSink(logger *zap.Logger, path string) (*WAVSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create wav output: %w", err)
	}

	enc := wav.NewEncoder(f, mixer.SampleRate, wavBitDepth, mixer.Channels, 1)

	return &WAVSink{
		logger: logger,
		file:   f,
		enc:    enc,
		format: &goaudio.Format{
			NumChannels: mixer.Channels,
			SampleRate:  mixer.SampleRate,
		},
	}, nil
}

// Write encodes one chunk.
func (s *WAVSink) Write(c mixer.Chunk) error {
	ints := pcm.Float32ToInt16(c.Samples)
	data := make([]int, len(ints))
	for i, v := range ints {
		data[i] = int(v)
	}

	buf := &goaudio.IntBuffer{
		Format:         s.format,
		Data:           data,
		SourceBitDepth: wavBitDepth,
	}
	if err := s.enc.Write(buf); err != nil {
		return fmt.Errorf("wav encode: %w", err)
	}
	s.chunks++
	return nil
}

// Close finalizes the WAV header and closes the file.
func (s *WAVSink) Close() error {
	if err := s.enc.Close(); err != nil {
		s.file.Close()
		return fmt.Errorf("finalize wav: %w", err)
	}
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("close wav file: %w", err)
	}
	s.logger.Info("wav recording closed",
		zap.String("path", s.file.Name()),
		zap.Int("chunks", s.chunks))
	return nil
}
