package sink

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"layeh.com/gopus"

	"github.com/sonarkit/livemix/internal/mixer"
	"github.com/sonarkit/livemix/pkg/pcm"
)

// Conservative upper bound for a single encoded packet.
const maxOpusPacketBytes = 4000

// OpusSink encodes mixed chunks as Opus packets and writes them to a file
// as a length-prefixed packet stream (uint32 little-endian byte count, then
// the packet). Each 960-frame stereo chunk maps to exactly one packet.
type OpusSink struct {
	logger  *zap.Logger
	w       io.WriteCloser
	enc     *gopus.Encoder
	path    string
	packets int
}

// NewOpusSink creates the output file and an encoder tuned for speech at
// the given bitrate.
func NewOpusSink(logger *zap.Logger, path string, bitrate int) (*OpusSink, error) {
	enc, err := gopus.NewEncoder(mixer.SampleRate, mixer.Channels, gopus.Voip)
	if err != nil {
		return nil, fmt.Errorf("create opus encoder: %w", err)
	}
	enc.SetBitrate(bitrate)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create opus output: %w", err)
	}

	return &OpusSink{
		logger: logger,
		w:      f,
		enc:    enc,
		path:   path,
	}, nil
}

// Write encodes one chunk into one packet.
func (s *OpusSink) Write(c mixer.Chunk) error {
	if len(c.Samples) != mixer.ChunkSamples {
		return fmt.Errorf("opus sink: need %d samples, got %d", mixer.ChunkSamples, len(c.Samples))
	}

	packet, err := s.enc.Encode(pcm.Float32ToInt16(c.Samples), mixer.FrameSize, maxOpusPacketBytes)
	if err != nil {
		return fmt.Errorf("opus encode: %w", err)
	}

	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(packet)))
	if _, err := s.w.Write(hdr[:]); err != nil {
		return fmt.Errorf("opus write: %w", err)
	}
	if _, err := s.w.Write(packet); err != nil {
		return fmt.Errorf("opus write: %w", err)
	}
	s.packets++
	return nil
}

// Close closes the packet stream.
func (s *OpusSink) Close() error {
	if err := s.w.Close(); err != nil {
		return fmt.Errorf("close opus file: %w", err)
	}
	s.logger.Info("opus stream closed",
		zap.String("path", s.path),
		zap.Int("packets", s.packets))
	return nil
}
