package mixer

import (
	"github.com/sonarkit/livemix/pkg/pcm"
)

// Normalizer converts raw capture blocks into the canonical internal
// representation: interleaved float32 stereo at 48 kHz.
//
// One Normalizer serves one source. The resampler keeps its fractional
// phase and the last input frame between calls, so successive blocks from
// the same source resample with phase continuity instead of restarting at
// every block boundary.
type Normalizer struct {
	srcRate float64
	phase   float64
	prev    [Channels]float32
	hasPrev bool
}

// NewNormalizer returns a normalizer with empty resampler state.
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Normalize converts one raw block. The returned slice is freshly
// allocated, interleaved stereo, and always a multiple of Channels long.
//
// Failure modes follow the diagnostic taxonomy: ErrEmptyBlock for a
// zero-length payload, UnsupportedFormatError / InvalidFormatError /
// InsufficientDataError for malformed descriptors. All of them mean
// "drop this block and keep going".
func (n *Normalizer) Normalize(b Block) ([]float32, error) {
	if len(b.Data) == 0 {
		return nil, ErrEmptyBlock
	}

	format, err := b.Format.ResolveSampleFormat()
	if err != nil {
		return nil, err
	}
	if b.Format.Channels != 1 && b.Format.Channels != 2 {
		return nil, &InvalidFormatError{Reason: "channel count must be 1 or 2"}
	}
	if b.Format.SampleRate <= 0 {
		return nil, &InvalidFormatError{Reason: "sample rate must be positive"}
	}

	stride := format.bytesPerSample() * b.Format.Channels
	if len(b.Data)%stride != 0 {
		return nil, &InsufficientDataError{Expected: stride, Actual: len(b.Data)}
	}

	var samples []float32
	switch format {
	case FormatInt16:
		samples = pcm.Int16ToFloat32(pcm.Int16FromLE(b.Data))
	case FormatFloat32:
		samples = pcm.Float32FromLE(b.Data)
	}

	if b.Format.Channels == 1 {
		samples = monoToStereo(samples)
	}

	return n.resample(samples, b.Format.SampleRate), nil
}

// Reset discards resampler state. Used when a source restarts so stale
// phase does not bleed into a new capture session.
func (n *Normalizer) Reset() {
	n.srcRate = 0
	n.phase = 0
	n.hasPrev = false
}

// monoToStereo duplicates each mono sample into both channels. Plain
// doubling, no stereo-field shaping.
func monoToStereo(mono []float32) []float32 {
	out := make([]float32, len(mono)*2)
	for i, s := range mono {
		out[2*i], out[2*i+1] = s, s
	}
	return out
}

// resample converts interleaved stereo frames from srcRate to SampleRate
// by linear interpolation. The previous block's final frame is kept so the
// interpolation window spans block boundaries.
func (n *Normalizer) resample(in []float32, srcRate int) []float32 {
	if srcRate == SampleRate {
		return in
	}
	if n.srcRate != float64(srcRate) {
		// Rate change mid-stream: restart phase tracking.
		n.srcRate = float64(srcRate)
		n.phase = 0
		n.hasPrev = false
	}

	// Source timeline including the carried-over frame.
	src := in
	if n.hasPrev {
		src = make([]float32, 0, Channels+len(in))
		src = append(src, n.prev[:]...)
		src = append(src, in...)
	}
	frames := len(src) / Channels
	if frames < 2 {
		// Not enough frames to interpolate yet; hold the frame for the
		// next block.
		if frames == 1 {
			copy(n.prev[:], src[:Channels])
			n.hasPrev = true
		}
		return nil
	}

	step := n.srcRate / float64(SampleRate)
	out := make([]float32, 0, (int(float64(frames)/step)+2)*Channels)

	pos := n.phase
	for int(pos)+1 < frames {
		i := int(pos)
		frac := float32(pos - float64(i))
		for c := 0; c < Channels; c++ {
			a := src[i*Channels+c]
			b := src[(i+1)*Channels+c]
			out = append(out, a+(b-a)*frac)
		}
		pos += step
	}

	// Keep the final frame and the phase relative to it for the next block.
	copy(n.prev[:], src[(frames-1)*Channels:])
	n.hasPrev = true
	n.phase = pos - float64(frames-1)

	return out
}
