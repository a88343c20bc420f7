package mixer

import "time"

// Canonical output format. Downstream consumers (encoders, speech engines)
// depend on these exact values.
const (
	SampleRate = 48_000 // Hz
	Channels   = 2      // interleaved stereo
	FrameSize  = 960    // frames per chunk (20 ms)

	ChunkDuration = 20 * time.Millisecond
	ChunkSamples  = FrameSize * Channels
)
