package mixer

import "time"

// Chunk is one 20 ms block of mixed output: FrameSize interleaved stereo
// frames of float32 in [-1, 1]. Chunks are emitted in order with timestamps
// exactly ChunkDuration apart, starting at zero after Start().
//
// The sample slice is owned by the receiver; the engine never reuses it.
type Chunk struct {
	Frames    int
	Channels  int
	Samples   []float32
	Timestamp time.Duration
}

// ChunkSink receives every mixed chunk. A returned error is logged and
// surfaced as a diagnostic but never stops the scheduler.
type ChunkSink func(Chunk) error

// ErrorSink observes non-fatal pipeline diagnostics.
type ErrorSink func(error)
