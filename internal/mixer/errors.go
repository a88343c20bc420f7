package mixer

import (
	"errors"
	"fmt"
)

// Diagnostics are non-fatal: every error below is surfaced to the engine's
// ErrorSink and logged, and the tick cadence continues. None of them unwind
// the pipeline.

// ErrEmptyBlock signals a zero-length input block. Pushing one is a no-op.
var ErrEmptyBlock = errors.New("empty sample block")

// ErrBufferAccess signals that a source buffer could not be used, e.g. a
// push after the owning engine discarded it.
var ErrBufferAccess = errors.New("source buffer access failed")

// UnsupportedFormatError reports a raw block whose format flags fall outside
// the supported 16-bit-int / 32-bit-float interleaved set.
type UnsupportedFormatError struct {
	Float          bool
	BitsPerSample  int
	NonInterleaved bool
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported sample format: float=%t bits=%d nonInterleaved=%t",
		e.Float, e.BitsPerSample, e.NonInterleaved)
}

// InvalidFormatError reports a block descriptor that is internally
// inconsistent (bad channel count, nonsensical sample rate).
type InvalidFormatError struct {
	Reason string
}

func (e *InvalidFormatError) Error() string {
	return "invalid block format: " + e.Reason
}

// InsufficientDataError reports a block whose payload is shorter than its
// descriptor implies (truncated frame).
type InsufficientDataError struct {
	Expected int // bytes
	Actual   int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient block data: expected multiple of %d bytes, got %d", e.Expected, e.Actual)
}

// ChunkDeliveryError wraps a sink failure for a single emitted chunk.
type ChunkDeliveryError struct {
	Err error
}

func (e *ChunkDeliveryError) Error() string {
	return fmt.Sprintf("chunk delivery failed: %v", e.Err)
}

func (e *ChunkDeliveryError) Unwrap() error { return e.Err }

// OverflowError reports oldest-sample drops on a capped source buffer.
type OverflowError struct {
	Source  Source
	Dropped int // samples
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("source %s buffer overflow: dropped %d oldest samples", e.Source, e.Dropped)
}
