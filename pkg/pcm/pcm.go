// Package pcm provides sample-format conversions shared by the capture,
// mixing and encoding layers.
package pcm

import (
	"encoding/binary"
	"math"
)

// Int16ToFloat32 converts 16-bit integer samples to normalized float32.
// Full-scale negative (-32768) maps to -1.0.
func Int16ToFloat32(in []int16) []float32 {
	out := make([]float32, len(in))
	for i, s := range in {
		out[i] = float32(s) / 32768.0
	}
	return out
}

// Float32ToInt16 converts normalized float32 samples to 16-bit integers
// with saturation.
func Float32ToInt16(in []float32) []int16 {
	out := make([]int16, len(in))
	for i, s := range in {
		scaled := s * 32768.0
		if scaled > 32767 {
			scaled = 32767
		} else if scaled < -32768 {
			scaled = -32768
		}
		out[i] = int16(scaled)
	}
	return out
}

// Int16FromLE decodes little-endian 16-bit PCM bytes. Trailing odd bytes
// are ignored.
func Int16FromLE(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return out
}

// Int16ToLE encodes 16-bit PCM samples as little-endian bytes.
func Int16ToLE(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// Float32FromLE decodes little-endian IEEE-754 32-bit float PCM bytes.
func Float32FromLE(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

// Float32ToLE encodes float32 PCM samples as little-endian bytes.
func Float32ToLE(samples []float32) []byte {
	out := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(s))
	}
	return out
}
