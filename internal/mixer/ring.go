package mixer

import "sync"

// ringBuffer queues normalized interleaved stereo samples between one
// producer (the capture delivery context) and one consumer (the scheduler
// tick). The lock is held only for the append/drain itself, never across
// format conversion or mixing.
//
// The stored sample count is always a multiple of Channels. When a cap is
// set and production outruns consumption, the oldest samples are dropped so
// the live timeline stays current; the drop count is reported to the caller.
type ringBuffer struct {
	mu      sync.Mutex
	samples []float32
	head    int // index of first valid sample
	max     int // cap in samples, 0 = unbounded
}

func newRingBuffer(maxSamples int) *ringBuffer {
	// Round the cap down to whole frames.
	maxSamples -= maxSamples % Channels
	return &ringBuffer{max: maxSamples}
}

// push appends samples and returns how many old samples were dropped to
// stay under the cap.
func (r *ringBuffer) push(s []float32) int {
	if len(s) == 0 {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.samples = append(r.samples, s...)

	dropped := 0
	if r.max > 0 {
		if over := r.len() - r.max; over > 0 {
			over += over % Channels // keep frame alignment
			if over > r.len() {
				over = r.len()
			}
			r.head += over
			dropped = over
		}
	}
	r.compact()
	return dropped
}

// take removes and returns exactly frames*Channels samples, or nil when
// fewer are buffered. It never partially satisfies a request and never
// blocks; the caller substitutes silence on nil.
func (r *ringBuffer) take(frames int) []float32 {
	want := frames * Channels

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.len() < want {
		return nil
	}
	out := make([]float32, want)
	copy(out, r.samples[r.head:r.head+want])
	r.head += want
	r.compact()
	return out
}

// clear discards everything buffered.
func (r *ringBuffer) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = r.samples[:0]
	r.head = 0
}

// buffered returns the current sample count.
func (r *ringBuffer) buffered() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.len()
}

func (r *ringBuffer) len() int { return len(r.samples) - r.head }

// compact reclaims the consumed prefix once it dominates the backing array,
// keeping amortized push cost constant.
func (r *ringBuffer) compact() {
	if r.head == 0 {
		return
	}
	if r.head >= len(r.samples) {
		r.samples = r.samples[:0]
		r.head = 0
		return
	}
	if r.head > len(r.samples)/2 {
		n := copy(r.samples, r.samples[r.head:])
		r.samples = r.samples[:n]
		r.head = 0
	}
}
