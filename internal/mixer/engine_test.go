package mixer

import (
	"errors"
	"math"
	"math/cmplx"
	"sync"
	"testing"
	"time"

	"github.com/mjibson/go-dsp/fft"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sonarkit/livemix/internal/config"
	"github.com/sonarkit/livemix/pkg/pcm"
)

// chunkRecorder collects emitted chunks and can simulate sink failures.
type chunkRecorder struct {
	mu     sync.Mutex
	chunks []Chunk
	fail   error
}

func (r *chunkRecorder) sink(c Chunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.chunks = append(r.chunks, c)
	return nil
}

func (r *chunkRecorder) recorded() []Chunk {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Chunk, len(r.chunks))
	copy(out, r.chunks)
	return out
}

func (r *chunkRecorder) setFail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail = err
}

func testMixerConfig() *config.MixerConfig {
	return &config.MixerConfig{
		System:           config.SourceConfig{Enabled: true, Gain: 1.0},
		Microphone:       config.SourceConfig{Enabled: true, Gain: 1.0},
		BufferCapSeconds: 5,
	}
}

func newTestEngine(rec *chunkRecorder, opts ...Option) *Engine {
	return NewEngine(zap.NewNop(), testMixerConfig(), rec.sink, opts...)
}

// activate puts the engine in the active state without launching the
// ticker goroutine, so tests can drive ticks deterministically.
func activate(e *Engine) {
	e.mu.Lock()
	e.state = StateActive
	e.timestamp = 0
	e.mu.Unlock()
}

// sineBlock builds a float32 stereo 48 kHz block with the same sine on
// both channels.
func sineBlock(freq float64, amp float32, frames int) Block {
	samples := make([]float32, frames*Channels)
	for i := 0; i < frames; i++ {
		v := amp * float32(math.Sin(2*math.Pi*freq*float64(i)/SampleRate))
		samples[2*i], samples[2*i+1] = v, v
	}
	return Block{
		Format: BlockFormat{SampleRate: SampleRate, Channels: Channels, BitsPerSample: 32, Float: true},
		Data:   pcm.Float32ToLE(samples),
	}
}

func constBlock(value float32, frames int) Block {
	samples := make([]float32, frames*Channels)
	for i := range samples {
		samples[i] = value
	}
	return Block{
		Format: BlockFormat{SampleRate: SampleRate, Channels: Channels, BitsPerSample: 32, Float: true},
		Data:   pcm.Float32ToLE(samples),
	}
}

func TestLifecycleTransitions(t *testing.T) {
	rec := &chunkRecorder{}
	e := newTestEngine(rec)

	assert.Equal(t, StateIdle, e.CurrentState())

	// Pause and resume are no-ops while idle.
	e.Pause()
	assert.Equal(t, StateIdle, e.CurrentState())
	e.Resume()
	assert.Equal(t, StateIdle, e.CurrentState())

	e.Start()
	assert.Equal(t, StateActive, e.CurrentState())

	// Start while active is idempotent.
	e.Start()
	assert.Equal(t, StateActive, e.CurrentState())

	e.Pause()
	assert.Equal(t, StatePaused, e.CurrentState())

	// Pausing twice stays paused.
	e.Pause()
	assert.Equal(t, StatePaused, e.CurrentState())

	e.Resume()
	assert.Equal(t, StateActive, e.CurrentState())

	e.Stop()
	assert.Equal(t, StateIdle, e.CurrentState())

	// Stop while idle is a no-op.
	e.Stop()
	assert.Equal(t, StateIdle, e.CurrentState())
}

func TestStopFromPaused(t *testing.T) {
	rec := &chunkRecorder{}
	e := newTestEngine(rec)

	e.Start()
	e.Pause()
	e.Stop()
	assert.Equal(t, StateIdle, e.CurrentState())
}

func TestSilenceInvariant(t *testing.T) {
	rec := &chunkRecorder{}
	e := newTestEngine(rec)
	activate(e)

	// Both sources enabled but empty: the chunk is exact digital silence.
	e.tick()

	chunks := rec.recorded()
	require.Len(t, chunks, 1)
	require.Len(t, chunks[0].Samples, ChunkSamples)
	for i, s := range chunks[0].Samples {
		require.Zero(t, s, "sample %d", i)
	}
}

func TestDisabledSourceMixesAsSilence(t *testing.T) {
	rec := &chunkRecorder{}
	e := newTestEngine(rec)
	activate(e)

	e.PushSystemAudio(constBlock(0.5, FrameSize))
	e.SetSourceEnabled(SourceSystem, false)
	e.tick()

	chunks := rec.recorded()
	require.Len(t, chunks, 1)
	for _, s := range chunks[0].Samples {
		require.Zero(t, s)
	}
}

func TestGainLinearity(t *testing.T) {
	rec := &chunkRecorder{}
	e := newTestEngine(rec)
	activate(e)

	e.SetGain(SourceSystem, 0.5)
	e.PushSystemAudio(constBlock(0.3, FrameSize))
	e.tick()

	chunks := rec.recorded()
	require.Len(t, chunks, 1)
	for _, s := range chunks[0].Samples {
		assert.InDelta(t, 0.15, s, 1e-6)
	}
}

func TestGainUnclampedOnInput(t *testing.T) {
	rec := &chunkRecorder{}
	e := newTestEngine(rec)
	activate(e)

	// Gain above 1 is accepted; only the final mix is clamped.
	e.SetGain(SourceSystem, 4.0)
	e.PushSystemAudio(constBlock(0.5, FrameSize))
	e.tick()

	chunks := rec.recorded()
	require.Len(t, chunks, 1)
	for _, s := range chunks[0].Samples {
		assert.Equal(t, float32(1.0), s)
	}
}

func TestClampingTwoFullScaleSources(t *testing.T) {
	rec := &chunkRecorder{}
	e := newTestEngine(rec)
	activate(e)

	// Two in-phase full-scale sources must clamp to exactly ±1.
	e.PushSystemAudio(sineBlock(440, 1.0, FrameSize))
	e.PushMicrophoneAudio(sineBlock(440, 1.0, FrameSize))
	e.tick()

	chunks := rec.recorded()
	require.Len(t, chunks, 1)
	for _, s := range chunks[0].Samples {
		assert.LessOrEqual(t, s, float32(1.0))
		assert.GreaterOrEqual(t, s, float32(-1.0))
	}

	// The peaks really do hit the rails rather than folding over.
	var peak float32
	for _, s := range chunks[0].Samples {
		if s > peak {
			peak = s
		}
	}
	assert.Equal(t, float32(1.0), peak)
}

func TestChunkSizeAndTimestampMonotonicity(t *testing.T) {
	rec := &chunkRecorder{}
	e := newTestEngine(rec)
	activate(e)

	for i := 0; i < 10; i++ {
		e.tick()
	}

	chunks := rec.recorded()
	require.Len(t, chunks, 10)
	for i, c := range chunks {
		assert.Equal(t, FrameSize, c.Frames)
		assert.Equal(t, Channels, c.Channels)
		assert.Len(t, c.Samples, ChunkSamples)
		assert.Equal(t, time.Duration(i)*ChunkDuration, c.Timestamp)
	}
}

func TestUnderrunSubstitutesSilence(t *testing.T) {
	rec := &chunkRecorder{}
	e := newTestEngine(rec)
	activate(e)

	// Half a chunk buffered: take() refuses partial reads, the tick mixes
	// silence and the partial data stays queued for the next tick.
	e.PushSystemAudio(constBlock(0.5, FrameSize/2))
	e.tick()

	chunks := rec.recorded()
	require.Len(t, chunks, 1)
	for _, s := range chunks[0].Samples {
		require.Zero(t, s)
	}

	// Topping up completes a full chunk on the following tick.
	e.PushSystemAudio(constBlock(0.5, FrameSize/2))
	e.tick()

	chunks = rec.recorded()
	require.Len(t, chunks, 2)
	assert.InDelta(t, 0.5, chunks[1].Samples[0], 1e-6)
}

func TestPauseRetainsBufferedAudio(t *testing.T) {
	rec := &chunkRecorder{}
	e := newTestEngine(rec)
	activate(e)

	e.Pause()
	e.PushSystemAudio(constBlock(0.25, FrameSize))

	// No emission while paused.
	e.tick()
	assert.Empty(t, rec.recorded())

	e.Resume()
	e.tick()

	chunks := rec.recorded()
	require.Len(t, chunks, 1)
	assert.InDelta(t, 0.25, chunks[0].Samples[0], 1e-6)
}

func TestStopClearsBuffers(t *testing.T) {
	rec := &chunkRecorder{}
	e := newTestEngine(rec)

	e.Start()
	e.PushSystemAudio(constBlock(0.5, FrameSize*4))
	e.Stop()

	// A fresh session must not replay audio from before the stop.
	activate(e)
	e.tick()

	chunks := rec.recorded()
	require.NotEmpty(t, chunks)
	last := chunks[len(chunks)-1]
	for _, s := range last.Samples {
		require.Zero(t, s)
	}
}

func TestSinkFailureDoesNotStopScheduler(t *testing.T) {
	rec := &chunkRecorder{}
	var diagnostics []error
	e := newTestEngine(rec, WithErrorSink(func(err error) {
		diagnostics = append(diagnostics, err)
	}))
	activate(e)

	rec.setFail(errors.New("encoder hiccup"))
	e.tick()
	rec.setFail(nil)
	e.tick()

	// The failed delivery is reported, the next tick still lands.
	require.Len(t, rec.recorded(), 1)
	require.NotEmpty(t, diagnostics)
	var cde *ChunkDeliveryError
	assert.ErrorAs(t, diagnostics[0], &cde)
}

func TestMalformedBlockDoesNotStopPipeline(t *testing.T) {
	rec := &chunkRecorder{}
	var diagnostics []error
	e := newTestEngine(rec, WithErrorSink(func(err error) {
		diagnostics = append(diagnostics, err)
	}))
	activate(e)

	e.PushSystemAudio(Block{
		Format: BlockFormat{SampleRate: SampleRate, Channels: 2, BitsPerSample: 24},
		Data:   make([]byte, 96),
	})
	e.PushSystemAudio(constBlock(0.5, FrameSize))
	e.tick()

	var ufe *UnsupportedFormatError
	require.NotEmpty(t, diagnostics)
	assert.ErrorAs(t, diagnostics[0], &ufe)

	// The good block after the bad one still mixed.
	chunks := rec.recorded()
	require.Len(t, chunks, 1)
	assert.InDelta(t, 0.5, chunks[0].Samples[0], 1e-6)
}

func TestMixedToneSurvivesSpectrally(t *testing.T) {
	rec := &chunkRecorder{}
	e := newTestEngine(rec)
	activate(e)

	const toneHz = 440.0
	e.PushSystemAudio(sineBlock(toneHz, 0.5, FrameSize*10))
	for i := 0; i < 10; i++ {
		e.tick()
	}

	chunks := rec.recorded()
	require.Len(t, chunks, 10)

	// Concatenate the left channel and find the dominant frequency bin.
	var left []float64
	for _, c := range chunks {
		for i := 0; i < c.Frames; i++ {
			left = append(left, float64(c.Samples[i*Channels]))
		}
	}
	spectrum := fft.FFTReal(left)

	peakBin := 0
	var peakMag float64
	for k := 1; k < len(spectrum)/2; k++ {
		if mag := cmplx.Abs(spectrum[k]); mag > peakMag {
			peakMag = mag
			peakBin = k
		}
	}

	binHz := float64(SampleRate) / float64(len(left))
	assert.InDelta(t, toneHz, float64(peakBin)*binHz, binHz*2)
}

// TestLiveRecordingScenario runs the engine against the wall clock: a
// 200 ms tone pushed up front must come out as at least nine non-silent,
// full-sized, bounded-amplitude chunks.
func TestLiveRecordingScenario(t *testing.T) {
	rec := &chunkRecorder{}
	e := newTestEngine(rec)

	e.PushSystemAudio(sineBlock(440, 0.3, SampleRate/5)) // 200 ms
	e.Start()
	time.Sleep(300 * time.Millisecond)
	e.Stop()

	chunks := rec.recorded()
	nonSilent := 0
	for _, c := range chunks {
		require.Len(t, c.Samples, ChunkSamples)

		var peak float32
		for _, s := range c.Samples {
			if s > peak {
				peak = s
			}
			if -s > peak {
				peak = -s
			}
		}
		assert.LessOrEqual(t, peak, float32(0.31))
		if peak > 0.01 {
			nonSilent++
		}
	}
	assert.GreaterOrEqual(t, nonSilent, 9)

	// Timestamps advance by exactly one chunk duration.
	for i := 1; i < len(chunks); i++ {
		assert.Equal(t, ChunkDuration, chunks[i].Timestamp-chunks[i-1].Timestamp)
	}
}

// TestStartWhileStopDraining covers Stop racing a restart: a tick is held
// inside the sink while Stop drains, and Start arrives after the state has
// flipped to idle but before the drain completes. Stop must still return
// once its own session's tick finishes, not wait on a later session.
func TestStartWhileStopDraining(t *testing.T) {
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	blockingSink := func(Chunk) error {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
		return nil
	}
	e := NewEngine(zap.NewNop(), testMixerConfig(), blockingSink)

	e.Start()
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("no tick reached the sink")
	}

	stopDone := make(chan struct{})
	go func() {
		e.Stop()
		close(stopDone)
	}()

	// Wait for Stop to flip the state, then try to restart while its tick
	// is still stuck inside the sink.
	require.Eventually(t, func() bool {
		return e.CurrentState() == StateIdle
	}, 2*time.Second, time.Millisecond)
	e.Start()

	close(release)
	select {
	case <-stopDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after its in-flight tick drained")
	}

	// The interleaved Start was a no-op; a fresh session works normally.
	assert.Equal(t, StateIdle, e.CurrentState())
	e.Start()
	assert.Equal(t, StateActive, e.CurrentState())
	e.Stop()
	assert.Equal(t, StateIdle, e.CurrentState())
}

// The tick and the control setters must not wait behind an in-flight
// format conversion on the producer path.
func TestControlPathIndependentOfNormalization(t *testing.T) {
	rec := &chunkRecorder{}
	e := newTestEngine(rec)
	activate(e)

	// A producer mid-Normalize holds the normalizer lock.
	s := e.sources[SourceSystem]
	s.normMu.Lock()
	defer s.normMu.Unlock()

	done := make(chan struct{})
	go func() {
		e.SetGain(SourceSystem, 0.5)
		e.SetSourceEnabled(SourceMicrophone, false)
		e.tick()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("control path blocked behind an in-flight normalization")
	}
	require.Len(t, rec.recorded(), 1)
}

func TestConcurrentPushDuringTicks(t *testing.T) {
	rec := &chunkRecorder{}
	e := newTestEngine(rec)
	e.Start()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			e.PushSystemAudio(sineBlock(440, 0.2, FrameSize))
			time.Sleep(5 * time.Millisecond)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			e.PushMicrophoneAudio(sineBlock(880, 0.2, FrameSize))
			time.Sleep(5 * time.Millisecond)
		}
	}()
	wg.Wait()

	// Stop concurrently with whatever tick is in flight.
	e.Stop()

	emitted := len(rec.recorded())
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, emitted, len(rec.recorded()), "no chunks after Stop returned")
}
