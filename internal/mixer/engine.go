package mixer

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/sonarkit/livemix/internal/config"
)

// Source identifies one of the two capture inputs.
type Source int

const (
	SourceSystem Source = iota
	SourceMicrophone

	numSources = 2
)

func (s Source) String() string {
	switch s {
	case SourceSystem:
		return "system"
	case SourceMicrophone:
		return "microphone"
	default:
		return "unknown"
	}
}

// State is the engine lifecycle state.
type State int

const (
	StateIdle State = iota
	StateActive
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// How long before an identical diagnostic is logged again.
const diagRepeatInterval = 5 * time.Second

// sourceState owns everything belonging to one input: enablement, linear
// gain, the normalizer (with its resampler state) and the sample queue.
// Only the engine touches it; callers go through the engine setters.
//
// The control fields and the normalizer have separate locks so the
// scheduler tick and the gain/enable setters never wait behind an
// in-flight format conversion on the producer path.
type sourceState struct {
	normMu sync.Mutex // serializes Normalize calls per source
	norm   *Normalizer

	ctlMu   sync.Mutex
	enabled bool
	gain    float32

	buf *ringBuffer
}

// Engine mixes the system-audio and microphone sources into a single
// timeline-continuous stream of fixed 20 ms chunks.
//
// Producers push raw blocks asynchronously; a dedicated ticker goroutine
// pulls FrameSize frames from each enabled source every ChunkDuration,
// substituting silence on underrun so the output cadence never depends on
// producer arrival jitter. Per-source gain is applied before summing and
// the sum is hard-clamped to [-1, 1].
type Engine struct {
	logger *zap.Logger
	sink   ChunkSink
	errs   ErrorSink

	mu        sync.Mutex
	state     State
	timestamp time.Duration
	stopCh    chan struct{}
	stopping  bool // a Stop is draining the previous session
	wg        sync.WaitGroup

	sources [numSources]*sourceState

	// Rate-limits repeated identical diagnostics from a misbehaving
	// producer so they cannot flood the log.
	diagSeen *lru.Cache[string, time.Time]
}

// Option customizes engine construction.
type Option func(*Engine)

// WithErrorSink installs an observer for non-fatal diagnostics. The
// observer is invoked inline from producer and scheduler contexts and must
// not block.
func WithErrorSink(errs ErrorSink) Option {
	return func(e *Engine) { e.errs = errs }
}

// NewEngine builds an idle engine. sink receives every emitted chunk.
func NewEngine(logger *zap.Logger, cfg *config.MixerConfig, sink ChunkSink, opts ...Option) *Engine {
	capSeconds := cfg.BufferCapSeconds
	if capSeconds <= 0 {
		capSeconds = config.DefaultBufferCapSeconds
	}
	capSamples := capSeconds * SampleRate * Channels

	diagSeen, _ := lru.New[string, time.Time](64)

	e := &Engine{
		logger:   logger,
		sink:     sink,
		diagSeen: diagSeen,
	}
	e.sources[SourceSystem] = &sourceState{
		enabled: cfg.System.Enabled,
		gain:    cfg.System.Gain,
		norm:    NewNormalizer(),
		buf:     newRingBuffer(capSamples),
	}
	e.sources[SourceMicrophone] = &sourceState{
		enabled: cfg.Microphone.Enabled,
		gain:    cfg.Microphone.Gain,
		norm:    NewNormalizer(),
		buf:     newRingBuffer(capSamples),
	}

	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start moves idle → active and begins the tick loop. Calling Start while
// already active or paused is a no-op, as is a Start that lands while a
// concurrent Stop is still draining the previous session.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateIdle || e.stopping {
		return
	}
	e.state = StateActive
	e.timestamp = 0
	e.stopCh = make(chan struct{})

	e.wg.Add(1)
	go e.run(e.stopCh)

	e.logger.Info("mixing engine started",
		zap.Int("sample_rate", SampleRate),
		zap.Int("frames_per_chunk", FrameSize),
		zap.Duration("chunk_duration", ChunkDuration))
}

// Stop returns to idle from any state and clears both source buffers.
// Safe to call concurrently with in-flight ticks and pushes; once Stop
// returns, no further chunks are emitted and the buffers are empty.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.state == StateIdle {
		e.mu.Unlock()
		return
	}
	e.state = StateIdle
	e.stopping = true
	stopCh := e.stopCh
	e.stopCh = nil
	e.mu.Unlock()

	// An in-flight tick may be blocked inside the sink; the stopping flag
	// keeps Start from registering a new session on the WaitGroup until
	// this drain completes.
	close(stopCh)
	e.wg.Wait()

	for _, src := range e.sources {
		src.buf.clear()
		src.normMu.Lock()
		src.norm.Reset()
		src.normMu.Unlock()
	}

	e.mu.Lock()
	e.stopping = false
	e.mu.Unlock()

	e.logger.Info("mixing engine stopped")
}

// Pause suspends chunk emission. Incoming pushes keep accumulating so no
// audio is lost; Resume drains them normally. Pausing while not active is
// a no-op.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateActive {
		return
	}
	e.state = StatePaused
	e.logger.Info("mixing engine paused")
}

// Resume continues emission after Pause. A no-op unless paused.
func (e *Engine) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StatePaused {
		return
	}
	e.state = StateActive
	e.logger.Info("mixing engine resumed")
}

// CurrentState reports the lifecycle state.
func (e *Engine) CurrentState() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// SetSourceEnabled toggles a source. A disabled source mixes as silence;
// its buffer keeps accepting pushes.
func (e *Engine) SetSourceEnabled(src Source, enabled bool) {
	s := e.source(src)
	if s == nil {
		return
	}
	s.ctlMu.Lock()
	s.enabled = enabled
	s.ctlMu.Unlock()
	e.logger.Debug("source toggled", zap.Stringer("source", src), zap.Bool("enabled", enabled))
}

// SetGain sets a source's linear gain. Values are deliberately unclamped;
// only the final mix is clamped.
func (e *Engine) SetGain(src Source, gain float32) {
	s := e.source(src)
	if s == nil {
		return
	}
	s.ctlMu.Lock()
	s.gain = gain
	s.ctlMu.Unlock()
	e.logger.Debug("source gain set", zap.Stringer("source", src), zap.Float32("gain", gain))
}

// PushSystemAudio ingests a raw block from the system-audio collaborator.
func (e *Engine) PushSystemAudio(b Block) {
	e.push(SourceSystem, b)
}

// PushMicrophoneAudio ingests a raw block from the microphone collaborator.
func (e *Engine) PushMicrophoneAudio(b Block) {
	e.push(SourceMicrophone, b)
}

func (e *Engine) push(src Source, b Block) {
	// Blocks are accepted in every state so audio captured just before
	// start() or during a pause is not lost; stop() empties the buffers
	// after the fact.
	s := e.source(src)
	if s == nil {
		e.diagnostic(ErrBufferAccess)
		return
	}

	s.normMu.Lock()
	samples, err := s.norm.Normalize(b)
	s.normMu.Unlock()
	if err != nil {
		if err == ErrEmptyBlock {
			// No-op by contract, not a failure.
			e.logger.Debug("empty block", zap.Stringer("source", src))
			return
		}
		e.diagnostic(err)
		return
	}
	if len(samples) == 0 {
		// Resampler is still priming; nothing to queue yet.
		return
	}

	if dropped := s.buf.push(samples); dropped > 0 {
		e.diagnostic(&OverflowError{Source: src, Dropped: dropped})
	}
}

func (e *Engine) source(src Source) *sourceState {
	if src < 0 || int(src) >= numSources {
		return nil
	}
	return e.sources[src]
}

// run is the scheduler loop. It lives from Start to Stop and owns the
// output cadence: one tick every ChunkDuration, independent of producers.
func (e *Engine) run(stopCh chan struct{}) {
	defer e.wg.Done()

	ticker := time.NewTicker(ChunkDuration)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			e.tick()
		}
	}
}

// tick mixes and emits exactly one chunk, or nothing while paused.
func (e *Engine) tick() {
	e.mu.Lock()
	if e.state != StateActive {
		e.mu.Unlock()
		return
	}
	ts := e.timestamp
	e.timestamp += ChunkDuration
	e.mu.Unlock()

	mix := make([]float32, ChunkSamples)

	for _, s := range e.sources {
		s.ctlMu.Lock()
		enabled := s.enabled
		gain := s.gain
		s.ctlMu.Unlock()

		if !enabled {
			continue // mixes as silence
		}
		samples := s.buf.take(FrameSize)
		if samples == nil {
			// Underrun: substitute silence rather than block, so the
			// timeline keeps advancing at a constant rate.
			continue
		}
		for i, v := range samples {
			mix[i] += v * gain
		}
	}

	// Hard clip to the canonical amplitude range.
	for i, v := range mix {
		if v > 1.0 {
			mix[i] = 1.0
		} else if v < -1.0 {
			mix[i] = -1.0
		}
	}

	chunk := Chunk{
		Frames:    FrameSize,
		Channels:  Channels,
		Samples:   mix,
		Timestamp: ts,
	}

	if err := e.sink(chunk); err != nil {
		// A single chunk's delivery failure must not halt the scheduler.
		e.diagnostic(&ChunkDeliveryError{Err: err})
	}
}

// diagnostic forwards a non-fatal error to the observer and logs it,
// suppressing repeats of the same message within diagRepeatInterval.
func (e *Engine) diagnostic(err error) {
	if e.errs != nil {
		e.errs(err)
	}

	key := err.Error()
	now := time.Now()
	if last, ok := e.diagSeen.Get(key); ok && now.Sub(last) < diagRepeatInterval {
		return
	}
	e.diagSeen.Add(key, now)
	e.logger.Warn("pipeline diagnostic", zap.Error(err))
}
