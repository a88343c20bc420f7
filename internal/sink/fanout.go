// Package sink provides encoder sinks for the mixed audio stream.
package sink

import (
	"errors"

	"go.uber.org/zap"

	"github.com/sonarkit/livemix/internal/mixer"
)

// Sink consumes mixed chunks. Implementations must tolerate being called
// once every 20 ms for the lifetime of a recording.
type Sink interface {
	Write(mixer.Chunk) error
	Close() error
}

// Fanout delivers every chunk to all member sinks. One sink failing does
// not prevent delivery to the others; the errors are joined.
type Fanout struct {
	logger *zap.Logger
	sinks  []Sink
}

func NewFanout(logger *zap.Logger, sinks ...Sink) *Fanout {
	return &Fanout{logger: logger, sinks: sinks}
}

func (f *Fanout) Write(c mixer.Chunk) error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Write(c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *Fanout) Close() error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
