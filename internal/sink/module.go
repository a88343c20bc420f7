package sink

import (
	"context"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/sonarkit/livemix/internal/config"
	"github.com/sonarkit/livemix/internal/mixer"
)

var Module = fx.Module("sink",
	fx.Provide(
		NewRecorderSink,
		NewChunkSink,
	),
)

// NewRecorderSinkParams holds dependencies for NewRecorderSink.
type NewRecorderSinkParams struct {
	fx.In
	Logger *zap.Logger
	Cfg    *config.Config
	LC     fx.Lifecycle
}

// NewRecorderSink assembles the configured encoder sinks behind a fanout
// and ties their Close to application shutdown.
func NewRecorderSink(params NewRecorderSinkParams) (Sink, error) {
	var sinks []Sink

	if path := params.Cfg.Output.WAVPath; path != "" {
		w, err := NewWAVSink(params.Logger, path)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, w)
		params.Logger.Info("wav sink enabled", zap.String("path", path))
	}

	if path := params.Cfg.Output.OpusPath; path != "" {
		o, err := NewOpusSink(params.Logger, path, params.Cfg.Output.OpusBitrate)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, o)
		params.Logger.Info("opus sink enabled", zap.String("path", path))
	}

	if len(sinks) == 0 {
		return nil, fmt.Errorf("no output sink configured")
	}

	fan := NewFanout(params.Logger, sinks...)

	params.LC.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return fan.Close()
		},
	})

	return fan, nil
}

// NewChunkSink adapts the recorder sink to the engine's callback type.
func NewChunkSink(s Sink) mixer.ChunkSink {
	return s.Write
}
