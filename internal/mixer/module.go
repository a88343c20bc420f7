// Package mixer implements the real-time two-source audio mixing engine:
// format normalization, per-source buffering, threshold-synchronized mixing
// and silence substitution under a fixed 20 ms output cadence.
package mixer

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/sonarkit/livemix/internal/config"
)

var Module = fx.Module("mixer",
	fx.Provide(New),
)

// New builds the engine from application config and the provided chunk sink.
func New(logger *zap.Logger, cfg *config.Config, sink ChunkSink) *Engine {
	return NewEngine(logger, &cfg.Mixer, sink)
}
