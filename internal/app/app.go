// Package app provides the main application structure and lifecycle management.
package app

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/sonarkit/livemix/internal/capture"
	"github.com/sonarkit/livemix/internal/mixer"
)

// Application represents the main application with its lifecycle.
type Application struct {
	app *fx.App
}

// New creates a new Application with the provided modules and options.
func New(modules ...fx.Option) *Application {
	options := append(modules, fx.Invoke(registerLifecycleHooks))

	return &Application{app: fx.New(options...)}
}

// Run starts the application and blocks until it's stopped.
func (a *Application) Run() {
	a.app.Run()
}

// Stop gracefully stops the application.
func (a *Application) Stop(ctx context.Context) error {
	return a.app.Stop(ctx)
}

// registerLifecycleHooks starts the mixing engine before the capture
// sources so the first delivered blocks land in live buffers, and tears
// down in the reverse order.
func registerLifecycleHooks(lc fx.Lifecycle, engine *mixer.Engine, sources *capture.Manager, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("starting recording pipeline")

			engine.Start()
			if err := sources.Start(); err != nil {
				engine.Stop()
				logger.Error("failed to start capture sources", zap.Error(err))
				return err
			}

			logger.Info("recording pipeline running")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("stopping recording pipeline")

			if err := sources.Stop(); err != nil {
				logger.Warn("capture shutdown reported errors", zap.Error(err))
			}
			engine.Stop()

			logger.Info("recording pipeline stopped")
			return nil
		},
	})
}
