// Package main provides the entry point for the livemix recording pipeline.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/fx"

	"github.com/sonarkit/livemix/internal/app"
	"github.com/sonarkit/livemix/internal/capture"
	"github.com/sonarkit/livemix/internal/config"
	"github.com/sonarkit/livemix/internal/infrastructure"
	"github.com/sonarkit/livemix/internal/mixer"
	"github.com/sonarkit/livemix/internal/sink"
	pkginfra "github.com/sonarkit/livemix/pkg/infrastructure"
)

func main() {
	configPath := "config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	application := app.New(
		// Core modules
		config.Module,
		infrastructure.LoggerModule,

		// Pipeline modules
		sink.Module,
		mixer.Module,
		capture.Module,

		// Supply the config path
		fx.Supply(configPath),

		// Route Fx's own logging through zap
		fx.WithLogger(pkginfra.NewFxLoggerAdapter),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go application.Run()

	sig := <-sigCh
	fmt.Printf("Received signal: %s, initiating shutdown.\n", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err := application.Stop(shutdownCtx)
	cancel()

	if err != nil {
		fmt.Printf("Error during shutdown: %v\n", err)
		os.Exit(1)
	}
}
