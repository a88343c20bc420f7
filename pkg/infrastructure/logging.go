// Package infrastructure provides reusable infrastructure components for Go applications.
package infrastructure

import (
	"strings"

	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// FxLoggerAdapter routes Fx's internal lifecycle events through a
// zap.SugaredLogger so the dependency graph logs alongside the application.
type FxLoggerAdapter struct {
	logger *zap.SugaredLogger
}

// NewFxLoggerAdapter creates an fxevent.Logger backed by the given zap logger.
func NewFxLoggerAdapter(logger *zap.Logger) fxevent.Logger {
	return &FxLoggerAdapter{logger: logger.Sugar()}
}

// LogEvent implements fxevent.Logger.
func (p *FxLoggerAdapter) LogEvent(event fxevent.Event) {
	switch e := event.(type) {
	case *fxevent.OnStartExecuting:
		p.logger.Debugf("HOOK OnStart executing: %s, function: %s", e.CallerName, e.FunctionName)
	case *fxevent.OnStartExecuted:
		p.hookResult("OnStart", e.CallerName, e.FunctionName, e.Err)
	case *fxevent.OnStopExecuting:
		p.logger.Debugf("HOOK OnStop executing: %s, function: %s", e.CallerName, e.FunctionName)
	case *fxevent.OnStopExecuted:
		p.hookResult("OnStop", e.CallerName, e.FunctionName, e.Err)
	case *fxevent.Provided:
		if e.Err != nil {
			p.logger.Errorf("PROVIDE failed: %v", e.Err)
		} else {
			p.logger.Debugf("PROVIDE: %s", strings.Join(e.OutputTypeNames, ", "))
		}
	case *fxevent.Invoked:
		if e.Err != nil {
			p.logger.Errorf("INVOKE failed: %s, error: %v", e.FunctionName, e.Err)
		} else {
			p.logger.Debugf("INVOKE successful: %s", e.FunctionName)
		}
	case *fxevent.Stopping:
		p.logger.Infof("STOPPING: %s", e.Signal)
	case *fxevent.Stopped:
		if e.Err != nil {
			p.logger.Errorf("STOPPED with error: %v", e.Err)
		} else {
			p.logger.Info("STOPPED")
		}
	case *fxevent.RollingBack:
		p.logger.Errorf("ROLLING BACK: %v", e.StartErr)
	case *fxevent.Started:
		if e.Err != nil {
			p.logger.Errorf("STARTED with error: %v", e.Err)
		} else {
			p.logger.Info("STARTED")
		}
	default:
		p.logger.Debugf("Fx event: %T", event)
	}
}

func (p *FxLoggerAdapter) hookResult(hook, caller, function string, err error) {
	if err != nil {
		p.logger.Errorf("HOOK %s failed: %s, function: %s, error: %v", hook, caller, function, err)
	} else {
		p.logger.Debugf("HOOK %s executed: %s, function: %s", hook, caller, function)
	}
}
