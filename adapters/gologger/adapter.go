package gologger

import (
	"strings"

	job "github.com/goliatone/go-job"
	glog "github.com/goliatone/go-logger/glog"
)

// RootName is the logger name every healthdata component hangs off.
const RootName = "healthdata"

// Resolve uses deterministic precedence provider > logger > nop.
func Resolve(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	return glog.Resolve(name, provider, logger)
}

// ForComponent returns the logger for one component, named
// healthdata.<component>. A nil provider falls back to logger, then nop.
func ForComponent(provider glog.LoggerProvider, logger glog.Logger, component string) glog.Logger {
	name := RootName
	if component = strings.TrimSpace(component); component != "" {
		name += "." + component
	}
	resolvedProvider, resolved := Resolve(name, provider, logger)
	if resolvedProvider != nil {
		if named := resolvedProvider.GetLogger(name); named != nil {
			return glog.Ensure(named)
		}
	}
	return glog.Ensure(resolved)
}

func ToJobProvider(provider glog.LoggerProvider) job.LoggerProvider {
	if provider == nil {
		return nil
	}
	return job.GoLoggerProvider(provider)
}

func ToJobLogger(logger glog.Logger) job.Logger {
	if logger == nil {
		return nil
	}
	return job.GoLogger(logger)
}

// ResolveForJob resolves glog logger/provider then returns equivalent go-job adapters.
func ResolveForJob(
	name string,
	provider glog.LoggerProvider,
	logger glog.Logger,
) (glog.LoggerProvider, glog.Logger, job.LoggerProvider, job.Logger) {
	resolvedProvider, resolvedLogger := Resolve(name, provider, logger)
	return resolvedProvider, resolvedLogger, ToJobProvider(resolvedProvider), ToJobLogger(resolvedLogger)
}
