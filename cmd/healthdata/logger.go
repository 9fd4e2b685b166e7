package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/rs/zerolog"
)

// zerologLogger adapts zerolog to the glog contract used across the
// module. Args are key/value pairs; a trailing key without value is kept
// under "extra".
type zerologLogger struct {
	base zerolog.Logger
}

func newZerologLogger(out io.Writer, format string, level string) *zerologLogger {
	if strings.EqualFold(strings.TrimSpace(format), "console") {
		out = zerolog.ConsoleWriter{Out: out}
	}
	logger := zerolog.New(out).With().Timestamp().Logger()
	parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || strings.TrimSpace(level) == "" {
		parsed = zerolog.InfoLevel
	}
	return &zerologLogger{base: logger.Level(parsed)}
}

func (l *zerologLogger) Trace(msg string, args ...any) { l.emit(l.base.Trace(), msg, args) }
func (l *zerologLogger) Debug(msg string, args ...any) { l.emit(l.base.Debug(), msg, args) }
func (l *zerologLogger) Info(msg string, args ...any)  { l.emit(l.base.Info(), msg, args) }
func (l *zerologLogger) Warn(msg string, args ...any)  { l.emit(l.base.Warn(), msg, args) }
func (l *zerologLogger) Error(msg string, args ...any) { l.emit(l.base.Error(), msg, args) }

// Fatal logs at error level. Exiting is left to the command.
func (l *zerologLogger) Fatal(msg string, args ...any) {
	l.emit(l.base.Error().Bool("fatal", true), msg, args)
}

func (l *zerologLogger) WithContext(ctx context.Context) glog.Logger {
	if ctx == nil {
		return l
	}
	return &zerologLogger{base: l.base.With().Ctx(ctx).Logger()}
}

func (l *zerologLogger) named(name string) *zerologLogger {
	return &zerologLogger{base: l.base.With().Str("logger", name).Logger()}
}

func (l *zerologLogger) emit(event *zerolog.Event, msg string, args []any) {
	if event == nil {
		return
	}
	event.Fields(argsToFields(args)).Msg(msg)
}

func argsToFields(args []any) map[string]any {
	fields := make(map[string]any, len(args)/2+1)
	for index := 0; index < len(args); index += 2 {
		if index+1 >= len(args) {
			fields["extra"] = args[index]
			break
		}
		key := fmt.Sprint(args[index])
		value := args[index+1]
		if err, ok := value.(error); ok {
			value = err.Error()
		}
		fields[key] = value
	}
	return fields
}

type zerologProvider struct {
	root *zerologLogger
}

func (p zerologProvider) GetLogger(name string) glog.Logger {
	if p.root == nil {
		return glog.Nop()
	}
	return p.root.named(name)
}
