// Package logging constructs the process-wide structured logger, kept
// close in shape to src/logger.go: level/format enums, a New
// constructor, and a LogPanic helper for use in recover blocks. The
// service field name changes to match this project; the
// rest of the shape — timestamp, caller, console-vs-JSON writer
// selection — is unchanged.
package logging

import (
	"io"
	"os"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
)

// Level is the minimum severity a logger emits.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
	LevelFatal Level = "fatal"
)

// Format selects the logger's output encoding.
type Format string

const (
	FormatJSON   Format = "json"   // machine-readable, for log aggregation
	FormatPretty Format = "pretty" // human-readable, for local development
)

// Config configures a logger built by New.
type Config struct {
	Level  Level
	Format Format
}

// New builds a zerolog.Logger with a timestamp, caller info, and a
// "service" field identifying this process, per Config's level/format.
func New(cfg Config) zerolog.Logger {
	var output io.Writer = os.Stdout

	var level zerolog.Level
	switch cfg.Level {
	case LevelDebug:
		level = zerolog.DebugLevel
	case LevelInfo:
		level = zerolog.InfoLevel
	case LevelWarn:
		level = zerolog.WarnLevel
	case LevelError:
		level = zerolog.ErrorLevel
	case LevelFatal:
		level = zerolog.FatalLevel
	default:
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == FormatPretty {
		output = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	return zerolog.New(output).
		With().
		Timestamp().
		Caller().
		Str("service", "timeline-server").
		Logger()
}

// LogPanic records a recovered panic with a full stack trace. Call from
// a `defer recover()` block before deciding whether to re-panic.
func LogPanic(logger zerolog.Logger, panicValue any, msg string, fields map[string]any) {
	event := logger.Error().
		Interface("panic_value", panicValue).
		Str("stack_trace", string(debug.Stack()))

	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg(msg)
}
