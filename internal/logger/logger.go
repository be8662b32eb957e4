package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New creates a new zerolog logger with the specified level and format.
func New(level, format string) zerolog.Logger {
	return NewWithWriter(os.Stdout, level, format)
}

// NewWithWriter creates a logger writing to out. Console and text formats
// get the human readable writer, anything else is JSON.
func NewWithWriter(out io.Writer, level, format string) zerolog.Logger {
	output := out

	if format == "console" || format == "text" {
		output = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	return zerolog.New(output).
		Level(lvl).
		With().
		Timestamp().
		Caller().
		Logger()
}

// NewWithFields creates a logger with additional fields.
func NewWithFields(level, format string, fields map[string]interface{}) zerolog.Logger {
	log := New(level, format)
	ctx := log.With()

	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}

	return ctx.Logger()
}

// NewNop creates a no-op logger for testing.
func NewNop() zerolog.Logger {
	return zerolog.Nop()
}
