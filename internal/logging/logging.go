// Package logging builds the structured logger both services share.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New creates a structured logger. format "pretty" renders for a
// terminal; anything else emits JSON for log shipping. Unknown levels
// fall back to info.
func New(service, level, format string) zerolog.Logger {
	var output io.Writer = os.Stdout
	if format == "pretty" {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
	}

	parsed, err := zerolog.ParseLevel(level)
	if err != nil || parsed == zerolog.NoLevel {
		parsed = zerolog.InfoLevel
	}

	return zerolog.New(output).
		Level(parsed).
		With().
		Timestamp().
		Str("service", service).
		Logger()
}
