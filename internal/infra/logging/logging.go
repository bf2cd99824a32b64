// Package logging builds the zerolog loggers used by both binaries.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Format int

const (
	// FormatJSON writes one JSON object per line, for the service.
	FormatJSON Format = iota
	// FormatConsole writes human readable lines, for the CLI.
	FormatConsole
)

// New returns a timestamped logger at level. Unknown levels fall back to
// info.
func New(w io.Writer, format Format, level string) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	if format == FormatConsole {
		out := w
		w = zerolog.NewConsoleWriter(func(cw *zerolog.ConsoleWriter) {
			cw.Out = out
			cw.TimeFormat = time.RFC3339
		})
	}
	return zerolog.New(w).Level(ParseLevel(level)).With().Timestamp().Logger()
}

func ParseLevel(level string) zerolog.Level {
	parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return parsed
}
