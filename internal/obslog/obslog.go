// Package obslog configures the process-wide structured logger.
//
// TUIQL is a single-user terminal tool, not a server, so unlike a typical
// zerolog setup there is no request-scoped context propagation — just one
// configured logger that the kernel packages log through instead of writing
// directly to stderr.
package obslog

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Log is the process-wide logger. Configure replaces it; until then it
// writes human-readable lines at Info level to stderr.
var Log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
	With().Timestamp().Logger().Level(zerolog.InfoLevel)

// Configure sets the global log level and output. verbose raises the level
// to Debug; out defaults to stderr when nil so REPL output on stdout stays
// clean.
func Configure(verbose bool, out io.Writer) {
	if out == nil {
		out = os.Stderr
	}
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	Log = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}).
		With().Timestamp().Logger().Level(level)
}
