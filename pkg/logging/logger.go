// Package logging configures the structured zerolog logger shared by the
// lookup client, the batch dispatcher and the search controller.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs every lookup outcome.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs batch progress and matches.
	LevelInfo LogLevel = "info"

	// LevelWarn logs degraded operation only.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	// Matches are written to stdout, so logs stay off it.
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup installs the global zerolog logger described by cfg and returns it.
// Every component logger derived afterwards through NewLogger inherits it.
func Setup(cfg Config) zerolog.Logger {
	var w io.Writer = os.Stderr
	if cfg.Output != nil {
		w = cfg.Output
	}
	if cfg.Pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}

	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))
	log.Logger = zerolog.New(w).With().Timestamp().Logger()

	return log.Logger
}

var levels = map[string]zerolog.Level{
	"debug":   zerolog.DebugLevel,
	"info":    zerolog.InfoLevel,
	"warn":    zerolog.WarnLevel,
	"warning": zerolog.WarnLevel,
	"error":   zerolog.ErrorLevel,
}

func lookupLevel(level LogLevel) (zerolog.Level, bool) {
	lvl, ok := levels[strings.ToLower(strings.TrimSpace(string(level)))]
	return lvl, ok
}

// ParseLevel maps a LogLevel to its zerolog level. Unknown values fall back
// to info.
func ParseLevel(level LogLevel) zerolog.Level {
	if lvl, ok := lookupLevel(level); ok {
		return lvl
	}
	return zerolog.InfoLevel
}

// ValidLevel reports whether level names a known log level.
func ValidLevel(level LogLevel) bool {
	_, ok := lookupLevel(level)
	return ok
}

// NewLogger creates a child of the global logger tagged with a component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: per-lookup detail
//   - Lookup failures (network, decode) that resolve to "no result"
//   - Lookup durations and HTTP status codes
//   - Checkpoint loads and saves
//
// Info: normal search progress
//   - Batch dispatched for (identifier, year, month)
//   - Accepted record found
//   - Identifier exhausted without a match
//   - Startup/shutdown, resume position
//
// Warn: degraded but continuing
//   - Checkpoint store errors (search continues without persistence)
//   - Entire batch failed at the transport level
//
// Error: conditions requiring attention
//   - Configuration errors
//   - Metrics server failures
//
// Context Fields:
//   - identifier: application number being searched
//   - year, month, day: date-of-birth components of the candidate key
//   - status_code: HTTP status code of the scorecard response
//   - duration: lookup or batch duration
//   - error_class: lookup error classification (network, decode)
//   - batch_failures: number of lookups in a batch that produced no result
//   - all_india_rank: rank of an accepted record
