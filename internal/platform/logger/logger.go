// Package logger provides structured logging for the game server.
// Every host-authoritative decision should be traceable through this.
package logger

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Logger wraps a zerolog.Logger with the server's logging conventions.
type Logger struct {
	zl zerolog.Logger
}

// NewLogger creates a new logger instance writing JSON to stdout.
// Level accepts "debug", "info", "warn", "error"; anything else means info.
func NewLogger(level string) *Logger {
	lvl := zerolog.InfoLevel
	switch strings.ToLower(level) {
	case "debug":
		lvl = zerolog.DebugLevel
	case "warn":
		lvl = zerolog.WarnLevel
	case "error":
		lvl = zerolog.ErrorLevel
	}

	zl := zerolog.New(os.Stdout).Level(lvl).With().Timestamp().Logger()
	return &Logger{zl: zl}
}

// NewTestLogger returns a logger that discards all output, for tests.
func NewTestLogger() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// With returns a child logger carrying a constant field, typically the
// lobby code or player id.
func (l *Logger) With(key, value string) *Logger {
	return &Logger{zl: l.zl.With().Str(key, value).Logger()}
}

// Info logs informational messages.
func (l *Logger) Info(msg string) {
	l.zl.Info().Msg(msg)
}

// Infof logs a formatted informational message.
func (l *Logger) Infof(format string, args ...any) {
	l.zl.Info().Msgf(format, args...)
}

// Warn logs warning messages.
func (l *Logger) Warn(msg string) {
	l.zl.Warn().Msg(msg)
}

// Error logs error messages.
func (l *Logger) Error(msg string) {
	l.zl.Error().Msg(msg)
}

// Event logs a specific game event for audit purposes.
func (l *Logger) Event(eventType string, actorID string, details string) {
	l.zl.Info().
		Str("event", eventType).
		Str("actor", actorID).
		Msg(details)
}
