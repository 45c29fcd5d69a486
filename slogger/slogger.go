// Package slogger provides structured logging for the engine. The Logger
// interface is compatible with slog-style key-value logging.
package slogger

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// DefaultLogger is the default logger for the engine.
var DefaultLogger Logger = NewDevNullLogger()

// DefaultLogLevel is used when no level is specified.
var DefaultLogLevel = LevelInfo

// Logger defines the interface for structured logging.
type Logger interface {

	// Debug logs a message at debug level with optional key-value pairs
	Debug(msg string, keysAndValues ...any)

	// Info logs a message at info level with optional key-value pairs
	Info(msg string, keysAndValues ...any)

	// Warn logs a message at warn level with optional key-value pairs
	Warn(msg string, keysAndValues ...any)

	// Error logs a message at error level with optional key-value pairs
	Error(msg string, keysAndValues ...any)

	// With returns a new Logger with the given key-value pairs added
	With(keysAndValues ...any) Logger
}

// LogLevel represents the minimum log level
type LogLevel slog.Level

// Available log levels
const (
	LevelDebug LogLevel = LogLevel(slog.LevelDebug)
	LevelInfo  LogLevel = LogLevel(slog.LevelInfo)
	LevelWarn  LogLevel = LogLevel(slog.LevelWarn)
	LevelError LogLevel = LogLevel(slog.LevelError)
)

// LevelFromString converts a string to a LogLevel.
func LevelFromString(level string) LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return DefaultLogLevel
	}
}

// Slogger implements the Logger interface using slog with a tint handler.
type Slogger struct {
	logger *slog.Logger
}

// New returns a new Slogger writing to stdout at the given level.
func New(level LogLevel) *Slogger {
	handler := tint.NewHandler(os.Stdout, &tint.Options{
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
		TimeFormat: time.Kitchen,
		Level:      slog.Level(level),
	})
	return &Slogger{logger: slog.New(handler)}
}

func (l *Slogger) Debug(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l *Slogger) Info(msg string, keysAndValues ...any) {
	l.logger.Info(msg, keysAndValues...)
}

func (l *Slogger) Warn(msg string, keysAndValues ...any) {
	l.logger.Warn(msg, keysAndValues...)
}

func (l *Slogger) Error(msg string, keysAndValues ...any) {
	l.logger.Error(msg, keysAndValues...)
}

func (l *Slogger) With(keysAndValues ...any) Logger {
	return &Slogger{logger: l.logger.With(keysAndValues...)}
}
