// Package logger is a thin convenience wrapper around zerolog, kept in
// the same call shape (Init/Default/New/WithField.../Debug/Info/Warn/
// Error/Fatal) the rest of this codebase expects, so call sites never
// see zerolog's builder API directly.
package logger

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Level = zerolog.Level

const (
	LevelDebug = zerolog.DebugLevel
	LevelInfo  = zerolog.InfoLevel
	LevelWarn  = zerolog.WarnLevel
	LevelError = zerolog.ErrorLevel
	LevelFatal = zerolog.FatalLevel
)

// ParseLevel parses a string level, defaulting to Info on anything
// zerolog doesn't recognize.
func ParseLevel(s string) Level {
	lvl, err := zerolog.ParseLevel(s)
	if err != nil {
		return LevelInfo
	}
	return lvl
}

// Config configures the default logger.
type Config struct {
	Level   Level
	Output  io.Writer
	Service string
}

// Logger wraps a zerolog.Logger bound to a "service" field.
type Logger struct {
	z zerolog.Logger
}

var (
	defaultLogger *Logger
	once          sync.Once
)

func build(cfg Config) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	if cfg.Service == "" {
		cfg.Service = "transform-pipeline"
	}
	z := zerolog.New(cfg.Output).Level(cfg.Level).With().
		Timestamp().
		Str("service", cfg.Service).
		Logger()
	return &Logger{z: z}
}

// Init initializes the process-wide default logger. Safe to call once;
// later calls are no-ops, matching the teacher's Init/Default split.
func Init(cfg Config) {
	once.Do(func() {
		defaultLogger = build(cfg)
	})
}

// Default returns the process-wide logger, initializing it with plain
// defaults if Init was never called.
func Default() *Logger {
	if defaultLogger == nil {
		Init(Config{Level: LevelInfo, Output: os.Stdout, Service: "transform-pipeline"})
	}
	return defaultLogger
}

// New creates a standalone logger instance, independent of Default().
func New(cfg Config) *Logger {
	return build(cfg)
}

func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{z: l.z.With().Interface(key, value).Logger()}
}

func (l *Logger) WithFields(fields map[string]any) *Logger {
	ctx := l.z.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &Logger{z: ctx.Logger()}
}

func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return &Logger{z: l.z.With().Err(err).Logger()}
}

func (l *Logger) WithDuration(d time.Duration) *Logger {
	return &Logger{z: l.z.With().Dur("duration", d).Logger()}
}

func (l *Logger) Debug(msg string, args ...any) { logf(l.z.Debug(), msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { logf(l.z.Info(), msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { logf(l.z.Warn(), msg, args...) }
func (l *Logger) Error(msg string, args ...any) { logf(l.z.Error(), msg, args...) }
func (l *Logger) Fatal(msg string, args ...any) { logf(l.z.Fatal(), msg, args...) }

func logf(e *zerolog.Event, msg string, args ...any) {
	if len(args) == 0 {
		e.Msg(msg)
		return
	}
	e.Msgf(msg, args...)
}

// Package-level convenience functions delegating to Default().
func Debug(msg string, args ...any) { Default().Debug(msg, args...) }
func Info(msg string, args ...any)  { Default().Info(msg, args...) }
func Warn(msg string, args ...any)  { Default().Warn(msg, args...) }
func Error(msg string, args ...any) { Default().Error(msg, args...) }
func Fatal(msg string, args ...any) { Default().Fatal(msg, args...) }

func WithField(key string, value any) *Logger  { return Default().WithField(key, value) }
func WithFields(fields map[string]any) *Logger { return Default().WithFields(fields) }
func WithError(err error) *Logger              { return Default().WithError(err) }
func WithDuration(d time.Duration) *Logger     { return Default().WithDuration(d) }
