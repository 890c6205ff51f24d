// Package logging is a thin level-based wrapper over log/slog, in the style
// of the teacher's own log package: a package-level root logger, child
// loggers that carry structured key/value context, and LevelFromString for
// parsing level names. The package holds a single root logger; it does not
// apply per-category levels itself.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Level aliases so call sites never import log/slog directly.
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// Logger is the structured logger handed to every component constructor.
type Logger struct {
	slog *slog.Logger
}

var (
	mu   sync.Mutex
	root = New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: LevelInfo}))
)

// New wraps an slog.Handler.
func New(h slog.Handler) Logger {
	return Logger{slog: slog.New(h)}
}

// Noop returns a logger that discards everything, for tests that need a
// Logger value but don't assert on its output.
func Noop() Logger {
	return New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// Root returns the process-wide default logger.
func Root() Logger {
	mu.Lock()
	defer mu.Unlock()
	return root
}

// SetDefault replaces the process-wide default logger.
func SetDefault(l Logger) {
	mu.Lock()
	defer mu.Unlock()
	root = l
}

// NewRotatingFileLogger builds a logger that writes JSON lines through a
// lumberjack rotating writer, for the "serve" long-running process.
func NewRotatingFileLogger(path string, level slog.Level, maxSizeMB, maxBackups, maxAgeDays int) Logger {
	var w io.Writer = &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
		Compress:   true,
	}
	return New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// With returns a child logger carrying additional structured context.
func (l Logger) With(args ...any) Logger {
	return Logger{slog: l.slog.With(args...)}
}

func (l Logger) Debug(msg string, args ...any) { l.slog.Debug(msg, args...) }
func (l Logger) Info(msg string, args ...any)  { l.slog.Info(msg, args...) }
func (l Logger) Warn(msg string, args ...any)  { l.slog.Warn(msg, args...) }
func (l Logger) Error(msg string, args ...any) { l.slog.Error(msg, args...) }

func (l Logger) Enabled(ctx context.Context, level slog.Level) bool {
	return l.slog.Enabled(ctx, level)
}

// LevelFromString parses a per-category override, defaulting to Info on an
// unrecognized string rather than failing startup.
func LevelFromString(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return LevelInfo
	}
	return lvl
}
