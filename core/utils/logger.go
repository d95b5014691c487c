package utils

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Logger keeps the Printf/Errorf call shape used across the code base while
// writing structured records through slog. A nil *Logger discards everything.
type Logger struct {
	l *slog.Logger
}

func NewLogger() *Logger {
	return NewLoggerWithOptions(os.Stderr, "info", "text")
}

// NewLoggerWithOptions builds a logger writing to w. level is one of
// debug|info|warn|error, format is text|json.
func NewLoggerWithOptions(w io.Writer, level, format string) *Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	var h slog.Handler
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return &Logger{l: slog.New(h)}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *Logger) With(args ...any) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{l: l.l.With(args...)}
}

func (l *Logger) Slog() *slog.Logger {
	if l == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return l.l
}

func (l *Logger) Printf(format string, args ...any) {
	if l == nil {
		return
	}
	l.l.Info(fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...any) {
	if l == nil {
		return
	}
	l.l.Error(fmt.Sprintf(format, args...))
}

// Fatalf logs at error level and exits. Only the goose migration logger uses it.
func (l *Logger) Fatalf(format string, args ...any) {
	if l != nil {
		l.l.Error(fmt.Sprintf(format, args...))
	}
	os.Exit(1)
}

func (l *Logger) Debug(msg string, args ...any) {
	if l == nil {
		return
	}
	l.l.Debug(msg, args...)
}

func (l *Logger) Info(msg string, args ...any) {
	if l == nil {
		return
	}
	l.l.Info(msg, args...)
}

func (l *Logger) Warn(msg string, args ...any) {
	if l == nil {
		return
	}
	l.l.Warn(msg, args...)
}

func (l *Logger) Error(msg string, args ...any) {
	if l == nil {
		return
	}
	l.l.Error(msg, args...)
}

// NowUTC truncates to microseconds so values survive a postgres round trip.
func NowUTC() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
