package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// LogLevel defines the severity of the log entry.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String makes LogLevel satisfy the fmt.Stringer interface.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo // Default to INFO for unknown
	}
}

// ParseLevel converts a --log_level value into a LogLevel.
// WARNING is accepted as an alias for WARN.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug, nil
	case "", "INFO":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarn, nil
	case "ERROR", "CRITICAL":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

var (
	mu            sync.RWMutex
	defaultLogger *slog.Logger
	consoleOut    io.Writer
	level         LogLevel
	fileSink      *os.File
)

// InitForCLI initializes the logging system for CLI mode.
// This should be called once at application startup.
func InitForCLI(filterLevel LogLevel, output io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	consoleOut = output
	level = filterLevel
	rebuildLocked()
}

// SetLevel changes the filter level of every sink.
func SetLevel(filterLevel LogLevel) {
	mu.Lock()
	defer mu.Unlock()
	level = filterLevel
	rebuildLocked()
}

// AddFileSink tees every record into the file at path (the campaign log).
// A previously configured sink is closed first.
func AddFileSink(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open campaign log %s: %w", path, err)
	}

	mu.Lock()
	defer mu.Unlock()
	if fileSink != nil {
		_ = fileSink.Close()
	}
	fileSink = f
	rebuildLocked()
	return nil
}

// CloseFileSink flushes and detaches the campaign log file, if any.
func CloseFileSink() {
	mu.Lock()
	defer mu.Unlock()
	if fileSink == nil {
		return
	}
	_ = fileSink.Sync()
	_ = fileSink.Close()
	fileSink = nil
	rebuildLocked()
}

func rebuildLocked() {
	out := consoleOut
	if out == nil {
		out = os.Stderr
	}
	if fileSink != nil {
		out = io.MultiWriter(out, fileSink)
	}
	opts := &slog.HandlerOptions{Level: level.SlogLevel()}
	defaultLogger = slog.New(slog.NewTextHandler(out, opts))
	slog.SetDefault(defaultLogger)
}

// NewComponentLogger returns a *slog.Logger carrying a "component" attribute.
// It is used by packages that log structured key/value pairs rather than
// formatted messages, like the live reporting metrics mirror.
func NewComponentLogger(component string) *slog.Logger {
	mu.RLock()
	l := defaultLogger
	mu.RUnlock()
	if l == nil {
		l = slog.Default()
	}
	return l.With(slog.String("component", component))
}

func logInternal(lvl LogLevel, subsystem string, err error, messageFmt string, args ...interface{}) {
	mu.RLock()
	l := defaultLogger
	mu.RUnlock()

	if l == nil {
		// Not initialized: fall back to slog's default, which is what tests
		// and library callers see.
		l = slog.Default()
	}
	if !l.Enabled(context.Background(), lvl.SlogLevel()) {
		return
	}

	msg := messageFmt
	if len(args) > 0 {
		msg = fmt.Sprintf(messageFmt, args...)
	}

	attrs := []slog.Attr{slog.String("subsystem", subsystem)}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	l.LogAttrs(context.Background(), lvl.SlogLevel(), msg, attrs...)
}

// Debug logs a debug message.
func Debug(subsystem string, messageFmt string, args ...interface{}) {
	logInternal(LevelDebug, subsystem, nil, messageFmt, args...)
}

// Info logs an informational message.
func Info(subsystem string, messageFmt string, args ...interface{}) {
	logInternal(LevelInfo, subsystem, nil, messageFmt, args...)
}

// Warn logs a warning message.
func Warn(subsystem string, messageFmt string, args ...interface{}) {
	logInternal(LevelWarn, subsystem, nil, messageFmt, args...)
}

// Error logs an error message.
func Error(subsystem string, err error, messageFmt string, args ...interface{}) {
	logInternal(LevelError, subsystem, err, messageFmt, args...)
}
