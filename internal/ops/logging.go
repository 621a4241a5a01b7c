package ops

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sandwichfarm/syncstr/internal/config"
)

// Logger is a structured logger wrapper
type Logger struct {
	*slog.Logger
	level  slog.Level
	format string
}

// NewLogger creates a new structured logger based on config, writing to stderr
// so command output on stdout stays clean.
func NewLogger(cfg *config.Logging) *Logger {
	return NewLoggerWithWriter(cfg, os.Stderr)
}

// NewLoggerWithWriter creates a logger with a custom writer
func NewLoggerWithWriter(cfg *config.Logging, w io.Writer) *Logger {
	level := parseLevel(cfg.Level)

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.Format(time.RFC3339))
				}
			}
			return a
		},
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
		level:  level,
		format: cfg.Format,
	}
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithComponent adds a component field to all log messages
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		Logger: l.Logger.With("component", component),
		level:  l.level,
		format: l.format,
	}
}

// WithFields adds custom fields to the logger
func (l *Logger) WithFields(fields ...any) *Logger {
	return &Logger{
		Logger: l.Logger.With(fields...),
		level:  l.level,
		format: l.format,
	}
}

// WithOperation tags every message with a fresh operation id and the operation name
func (l *Logger) WithOperation(op string) *Logger {
	return l.WithFields("op", op, "op_id", uuid.NewString())
}

// IsDebugEnabled returns true if debug logging is enabled
func (l *Logger) IsDebugEnabled() bool {
	return l.level <= slog.LevelDebug
}

// LogFetchAttempt logs one route of a profile fetch
func (l *Logger) LogFetchAttempt(source, route string, events int, duration time.Duration, err error) {
	if err != nil {
		l.Warn("profile fetch attempt failed",
			"source", source,
			"route", route,
			"duration_ms", duration.Milliseconds(),
			"error", err)
		return
	}
	l.Debug("profile fetch attempt completed",
		"source", source,
		"route", route,
		"events", events,
		"duration_ms", duration.Milliseconds())
}

// LogPublishAttempt logs one route of a single event publish
func (l *Logger) LogPublishAttempt(target, route, eventID string, kind int, duration time.Duration, err error) {
	if err != nil {
		l.Warn("publish attempt failed",
			"target", target,
			"route", route,
			"event_id", eventID,
			"kind", kind,
			"duration_ms", duration.Milliseconds(),
			"error", err)
		return
	}
	l.Debug("publish attempt succeeded",
		"target", target,
		"route", route,
		"event_id", eventID,
		"kind", kind,
		"duration_ms", duration.Milliseconds())
}

// LogSyncOutcome logs the aggregate result of a sync run
func (l *Logger) LogSyncOutcome(target, status string, success, failed, total int, duration time.Duration) {
	level := slog.LevelInfo
	if failed > 0 {
		level = slog.LevelWarn
	}
	l.Log(context.Background(), level, "sync finished",
		"target", target,
		"status", status,
		"success", success,
		"failed", failed,
		"total", total,
		"duration_ms", duration.Milliseconds())
}

// LogRelayConnection logs a relay connection event
func (l *Logger) LogRelayConnection(relay string, connected bool, err error) {
	if err != nil {
		l.Warn("relay connection failed",
			"relay", relay,
			"error", err)
	} else if connected {
		l.Info("relay connected",
			"relay", relay)
	} else {
		l.Info("relay disconnected",
			"relay", relay)
	}
}

// LogBackupOperation logs a snapshot file operation
func (l *Logger) LogBackupOperation(op string, path string, sizeBytes int64, err error) {
	if err != nil {
		l.Error("backup operation failed",
			"operation", op,
			"path", path,
			"error", err)
	} else {
		l.Info("backup operation completed",
			"operation", op,
			"path", path,
			"size_bytes", sizeBytes)
	}
}

// LogStartup logs application startup information
func (l *Logger) LogStartup(version, command string) {
	l.Debug("syncstr starting",
		"version", version,
		"command", command)
}

// Default logger configuration
var defaultLogger *Logger

func init() {
	// Create a default logger for early startup
	defaultLogger = NewLogger(&config.Logging{
		Level:  "info",
		Format: "text",
	})
}

// Default returns the default logger
func Default() *Logger {
	return defaultLogger
}

// SetDefault sets the default logger
func SetDefault(l *Logger) {
	defaultLogger = l
}

// Discard returns a logger that drops everything. Useful in tests.
func Discard() *Logger {
	return NewLoggerWithWriter(&config.Logging{Level: "error", Format: "text"}, io.Discard)
}
