// Package observability provides the logging and metrics used across the
// glasshouse services. Every component takes a Logger rather than writing
// to the standard logger directly so tests can run silent.
package observability

import (
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"time"
)

// LogLevel defines log message severity.
type LogLevel string

const (
	LogLevelDebug LogLevel = "DEBUG"
	LogLevelInfo  LogLevel = "INFO"
	LogLevelWarn  LogLevel = "WARN"
	LogLevelError LogLevel = "ERROR"
	LogLevelFatal LogLevel = "FATAL"
)

var levelRank = map[LogLevel]int{
	LogLevelDebug: 0,
	LogLevelInfo:  1,
	LogLevelWarn:  2,
	LogLevelError: 3,
	LogLevelFatal: 4,
}

// ParseLevel maps a config string to a LogLevel, defaulting to INFO.
func ParseLevel(s string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LogLevelDebug
	case "WARN", "WARNING":
		return LogLevelWarn
	case "ERROR":
		return LogLevelError
	case "FATAL":
		return LogLevelFatal
	default:
		return LogLevelInfo
	}
}

// Logger is the logging interface used throughout the codebase.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	Fatal(msg string, fields map[string]interface{})

	// WithPrefix returns a logger scoped to a component name.
	WithPrefix(prefix string) Logger
	// With returns a logger that attaches the given fields to every message.
	With(fields map[string]interface{}) Logger
}

// StandardLogger writes timestamped key=value lines via the standard log
// package.
type StandardLogger struct {
	prefix string
	level  LogLevel
	base   map[string]interface{}
	exit   func(int)
}

// NewStandardLogger creates a logger at INFO level with the given prefix.
func NewStandardLogger(prefix string) *StandardLogger {
	return &StandardLogger{
		prefix: prefix,
		level:  LogLevelInfo,
		exit:   os.Exit,
	}
}

// WithLevel returns a copy of the logger with the minimum level changed.
func (l *StandardLogger) WithLevel(level LogLevel) *StandardLogger {
	cp := *l
	cp.level = level
	return &cp
}

// WithPrefix implements Logger.
func (l *StandardLogger) WithPrefix(prefix string) Logger {
	cp := *l
	cp.prefix = prefix
	return &cp
}

// With implements Logger.
func (l *StandardLogger) With(fields map[string]interface{}) Logger {
	merged := make(map[string]interface{}, len(l.base)+len(fields))
	for k, v := range l.base {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	cp := *l
	cp.base = merged
	return &cp
}

// Debug implements Logger.
func (l *StandardLogger) Debug(msg string, fields map[string]interface{}) {
	l.write(LogLevelDebug, msg, fields)
}

// Info implements Logger.
func (l *StandardLogger) Info(msg string, fields map[string]interface{}) {
	l.write(LogLevelInfo, msg, fields)
}

// Warn implements Logger.
func (l *StandardLogger) Warn(msg string, fields map[string]interface{}) {
	l.write(LogLevelWarn, msg, fields)
}

// Error implements Logger.
func (l *StandardLogger) Error(msg string, fields map[string]interface{}) {
	l.write(LogLevelError, msg, fields)
}

// Fatal implements Logger. It logs and exits the process.
func (l *StandardLogger) Fatal(msg string, fields map[string]interface{}) {
	l.write(LogLevelFatal, msg, fields)
	l.exit(1)
}

func (l *StandardLogger) write(level LogLevel, msg string, fields map[string]interface{}) {
	if levelRank[level] < levelRank[l.level] {
		return
	}
	ts := time.Now().Format("2006-01-02T15:04:05.000Z07:00")
	log.Printf("%s [%s] [%s] %s%s", ts, level, l.prefix, msg, l.formatFields(fields))
}

// formatFields renders base plus call fields as " k=v" pairs with sorted
// keys so log lines are stable in tests.
func (l *StandardLogger) formatFields(fields map[string]interface{}) string {
	if len(l.base) == 0 && len(fields) == 0 {
		return ""
	}
	merged := make(map[string]interface{}, len(l.base)+len(fields))
	for k, v := range l.base {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(fmt.Sprintf(" %s=%v", k, merged[k]))
	}
	return sb.String()
}

// NoopLogger discards everything. Used in tests.
type NoopLogger struct{}

// NewNoopLogger creates a NoopLogger.
func NewNoopLogger() Logger { return &NoopLogger{} }

func (l *NoopLogger) Debug(msg string, fields map[string]interface{}) {}
func (l *NoopLogger) Info(msg string, fields map[string]interface{})  {}
func (l *NoopLogger) Warn(msg string, fields map[string]interface{})  {}
func (l *NoopLogger) Error(msg string, fields map[string]interface{}) {}
func (l *NoopLogger) Fatal(msg string, fields map[string]interface{}) {}

// WithPrefix implements Logger.
func (l *NoopLogger) WithPrefix(prefix string) Logger { return l }

// With implements Logger.
func (l *NoopLogger) With(fields map[string]interface{}) Logger { return l }
