// Package logger provides a small leveled, structured logger used across
// texforge. It has no third-party dependency: fields are carried on a
// derived logger instance and rendered as key=value pairs after the
// message.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// LogLevel represents the severity level of a log message.
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses a level name, case-insensitively. "WARNING" is
// accepted as an alias for WARN.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG, nil
	case "INFO":
		return INFO, nil
	case "WARN", "WARNING":
		return WARN, nil
	case "ERROR":
		return ERROR, nil
	default:
		return INFO, fmt.Errorf("unknown log level: %s", s)
	}
}

// Logger is a leveled logger that carries a set of structured fields and
// an optional "mode" tag (e.g. component name) rendered in brackets.
type Logger struct {
	mu     sync.Mutex
	level  LogLevel
	logger *log.Logger
	fields map[string]interface{}
	mode   string
}

// Config configures a new Logger.
type Config struct {
	Level  LogLevel
	Output io.Writer
	Format string // "text" (default); reserved for future structured formats
	Mode   string
}

// New creates a logger with INFO level writing text to stdout.
func New() *Logger {
	return NewWithConfig(Config{Level: INFO, Output: os.Stdout, Format: "text"})
}

// NewWithConfig creates a logger from an explicit configuration.
func NewWithConfig(config Config) *Logger {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	return &Logger{
		level:  config.Level,
		logger: log.New(config.Output, "", 0),
		fields: make(map[string]interface{}),
		mode:   config.Mode,
	}
}

// SetMode sets the mode tag for this logger.
func (l *Logger) SetMode(mode string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.mode = mode
}

// GetMode returns the current mode tag.
func (l *Logger) GetMode() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.mode
}

// SetLevel changes the minimum level this logger emits.
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// GetLevel returns the logger's current minimum level.
func (l *Logger) GetLevel() LogLevel {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

func (l *Logger) IsDebugEnabled() bool { return l.GetLevel() <= DEBUG }
func (l *Logger) IsInfoEnabled() bool  { return l.GetLevel() <= INFO }

// WithFields returns a new logger carrying the given key/value pairs in
// addition to any fields already present. An odd trailing key without a
// value is dropped.
func (l *Logger) WithFields(keyVals ...interface{}) *Logger {
	l.mu.Lock()
	newFields := make(map[string]interface{}, len(l.fields)+len(keyVals)/2)
	for k, v := range l.fields {
		newFields[k] = v
	}
	level, base, mode := l.level, l.logger, l.mode
	l.mu.Unlock()

	for i := 0; i+1 < len(keyVals); i += 2 {
		key := fmt.Sprintf("%v", keyVals[i])
		newFields[key] = keyVals[i+1]
	}

	return &Logger{level: level, logger: base, fields: newFields, mode: mode}
}

// WithField is a convenience wrapper around WithFields for a single pair.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.WithFields(key, value)
}

// WithMode returns a derived logger tagged with the given mode, preserving
// existing fields.
func (l *Logger) WithMode(mode string) *Logger {
	derived := l.WithFields()
	derived.mode = mode
	return derived
}

func (l *Logger) log(level LogLevel, msg string, keyVals ...interface{}) {
	l.mu.Lock()
	if level < l.level {
		l.mu.Unlock()
		return
	}
	out := l.logger
	mode := l.mode
	fields := make(map[string]interface{}, len(l.fields))
	for k, v := range l.fields {
		fields[k] = v
	}
	l.mu.Unlock()

	var b strings.Builder
	b.WriteString(time.Now().Format("2006-01-02T15:04:05.000Z07:00"))
	b.WriteString(" [")
	b.WriteString(level.String())
	b.WriteString("]")
	if mode != "" {
		b.WriteString(" [")
		b.WriteString(mode)
		b.WriteString("]")
	}
	b.WriteString(" ")
	b.WriteString(msg)

	for i := 0; i+1 < len(keyVals); i += 2 {
		key := fmt.Sprintf("%v", keyVals[i])
		fields[key] = keyVals[i+1]
	}

	if len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b.WriteString(" ")
			b.WriteString(k)
			b.WriteString("=")
			b.WriteString(formatValue(fields[k]))
		}
	}

	out.Println(b.String())
}

func (l *Logger) Debug(msg string, keyVals ...interface{}) { l.log(DEBUG, msg, keyVals...) }
func (l *Logger) Info(msg string, keyVals ...interface{})  { l.log(INFO, msg, keyVals...) }
func (l *Logger) Warn(msg string, keyVals ...interface{})  { l.log(WARN, msg, keyVals...) }
func (l *Logger) Error(msg string, keyVals ...interface{}) { l.log(ERROR, msg, keyVals...) }

// formatValue renders a field value the way it should appear after "key=".
// Strings containing whitespace are quoted so the key=value pairs stay
// whitespace-delimited.
func formatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "<nil>"
	case string:
		if strings.ContainsAny(val, " \t\n") {
			return fmt.Sprintf("%q", val)
		}
		return val
	case error:
		return fmt.Sprintf("%q", val.Error())
	case time.Duration:
		return val.String()
	default:
		return fmt.Sprintf("%v", val)
	}
}

// Package-level default logger, used by callers that don't need their own
// instance (mirrors the convenience top-level functions of comparable
// loggers in the ecosystem).
var global = New()
var globalMu sync.Mutex

func SetGlobalMode(mode string) {
	globalMu.Lock()
	defer globalMu.Unlock()
	global.SetMode(mode)
}

func SetLevel(level LogLevel) {
	globalMu.Lock()
	defer globalMu.Unlock()
	global.SetLevel(level)
}

func WithField(key string, value interface{}) *Logger {
	globalMu.Lock()
	g := global
	globalMu.Unlock()
	return g.WithField(key, value)
}

func WithFields(keyVals ...interface{}) *Logger {
	globalMu.Lock()
	g := global
	globalMu.Unlock()
	return g.WithFields(keyVals...)
}

func WithMode(mode string) *Logger {
	globalMu.Lock()
	g := global
	globalMu.Unlock()
	return g.WithMode(mode)
}

func Debug(msg string, keyVals ...interface{}) {
	globalMu.Lock()
	g := global
	globalMu.Unlock()
	g.Debug(msg, keyVals...)
}

func Info(msg string, keyVals ...interface{}) {
	globalMu.Lock()
	g := global
	globalMu.Unlock()
	g.Info(msg, keyVals...)
}

func Warn(msg string, keyVals ...interface{}) {
	globalMu.Lock()
	g := global
	globalMu.Unlock()
	g.Warn(msg, keyVals...)
}

func Error(msg string, keyVals ...interface{}) {
	globalMu.Lock()
	g := global
	globalMu.Unlock()
	g.Error(msg, keyVals...)
}
