package logging

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
)

// Level represents an enumeration of log levels
type Level int

const (
	Critical Level = 50
	Error    Level = 40
	Warning  Level = 30
	Info     Level = 20
	Debug    Level = 10
	NotSet   Level = 0
)

// Logger provides leveled logging with a component prefix and keyvals
type Logger struct {
	prefix string
	logger *log.Logger

	mu    sync.Mutex
	level Level
}

// NewLogger creates a new logger for a component
func NewLogger(prefix string, level ...Level) *Logger {
	lvl := Info
	if len(level) > 0 {
		lvl = level[0]
	}
	return &Logger{
		prefix: prefix,
		logger: log.New(os.Stdout, fmt.Sprintf("[%s] ", prefix), log.LstdFlags),
		level:  lvl,
	}
}

// SetLevel sets the logging level
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, keyvals ...any) {
	l.emit(Debug, "DEBUG", msg, keyvals...)
}

// Info logs an informational message
func (l *Logger) Info(msg string, keyvals ...any) {
	l.emit(Info, "INFO", msg, keyvals...)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, keyvals ...any) {
	l.emit(Warning, "WARN", msg, keyvals...)
}

// Error logs an error message
func (l *Logger) Error(msg string, keyvals ...any) {
	l.emit(Error, "ERROR", msg, keyvals...)
}

func (l *Logger) emit(level Level, tag, msg string, keyvals ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.level > level {
		return
	}
	l.logger.Println(formatMessage(tag, msg, keyvals...))
}

// formatMessage renders "TAG: msg key=value key=value".
func formatMessage(tag, msg string, keyvals ...any) string {
	var b strings.Builder
	b.WriteString(tag)
	b.WriteString(": ")
	b.WriteString(msg)

	for i := 0; i+1 < len(keyvals); i += 2 {
		fmt.Fprintf(&b, " %v=%v", keyvals[i], keyvals[i+1])
	}
	if len(keyvals)%2 == 1 {
		fmt.Fprintf(&b, " %v=?", keyvals[len(keyvals)-1])
	}

	return b.String()
}
