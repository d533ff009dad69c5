// Package logger provides structured logging for the game server.
// Every session transition and score submission should be traceable through this.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
)

// Logger provides structured logging with context.
type Logger struct {
	infoLogger  *log.Logger
	warnLogger  *log.Logger
	errorLogger *log.Logger
}

// NewLogger creates a new logger instance writing to stdout/stderr.
func NewLogger() *Logger {
	return &Logger{
		infoLogger:  log.New(os.Stdout, "[SNAKE-INFO] ", log.Ldate|log.Ltime|log.Lshortfile),
		warnLogger:  log.New(os.Stdout, "[SNAKE-WARN] ", log.Ldate|log.Ltime|log.Lshortfile),
		errorLogger: log.New(os.Stderr, "[SNAKE-ERROR] ", log.Ldate|log.Ltime|log.Lshortfile),
	}
}

// NewLoggerTo creates a logger that sends every level to w.
// The terminal client uses it so log lines never land on the game screen.
func NewLoggerTo(w io.Writer) *Logger {
	return &Logger{
		infoLogger:  log.New(w, "[SNAKE-INFO] ", log.Ldate|log.Ltime|log.Lshortfile),
		warnLogger:  log.New(w, "[SNAKE-WARN] ", log.Ldate|log.Ltime|log.Lshortfile),
		errorLogger: log.New(w, "[SNAKE-ERROR] ", log.Ldate|log.Ltime|log.Lshortfile),
	}
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() *Logger {
	return NewLoggerTo(io.Discard)
}

// Info logs informational messages.
func (l *Logger) Info(msg string) {
	l.infoLogger.Output(2, msg)
}

// Warn logs warning messages.
func (l *Logger) Warn(msg string) {
	l.warnLogger.Output(2, msg)
}

// Error logs error messages.
func (l *Logger) Error(msg string) {
	l.errorLogger.Output(2, msg)
}

// Errorf logs a formatted error message.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.errorLogger.Output(2, fmt.Sprintf(format, args...))
}

// Event logs a specific game event for session auditing.
func (l *Logger) Event(eventType string, actorID string, details string) {
	l.infoLogger.Output(2, fmt.Sprintf("[EVENT:%s] Actor:%s | %s", eventType, actorID, details))
}
