package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// NewJSONLogger creates a new JSON logger
func NewJSONLogger(writer io.Writer, level Level) *JSONLogger {
	return &JSONLogger{
		writer: writer,
		level:  level,
		fields: make([]Field, 0),
	}
}

// NewDefaultLogger creates a logger that writes to stdout at INFO level
func NewDefaultLogger() *JSONLogger {
	return NewJSONLogger(os.Stdout, InfoLevel)
}

// log is the internal logging method
func (l *JSONLogger) log(level Level, msg string, fields ...Field) {
	if level < l.level {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	fieldMap := make(map[string]any)
	for _, f := range l.fields {
		fieldMap[f.Key] = f.Value
	}
	for _, f := range fields {
		fieldMap[f.Key] = f.Value
	}

	entry := LogEntry{
		Time:    time.Now().Format(time.RFC3339Nano),
		Level:   level.String(),
		Message: msg,
	}
	if len(fieldMap) > 0 {
		entry.Fields = fieldMap
	}

	data, err := json.Marshal(entry)
	if err != nil {
		// Fallback to plain text if the entry itself won't marshal
		fmt.Fprintf(l.writer, "[ERROR] Failed to marshal log entry: %v\n", err)
		return
	}

	l.writer.Write(data)
	l.writer.Write([]byte("\n"))
}

// Debug logs a debug-level message
func (l *JSONLogger) Debug(msg string, fields ...Field) {
	l.log(DebugLevel, msg, fields...)
}

// Info logs an info-level message
func (l *JSONLogger) Info(msg string, fields ...Field) {
	l.log(InfoLevel, msg, fields...)
}

// Warn logs a warning-level message
func (l *JSONLogger) Warn(msg string, fields ...Field) {
	l.log(WarnLevel, msg, fields...)
}

// Error logs an error-level message
func (l *JSONLogger) Error(msg string, fields ...Field) {
	l.log(ErrorLevel, msg, fields...)
}

// With creates a child logger with the given fields pre-set
func (l *JSONLogger) With(fields ...Field) Logger {
	l.mu.Lock()
	defer l.mu.Unlock()

	newFields := make([]Field, len(l.fields)+len(fields))
	copy(newFields, l.fields)
	copy(newFields[len(l.fields):], fields)

	return &JSONLogger{
		writer: l.writer,
		level:  l.level,
		fields: newFields,
	}
}

// SetLevel sets the minimum log level
func (l *JSONLogger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// Global default logger
var (
	defaultLogger Logger
	once          sync.Once
)

// DefaultLogger returns the global default logger. The initial level
// comes from the FDB_BRIDGE_LOG_LEVEL environment variable.
func DefaultLogger() Logger {
	once.Do(func() {
		level := InfoLevel
		if levelStr := os.Getenv("FDB_BRIDGE_LOG_LEVEL"); levelStr != "" {
			level = ParseLevel(levelStr)
		}
		defaultLogger = NewJSONLogger(os.Stdout, level)
	})
	return defaultLogger
}

// SetDefaultLogger sets the global default logger
func SetDefaultLogger(logger Logger) {
	defaultLogger = logger
}

// StartTimer begins timing an operation
func StartTimer(logger Logger, msg string, fields ...Field) *TimedOperation {
	return &TimedOperation{
		logger: logger,
		msg:    msg,
		start:  time.Now(),
		fields: fields,
	}
}

// End logs the operation with its duration
func (t *TimedOperation) End() {
	elapsed := time.Since(t.start)
	t.logger.Info(t.msg, append(t.fields, Latency(elapsed))...)
}

// EndError logs the operation as an error with its duration
func (t *TimedOperation) EndError(err error) {
	elapsed := time.Since(t.start)
	t.logger.Error(t.msg, append(t.fields, Latency(elapsed), Error(err))...)
}
