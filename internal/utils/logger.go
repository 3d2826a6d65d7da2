// internal/utils/logger.go
package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps a zerolog logger and keeps the field-map call style used across services
type Logger struct {
	mu   sync.RWMutex
	zl   zerolog.Logger
	file *os.File
}

var (
	globalLogger *Logger
	loggerOnce   sync.Once
)

// GetLogger returns the global logger instance
func GetLogger() *Logger {
	loggerOnce.Do(func() {
		consoleWriter := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		globalLogger = &Logger{
			zl: zerolog.New(consoleWriter).With().Timestamp().Logger().Level(zerolog.InfoLevel),
		}
	})
	return globalLogger
}

// InitLogger configures level, output format and an optional log file
func InitLogger(logFile, level, format string) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	var stdout io.Writer
	switch strings.ToLower(format) {
	case "json":
		stdout = os.Stdout
	case "", "console":
		stdout = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	default:
		return fmt.Errorf("unsupported log format: %s", format)
	}

	writers := []io.Writer{stdout}

	var file *os.File
	if logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		file, err = os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		// the file always receives JSON lines
		writers = append(writers, file)
	}

	logger := GetLogger()
	logger.mu.Lock()
	defer logger.mu.Unlock()

	if logger.file != nil {
		logger.file.Close()
	}
	logger.file = file
	logger.zl = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		With().Timestamp().Caller().Logger().Level(lvl)

	return nil
}

// Zerolog exposes the underlying logger for libraries that take one
func (l *Logger) Zerolog() zerolog.Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.zl
}

func (l *Logger) log(level zerolog.Level, message string, fields map[string]interface{}) {
	l.mu.RLock()
	zl := l.zl
	l.mu.RUnlock()

	event := zl.WithLevel(level)
	if event == nil {
		return
	}
	if len(fields) > 0 {
		event = event.Fields(redactFields(fields))
	}
	event.Msg(message)
}

// redactFields masks credentials in the "error" field without touching the caller's map
func redactFields(fields map[string]interface{}) map[string]interface{} {
	msg, ok := fields["error"].(string)
	if !ok {
		return fields
	}
	redacted := RedactSecrets(msg)
	if redacted == msg {
		return fields
	}
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	out["error"] = redacted
	return out
}

// Debug logs a debug message
func (l *Logger) Debug(message string, fields map[string]interface{}) {
	l.log(zerolog.DebugLevel, message, fields)
}

// Info logs an info message
func (l *Logger) Info(message string, fields map[string]interface{}) {
	l.log(zerolog.InfoLevel, message, fields)
}

// Warn logs a warning message
func (l *Logger) Warn(message string, fields map[string]interface{}) {
	l.log(zerolog.WarnLevel, message, fields)
}

// Error logs an error message
func (l *Logger) Error(message string, fields map[string]interface{}) {
	l.log(zerolog.ErrorLevel, message, fields)
}

// Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.log(zerolog.InfoLevel, fmt.Sprintf(format, args...), nil)
}

// Close releases the log file, if any
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
