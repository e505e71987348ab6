// Package logger wraps logrus behind a small interface so the
// reconciliation core can treat logging as an injected collaborator
// rather than ambient state. The CLI configures one logger at startup
// and hands it to the orchestrator and the ingestion adapters.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Logger defines the logging contract used across the service
type Logger interface {
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})
	Info(args ...interface{})
	Infof(format string, args ...interface{})
	Warn(args ...interface{})
	Warnf(format string, args ...interface{})
	Error(args ...interface{})
	Errorf(format string, args ...interface{})
	WithField(key string, value interface{}) Logger
	WithFields(fields Fields) Logger
	WithError(err error) Logger
	WithComponent(component string) Logger
}

// Fields represents a map of key-value pairs for structured logging
type Fields map[string]interface{}

// Level represents log levels
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Format represents log output formats
type Format string

const (
	JSONFormat Format = "json"
	TextFormat Format = "text"
)

// Config holds configuration options for the logger
type Config struct {
	Level  Level  `json:"level"`
	Format Format `json:"format"`
	// File receives the log output when set; stderr otherwise
	File string `json:"file,omitempty"`
}

// DefaultConfig returns a default logger configuration
func DefaultConfig() *Config {
	return &Config{
		Level:  InfoLevel,
		Format: TextFormat,
	}
}

// DebugConfig returns a configuration suitable for verbose runs
func DebugConfig() *Config {
	return &Config{
		Level:  DebugLevel,
		Format: TextFormat,
	}
}

// Validate validates the logger configuration
func (c *Config) Validate() error {
	switch c.Level {
	case DebugLevel, InfoLevel, WarnLevel, ErrorLevel:
	default:
		return fmt.Errorf("invalid log level: %s", c.Level)
	}

	switch c.Format {
	case JSONFormat, TextFormat:
	default:
		return fmt.Errorf("invalid log format: %s", c.Format)
	}

	return nil
}

// logrusLogger adapts a logrus entry to the Logger interface
type logrusLogger struct {
	entry *logrus.Entry
}

// NewLogger creates a new logger with the given configuration
func NewLogger(config *Config) (Logger, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid logger configuration: %w", err)
	}

	log := logrus.New()

	level, err := logrus.ParseLevel(string(config.Level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %s: %w", config.Level, err)
	}
	log.SetLevel(level)

	writer, err := outputWriter(config)
	if err != nil {
		return nil, err
	}
	log.SetOutput(writer)

	log.SetFormatter(formatter(config))

	return &logrusLogger{entry: logrus.NewEntry(log)}, nil
}

func outputWriter(config *Config) (io.Writer, error) {
	if strings.TrimSpace(config.File) == "" {
		return os.Stderr, nil
	}

	if err := os.MkdirAll(filepath.Dir(config.File), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	file, err := os.OpenFile(config.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return file, nil
}

func formatter(config *Config) logrus.Formatter {
	if config.Format == JSONFormat {
		return &logrus.JSONFormatter{TimestampFormat: time.RFC3339}
	}
	return &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	}
}

func (l *logrusLogger) Debug(args ...interface{}) { l.entry.Debug(args...) }

func (l *logrusLogger) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }

func (l *logrusLogger) Info(args ...interface{}) { l.entry.Info(args...) }

func (l *logrusLogger) Infof(format string, args ...interface{}) { l.entry.Infof(format, args...) }

func (l *logrusLogger) Warn(args ...interface{}) { l.entry.Warn(args...) }

func (l *logrusLogger) Warnf(format string, args ...interface{}) { l.entry.Warnf(format, args...) }

func (l *logrusLogger) Error(args ...interface{}) { l.entry.Error(args...) }

func (l *logrusLogger) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }

func (l *logrusLogger) WithField(key string, value interface{}) Logger {
	return &logrusLogger{entry: l.entry.WithField(key, value)}
}

func (l *logrusLogger) WithFields(fields Fields) Logger {
	return &logrusLogger{entry: l.entry.WithFields(logrus.Fields(fields))}
}

func (l *logrusLogger) WithError(err error) Logger {
	return &logrusLogger{entry: l.entry.WithError(err)}
}

func (l *logrusLogger) WithComponent(component string) Logger {
	return l.WithField("component", component)
}

// Global logger instance, replaced by the CLI once flags are parsed
var globalLogger Logger

func init() {
	var err error
	globalLogger, err = NewLogger(DefaultConfig())
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize logger")
	}
}

// SetGlobalLogger sets the global logger instance
func SetGlobalLogger(logger Logger) {
	globalLogger = logger
}

// GetGlobalLogger returns the global logger instance
func GetGlobalLogger() Logger {
	return globalLogger
}
