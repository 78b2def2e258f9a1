package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LoggerConfig defines the configuration for the logger.
type LoggerConfig struct {
	Level      string // Log level (e.g., "info", "debug", "error")
	FilePath   string // Path to the log file
	MaxSize    int    // Maximum size in megabytes before log rotation
	MaxBackups int    // Maximum number of old log files to retain
	MaxAge     int    // Maximum number of days to retain old log files
	Compress   bool   // Whether to compress rotated log files
	Console    bool   // Whether to also log to the console
	Service    string // Added as "service" to every entry when set
}

// defaultFields stamps fixed fields on every entry unless the entry
// already carries them.
type defaultFields logrus.Fields

func (defaultFields) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (d defaultFields) Fire(e *logrus.Entry) error {
	for k, v := range d {
		if _, ok := e.Data[k]; !ok {
			e.Data[k] = v
		}
	}
	return nil
}

// NewLogger returns a logrus.Logger writing JSON lines to a rotated file
// and, optionally, to stdout.
func NewLogger(config LoggerConfig) (*logrus.Logger, error) {
	log := logrus.New()

	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		return nil, err
	}
	log.SetLevel(level)

	log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02 15:04:05",
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
			logrus.FieldKeyFunc:  "function",
		},
	})

	if config.Service != "" {
		log.AddHook(defaultFields{"service": config.Service})
	}

	var writers []io.Writer

	if config.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(config.FilePath), 0755); err != nil {
			return nil, err
		}
		writers = append(writers, &lumberjack.Logger{
			Filename:   config.FilePath,
			MaxSize:    config.MaxSize,
			MaxBackups: config.MaxBackups,
			MaxAge:     config.MaxAge,
			Compress:   config.Compress,
		})
	}

	if config.Console || config.FilePath == "" {
		writers = append(writers, os.Stdout)
	}

	if len(writers) > 1 {
		log.SetOutput(io.MultiWriter(writers...))
	} else {
		log.SetOutput(writers[0])
	}

	return log, nil
}

// Discard returns a logger that drops everything; used where no logger is wired.
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// WithFile returns a logger entry with the specified file context.
func WithFile(log *logrus.Logger, filePath string) *logrus.Entry {
	return log.WithField("file", filePath)
}

// WithOperation returns a logger entry with the specified operation context.
func WithOperation(log *logrus.Logger, operation string) *logrus.Entry {
	return log.WithField("operation", operation)
}

// WithFileOperation returns a logger entry with both file and operation context.
func WithFileOperation(log *logrus.Logger, filePath, operation string) *logrus.Entry {
	return log.WithFields(logrus.Fields{
		"file":      filePath,
		"operation": operation,
	})
}

// WithCategory scopes an entry to an upload category and operation.
func WithCategory(log *logrus.Logger, category, operation string) *logrus.Entry {
	return log.WithFields(logrus.Fields{
		"category":  category,
		"operation": operation,
	})
}

// DefaultConfig returns the default LoggerConfig.
func DefaultConfig() LoggerConfig {
	return LoggerConfig{
		Level:      "info",
		FilePath:   "logs/media-upload.log",
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     30,
		Compress:   true,
		Console:    true,
		Service:    "media-upload",
	}
}
