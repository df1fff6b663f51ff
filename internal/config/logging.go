package config

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel enumerates supported logging levels.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// NormalizeLogLevel maps raw input to a LogLevel, defaulting to info.
func NormalizeLogLevel(raw string) LogLevel {
	switch l := LogLevel(strings.ToLower(strings.TrimSpace(raw))); l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return l
	case "warning":
		return LogLevelWarn
	default:
		return LogLevelInfo
	}
}

// LogFormat enumerates supported log output formats.
type LogFormat string

const (
	LogFormatJSON LogFormat = "json"
	LogFormatText LogFormat = "text"
)

// NormalizeLogFormat maps raw input to a LogFormat, defaulting to text.
func NormalizeLogFormat(raw string) LogFormat {
	if LogFormat(strings.ToLower(strings.TrimSpace(raw))) == LogFormatJSON {
		return LogFormatJSON
	}
	return LogFormatText
}

// SlogLevel converts a LogLevel to its slog counterpart.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the process logger. Precedence for the level:
// --verbose > THEMEBUILDER_LOG_LEVEL > logging.level.
func NewLogger(cfg LoggingConfig, verbose bool, w io.Writer) *slog.Logger {
	level := NormalizeLogLevel(cfg.Level)
	if env := os.Getenv("THEMEBUILDER_LOG_LEVEL"); env != "" {
		level = NormalizeLogLevel(env)
	}
	if verbose {
		level = LogLevelDebug
	}
	if cfg.File != "" {
		w = io.MultiWriter(w, newRotatingFile(cfg))
	}
	opts := &slog.HandlerOptions{Level: level.SlogLevel()}
	if NormalizeLogFormat(cfg.Format) == LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func newRotatingFile(cfg LoggingConfig) *lumberjack.Logger {
	size := cfg.MaxSizeMB
	if size <= 0 {
		size = 10
	}
	return &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    size, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}
}
