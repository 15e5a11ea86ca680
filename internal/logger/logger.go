// Package logger holds the process-wide structured logger. Output goes to
// stderr, and optionally to a rotated file, so stdout stays reserved for
// the digest itself.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// L is the global sugared logger.
	L *zap.SugaredLogger
	// Z is the underlying zap logger.
	Z *zap.Logger

	file *lumberjack.Logger
)

func init() {
	Z = zap.New(newCore(os.Stderr, zapcore.InfoLevel))
	L = Z.Sugar()
}

// Config selects the log level and an optional log file.
type Config struct {
	Level      string    // debug, info, warn, error
	File       string    // rotated log file; empty logs to stderr only
	MaxSize    int       // megabytes per file
	MaxBackups int       // rotated files kept
	MaxAge     int       // days a rotated file is kept
	Output     io.Writer // console destination, defaults to stderr
}

// ParseLevel maps a level name onto a zap level. Empty means info.
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info", "":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unsupported log level %q", level)
	}
}

// Init replaces the global logger according to cfg.
func Init(cfg Config) error {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return err
	}

	var output io.Writer = os.Stderr
	if cfg.Output != nil {
		output = cfg.Output
	}

	Close()
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return fmt.Errorf("create log dir: %w", err)
		}
		file = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    orDefault(cfg.MaxSize, 16),
			MaxBackups: orDefault(cfg.MaxBackups, 3),
			MaxAge:     orDefault(cfg.MaxAge, 14),
			Compress:   true,
		}
		output = io.MultiWriter(output, file)
	}

	Z = zap.New(newCore(output, level))
	L = Z.Sugar()
	return nil
}

func newCore(w io.Writer, level zapcore.Level) zapcore.Core {
	encoderCfg := zapcore.EncoderConfig{
		TimeKey:        "T",
		LevelKey:       "L",
		MessageKey:     "M",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}
	return zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), zapcore.AddSync(w), level)
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// Sync flushes buffered entries. Call before exit.
func Sync() {
	if Z != nil {
		_ = Z.Sync()
	}
}

// Close releases the log file, if any.
func Close() {
	if file != nil {
		_ = file.Close()
		file = nil
	}
}

func Debugf(template string, args ...any) { L.Debugf(template, args...) }

func Infof(template string, args ...any) { L.Infof(template, args...) }

func Warnf(template string, args ...any) { L.Warnf(template, args...) }

func Errorf(template string, args ...any) { L.Errorf(template, args...) }
