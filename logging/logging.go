// Package logging builds the zap loggers used across the host.
package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls log level, format and the optional rotated log file.
type Config struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
	// Quiet silences the console; the file, if any, still receives logs.
	Quiet bool `yaml:"quiet"`

	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// DefaultConfig logs info and above to stderr.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		MaxSizeMB:  64,
		MaxBackups: 4,
		MaxAgeDays: 14,
	}
}

func encoder(dev bool) zapcore.Encoder {
	if dev {
		ec := zap.NewDevelopmentEncoderConfig()
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(ec)
	}
	ec := zap.NewProductionEncoderConfig()
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	return zapcore.NewJSONEncoder(ec)
}

// New builds a logger from cfg. The returned close function flushes and
// releases the log file.
func New(cfg Config) (*zap.Logger, func() error, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		l, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		level = l
	}
	atom := zap.NewAtomicLevelAt(level)

	var cores []zapcore.Core
	if !cfg.Quiet {
		cores = append(cores, zapcore.NewCore(encoder(cfg.Development), zapcore.Lock(os.Stderr), atom))
	}
	var rw *lumberjack.Logger
	if cfg.File != "" {
		rw = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		cores = append(cores, zapcore.NewCore(encoder(false), zapcore.AddSync(rw), atom))
	}
	if len(cores) == 0 {
		return zap.NewNop(), func() error { return nil }, nil
	}

	opts := []zap.Option{zap.AddCaller()}
	if cfg.Development {
		opts = append(opts, zap.Development())
	}
	logger := zap.New(zapcore.NewTee(cores...), opts...)
	closer := func() error {
		_ = logger.Sync()
		if rw != nil {
			return rw.Close()
		}
		return nil
	}
	return logger, closer, nil
}
