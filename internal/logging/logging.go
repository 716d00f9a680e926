// Package logging builds the process logger. Nothing here writes to stdout,
// which belongs to the stdio MCP transport.
package logging

import (
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"waypoint-mcp-server/internal/config"
)

// Rotation limits for the log file.
const (
	MaxSizeMB  = 50
	MaxBackups = 3
	MaxAgeDays = 14
)

// New returns a logger for cfg and a close function that flushes and releases
// the log file. With cfg.LogFile set, JSON lines go to a size-rotated file;
// otherwise human-readable lines go to stderr.
func New(cfg config.ServerConfig) (*zap.Logger, func(), error) {
	if cfg.LogFile == "" {
		logger, closeFn := build(zapcore.NewConsoleEncoder(encoderConfig()), zapcore.Lock(os.Stderr), cfg, nil)
		return logger, closeFn, nil
	}

	if dir := filepath.Dir(cfg.LogFile); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, nil, err
		}
	}
	rotator := &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    MaxSizeMB,
		MaxBackups: MaxBackups,
		MaxAge:     MaxAgeDays,
		LocalTime:  true,
		Compress:   true,
	}
	logger, closeFn := build(zapcore.NewJSONEncoder(encoderConfig()), zapcore.AddSync(rotator), cfg, rotator)
	return logger, closeFn, nil
}

func build(enc zapcore.Encoder, sink zapcore.WriteSyncer, cfg config.ServerConfig, closer io.Closer) (*zap.Logger, func()) {
	core := zapcore.NewCore(enc, sink, cfg.Level())
	logger := zap.New(core, zap.AddCaller()).With(
		zap.String("service", cfg.Name),
		zap.String("version", cfg.Version),
	)
	return logger, func() {
		_ = logger.Sync()
		if closer != nil {
			_ = closer.Close()
		}
	}
}

func encoderConfig() zapcore.EncoderConfig {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "ts"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	ec.EncodeDuration = zapcore.MillisDurationEncoder
	return ec
}
