package logger

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Log is the global logger instance
	Log *zap.Logger

	mu sync.Mutex
)

// Init initializes the logger with the given log level
func Init(level string) error {
	if level == "" {
		level = "info"
	}

	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		return err
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	// Disable stack traces
	config.EncoderConfig.StacktraceKey = ""
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	l, err := config.Build()
	if err != nil {
		return err
	}

	mu.Lock()
	Log = l
	mu.Unlock()
	return nil
}

// GetLogger returns the global logger instance, building a production
// logger on first use if Init was never called.
func GetLogger() *zap.Logger {
	mu.Lock()
	defer mu.Unlock()

	if Log == nil {
		l, err := zap.NewProduction(zap.WithCaller(false))
		if err != nil {
			panic(err)
		}
		Log = l
	}
	return Log
}

// Sync flushes any buffered log entries
func Sync() error {
	return GetLogger().Sync()
}
