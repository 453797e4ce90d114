// Package logger provides structured logging for seaflow
package logger

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	globalLogger *zap.Logger
	mu           sync.RWMutex
)

// contextKey is the type for context keys
type contextKey string

const (
	// JobIDKey is the context key for the job ID
	JobIDKey contextKey = "job_id"
	// PluginKey is the context key for a plugin name
	PluginKey contextKey = "plugin"
	// TableKey is the context key for a result table name
	TableKey contextKey = "table"
)

// Config represents logger configuration
type Config struct {
	Level       string
	Development bool
	Encoding    string // json or console
	OutputPaths []string
}

// DefaultConfig returns the configuration used when Init was never called
func DefaultConfig() Config {
	return Config{
		Level:    "info",
		Encoding: "json",
	}
}

// Init builds the global logger. Calling it again replaces the previous logger.
func Init(cfg Config) error {
	l, err := newLogger(cfg)
	if err != nil {
		return err
	}
	mu.Lock()
	globalLogger = l
	mu.Unlock()
	return nil
}

func newLogger(cfg Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	if cfg.Encoding == "" {
		cfg.Encoding = "json"
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	if cfg.Development {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	outputPaths := cfg.OutputPaths
	if len(outputPaths) == 0 {
		outputPaths = []string{"stderr"}
	}

	zapCfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Development,
		Encoding:         cfg.Encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      outputPaths,
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	if cfg.Development {
		logger = logger.WithOptions(zap.AddStacktrace(zapcore.ErrorLevel))
	}

	return logger, nil
}

// Get returns the global logger, building a default one on first use
func Get() *zap.Logger {
	mu.RLock()
	l := globalLogger
	mu.RUnlock()
	if l != nil {
		return l
	}

	if err := Init(DefaultConfig()); err != nil {
		fallback, _ := zap.NewProduction()
		mu.Lock()
		globalLogger = fallback
		mu.Unlock()
	}
	mu.RLock()
	defer mu.RUnlock()
	return globalLogger
}

// WithContext returns a logger carrying the job, plugin and table values found in ctx
func WithContext(ctx context.Context) *zap.Logger {
	logger := Get()

	if jobID, ok := ctx.Value(JobIDKey).(string); ok {
		logger = logger.With(zap.String("job_id", jobID))
	}
	if plugin, ok := ctx.Value(PluginKey).(string); ok {
		logger = logger.With(zap.String("plugin", plugin))
	}
	if table, ok := ctx.Value(TableKey).(string); ok {
		logger = logger.With(zap.String("table", table))
	}

	return logger
}

// ContextWithJobID stores the job ID for WithContext
func ContextWithJobID(ctx context.Context, jobID string) context.Context {
	return context.WithValue(ctx, JobIDKey, jobID)
}

// With creates a child logger with additional fields
func With(fields ...zap.Field) *zap.Logger {
	return Get().With(fields...)
}

// Sync flushes any buffered log entries
func Sync() error {
	mu.RLock()
	defer mu.RUnlock()
	if globalLogger != nil {
		return globalLogger.Sync()
	}
	return nil
}
