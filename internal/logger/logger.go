// Package logger provides the process-wide structured logger.
package logger

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu           sync.RWMutex
	globalLogger *zap.Logger
)

type contextKey string

const (
	// ExecutionIDKey is the context key for the execution id.
	ExecutionIDKey contextKey = "execution_id"
	// ConnectorKey is the context key for the connector name.
	ConnectorKey contextKey = "connector"
)

// Config represents logger configuration.
type Config struct {
	Level       string   `mapstructure:"level"`
	Development bool     `mapstructure:"development"`
	Encoding    string   `mapstructure:"encoding"` // json or console
	OutputPaths []string `mapstructure:"output_paths"`
}

// Init builds a logger from cfg and installs it as the global logger.
func Init(cfg Config) error {
	l, err := New(cfg)
	if err != nil {
		return err
	}
	mu.Lock()
	globalLogger = l
	mu.Unlock()
	return nil
}

// New builds a logger without installing it.
func New(cfg Config) (*zap.Logger, error) {
	levelName := cfg.Level
	if levelName == "" {
		levelName = "info"
	}
	level, err := zapcore.ParseLevel(levelName)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
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

	encoding := cfg.Encoding
	if encoding == "" {
		encoding = "json"
	}
	outputPaths := cfg.OutputPaths
	if len(outputPaths) == 0 {
		// stdout carries command output.
		outputPaths = []string{"stderr"}
	}

	zapCfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Development,
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      outputPaths,
		ErrorOutputPaths: []string{"stderr"},
	}

	l, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return l, nil
}

// Get returns the global logger, creating a default one on first use.
func Get() *zap.Logger {
	mu.RLock()
	l := globalLogger
	mu.RUnlock()
	if l != nil {
		return l
	}

	mu.Lock()
	defer mu.Unlock()
	if globalLogger == nil {
		l, err := New(Config{Level: "info", Encoding: "json"})
		if err != nil {
			l = zap.NewNop()
		}
		globalLogger = l
	}
	return globalLogger
}

// WithContext returns the global logger annotated with ids carried by ctx.
func WithContext(ctx context.Context) *zap.Logger {
	l := Get()
	if ctx == nil {
		return l
	}
	if id, ok := ctx.Value(ExecutionIDKey).(string); ok && id != "" {
		l = l.With(zap.String("execution_id", id))
	}
	if name, ok := ctx.Value(ConnectorKey).(string); ok && name != "" {
		l = l.With(zap.String("connector", name))
	}
	return l
}

// ContextWith stores an execution id and connector name for WithContext.
func ContextWith(ctx context.Context, executionID, connector string) context.Context {
	ctx = context.WithValue(ctx, ExecutionIDKey, executionID)
	return context.WithValue(ctx, ConnectorKey, connector)
}

// Sync flushes the global logger.
func Sync() {
	_ = Get().Sync()
}
