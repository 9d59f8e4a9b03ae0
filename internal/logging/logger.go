package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps a sugared zap logger. The zero value is not usable; use New or Nop.
type Logger struct {
	logger *zap.SugaredLogger
}

// New builds a console logger writing to stderr at the given level
// ("debug", "info", "warn", "error"). An empty level means "info".
func New(level string) (*Logger, error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, err
	}

	config := zap.NewProductionConfig()
	config.Encoding = "console"
	config.Level = zap.NewAtomicLevelAt(lvl)
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}
	config.EncoderConfig.TimeKey = "time"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.DisableStacktrace = true

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return &Logger{logger: logger.Sugar()}, nil
}

func parseLevel(level string) (zapcore.Level, error) {
	lvl := zapcore.InfoLevel
	if level != "" {
		if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
			return lvl, fmt.Errorf("invalid log level %q: %w", level, err)
		}
	}
	return lvl, nil
}

// FromZap wraps an existing zap logger.
func FromZap(l *zap.Logger) *Logger {
	return &Logger{logger: l.Sugar()}
}

// AtLeast returns a logger that drops entries below level. The threshold
// only ever rises: a level below l's own leaves l unchanged.
func (l *Logger) AtLeast(level string) (*Logger, error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, err
	}
	if lvl <= l.logger.Level() {
		return l, nil
	}
	return &Logger{logger: l.logger.WithOptions(zap.IncreaseLevel(lvl))}, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{logger: zap.NewNop().Sugar()}
}

// With returns a child logger carrying the given key/value pairs.
func (l *Logger) With(args ...interface{}) *Logger {
	return &Logger{logger: l.logger.With(args...)}
}

func (l *Logger) Info(msg string, args ...interface{}) {
	l.logger.Infow(msg, args...)
}

func (l *Logger) Error(msg string, args ...interface{}) {
	l.logger.Errorw(msg, args...)
}

func (l *Logger) Debug(msg string, args ...interface{}) {
	l.logger.Debugw(msg, args...)
}

func (l *Logger) Warn(msg string, args ...interface{}) {
	l.logger.Warnw(msg, args...)
}

// Sync flushes buffered entries.
func (l *Logger) Sync() {
	_ = l.logger.Sync()
}
