package logger

import (
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger defines the backdrop logging contract.
// Implementations should support standard log levels and be safe for concurrent use.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	Debug(msg string, args ...any)
}

// ZapLogger adapts a zap sugared logger to the backdrop logging contract.
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

// New builds a ZapLogger for the named level ("debug", "info", "warn", "error").
// Output is human-readable on a terminal and JSON otherwise.
func New(level string) (*ZapLogger, error) {
	lvl, err := zapcore.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(lvl)
	if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		config.Encoding = "console"
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	config.OutputPaths = []string{"stdout"}

	z, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return FromZap(z), nil
}

// FromZap wraps an existing zap logger.
func FromZap(z *zap.Logger) *ZapLogger {
	return &ZapLogger{sugar: z.Sugar()}
}

// NewNop returns a logger that discards everything.
func NewNop() *ZapLogger {
	return FromZap(zap.NewNop())
}

// With returns a child logger carrying the given key/value pairs on every entry.
func (l *ZapLogger) With(keysAndValues ...any) *ZapLogger {
	return &ZapLogger{sugar: l.sugar.With(keysAndValues...)}
}

func (l *ZapLogger) Info(msg string, args ...any) {
	l.sugar.Infof(msg, args...)
}

func (l *ZapLogger) Warn(msg string, args ...any) {
	l.sugar.Warnf(msg, args...)
}

func (l *ZapLogger) Error(msg string, args ...any) {
	l.sugar.Errorf(msg, args...)
}

func (l *ZapLogger) Debug(msg string, args ...any) {
	l.sugar.Debugf(msg, args...)
}

// Sync flushes buffered entries.
func (l *ZapLogger) Sync() error {
	return l.sugar.Sync()
}

// Default provides a global default logger used until the CLI configures one.
var Default Logger = mustDefault()

func mustDefault() Logger {
	l, err := New("info")
	if err != nil {
		return NewNop()
	}
	return l
}
