// Package zaplog backs the shared latency-benchmark logging interface with
// zap, so structured logs go to stderr and never mix with report output.
package zaplog

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/RyanBlaney/latency-benchmark-common/logging"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var _ logging.Logger = (*Logger)(nil)

// Logger implements logging.Logger on top of a zap core
type Logger struct {
	base  *zap.Logger
	level zap.AtomicLevel
}

// New wraps an arbitrary zap core. The core's own level still applies.
func New(core zapcore.Core) *Logger {
	return &Logger{
		base:  zap.New(core),
		level: zap.NewAtomicLevelAt(zapcore.DebugLevel),
	}
}

// NewConsole returns a human-readable logger writing to w
func NewConsole(w io.Writer, level logging.Level) *Logger {
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	atomic := zap.NewAtomicLevelAt(zapLevel(level))
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.Lock(zapcore.AddSync(w)),
		atomic,
	)
	return &Logger{base: zap.New(core), level: atomic}
}

// ParseLevel maps a config string such as "debug" to a logging level
func ParseLevel(s string) (logging.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return logging.DebugLevel, nil
	case "info", "":
		return logging.InfoLevel, nil
	case "warn", "warning":
		return logging.WarnLevel, nil
	case "error":
		return logging.ErrorLevel, nil
	default:
		return logging.InfoLevel, fmt.Errorf("unknown log level: %s", s)
	}
}

func (l *Logger) Debug(msg string, fields ...logging.Fields) {
	if l.level.Enabled(zapcore.DebugLevel) {
		l.base.Debug(msg, toZap(fields)...)
	}
}

func (l *Logger) Info(msg string, fields ...logging.Fields) {
	if l.level.Enabled(zapcore.InfoLevel) {
		l.base.Info(msg, toZap(fields)...)
	}
}

func (l *Logger) Warn(msg string, fields ...logging.Fields) {
	if l.level.Enabled(zapcore.WarnLevel) {
		l.base.Warn(msg, toZap(fields)...)
	}
}

func (l *Logger) Error(err error, msg string, fields ...logging.Fields) {
	if !l.level.Enabled(zapcore.ErrorLevel) {
		return
	}
	zf := toZap(fields)
	if err != nil {
		zf = append(zf, zap.Error(err))
	}
	l.base.Error(msg, zf...)
}

func (l *Logger) Fatal(err error, msg string, fields ...logging.Fields) {
	zf := toZap(fields)
	if err != nil {
		zf = append(zf, zap.Error(err))
	}
	l.base.Fatal(msg, zf...)
}

func (l *Logger) WithFields(fields logging.Fields) logging.Logger {
	return &Logger{
		base:  l.base.With(toZap([]logging.Fields{fields})...),
		level: l.level,
	}
}

// WithContext picks up fields stored under "logger_fields", the key the
// shared logging package reads
func (l *Logger) WithContext(ctx context.Context) logging.Logger {
	if fields, ok := ctx.Value("logger_fields").(logging.Fields); ok {
		return l.WithFields(fields)
	}
	return l
}

// SetLevel changes the level of l and every logger derived from it
func (l *Logger) SetLevel(level logging.Level) {
	l.level.SetLevel(zapLevel(level))
}

func zapLevel(level logging.Level) zapcore.Level {
	switch level {
	case logging.DebugLevel:
		return zapcore.DebugLevel
	case logging.WarnLevel:
		return zapcore.WarnLevel
	case logging.ErrorLevel:
		return zapcore.ErrorLevel
	case logging.FatalLevel:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// toZap flattens field sets into zap fields with a stable key order
func toZap(sets []logging.Fields) []zap.Field {
	var out []zap.Field
	for _, fields := range sets {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out = append(out, zap.Any(k, fields[k]))
		}
	}
	return out
}
