// Package log provides structured logging with session context.
//
// Two logger variants are available:
//   - Logger: Non-sugared zap.Logger for chunk paths (high performance, structured fields)
//   - SugaredLogger: Printf-style logging for CLI/debug surfaces (convenience over performance)
//
// Use Logger.Sugar() to obtain a SugaredLogger when needed.
package log

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/justapithecus/vst/types"
)

// Logger provides structured logging with session context.
// All log entries include the session identity fields.
//
// Use this on chunk read/write paths where performance matters.
// For CLI/debug surfaces, use Sugar() to get a SugaredLogger.
type Logger struct {
	zap   *zap.Logger
	meta  *types.SessionMeta
	level zapcore.Level
}

// SugaredLogger provides printf-style logging for CLI and debug surfaces.
// Wraps zap.SugaredLogger with session context.
type SugaredLogger struct {
	sugar *zap.SugaredLogger
}

// NewLogger creates a new logger with session context at debug level.
// Output defaults to os.Stderr.
func NewLogger(meta *types.SessionMeta) *Logger {
	return newLogger(meta, os.Stderr, zapcore.DebugLevel)
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{zap: zap.NewNop(), meta: &types.SessionMeta{}}
}

// ParseLevel parses debug, info, warn or error. Empty means debug.
func ParseLevel(s string) (zapcore.Level, error) {
	if s == "" {
		return zapcore.DebugLevel, nil
	}
	level, err := zapcore.ParseLevel(s)
	if err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

// WithOutput returns a new logger with a different output writer.
// Session context is preserved.
func (l *Logger) WithOutput(w io.Writer) *Logger {
	return newLogger(l.meta, w, l.level)
}

// WithLevel returns a new logger that drops entries below level.
func (l *Logger) WithLevel(level zapcore.Level) *Logger {
	return &Logger{
		zap:   l.zap.WithOptions(zap.IncreaseLevel(level)),
		meta:  l.meta,
		level: level,
	}
}

// newLogger creates a logger writing JSON lines to w.
func newLogger(meta *types.SessionMeta, w io.Writer, level zapcore.Level) *Logger {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:     "timestamp",
		LevelKey:    "level",
		MessageKey:  "message",
		EncodeTime:  zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel: zapcore.LowercaseLevelEncoder,
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(w),
		level,
	)

	contextFields := []zap.Field{
		zap.String("session", meta.Name),
	}
	if meta.Peer != nil {
		contextFields = append(contextFields, zap.String("peer", *meta.Peer))
	}

	return &Logger{
		zap:   zap.New(core).With(contextFields...),
		meta:  meta,
		level: level,
	}
}

// Debug logs a debug message.
func (l *Logger) Debug(message string, fields map[string]any) {
	l.zap.Debug(message, zap.Any("fields", fields))
}

// Info logs an info message.
func (l *Logger) Info(message string, fields map[string]any) {
	l.zap.Info(message, zap.Any("fields", fields))
}

// Warn logs a warning message.
func (l *Logger) Warn(message string, fields map[string]any) {
	l.zap.Warn(message, zap.Any("fields", fields))
}

// Error logs an error message.
func (l *Logger) Error(message string, fields map[string]any) {
	l.zap.Error(message, zap.Any("fields", fields))
}

// Sync flushes buffered log entries.
func (l *Logger) Sync() error {
	return l.zap.Sync()
}

// Sugar returns a SugaredLogger for printf-style logging.
func (l *Logger) Sugar() *SugaredLogger {
	return &SugaredLogger{sugar: l.zap.Sugar()}
}

// Debugf logs a debug message with printf-style formatting.
func (s *SugaredLogger) Debugf(template string, args ...any) {
	s.sugar.Debugf(template, args...)
}

// Infof logs an info message with printf-style formatting.
func (s *SugaredLogger) Infof(template string, args ...any) {
	s.sugar.Infof(template, args...)
}

// Warnf logs a warning message with printf-style formatting.
func (s *SugaredLogger) Warnf(template string, args ...any) {
	s.sugar.Warnf(template, args...)
}

// Errorf logs an error message with printf-style formatting.
func (s *SugaredLogger) Errorf(template string, args ...any) {
	s.sugar.Errorf(template, args...)
}

// With returns a SugaredLogger with additional context fields.
func (s *SugaredLogger) With(args ...any) *SugaredLogger {
	return &SugaredLogger{sugar: s.sugar.With(args...)}
}
