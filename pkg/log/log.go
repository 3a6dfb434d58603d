// Package log provides the process-wide logger for edgeprobe.
package log

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the global logger shared by every package.
var Logger *edgeLogger

var nopLogger = zap.NewNop().Sugar()

func init() {
	Logger = CreateLoggerWithConfig(DefaultLoggerConfig())
}

func DefaultLoggerConfig() *zap.Config {
	c := zap.NewProductionConfig()
	c.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return &c
}

// CreateLoggerWithLumberjack writes JSON logs into a rotated file.
func CreateLoggerWithLumberjack(logFile string, maxSizeMB int, logLevel zapcore.Level) *edgeLogger {
	w := zapcore.AddSync(&lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    maxSizeMB,
		MaxBackups: 3,
		MaxAge:     7, // days
		Compress:   true,
	})

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), w, logLevel)
	return newEdgeLogger(zap.New(core).Sugar())
}

// ParseLogLevel parses the level name, defaulting to info when empty.
func ParseLogLevel(logLevel string) (zap.AtomicLevel, error) {
	if logLevel == "" || logLevel == "info" {
		return zap.NewAtomicLevel(), nil
	}
	return zap.ParseAtomicLevel(logLevel)
}

func CreateLogger(logLevel zap.AtomicLevel, logFile string) *edgeLogger {
	if logFile != "" {
		return CreateLoggerWithLumberjack(logFile, 64, logLevel.Level())
	}

	lCfg := DefaultLoggerConfig()
	lCfg.Level = logLevel
	return CreateLoggerWithConfig(lCfg)
}

func CreateLoggerWithConfig(config *zap.Config) *edgeLogger {
	if config == nil {
		config = DefaultLoggerConfig()
	}

	l, err := config.Build()
	if err != nil {
		panic(err)
	}
	return newEdgeLogger(l.Sugar())
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() *edgeLogger {
	return newEdgeLogger(nopLogger)
}

type edgeLogger struct {
	logger atomic.Pointer[zap.SugaredLogger]
}

func newEdgeLogger(logger *zap.SugaredLogger) *edgeLogger {
	l := &edgeLogger{}
	l.set(logger)
	return l
}

func (l *edgeLogger) get() *zap.SugaredLogger {
	if l == nil {
		return nopLogger
	}
	if logger := l.logger.Load(); logger != nil {
		return logger
	}
	return nopLogger
}

func (l *edgeLogger) set(logger *zap.SugaredLogger) {
	if logger == nil {
		logger = nopLogger
	}
	l.logger.Store(logger)
}

// SetLogger swaps the logger behind the global Logger.
func SetLogger(logger *edgeLogger) {
	if logger == nil {
		Logger.set(nil)
		return
	}
	Logger.set(logger.get())
}

// Errorw logs at warn level instead when the "error" value is a
// context cancellation, which is how probes and streams normally end.
func (l *edgeLogger) Errorw(msg string, keysAndValues ...interface{}) {
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if keysAndValues[i] != "error" {
			continue
		}
		if err, ok := keysAndValues[i+1].(error); ok && isCanceled(err) {
			l.get().Warnw(msg, keysAndValues...)
			return
		}
	}
	l.get().Errorw(msg, keysAndValues...)
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || strings.Contains(err.Error(), context.Canceled.Error())
}

func (l *edgeLogger) Debug(args ...interface{})                   { l.get().Debug(args...) }
func (l *edgeLogger) Debugf(template string, args ...interface{}) { l.get().Debugf(template, args...) }
func (l *edgeLogger) Debugw(msg string, kv ...interface{})        { l.get().Debugw(msg, kv...) }
func (l *edgeLogger) Info(args ...interface{})                    { l.get().Info(args...) }
func (l *edgeLogger) Infof(template string, args ...interface{})  { l.get().Infof(template, args...) }
func (l *edgeLogger) Infow(msg string, kv ...interface{})         { l.get().Infow(msg, kv...) }
func (l *edgeLogger) Warn(args ...interface{})                    { l.get().Warn(args...) }
func (l *edgeLogger) Warnf(template string, args ...interface{})  { l.get().Warnf(template, args...) }
func (l *edgeLogger) Warnw(msg string, kv ...interface{})         { l.get().Warnw(msg, kv...) }
func (l *edgeLogger) Error(args ...interface{})                   { l.get().Error(args...) }
func (l *edgeLogger) Errorf(template string, args ...interface{}) { l.get().Errorf(template, args...) }
func (l *edgeLogger) Fatal(args ...interface{})                   { l.get().Fatal(args...) }

func (l *edgeLogger) With(args ...interface{}) *zap.SugaredLogger {
	return l.get().With(args...)
}

func (l *edgeLogger) Desugar() *zap.Logger {
	return l.get().Desugar()
}
