// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package log provides the small structured-logging seam the codec uses
// for non-fatal diagnostics, such as a modern table whose name hash cannot
// be resolved while indexing. It mirrors the Logger/Helper/Filter
// shape the original PE toolkit exposed, backed by zap instead of a
// hand-rolled writer.
package log

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level is a logging severity, ordered least to most severe.
type Level int8

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelInfo:
		return zapcore.InfoLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.FatalLevel
	}
}

// Logger is the minimal sink every log call in the codec goes through.
// keyvals is an alternating key/value sequence, mirroring the original
// toolkit's Logger contract.
type Logger interface {
	Log(level Level, keyvals ...interface{}) error
}

// zapLogger adapts a *zap.SugaredLogger to the Logger interface.
type zapLogger struct {
	sugar *zap.SugaredLogger
}

// NewStdLogger builds a Logger backed by zap's production console
// encoder. name identifies the component in each log line (e.g. "bdat").
func NewStdLogger(name string) Logger {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(cfg), zapcore.Lock(zapcore.AddSync(os.Stdout)), zapcore.DebugLevel)
	logger := zap.New(core).Named(name)
	return &zapLogger{sugar: logger.Sugar()}
}

func (l *zapLogger) Log(level Level, keyvals ...interface{}) error {
	fields := make([]interface{}, 0, len(keyvals))
	fields = append(fields, keyvals...)
	switch level {
	case LevelDebug:
		l.sugar.Debugw("", fields...)
	case LevelInfo:
		l.sugar.Infow("", fields...)
	case LevelWarn:
		l.sugar.Warnw("", fields...)
	case LevelError:
		l.sugar.Errorw("", fields...)
	default:
		l.sugar.Errorw("", fields...)
	}
	return nil
}

// filter wraps a Logger, dropping entries below a minimum level.
type filter struct {
	logger Logger
	level  Level
}

// FilterOption configures a filter built by NewFilter.
type FilterOption func(*filter)

// FilterLevel sets the minimum level a filtered Logger passes through.
func FilterLevel(level Level) FilterOption {
	return func(f *filter) { f.level = level }
}

// NewFilter wraps logger with level filtering; by default nothing is
// dropped, matching the original toolkit's zero-value behavior.
func NewFilter(logger Logger, opts ...FilterOption) Logger {
	f := &filter{logger: logger, level: LevelDebug}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *filter) Log(level Level, keyvals ...interface{}) error {
	if level < f.level {
		return nil
	}
	return f.logger.Log(level, keyvals...)
}

// Helper is the ergonomic, printf-style façade every package in the codec
// actually calls, built over a raw Logger.
type Helper struct {
	logger Logger
}

// NewHelper wraps logger with Debugf/Infof/Warnf/Errorf convenience methods.
func NewHelper(logger Logger) *Helper {
	return &Helper{logger: logger}
}

func (h *Helper) log(level Level, format string, args ...interface{}) {
	if h == nil || h.logger == nil {
		return
	}
	_ = h.logger.Log(level, "msg", fmt.Sprintf(format, args...))
}

func (h *Helper) Debugf(format string, args ...interface{}) { h.log(LevelDebug, format, args...) }
func (h *Helper) Infof(format string, args ...interface{})  { h.log(LevelInfo, format, args...) }
func (h *Helper) Warnf(format string, args ...interface{})  { h.log(LevelWarn, format, args...) }
func (h *Helper) Errorf(format string, args ...interface{}) { h.log(LevelError, format, args...) }
