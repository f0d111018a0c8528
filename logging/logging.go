// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.
//
// Copyright 2024 FeatureForm Inc.
//

package logging

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type contextKey string

const (
	loggerKey    contextKey = "logger"
	requestIDKey            = "request-id"
)

var GlobalLogger = NewLogger("global")

type Logger struct {
	*zap.SugaredLogger
	values map[string]interface{}
}

type RequestID string

func NewRequestID() RequestID {
	return RequestID(uuid.New().String())
}

func NewLogger(service string) Logger {
	baseLogger, err := zap.NewDevelopment(
		zap.AddStacktrace(zap.ErrorLevel),
	)
	if err != nil {
		panic(err)
	}
	return Logger{
		SugaredLogger: baseLogger.Sugar().Named(service),
		values:        map[string]interface{}{},
	}
}

// NewProductionLogger logs JSON at info level, which is what CloudWatch ingests best.
func NewProductionLogger(service string) Logger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	baseLogger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return Logger{
		SugaredLogger: baseLogger.Sugar().Named(service),
		values:        map[string]interface{}{},
	}
}

// WrapZapLogger is used by tests to capture output with zaptest/observer.
func WrapZapLogger(logger *zap.SugaredLogger) Logger {
	return Logger{
		SugaredLogger: logger,
		values:        map[string]interface{}{},
	}
}

func (logger Logger) WithValues(keysAndValues ...interface{}) Logger {
	values := make(map[string]interface{}, len(logger.values))
	for k, v := range logger.values {
		values[k] = v
	}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if key, ok := keysAndValues[i].(string); ok {
			values[key] = keysAndValues[i+1]
		}
	}
	return Logger{
		SugaredLogger: logger.SugaredLogger.With(keysAndValues...),
		values:        values,
	}
}

func (logger Logger) WithRequestID(id RequestID) Logger {
	return logger.WithValues(requestIDKey, id)
}

func (logger Logger) GetValue(key string) interface{} {
	return logger.values[key]
}

func (logger Logger) GetRequestID() RequestID {
	id, ok := logger.values[requestIDKey].(RequestID)
	if !ok {
		return ""
	}
	return id
}

func (logger Logger) AttachToContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// GetLoggerFromContext falls back to GlobalLogger when nothing was attached.
func GetLoggerFromContext(ctx context.Context) Logger {
	logger, ok := ctx.Value(loggerKey).(Logger)
	if !ok {
		return GlobalLogger
	}
	return logger
}

func (logger Logger) LogIfErr(msg string, err error) {
	if err != nil {
		logger.Errorw(msg, "err", err)
	}
}
