// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.
//
// Copyright 2024 FeatureForm Inc.
//

package logging

import (
	"context"
	"fmt"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger(t *testing.T) {
	logger := NewLogger("test-logger")
	if logger.SugaredLogger == nil {
		t.Fatalf("Logger created incorrectly.")
	}
	if logger.GetRequestID() != "" {
		t.Fatalf("Expected empty request ID, got %s", logger.GetRequestID())
	}
}

func TestWithRequestID(t *testing.T) {
	logger := NewLogger("test-logger")
	id := NewRequestID()
	withID := logger.WithRequestID(id)
	if withID.GetRequestID() != id {
		t.Fatalf("Expected request ID %s, got %s", id, withID.GetRequestID())
	}
	if logger.GetRequestID() != "" {
		t.Fatalf("WithRequestID mutated the parent logger")
	}
}

func TestWithValues(t *testing.T) {
	logger := NewLogger("test-logger").WithValues("cluster-id", "j-123", "bucket", "scripts")
	if logger.GetValue("cluster-id") != "j-123" {
		t.Fatalf("Incorrect value for cluster-id: %v", logger.GetValue("cluster-id"))
	}
	if logger.GetValue("bucket") != "scripts" {
		t.Fatalf("Incorrect value for bucket: %v", logger.GetValue("bucket"))
	}
}

func TestContextRoundTrip(t *testing.T) {
	logger := NewLogger("test-logger").WithRequestID("abc")
	ctx := logger.AttachToContext(context.Background())
	got := GetLoggerFromContext(ctx)
	if got.GetRequestID() != "abc" {
		t.Fatalf("Expected logger from context to carry request ID, got %q", got.GetRequestID())
	}
	if GetLoggerFromContext(context.Background()).SugaredLogger != GlobalLogger.SugaredLogger {
		t.Fatalf("Expected GlobalLogger fallback")
	}
}

func TestLogIfErr(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := WrapZapLogger(zap.New(core).Sugar())
	logger.LogIfErr("closing", nil)
	logger.LogIfErr("closing", fmt.Errorf("failed"))
	if logs.Len() != 1 {
		t.Fatalf("Expected exactly one log entry, got %d", logs.Len())
	}
	if logs.All()[0].Message != "closing" {
		t.Fatalf("Unexpected message %q", logs.All()[0].Message)
	}
}
