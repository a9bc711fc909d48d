package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNew(t *testing.T) {
	log := New()
	if log.GetLevel() == zerolog.Disabled {
		t.Error("Expected logger to be enabled")
	}
}

func TestNewWithWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf)

	log.Info().Str("doc_id", "doc-1").Str("stage", "IDENTITY_READY").Msg("stage complete")

	output := buf.String()
	if output == "" {
		t.Error("Expected log output, got empty string")
	}
	if !strings.Contains(output, "stage complete") || !strings.Contains(output, "doc-1") {
		t.Errorf("Expected output to contain stage event fields, got: %s", output)
	}
}

func TestNewAtLevel(t *testing.T) {
	log := NewAtLevel(zerolog.WarnLevel)
	if log.GetLevel() != zerolog.WarnLevel {
		t.Errorf("Expected warn level, got %s", log.GetLevel())
	}
}

func TestWithContext(t *testing.T) {
	log := New()
	ctx := context.Background()

	ctxWithLogger := WithContext(ctx, log)

	if ctxWithLogger.Value(LoggerKey) == nil {
		t.Error("Expected logger in context, got nil")
	}
}

func TestFromContext(t *testing.T) {
	buf := &bytes.Buffer{}
	testLog := NewWithWriter(buf)
	ctx := WithContext(context.Background(), testLog)

	retrievedLog := FromContext(ctx)
	retrievedLog.Info().Str("doc_id", "doc-1").Msg("extraction started")

	if buf.Len() == 0 {
		t.Error("Expected log output from retrieved logger")
	}
}

func TestFromContext_DefaultLogger(t *testing.T) {
	ctx := context.Background()

	// Should return a default logger when none is in context
	log := FromContext(ctx)

	if log.GetLevel() == zerolog.Disabled {
		t.Error("Expected default logger to be enabled")
	}
}

func TestWithFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf)

	fields := map[string]interface{}{
		"doc_id":  "doc-1",
		"attempt": 2,
	}

	logWithFields := WithFields(log, fields)
	logWithFields.Info().Msg("retrying extraction")

	output := buf.String()
	if !strings.Contains(output, "doc_id") || !strings.Contains(output, "doc-1") {
		t.Errorf("Expected output to contain doc_id field, got: %s", output)
	}
	if !strings.Contains(output, "attempt") || !strings.Contains(output, "2") {
		t.Errorf("Expected output to contain attempt field, got: %s", output)
	}
}
