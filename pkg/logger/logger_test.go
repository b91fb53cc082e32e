package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestLoggerWritesTypedFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, zerolog.DebugLevel).With(String("component", "ensemble"))

	l.Info("trained",
		Int("models", 3),
		Float64("confidence", 0.75),
		Duration("elapsed", 1500*time.Millisecond),
		Strings("failed", []string{"holt", "remote"}),
		Error(errors.New("boom")),
	)

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if got["component"] != "ensemble" {
		t.Fatalf("component = %v", got["component"])
	}
	if got["confidence"] != 0.75 {
		t.Fatalf("confidence = %v", got["confidence"])
	}
	if got["elapsed"] != float64(1500) {
		t.Fatalf("elapsed = %v", got["elapsed"])
	}
	if got["failed"] != "holt, remote" {
		t.Fatalf("failed = %v", got["failed"])
	}
	if got["error"] != "boom" {
		t.Fatalf("error = %v", got["error"])
	}
}

func TestLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, zerolog.WarnLevel)
	l.Debug("hidden")
	l.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected no output below warn, got %q", buf.String())
	}
	l.Warn("shown")
	if buf.Len() == 0 {
		t.Fatal("expected warn output")
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New(&Config{Level: "loud"}); err == nil {
		t.Fatal("expected error for invalid level")
	}
}
