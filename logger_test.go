package kurir

import (
	"bytes"
	"log"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSimpleLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	l := &SimpleLogger{logger: log.New(&buf, "", 0)}

	l.Debug("debug message")
	l.Info("info message", "key", "value")
	l.Warn("warn message")
	l.Error("error message", "code", 500)

	out := buf.String()
	for _, want := range []string{
		"DEBUG debug message",
		"INFO info message",
		"WARN warn message",
		"ERROR error message",
		"key value",
		"code 500",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestNewSimpleLogger(t *testing.T) {
	l := NewSimpleLogger()
	if l == nil || l.logger == nil {
		t.Fatal("NewSimpleLogger must return a usable logger")
	}
}

func TestZapLoggerAdapter(t *testing.T) {
	core, observed := observer.New(zapcore.DebugLevel)
	l := NewZapLogger(zap.New(core))

	l.Debug("cache hit", "fingerprint", "abc123")
	l.Info("request complete", "status", 200)
	l.Warn("pool exhausted", "host", "api.example.test")
	l.Error("send failed", "attempt", 2)

	entries := observed.All()
	if len(entries) != 4 {
		t.Fatalf("expected 4 log entries, got %d", len(entries))
	}

	levels := []zapcore.Level{
		zapcore.DebugLevel, zapcore.InfoLevel, zapcore.WarnLevel, zapcore.ErrorLevel,
	}
	for i, entry := range entries {
		if entry.Level != levels[i] {
			t.Errorf("entry %d level = %v, want %v", i, entry.Level, levels[i])
		}
	}

	fields := entries[0].ContextMap()
	if fields["fingerprint"] != "abc123" {
		t.Errorf("expected structured field, got %v", fields)
	}
}

func TestDefaultDebugConfig(t *testing.T) {
	cfg := DefaultDebugConfig()

	if cfg.Enabled {
		t.Error("debug must be off until explicitly enabled")
	}
	if !cfg.LogRequests || !cfg.LogCache || !cfg.LogRateLimit || !cfg.LogPool {
		t.Error("all per-concern flags default to on")
	}
	if cfg.RequestIDGen == nil {
		t.Fatal("RequestIDGen must be set")
	}
	if a, b := cfg.RequestIDGen(), cfg.RequestIDGen(); a == b || a == "" {
		t.Error("request IDs must be unique and non-empty")
	}
}
