package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := FromZap(zap.New(core))

	tests := []struct {
		name      string
		fn        func()
		wantLevel zapcore.Level
		expected  string
	}{
		{
			name:      "Info",
			fn:        func() { l.Info("test message") },
			wantLevel: zapcore.InfoLevel,
			expected:  "test message",
		},
		{
			name:      "Warn",
			fn:        func() { l.Warn("warning message") },
			wantLevel: zapcore.WarnLevel,
			expected:  "warning message",
		},
		{
			name:      "Error",
			fn:        func() { l.Error("error message") },
			wantLevel: zapcore.ErrorLevel,
			expected:  "error message",
		},
		{
			name:      "Debug",
			fn:        func() { l.Debug("debug message") },
			wantLevel: zapcore.DebugLevel,
			expected:  "debug message",
		},
		{
			name:      "Info with args",
			fn:        func() { l.Info("test %s=%d", "count", 42) },
			wantLevel: zapcore.InfoLevel,
			expected:  "test count=42",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logs.TakeAll()
			tt.fn()
			entries := logs.TakeAll()
			if len(entries) != 1 {
				t.Fatalf("got %d entries, want 1", len(entries))
			}
			if entries[0].Message != tt.expected {
				t.Errorf("got %q, want %q", entries[0].Message, tt.expected)
			}
			if entries[0].Level != tt.wantLevel {
				t.Errorf("got level %v, want %v", entries[0].Level, tt.wantLevel)
			}
		})
	}
}

func TestWithAddsFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := FromZap(zap.New(core)).With("component", "background")

	l.Info("hello")

	entries := logs.TakeAll()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if got := entries[0].ContextMap()["component"]; got != "background" {
		t.Errorf("got component=%v, want %q", got, "background")
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestDefault(t *testing.T) {
	if Default == nil {
		t.Error("Default logger should not be nil")
	}

	NewNop().Info("test")
}
