package telemetry

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInfoWritesFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	restore := SetLogger(zap.New(core))
	defer restore()

	Info("report resolved", map[string]any{"analysis_id": "abc", "attempts": 2})
	Error("report failed", map[string]any{"err": errors.New("boom")})

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	ctx := entries[0].ContextMap()
	if ctx["analysis_id"] != "abc" {
		t.Fatalf("unexpected analysis_id %v", ctx["analysis_id"])
	}
	if entries[1].Level != zapcore.ErrorLevel {
		t.Fatalf("expected error level, got %s", entries[1].Level)
	}
	if entries[1].ContextMap()["err"] != "boom" {
		t.Fatalf("expected err field, got %v", entries[1].ContextMap())
	}
}

func TestParseLevelFallsBackToInfo(t *testing.T) {
	if lvl := parseLevel("verbose"); lvl != zapcore.InfoLevel {
		t.Fatalf("expected info, got %s", lvl)
	}
	if lvl := parseLevel("DEBUG"); lvl != zapcore.DebugLevel {
		t.Fatalf("expected debug, got %s", lvl)
	}
}
