package logging

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInit_LevelAndOutput(t *testing.T) {
	out := filepath.Join(t.TempDir(), "stselect.log")
	if err := Init(Config{Level: "warn", Format: "json", OutputPath: out}); err != nil {
		t.Fatalf("Init: %v", err)
	}

	L().Info("hidden message")
	L().Warn("shown message", zap.String("folder", "docs"))
	if err := Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if strings.Contains(string(data), "hidden message") {
		t.Error("info message written at warn level")
	}
	if !strings.Contains(string(data), "shown message") || !strings.Contains(string(data), `"folder":"docs"`) {
		t.Errorf("warn message missing: %s", data)
	}
}

func TestInit_BadLevelDefaultsToWarn(t *testing.T) {
	out := filepath.Join(t.TempDir(), "stselect.log")
	if err := Init(Config{Level: "loud", OutputPath: out}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if L().Core().Enabled(zapcore.InfoLevel) || !L().Core().Enabled(zapcore.WarnLevel) {
		t.Errorf("level = %v, want warn", globalLevel.Level())
	}
}

func TestSetLevel(t *testing.T) {
	out := filepath.Join(t.TempDir(), "stselect.log")
	if err := Init(Config{Level: "info", OutputPath: out}); err != nil {
		t.Fatalf("Init: %v", err)
	}

	SetLevel("debug")
	if !L().Core().Enabled(zapcore.DebugLevel) {
		t.Error("debug not enabled after SetLevel")
	}

	SetLevel("nonsense")
	if globalLevel.Level() != zapcore.DebugLevel {
		t.Errorf("invalid level changed the level to %v", globalLevel.Level())
	}
}

func TestWithContext(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	base := zap.New(core)

	WithContext(context.Background(), base).Info("plain")
	ctx := WithFolder(context.Background(), "photos")
	WithContext(ctx, base).Info("scoped")
	WithContext(WithFolder(ctx, "docs"), base).Info("inner")

	entries := logs.AllUntimed()
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	if _, ok := entries[0].ContextMap()["folder"]; ok {
		t.Error("folder field without WithFolder")
	}
	if got := entries[1].ContextMap()["folder"]; got != "photos" {
		t.Errorf("folder = %v, want photos", got)
	}
	if got := entries[2].ContextMap()["folder"]; got != "docs" || len(entries[2].Context) != 1 {
		t.Errorf("inner entry fields = %v", entries[2].Context)
	}

	if WithContext(context.Background(), nil) != L() {
		t.Error("WithContext with a nil logger should return the global logger")
	}
}
