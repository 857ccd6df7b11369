package bladevk

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blade.log")
	l, closer, err := NewFileLogger(path, slog.LevelInfo)
	if err != nil {
		t.Fatal(err)
	}
	SetLogger(l)
	defer SetLogger(nil)

	Logger().Debug("hidden")
	Logger().Info("Adapter test", "name", "sim")
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	if strings.Contains(text, "hidden") {
		t.Errorf("debug record below level was written:\n%s", text)
	}
	if !strings.Contains(text, "name=sim") || !strings.Contains(text, "source=") {
		t.Errorf("unexpected log contents:\n%s", text)
	}
}

func TestSetLoggerNil(t *testing.T) {
	SetLogger(nil)
	if Logger().Enabled(t.Context(), slog.LevelError) {
		t.Error("default logger is not silent")
	}
}
