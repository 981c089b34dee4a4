package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")

	log, err := New(true, false, path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	log.Debug("hidden at info level")
	log.Info("ranking published")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}

	content := string(data)
	if !strings.Contains(content, `"step":"ranking published"`) {
		t.Fatalf("expected json entry in log file, got %q", content)
	}
	if strings.Contains(content, "hidden at info level") {
		t.Fatalf("debug entry must not be written at info level")
	}
}

func TestNewWithoutFile(t *testing.T) {
	log, err := New(false, true, "  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !log.Core().Enabled(-1) {
		t.Fatalf("expected debug level to be enabled")
	}
}
