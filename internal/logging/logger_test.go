package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew_WritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "weatherdash.log")

	logger, err := New(path, false)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Named("state").Info("reading received")
	logger.Debug("hidden at info level")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, `"msg":"reading received"`) || !strings.Contains(out, `"logger":"state"`) {
		t.Fatalf("log output = %q, want JSON entry for reading received", out)
	}
	if strings.Contains(out, "hidden at info level") {
		t.Fatalf("debug entry written at info level: %q", out)
	}
}

func TestNew_VerboseEnablesDebug(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weatherdash.log")

	logger, err := New(path, true)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Debug("debug entry")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "debug entry") {
		t.Fatalf("log output = %q, want debug entry", data)
	}
}

func TestNew_EmptyPathIsNop(t *testing.T) {
	logger, err := New("  ", false)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("discarded")
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatalf("OrNop(nil) returned nil")
	}
}
