package prefs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestOpen_MissingFileIsEmpty(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	f, err := Open("")
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	if want := filepath.Join(home, ".config", "weatherdash", "prefs.toml"); f.Path() != want {
		t.Fatalf("Path = %q, want %q", f.Path(), want)
	}
	if _, ok := f.Get(ThemeKey); ok {
		t.Fatalf("Get on empty prefs reported a value")
	}
}

func TestOpen_ReadsExistingFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	prefsDir := filepath.Join(home, ".config", "weatherdash")
	if err := os.MkdirAll(prefsDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	prefsFile := filepath.Join(prefsDir, "prefs.toml")
	if err := os.WriteFile(prefsFile, []byte("theme = \"dark\"\nunits = 3\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	f, err := Open("")
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	if v, ok := f.Get(ThemeKey); !ok || v != "dark" {
		t.Fatalf("Get(theme) = %q, %v; want dark", v, ok)
	}
	if _, ok := f.Get("units"); ok {
		t.Fatalf("non-string value should be ignored")
	}
}

func TestSet_CreatesFileAndDirs(t *testing.T) {
	prefsFile := filepath.Join(t.TempDir(), "subdir", "prefs.toml")

	f, err := Open(prefsFile)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	if err := f.Set(ThemeKey, "light"); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	if err := f.Set("layout", "compact"); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	reloaded, err := Open(prefsFile)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	if v, _ := reloaded.Get(ThemeKey); v != "light" {
		t.Fatalf("theme = %q, want light", v)
	}
	if got := reloaded.Keys(); len(got) != 2 || got[0] != "layout" || got[1] != ThemeKey {
		t.Fatalf("Keys = %v", got)
	}
}

func TestSet_FailureKeepsPreviousValue(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	// The parent "directory" is a regular file, so writes fail.
	f, err := Open(filepath.Join(blocker, "prefs.toml"))
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	if err := f.Set(ThemeKey, "dark"); err == nil {
		t.Fatalf("Set returned nil error")
	}
	if _, ok := f.Get(ThemeKey); ok {
		t.Fatalf("failed Set changed the in-memory value")
	}
}

func TestOpen_InvalidTOMLIsReportedAndBackedUp(t *testing.T) {
	prefsFile := filepath.Join(t.TempDir(), "prefs.toml")
	if err := os.WriteFile(prefsFile, []byte("not valid toml {{{\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	f, err := Open(prefsFile)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	if _, ok := f.Get(ThemeKey); ok {
		t.Fatalf("invalid file produced a value")
	}
	if f.Err() == nil {
		t.Fatalf("Err = nil for an unparsable file")
	}

	if err := f.Set(ThemeKey, "dark"); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	backup, err := os.ReadFile(f.BackupPath())
	if err != nil {
		t.Fatalf("damaged file was not kept: %v", err)
	}
	if string(backup) != "not valid toml {{{\n" {
		t.Fatalf("backup = %q, want original contents", backup)
	}
	reloaded, err := Open(prefsFile)
	if err != nil || reloaded.Err() != nil {
		t.Fatalf("reopen = %v, %v; want a clean file", err, reloaded.Err())
	}
	if v, _ := reloaded.Get(ThemeKey); v != "dark" {
		t.Fatalf("theme = %q, want dark", v)
	}
}

func TestOpen_MissingFileHasNoError(t *testing.T) {
	f, err := Open(filepath.Join(t.TempDir(), "prefs.toml"))
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	if f.Err() != nil {
		t.Fatalf("Err = %v for a missing file, want nil", f.Err())
	}
}

func TestSet_KeepsNonStringEntries(t *testing.T) {
	prefsFile := filepath.Join(t.TempDir(), "prefs.toml")
	if err := os.WriteFile(prefsFile, []byte("units = 3\ntheme = \"light\"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	f, err := Open(prefsFile)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	if err := f.Set(ThemeKey, "dark"); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	data, err := os.ReadFile(prefsFile)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "units = 3") {
		t.Fatalf("rewritten file dropped units:\n%s", data)
	}
	if _, err := os.Stat(f.BackupPath()); !os.IsNotExist(err) {
		t.Fatalf("backup written for a healthy file: %v", err)
	}
}
