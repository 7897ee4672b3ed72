// Package prefs handles weatherdash user preferences persistence.
// Preferences are stored in ~/.config/weatherdash/prefs.toml.
package prefs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	toml "github.com/pelletier/go-toml/v2"
)

const defaultPrefsPath = "~/.config/weatherdash/prefs.toml"

// DefaultPath returns the default preferences file path.
func DefaultPath() string {
	return defaultPrefsPath
}

// File is a flat key/value preferences file. Every Set rewrites the file
// before returning.
type File struct {
	path string

	mu     sync.Mutex
	values map[string]string
	// other holds non-string entries so a rewrite keeps them.
	other   map[string]any
	loadErr error
	// damaged is set when an existing file could not be parsed; the first
	// Set moves it to BackupPath instead of overwriting it.
	damaged bool
}

// Open loads the preferences at path. A missing file yields an empty store.
// An unreadable or unparsable file also yields an empty store, and the
// failure is reported by Err.
func Open(path string) (*File, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}
	f := &File{path: resolved, values: map[string]string{}, other: map[string]any{}}

	data, err := os.ReadFile(resolved)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return f, nil
	case err != nil:
		f.loadErr = fmt.Errorf("read prefs: %w", err)
		return f, nil
	}

	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		f.loadErr = fmt.Errorf("parse prefs %s: %w", resolved, err)
		f.damaged = true
		return f, nil
	}
	for key, value := range raw {
		if s, ok := value.(string); ok {
			f.values[key] = s
		} else {
			f.other[key] = value
		}
	}
	return f, nil
}

// Err reports why the file's existing contents were not loaded, if they
// were not.
func (f *File) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loadErr
}

// BackupPath is where an unparsable file is moved before the first Set.
func (f *File) BackupPath() string {
	return f.path + ".bak"
}

// Path is the resolved file location.
func (f *File) Path() string {
	return f.path
}

// Get returns the stored value for key.
func (f *File) Get(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	return v, ok
}

// Set stores value under key and writes the file. On error the previous
// value is kept.
func (f *File) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	next := make(map[string]string, len(f.values)+1)
	for k, v := range f.values {
		next[k] = v
	}
	next[key] = value
	if f.damaged {
		if err := os.Rename(f.path, f.BackupPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("back up damaged prefs: %w", err)
		}
		f.damaged = false
	}
	if err := f.write(next); err != nil {
		return err
	}
	f.values = next
	delete(f.other, key)
	return nil
}

// Keys lists the stored keys in order.
func (f *File) Keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.values))
	for k := range f.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (f *File) write(values map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}

	doc := make(map[string]any, len(values)+len(f.other))
	for k, v := range f.other {
		doc[k] = v
	}
	for k, v := range values {
		doc[k] = v
	}
	bytes, err := toml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal prefs: %w", err)
	}

	if err := os.WriteFile(f.path, bytes, 0o644); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	return nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultPrefsPath)
	}
	return expandPath(path)
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
