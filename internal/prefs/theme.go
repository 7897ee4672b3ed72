package prefs

import (
	"fmt"
	"strings"
	"sync"
)

// ThemeKey is the preferences key holding the theme.
const ThemeKey = "theme"

// Theme is the colour scheme.
type Theme int

const (
	Light Theme = iota
	Dark
)

func (t Theme) String() string {
	if t == Dark {
		return "dark"
	}
	return "light"
}

// ParseTheme reads a stored theme value.
func ParseTheme(value string) (Theme, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "dark":
		return Dark, true
	case "light":
		return Light, true
	}
	return Light, false
}

// Storage is the persistence the theme uses.
type Storage interface {
	Get(key string) (string, bool)
	Set(key, value string) error
}

// SystemPreference reports whether the environment prefers a dark scheme.
type SystemPreference func() bool

// Applier makes a theme visible.
type Applier func(Theme)

// ThemePreference is the persisted light/dark choice.
type ThemePreference struct {
	storage Storage

	mu      sync.Mutex
	theme   Theme
	applier Applier
}

// NewThemePreference resolves the initial theme: a stored value wins, then
// the system preference, then Light. The system is not consulted when a
// stored value exists.
func NewThemePreference(storage Storage, system SystemPreference) *ThemePreference {
	p := &ThemePreference{storage: storage, theme: Light}
	if stored, ok := storage.Get(ThemeKey); ok {
		if theme, ok := ParseTheme(stored); ok {
			p.theme = theme
			return p
		}
	}
	if system != nil && system() {
		p.theme = Dark
	}
	return p
}

// Theme returns the current theme.
func (p *ThemePreference) Theme() Theme {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.theme
}

// IsDark reports whether the dark theme is active.
func (p *ThemePreference) IsDark() bool {
	return p.Theme() == Dark
}

// SetApplier installs fn and applies the current theme through it.
func (p *ThemePreference) SetApplier(fn Applier) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applier = fn
	if fn != nil {
		fn(p.theme)
	}
}

// Toggle flips the theme, persists it and applies it. If persisting fails
// nothing changes.
func (p *ThemePreference) Toggle() (Theme, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	next := Dark
	if p.theme == Dark {
		next = Light
	}
	if err := p.storage.Set(ThemeKey, next.String()); err != nil {
		return p.theme, fmt.Errorf("persist theme: %w", err)
	}
	p.theme = next
	if p.applier != nil {
		p.applier(next)
	}
	return next, nil
}
