package ui

import (
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/RoselietoPonce/weather-monitoring-system/internal/prefs"
)

// Theme defines colors for the UI.
type Theme struct {
	Name string

	// Base colors
	Background string
	Surface    string
	SurfaceAlt string

	// Border colors
	Border      string
	BorderFocus string

	// Text colors
	Text    string
	Muted   string
	Faint   string
	Accent  string
	Success string
	Warning string
	Danger  string
	Info    string
}

// Styles returns Lipgloss styles for this theme.
func (t Theme) Styles() Styles {
	return Styles{
		Surface: lipgloss.NewStyle().
			Background(lipgloss.Color(t.Surface)).
			Foreground(lipgloss.Color(t.Text)),

		Text:        lipgloss.NewStyle().Foreground(lipgloss.Color(t.Text)),
		MutedText:   lipgloss.NewStyle().Foreground(lipgloss.Color(t.Muted)),
		FaintText:   lipgloss.NewStyle().Foreground(lipgloss.Color(t.Faint)),
		AccentText:  lipgloss.NewStyle().Foreground(lipgloss.Color(t.Accent)),
		SuccessText: lipgloss.NewStyle().Foreground(lipgloss.Color(t.Success)).Bold(true),
		WarningText: lipgloss.NewStyle().Foreground(lipgloss.Color(t.Warning)),
		DangerText:  lipgloss.NewStyle().Foreground(lipgloss.Color(t.Danger)).Bold(true),
		InfoText:    lipgloss.NewStyle().Foreground(lipgloss.Color(t.Info)),

		Logo: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Accent)).
			Bold(true),

		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(t.Border)).
			Padding(0, 1),

		FocusPanel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(t.BorderFocus)).
			Padding(0, 1),
	}
}

// Badge renders text on a coloured pill.
func (t Theme) Badge(text, color string) string {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color(t.Background)).
		Background(lipgloss.Color(color)).
		Padding(0, 1).
		Render(text)
}

// Styles contains pre-built Lipgloss styles for the theme.
type Styles struct {
	Surface lipgloss.Style

	Text        lipgloss.Style
	MutedText   lipgloss.Style
	FaintText   lipgloss.Style
	AccentText  lipgloss.Style
	SuccessText lipgloss.Style
	WarningText lipgloss.Style
	DangerText  lipgloss.Style
	InfoText    lipgloss.Style

	Logo       lipgloss.Style
	Panel      lipgloss.Style
	FocusPanel lipgloss.Style
}

// ThemeFor returns the palette for a light/dark preference.
func ThemeFor(t prefs.Theme) Theme {
	if t == prefs.Dark {
		return darkTheme()
	}
	return lightTheme()
}

// Palette is the active theme shared by every view. The theme preference
// applies changes through Apply.
type Palette struct {
	mu    sync.RWMutex
	theme Theme
}

// NewPalette starts on the light theme.
func NewPalette() *Palette {
	return &Palette{theme: lightTheme()}
}

// Apply switches the palette.
func (p *Palette) Apply(t prefs.Theme) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.theme = ThemeFor(t)
}

// Current returns the active theme.
func (p *Palette) Current() Theme {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.theme
}

func darkTheme() Theme {
	// Tailwind CSS Slate/Sky palette: https://tailwindcss.com/docs/colors
	return Theme{
		Name: "dark",

		Background: "#020617", // slate-950
		Surface:    "#0f172a", // slate-900
		SurfaceAlt: "#1e293b", // slate-800

		Border:      "#334155", // slate-700
		BorderFocus: "#38bdf8", // sky-400

		Text:    "#f1f5f9", // slate-100
		Muted:   "#94a3b8", // slate-400
		Faint:   "#64748b", // slate-500
		Accent:  "#38bdf8", // sky-400
		Success: "#22c55e", // green-500
		Warning: "#f59e0b", // amber-500
		Danger:  "#ef4444", // red-500
		Info:    "#06b6d4", // cyan-500
	}
}

func lightTheme() Theme {
	// Same palette, inverted for light terminals.
	return Theme{
		Name: "light",

		Background: "#f8fafc", // slate-50
		Surface:    "#f1f5f9", // slate-100
		SurfaceAlt: "#e2e8f0", // slate-200

		Border:      "#cbd5e1", // slate-300
		BorderFocus: "#0284c7", // sky-600

		Text:    "#0f172a", // slate-900
		Muted:   "#475569", // slate-600
		Faint:   "#64748b", // slate-500
		Accent:  "#0284c7", // sky-600
		Success: "#16a34a", // green-600
		Warning: "#b45309", // amber-700
		Danger:  "#dc2626", // red-600
		Info:    "#0891b2", // cyan-600
	}
}
