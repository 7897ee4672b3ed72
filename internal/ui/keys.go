package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines all keyboard bindings for the application.
type keyMap struct {
	// Global
	ForceQuit key.Binding
	Quit      key.Binding
	Help      key.Binding
	Theme     key.Binding

	// Routes
	Dashboard key.Binding
	Logs      key.Binding
	SignOut   key.Binding

	// Login form
	NextField key.Binding
	PrevField key.Binding
	Submit    key.Binding
	FormTheme key.Binding

	// Logs
	Up           key.Binding
	Down         key.Binding
	HalfPageUp   key.Binding
	HalfPageDown key.Binding
	Top          key.Binding
	Bottom       key.Binding
	ToggleFollow key.Binding
}

// defaultKeyMap returns the default key bindings.
func defaultKeyMap() keyMap {
	return keyMap{
		ForceQuit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "Quit"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "Quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "Toggle help"),
		),
		Theme: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "Toggle light/dark"),
		),

		Dashboard: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "Dashboard"),
		),
		Logs: key.NewBinding(
			key.WithKeys("l"),
			key.WithHelp("l", "Logs"),
		),
		SignOut: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "Sign out"),
		),

		NextField: key.NewBinding(
			key.WithKeys("tab", "down"),
			key.WithHelp("tab", "Next field"),
		),
		PrevField: key.NewBinding(
			key.WithKeys("shift+tab", "up"),
			key.WithHelp("shift+tab", "Previous field"),
		),
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "Sign in"),
		),
		FormTheme: key.NewBinding(
			key.WithKeys("ctrl+t"),
			key.WithHelp("ctrl+t", "Toggle light/dark"),
		),

		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/up", "Scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/down", "Scroll down"),
		),
		HalfPageUp: key.NewBinding(
			key.WithKeys("ctrl+u"),
			key.WithHelp("ctrl+u", "Half page up"),
		),
		HalfPageDown: key.NewBinding(
			key.WithKeys("ctrl+d"),
			key.WithHelp("ctrl+d", "Half page down"),
		),
		Top: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "Go to top"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "Go to bottom"),
		),
		ToggleFollow: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "Toggle follow"),
		),
	}
}

// ShortHelp returns key bindings for the footer.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Dashboard, k.Logs, k.Theme, k.SignOut, k.Help, k.Quit}
}

// FullHelp returns key bindings for the help overlay.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Dashboard, k.Logs, k.SignOut},
		{k.Up, k.Down, k.HalfPageUp, k.HalfPageDown, k.Top, k.Bottom, k.ToggleFollow},
		{k.Theme, k.Help, k.Quit, k.ForceQuit},
	}
}

// loginHelp is the footer shown on the sign-in form.
type loginHelp struct{ keyMap }

func (k loginHelp) ShortHelp() []key.Binding {
	return []key.Binding{k.NextField, k.Submit, k.FormTheme, k.ForceQuit}
}

func (k loginHelp) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}
