package ui

import (
	"github.com/charmbracelet/lipgloss"
)

// renderHelp renders the help overlay.
func (m Model) renderHelp(theme Theme) string {
	styles := theme.Styles()

	h := m.help
	h.ShowAll = true
	content := styles.Text.Bold(true).Render("Keyboard Shortcuts") + "\n\n" + h.View(m.keys)

	modal := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(theme.Accent)).
		Padding(1, 2).
		Render(content)

	if m.width == 0 || m.height == 0 {
		return modal
	}
	return lipgloss.Place(
		m.width,
		m.height,
		lipgloss.Center,
		lipgloss.Center,
		modal,
		lipgloss.WithWhitespaceChars(" "),
	)
}
