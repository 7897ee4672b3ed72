package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/RoselietoPonce/weather-monitoring-system/internal/nav"
)

var routeTabs = []struct {
	name  string
	label string
}{
	{nav.Dashboard, "Dashboard"},
	{nav.Logs, "Logs"},
}

// renderHeader renders the title bar: logo, tabs and the signed-in user.
func (m Model) renderHeader(theme Theme) string {
	styles := theme.Styles()

	left := styles.Logo.Render("weatherdash")
	if m.route != "" && m.route != nav.Login {
		tabs := make([]string, 0, len(routeTabs))
		for _, tab := range routeTabs {
			if tab.name == m.route {
				tabs = append(tabs, styles.AccentText.Bold(true).Underline(true).Render(tab.label))
			} else {
				tabs = append(tabs, styles.MutedText.Render(tab.label))
			}
		}
		left += "  " + strings.Join(tabs, styles.FaintText.Render(" │ "))
	}

	var right string
	switch {
	case !m.identitySnap.Ready:
		right = styles.FaintText.Render("checking sign-in")
	case m.identitySnap.SignedIn:
		right = styles.MutedText.Render(m.identitySnap.Principal.Label())
	default:
		right = styles.FaintText.Render("signed out")
	}
	right += styles.FaintText.Render("  " + theme.Name)

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

// renderFooter renders the key hints and any notice.
func (m Model) renderFooter(theme Theme) string {
	styles := theme.Styles()
	var hints string
	if m.route == nav.Login {
		hints = m.help.ShortHelpView(loginHelp{m.keys}.ShortHelp())
	} else {
		hints = m.help.ShortHelpView(m.keys.ShortHelp())
	}
	if m.notice != "" && m.route != nav.Login {
		return styles.WarningText.Render(capitalize(m.notice)) + "  " + hints
	}
	return hints
}
