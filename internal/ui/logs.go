package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/RoselietoPonce/weather-monitoring-system/internal/logtail"
)

// logState holds the log view.
type logState struct {
	viewport viewport.Model
	entries  []logtail.Entry
	err      error
	follow   bool
}

func newLogState() logState {
	return logState{viewport: viewport.New(80, 20), follow: true}
}

func (l *logState) resize(width, height int) {
	l.viewport.Width = maxInt(width-4, 10)
	l.viewport.Height = maxInt(height-3, 3)
}

func (l *logState) set(entries []logtail.Entry, err error) {
	l.err = err
	if err == nil {
		l.entries = entries
	}
}

// refresh re-renders the entries into the viewport.
func (l *logState) refresh(theme Theme) {
	l.viewport.SetContent(renderLogContent(theme, l.entries))
	if l.follow {
		l.viewport.GotoBottom()
	}
}

type logsMsg struct {
	entries []logtail.Entry
	err     error
}

func readLogsCmd(path string) tea.Cmd {
	return func() tea.Msg {
		entries, err := logtail.ReadEntries(path, LogFetchLimit)
		return logsMsg{entries: entries, err: err}
	}
}

func (m Model) handleLogsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	vp := &m.logs.viewport
	switch {
	case key.Matches(msg, m.keys.ToggleFollow):
		m.logs.follow = !m.logs.follow
		if m.logs.follow {
			m.logs.refresh(m.palette.Current())
			return m, readLogsCmd(m.logFile)
		}
	case key.Matches(msg, m.keys.Up):
		m.logs.follow = false
		vp.ScrollUp(1)
	case key.Matches(msg, m.keys.Down):
		vp.ScrollDown(1)
	case key.Matches(msg, m.keys.HalfPageUp):
		m.logs.follow = false
		vp.HalfPageUp()
	case key.Matches(msg, m.keys.HalfPageDown):
		vp.HalfPageDown()
	case key.Matches(msg, m.keys.Top):
		m.logs.follow = false
		vp.GotoTop()
	case key.Matches(msg, m.keys.Bottom):
		vp.GotoBottom()
	}
	return m, nil
}

func (m Model) renderLogs(theme Theme) string {
	styles := theme.Styles()

	status := "follow"
	if !m.logs.follow {
		status = "paused"
	}
	title := styles.Text.Bold(true).Render("Logs") +
		styles.FaintText.Render("  "+truncate(m.logFile, 60)+"  ["+status+"]")
	if m.logs.err != nil {
		title += "\n" + styles.DangerText.Render(m.logs.err.Error())
	}

	return lipgloss.JoinVertical(lipgloss.Left, title, styles.Panel.Render(m.logs.viewport.View()))
}

func renderLogContent(theme Theme, entries []logtail.Entry) string {
	if len(entries) == 0 {
		return theme.Styles().FaintText.Render("No log entries yet.")
	}
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = renderLogLine(theme, e)
	}
	return strings.Join(lines, "\n")
}

func renderLogLine(theme Theme, e logtail.Entry) string {
	styles := theme.Styles()
	if e.Raw != "" {
		return styles.MutedText.Render(e.Raw)
	}

	var parts []string
	if !e.Time.IsZero() {
		parts = append(parts, styles.FaintText.Render(e.Time.Local().Format("15:04:05")))
	}
	parts = append(parts, levelStyle(theme, e.Level).Render(padRight(strings.ToUpper(e.Level), 5)))
	if e.Logger != "" {
		parts = append(parts, styles.InfoText.Render("["+e.Logger+"]"))
	}
	parts = append(parts, styles.Text.Render(e.Message))
	if fields := e.FieldsString(); fields != "" {
		parts = append(parts, styles.FaintText.Render(fields))
	}
	return strings.Join(parts, " ")
}

func levelStyle(theme Theme, level string) lipgloss.Style {
	styles := theme.Styles()
	switch strings.ToLower(level) {
	case "error", "dpanic", "panic", "fatal":
		return styles.DangerText
	case "warn":
		return styles.WarningText
	case "debug":
		return styles.FaintText
	}
	return styles.SuccessText
}
