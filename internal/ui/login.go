package ui

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/RoselietoPonce/weather-monitoring-system/internal/backend"
	"github.com/RoselietoPonce/weather-monitoring-system/internal/nav"
)

const (
	fieldEmail = iota
	fieldPassword
)

// loginState holds the sign-in form.
type loginState struct {
	email    textinput.Model
	password textinput.Model
	focused  int
	busy     bool
	err      string
}

func newLoginState() loginState {
	email := textinput.New()
	email.Prompt = "Email    "
	email.Placeholder = "you@example.com"
	email.CharLimit = 254

	password := textinput.New()
	password.Prompt = "Password "
	password.Placeholder = "password"
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'
	password.CharLimit = 128

	return loginState{email: email, password: password}
}

func (l *loginState) focus() tea.Cmd {
	if l.focused == fieldPassword {
		l.email.Blur()
		return l.password.Focus()
	}
	l.password.Blur()
	return l.email.Focus()
}

func (l *loginState) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	if l.focused == fieldPassword {
		l.password, cmd = l.password.Update(msg)
	} else {
		l.email, cmd = l.email.Update(msg)
	}
	return cmd
}

func (l *loginState) reset() {
	l.email.SetValue("")
	l.password.SetValue("")
	l.focused = fieldEmail
	l.busy = false
	l.err = ""
}

func (m Model) handleLoginKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.FormTheme):
		m.toggleTheme()
		return m, nil
	case key.Matches(msg, m.keys.NextField), key.Matches(msg, m.keys.PrevField):
		m.login.focused = 1 - m.login.focused
		return m, m.login.focus()
	case key.Matches(msg, m.keys.Submit):
		if m.login.busy {
			return m, nil
		}
		email := strings.TrimSpace(m.login.email.Value())
		password := m.login.password.Value()
		if m.login.focused == fieldEmail && password == "" {
			m.login.focused = fieldPassword
			return m, m.login.focus()
		}
		if email == "" || password == "" {
			m.login.err = "Enter your email and password."
			return m, nil
		}
		m.login.busy = true
		m.login.err = ""
		return m, signInCmd(m.ctx, m.auth, email, password)
	}

	if m.login.busy {
		return m, nil
	}
	m.login.err = ""
	return m, m.login.update(msg)
}

func (m Model) handleSignedIn(msg signedInMsg) (tea.Model, tea.Cmd) {
	m.login.busy = false
	if msg.err != nil {
		m.login.err = signInError(msg.err)
		m.login.password.SetValue("")
		m.login.focused = fieldPassword
		return m, m.login.focus()
	}
	m.login.reset()
	m.login.email.Blur()
	m.login.password.Blur()
	m.notice = ""
	return m.goTo(nav.Dashboard)
}

func signInError(err error) string {
	if errors.Is(err, backend.ErrInvalidCredentials) {
		return "Invalid email or password."
	}
	if errors.Is(err, backend.ErrNotConfigured) {
		return "weatherdash is not configured: set api_key in the config file."
	}
	return "Sign-in failed: " + err.Error()
}

func signInCmd(ctx context.Context, auth Authenticator, email, password string) tea.Cmd {
	return func() tea.Msg {
		principal, err := auth.SignIn(ctx, email, password)
		return signedInMsg{principal: principal, err: err}
	}
}

func (m Model) renderLogin(theme Theme) string {
	styles := theme.Styles()

	var b strings.Builder
	b.WriteString(styles.Text.Bold(true).Render("Sign in"))
	b.WriteString("\n")
	b.WriteString(styles.MutedText.Render("Use your weather station account."))
	b.WriteString("\n\n")
	b.WriteString(m.login.email.View())
	b.WriteString("\n")
	b.WriteString(m.login.password.View())
	b.WriteString("\n\n")

	switch {
	case m.login.busy:
		b.WriteString(styles.InfoText.Render("Signing in..."))
	case m.login.err != "":
		b.WriteString(styles.DangerText.Render(m.login.err))
	case m.notice != "":
		b.WriteString(styles.WarningText.Render(capitalize(m.notice) + "."))
	default:
		b.WriteString(styles.FaintText.Render("enter to continue"))
	}

	form := styles.FocusPanel.Width(48).Render(b.String())
	if m.width == 0 || m.height == 0 {
		return form
	}
	return lipgloss.Place(m.width, maxInt(m.height-chromeHeight, lipgloss.Height(form)), lipgloss.Center, lipgloss.Center, form)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
