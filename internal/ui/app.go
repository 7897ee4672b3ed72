package ui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/RoselietoPonce/weather-monitoring-system/internal/backend"
	"github.com/RoselietoPonce/weather-monitoring-system/internal/nav"
	"github.com/RoselietoPonce/weather-monitoring-system/internal/prefs"
	"github.com/RoselietoPonce/weather-monitoring-system/internal/state"
)

// Authenticator signs the user in and out.
type Authenticator interface {
	SignIn(ctx context.Context, email, password string) (backend.Principal, error)
	SignOut() error
}

// Navigator decides route transitions.
type Navigator interface {
	Check(ctx context.Context, to, from string) nav.Decision
}

// Options configures the UI.
type Options struct {
	Context  context.Context
	Auth     Authenticator
	Identity *state.Identity
	Readings *state.Readings
	Theme    *prefs.ThemePreference
	Guard    Navigator
	Routes   nav.Table
	LogFile  string
	// OrderBy is the reading field holding its timestamp.
	OrderBy string
	// StartRoute is the first route requested; empty means the dashboard.
	StartRoute string
}

// Model is the root application state for Bubble Tea.
type Model struct {
	// Dependencies
	ctx       context.Context
	auth      Authenticator
	identity  *state.Identity
	readings  *state.Readings
	themePref *prefs.ThemePreference
	guard     Navigator
	routes    nav.Table
	logFile   string
	orderBy   string
	palette   *Palette

	// UI state
	keys       keyMap
	help       help.Model
	width      int
	height     int
	route      string
	navigating string
	notice     string
	showHelp   bool
	now        time.Time

	// Store mirrors and the change channels taken before them
	readingSnap  state.ReadingSnapshot
	identitySnap state.IdentitySnapshot
	readingsNext <-chan struct{}
	identityNext <-chan struct{}

	login loginState
	logs  logState
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	routes := opts.Routes
	if len(routes) == 0 {
		routes = nav.DefaultTable
	}
	start := opts.StartRoute
	if start == "" {
		start = nav.Dashboard
	}

	orderBy := opts.OrderBy
	if orderBy == "" {
		orderBy = "timestamp"
	}

	palette := NewPalette()
	if opts.Theme != nil {
		opts.Theme.SetApplier(palette.Apply)
	}

	readingsNext := opts.Readings.Changed()
	identityNext := opts.Identity.Changed()

	return Model{
		ctx:          ctx,
		auth:         opts.Auth,
		identity:     opts.Identity,
		readings:     opts.Readings,
		themePref:    opts.Theme,
		guard:        opts.Guard,
		routes:       routes,
		logFile:      opts.LogFile,
		orderBy:      orderBy,
		palette:      palette,
		keys:         defaultKeyMap(),
		help:         help.New(),
		navigating:   start,
		now:          time.Now(),
		readingSnap:  opts.Readings.Snapshot(),
		identitySnap: opts.Identity.Snapshot(),
		readingsNext: readingsNext,
		identityNext: identityNext,
		login:        newLoginState(),
		logs:         newLogState(),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.navigate(m.navigating),
		waitReadings(m.ctx, m.readings, m.readingsNext),
		waitIdentity(m.ctx, m.identity, m.identityNext),
		tickCmd(DefaultUIInterval),
	)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.logs.resize(msg.Width, msg.Height-chromeHeight)
		m.logs.refresh(m.palette.Current())
		return m, nil

	case navigatedMsg:
		return m.handleNavigated(msg)

	case readingsMsg:
		m.readingSnap = msg.snap
		m.readingsNext = msg.next
		return m, waitReadings(m.ctx, m.readings, msg.next)

	case identityMsg:
		return m.handleIdentity(msg)

	case signedInMsg:
		return m.handleSignedIn(msg)

	case signedOutMsg:
		if msg.err != nil {
			m.notice = "Sign out: " + msg.err.Error()
		}
		return m.goTo(nav.Login)

	case logsMsg:
		m.logs.set(msg.entries, msg.err)
		m.logs.refresh(m.palette.Current())
		return m, nil

	case tickMsg:
		m.now = time.Time(msg)
		cmds := []tea.Cmd{tickCmd(DefaultUIInterval)}
		if m.route == nav.Logs && m.logs.follow {
			cmds = append(cmds, readLogsCmd(m.logFile))
		}
		return m, tea.Batch(cmds...)
	}

	// Cursor blink and other input messages.
	if m.route == nav.Login {
		return m, m.login.update(msg)
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	theme := m.palette.Current()
	if m.showHelp {
		return m.renderHelp(theme)
	}

	var b strings.Builder
	b.WriteString(m.renderHeader(theme))
	b.WriteString("\n")
	b.WriteString(m.renderContent(theme))
	b.WriteString("\n")
	b.WriteString(m.renderFooter(theme))
	return b.String()
}

func (m Model) renderContent(theme Theme) string {
	if m.route == "" {
		return theme.Styles().MutedText.Render("Checking sign-in...")
	}
	switch m.route {
	case nav.Login:
		return m.renderLogin(theme)
	case nav.Dashboard:
		return m.renderDashboard(theme)
	case nav.Logs:
		return m.renderLogs(theme)
	}
	return theme.Styles().MutedText.Render("Nothing to show for " + m.route)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.ForceQuit) {
		return m, tea.Quit
	}
	if m.showHelp {
		// Any key closes help
		m.showHelp = false
		return m, nil
	}
	if m.route == nav.Login {
		return m.handleLoginKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil
	case key.Matches(msg, m.keys.Theme):
		m.toggleTheme()
		return m, nil
	case key.Matches(msg, m.keys.Dashboard):
		return m.goTo(nav.Dashboard)
	case key.Matches(msg, m.keys.Logs):
		return m.goTo(nav.Logs)
	case key.Matches(msg, m.keys.SignOut):
		return m, signOutCmd(m.auth)
	}

	if m.route == nav.Logs {
		return m.handleLogsKey(msg)
	}
	return m, nil
}

// goTo starts a guarded navigation. Requests made while another is pending
// replace it.
func (m Model) goTo(to string) (tea.Model, tea.Cmd) {
	m.navigating = to
	return m, m.navigate(to)
}

func (m Model) navigate(to string) tea.Cmd {
	ctx, guard, from := m.ctx, m.guard, m.route
	return func() tea.Msg {
		return navigatedMsg{requested: to, decision: guard.Check(ctx, to, from)}
	}
}

func (m Model) handleNavigated(msg navigatedMsg) (tea.Model, tea.Cmd) {
	if msg.requested != m.navigating {
		// Superseded by a later request.
		return m, nil
	}
	m.navigating = ""
	m.route = msg.decision.Target
	if msg.decision.Outcome == nav.Redirect && msg.decision.Target == nav.Login {
		m.notice = msg.decision.Reason
	} else if m.route != nav.Login {
		m.notice = ""
	}

	switch m.route {
	case nav.Login:
		return m, m.login.focus()
	case nav.Logs:
		m.logs.follow = true
		return m, readLogsCmd(m.logFile)
	}
	return m, nil
}

func (m Model) handleIdentity(msg identityMsg) (tea.Model, tea.Cmd) {
	m.identitySnap = msg.snap
	m.identityNext = msg.next
	wait := waitIdentity(m.ctx, m.identity, msg.next)
	if m.route == "" || m.navigating != "" || msg.snap.SignedIn {
		return m, wait
	}
	// Signed out under a protected view, e.g. the session expired.
	if route, ok := m.routes.Lookup(m.route); ok && route.RequiresAuth {
		next, cmd := m.goTo(m.route)
		return next, tea.Batch(wait, cmd)
	}
	return m, wait
}

func (m *Model) toggleTheme() {
	if m.themePref == nil {
		return
	}
	if _, err := m.themePref.Toggle(); err != nil {
		m.notice = "Theme not saved: " + err.Error()
		return
	}
	m.logs.refresh(m.palette.Current())
}

// Messages

type tickMsg time.Time

type navigatedMsg struct {
	requested string
	decision  nav.Decision
}

type readingsMsg struct {
	snap state.ReadingSnapshot
	next <-chan struct{}
}

type identityMsg struct {
	snap state.IdentitySnapshot
	next <-chan struct{}
}

type signedInMsg struct {
	principal backend.Principal
	err       error
}

type signedOutMsg struct {
	err error
}

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// waitReadings blocks until changed closes, then reports the snapshot along
// with the channel for the change after it.
func waitReadings(ctx context.Context, r *state.Readings, changed <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-changed:
		case <-ctx.Done():
			return nil
		}
		next := r.Changed()
		return readingsMsg{snap: r.Snapshot(), next: next}
	}
}

func waitIdentity(ctx context.Context, i *state.Identity, changed <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-changed:
		case <-ctx.Done():
			return nil
		}
		next := i.Changed()
		return identityMsg{snap: i.Snapshot(), next: next}
	}
}

func signOutCmd(auth Authenticator) tea.Cmd {
	return func() tea.Msg {
		return signedOutMsg{err: auth.SignOut()}
	}
}

// Run starts the Bubble Tea program.
func Run(opts Options) error {
	m := New(opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(m.ctx))
	if _, err := p.Run(); err != nil && !(errors.Is(err, tea.ErrProgramKilled) && m.ctx.Err() != nil) {
		return err
	}
	return nil
}
