package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/RoselietoPonce/weather-monitoring-system/internal/backend"
	"github.com/RoselietoPonce/weather-monitoring-system/internal/prefs"
	"github.com/RoselietoPonce/weather-monitoring-system/internal/state"
	"github.com/RoselietoPonce/weather-monitoring-system/internal/ui"
)

var errReadingsEnded = errors.New("readings subscription ended")

// Run boots the weatherdash TUI until the user quits or ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rt, err := NewRuntime(ctx, opts)
	if err != nil {
		return err
	}
	defer rt.Close()

	rt.Logger.Info("starting ui")
	return ui.Run(ui.Options{
		Context:  ctx,
		Auth:     rt.Auth,
		Identity: rt.Identity,
		Readings: rt.Readings,
		Theme:    rt.Theme,
		Guard:    rt.Guard,
		Routes:   rt.Routes,
		LogFile:  rt.Config.LogFile,
		OrderBy:  rt.Config.OrderBy,
	})
}

// Watch prints a line to w for every reading and identity change until ctx
// is cancelled.
func Watch(ctx context.Context, opts Options, w io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rt, err := NewRuntime(ctx, opts)
	if err != nil {
		return err
	}
	defer rt.Close()
	return watch(ctx, rt.Identity, rt.Readings, w)
}

func watch(ctx context.Context, identity *state.Identity, readings *state.Readings, w io.Writer) error {
	g, ctx := errgroup.WithContext(ctx)
	lines := make(chan string)
	send := func(line string) bool {
		select {
		case lines <- line:
			return true
		case <-ctx.Done():
			return false
		}
	}

	g.Go(func() error {
		for {
			changed := identity.Changed()
			if snap := identity.Snapshot(); snap.Ready && !send(describeIdentity(snap)) {
				return nil
			}
			select {
			case <-changed:
			case <-ctx.Done():
				return nil
			}
		}
	})
	g.Go(func() error {
		last := ""
		report := func() bool {
			line := describeReadings(readings.Snapshot())
			if line == last {
				return true
			}
			last = line
			return send(line)
		}
		for {
			changed := readings.Changed()
			if !report() {
				return nil
			}
			select {
			case <-changed:
			case <-readings.Done():
				if ctx.Err() != nil {
					return nil
				}
				report()
				return errReadingsEnded
			case <-ctx.Done():
				return nil
			}
		}
	})
	g.Go(func() error {
		for {
			select {
			case line := <-lines:
				if _, err := fmt.Fprintln(w, line); err != nil {
					return fmt.Errorf("write: %w", err)
				}
			case <-ctx.Done():
				return nil
			}
		}
	})
	return g.Wait()
}

func describeIdentity(s state.IdentitySnapshot) string {
	if !s.SignedIn {
		return "identity: signed out"
	}
	return "identity: signed in as " + s.Principal.Label()
}

func describeReadings(s state.ReadingSnapshot) string {
	line := "readings: " + s.State().String()
	if s.Err != nil {
		line += " (" + s.Err.Error() + ")"
	}
	if s.HasReading {
		line += fmt.Sprintf(" latest=%s at %s %s", s.Latest.Key, formatTime(s.Latest.Timestamp), s.Latest.Raw())
	}
	return line
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.Local().Format(time.RFC3339)
}

// Login signs in and persists the session for later runs.
func Login(ctx context.Context, opts Options, email, password string) (backend.Principal, error) {
	cfg, logger, err := load(opts)
	if err != nil {
		return backend.Principal{}, err
	}
	defer func() { _ = logger.Sync() }()

	client, err := backend.NewClient(backend.Options{
		APIKey:      cfg.APIKey,
		IdentityURL: cfg.IdentityURL,
		TokenURL:    cfg.TokenURL,
		Logger:      logger,
	})
	if err != nil {
		return backend.Principal{}, fmt.Errorf("init backend client: %w", err)
	}
	auth := backend.NewAuth(client, backend.FileSessions{Path: cfg.SessionFile}, logger)
	return auth.SignIn(ctx, email, password)
}

// Logout forgets the persisted session.
func Logout(opts Options) error {
	cfg, logger, err := load(opts)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if err := (backend.FileSessions{Path: cfg.SessionFile}).Clear(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	logger.Info("signed out", zap.String("session_file", cfg.SessionFile))
	return nil
}

// Theme reports the persisted theme, flipping it first when toggle is set.
func Theme(opts Options, toggle bool) (prefs.Theme, error) {
	cfg, logger, err := load(opts)
	if err != nil {
		return prefs.Light, err
	}
	defer func() { _ = logger.Sync() }()

	pref, err := openTheme(cfg, opts, logger)
	if err != nil {
		return prefs.Light, err
	}
	if !toggle {
		return pref.Theme(), nil
	}
	theme, err := pref.Toggle()
	if err != nil {
		return theme, err
	}
	logger.Info("theme toggled", zap.Stringer("theme", theme))
	return theme, nil
}
