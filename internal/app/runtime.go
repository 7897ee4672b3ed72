package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/RoselietoPonce/weather-monitoring-system/internal/backend"
	"github.com/RoselietoPonce/weather-monitoring-system/internal/config"
	"github.com/RoselietoPonce/weather-monitoring-system/internal/logging"
	"github.com/RoselietoPonce/weather-monitoring-system/internal/nav"
	"github.com/RoselietoPonce/weather-monitoring-system/internal/prefs"
	"github.com/RoselietoPonce/weather-monitoring-system/internal/state"
)

// Options configure the weatherdash application.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses the config's prefs_file
	Verbose    bool
	// SystemPrefersDark overrides terminal background detection.
	SystemPrefersDark prefs.SystemPreference
}

// Runtime holds the process-wide stores. It is built once at startup and
// handed to every consumer; nothing in it is ever recreated.
type Runtime struct {
	Config   config.Config
	Logger   *zap.Logger
	Client   *backend.Client
	Auth     *backend.Auth
	Identity *state.Identity
	Readings *state.Readings
	Theme    *prefs.ThemePreference
	Guard    *nav.Guard
	Routes   nav.Table

	source *readingSource
}

// NewRuntime loads configuration and builds the runtime. The identity
// subscription and the readings subscription are both opened here and live
// until ctx ends. Only a failure to subscribe to identity is fatal; a
// readings setup failure is recorded in the readings store.
func NewRuntime(ctx context.Context, opts Options) (*Runtime, error) {
	cfg, logger, err := load(opts)
	if err != nil {
		return nil, err
	}

	client, err := backend.NewClient(backend.Options{
		DatabaseURL: cfg.DatabaseURL,
		APIKey:      cfg.APIKey,
		IdentityURL: cfg.IdentityURL,
		TokenURL:    cfg.TokenURL,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init backend client: %w", err)
	}
	auth := backend.NewAuth(client, backend.FileSessions{Path: cfg.SessionFile}, logger)

	identity, err := state.NewIdentity(auth, logger)
	if err != nil {
		return nil, err
	}
	auth.Start(ctx)

	themePref, err := openTheme(cfg, opts, logger)
	if err != nil {
		return nil, err
	}

	rt := &Runtime{
		Config:   cfg,
		Logger:   logger,
		Client:   client,
		Auth:     auth,
		Identity: identity,
		Readings: state.NewReadings(logger),
		Theme:    themePref,
		Routes:   nav.DefaultTable,
	}
	rt.Guard = nav.NewGuard(rt.Routes, identity,
		nav.WithTimeout(cfg.IdentityTimeout),
		nav.WithLogger(logger),
	)

	if err := cfg.Validate(); err != nil {
		logger.Warn("incomplete config", zap.Error(err))
	}
	rt.source = &readingSource{client: client, auth: auth, identity: identity}
	if err := rt.Readings.Open(ctx, rt.source, backend.LatestReading(cfg.ReadingsPath, cfg.OrderBy)); err != nil {
		logger.Error("readings unavailable", zap.Error(err))
	}
	return rt, nil
}

// Close ends the readings stream and flushes the log.
func (r *Runtime) Close() {
	if r.source != nil && r.source.sub != nil {
		r.source.sub.Close()
	}
	_ = r.Logger.Sync()
}

func load(opts Options) (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	if opts.PrefsPath != "" {
		cfg.PrefsFile = opts.PrefsPath
	}
	logger, err := logging.New(cfg.LogFile, opts.Verbose)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("init logging: %w", err)
	}
	return cfg, logger, nil
}

func openTheme(cfg config.Config, opts Options, logger *zap.Logger) (*prefs.ThemePreference, error) {
	file, err := prefs.Open(cfg.PrefsFile)
	if err != nil {
		return nil, fmt.Errorf("open prefs: %w", err)
	}
	if err := file.Err(); err != nil {
		logger.Warn("preferences not loaded, using defaults",
			zap.Error(err), zap.String("backup", file.BackupPath()))
	}
	system := opts.SystemPrefersDark
	if system == nil {
		system = prefs.SystemPrefersDark
	}
	return prefs.NewThemePreference(file, system), nil
}

// readingSource opens readings subscriptions on the backend. Connections
// wait for a signed-in user so the database rules see a credential.
type readingSource struct {
	client   *backend.Client
	auth     *backend.Auth
	identity *state.Identity

	sub *backend.Subscription
}

func (s *readingSource) Subscribe(ctx context.Context, q backend.Query) (state.Feed, error) {
	sub, err := s.client.Subscribe(ctx, q, s.token)
	if err != nil {
		return nil, err
	}
	s.sub = sub
	return sub, nil
}

func (s *readingSource) token(ctx context.Context) (string, error) {
	for {
		changed := s.identity.Changed()
		snap, err := s.identity.Resolve(ctx)
		if err != nil {
			return "", err
		}
		if snap.SignedIn {
			return s.auth.IDToken(ctx)
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}
