// Package app is the composition root for weatherdash.
//
// # Overview
//
// NewRuntime builds every process-wide store exactly once and wires them
// together:
//
//	config.Load()              read ~/.config/weatherdash/config.toml
//	logging.New()              JSON log file
//	backend.NewClient()        database and identity REST client
//	backend.NewAuth()          persisted session, resolved in the background
//	state.NewIdentity()        mirrors Auth; failure here is fatal
//	prefs.NewThemePreference() stored theme, else the terminal background
//	nav.NewGuard()             route guard over the identity store
//	Readings.Open()            the one readings subscription
//
// The runtime is then handed to a consumer: Run starts the TUI, Watch prints
// changes to a writer. Neither consumer opens subscriptions of its own.
//
// # Readings and sign-in
//
// The readings stream attaches the user's ID token. Until the identity is
// known and signed in, the stream waits before connecting, so the first
// connection after startup uses the restored session instead of going out
// anonymously.
//
// # Error Handling
//
// Fatal (returned from NewRuntime):
//   - config file present but invalid
//   - log file cannot be created
//   - identity subscription cannot be established
//
// Recorded in the stores and shown to the user:
//   - readings subscription setup failure
//   - stream interruptions, which the backend client retries with backoff
//
// # Headless helpers
//
// Login, Logout and Theme back the CLI subcommands. They load config the same
// way but never open the readings subscription.
package app
