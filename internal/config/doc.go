// Package config loads the weatherdash configuration file.
//
// # Configuration Discovery
//
// The Load function follows this resolution order:
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/weatherdash/config.toml
//  3. If the file doesn't exist, fall back to defaults
//  4. WEATHERDASH_API_KEY and WEATHERDASH_DATABASE_URL override the file
//
// # TOML Format
//
//	database_url = "https://example-default-rtdb.asia-southeast1.firebasedatabase.app"
//	api_key = "AIza..."
//	readings_path = "sensor_logs"
//	order_by = "timestamp"
//	log_file = "~/.local/state/weatherdash/weatherdash.log"
//	session_file = "~/.local/state/weatherdash/session.toml"
//	prefs_file = "~/.config/weatherdash/prefs.toml"
//	identity_timeout = "0s"
//
// Every field is optional; Validate reports the ones a live connection needs.
// Tilde expansion is performed for all file paths.
//
// An identity_timeout of zero (the default) means navigation waits for the
// identity service indefinitely.
package config
