package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config captures the backend endpoints and local file locations weatherdash needs.
type Config struct {
	DatabaseURL     string
	APIKey          string
	IdentityURL     string
	TokenURL        string
	ReadingsPath    string
	OrderBy         string
	LogFile         string
	SessionFile     string
	PrefsFile       string
	IdentityTimeout time.Duration
}

const (
	defaultConfigPath   = "~/.config/weatherdash/config.toml"
	defaultStateDir     = "~/.local/state/weatherdash"
	defaultPrefsFile    = "~/.config/weatherdash/prefs.toml"
	defaultIdentityURL  = "https://identitytoolkit.googleapis.com"
	defaultTokenURL     = "https://securetoken.googleapis.com"
	defaultReadingsPath = "sensor_logs"
	defaultOrderBy      = "timestamp"

	envAPIKey      = "WEATHERDASH_API_KEY"
	envDatabaseURL = "WEATHERDASH_DATABASE_URL"
)

// DefaultPath returns the config file used when no path is given.
func DefaultPath() string {
	return defaultConfigPath
}

// Load locates and parses the weatherdash config, falling back to defaults when missing.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	var raw struct {
		DatabaseURL     string `toml:"database_url"`
		APIKey          string `toml:"api_key"`
		IdentityURL     string `toml:"identity_url"`
		TokenURL        string `toml:"token_url"`
		ReadingsPath    string `toml:"readings_path"`
		OrderBy         string `toml:"order_by"`
		LogFile         string `toml:"log_file"`
		SessionFile     string `toml:"session_file"`
		PrefsFile       string `toml:"prefs_file"`
		IdentityTimeout string `toml:"identity_timeout"`
	}

	file, err := os.Open(resolved)
	switch {
	case err == nil:
		defer file.Close()
		bytes, err := io.ReadAll(file)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := toml.Unmarshal(bytes, &raw); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("open config: %w", err)
	}

	cfg := Config{
		DatabaseURL:  strings.TrimRight(strings.TrimSpace(raw.DatabaseURL), "/"),
		APIKey:       strings.TrimSpace(raw.APIKey),
		IdentityURL:  orDefault(raw.IdentityURL, defaultIdentityURL),
		TokenURL:     orDefault(raw.TokenURL, defaultTokenURL),
		ReadingsPath: strings.Trim(orDefault(raw.ReadingsPath, defaultReadingsPath), "/"),
		OrderBy:      orDefault(raw.OrderBy, defaultOrderBy),
		LogFile:      mustExpand(orDefault(raw.LogFile, defaultStateDir+"/weatherdash.log")),
		SessionFile:  mustExpand(orDefault(raw.SessionFile, defaultStateDir+"/session.toml")),
		PrefsFile:    mustExpand(orDefault(raw.PrefsFile, defaultPrefsFile)),
	}

	if timeout := strings.TrimSpace(raw.IdentityTimeout); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return Config{}, fmt.Errorf("parse identity_timeout: %w", err)
		}
		if d < 0 {
			return Config{}, fmt.Errorf("identity_timeout must not be negative")
		}
		cfg.IdentityTimeout = d
	}

	if v := strings.TrimSpace(os.Getenv(envAPIKey)); v != "" {
		cfg.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv(envDatabaseURL)); v != "" {
		cfg.DatabaseURL = strings.TrimRight(v, "/")
	}

	return cfg, nil
}

// Validate reports whether the backend settings are sufficient to connect.
func (c Config) Validate() error {
	var missing []string
	if c.DatabaseURL == "" {
		missing = append(missing, "database_url")
	}
	if c.APIKey == "" {
		missing = append(missing, "api_key")
	}
	if len(missing) > 0 {
		return fmt.Errorf("config missing %s", strings.Join(missing, ", "))
	}
	return nil
}

func orDefault(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
