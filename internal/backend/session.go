package backend

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Session is a signed-in user's credentials as persisted between runs.
type Session struct {
	UID          string    `toml:"uid"`
	Email        string    `toml:"email"`
	DisplayName  string    `toml:"display_name"`
	IDToken      string    `toml:"id_token"`
	RefreshToken string    `toml:"refresh_token"`
	ExpiresAt    time.Time `toml:"expires_at"`
}

// Principal returns the identity the session belongs to.
func (s Session) Principal() Principal {
	return Principal{UID: s.UID, Email: s.Email, DisplayName: s.DisplayName}
}

// SessionStore persists the current session.
type SessionStore interface {
	Load() (Session, bool, error)
	Save(Session) error
	Clear() error
}

// FileSessions stores the session as a TOML file readable only by its owner.
type FileSessions struct {
	Path string
}

var _ SessionStore = FileSessions{}

// Load reads the session file. A missing file is not an error.
func (f FileSessions) Load() (Session, bool, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Session{}, false, nil
		}
		return Session{}, false, fmt.Errorf("read session: %w", err)
	}
	var s Session
	if err := toml.Unmarshal(data, &s); err != nil {
		return Session{}, false, fmt.Errorf("parse session: %w", err)
	}
	if s.RefreshToken == "" {
		return Session{}, false, nil
	}
	return s, true, nil
}

// Save writes the session file, creating its directory as needed.
func (f FileSessions) Save(s Session) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	data, err := toml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := os.WriteFile(f.Path, data, 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// Clear removes the session file.
func (f FileSessions) Clear() error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}
