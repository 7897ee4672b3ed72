package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// tokenRefreshMargin is how long before expiry an ID token is renewed.
const tokenRefreshMargin = time.Minute

// Auth tracks the signed-in user and announces every change to its listeners.
//
// Listeners hear nothing until the persisted session has been resolved by
// Start; the first announcement reports the resolved state, signed in or not.
// Listeners are called one at a time, in registration order, and must not
// call back into Auth.
type Auth struct {
	client   *Client
	sessions SessionStore
	logger   *zap.Logger
	now      func() time.Time

	startOnce sync.Once
	dispatch  sync.Mutex

	mu        sync.Mutex
	session   *Session
	resolved  bool
	listeners []listener
	nextID    int
}

type listener struct {
	id int
	fn func(*Principal)
}

// NewAuth returns an Auth that persists sessions through sessions.
func NewAuth(client *Client, sessions SessionStore, logger *zap.Logger) *Auth {
	if logger == nil {
		logger = client.logger
	}
	return &Auth{
		client:    client,
		sessions:  sessions,
		logger:   logger.Named("auth"),
		now:      time.Now,
	}
}

// Start resolves the persisted session in the background. Calls after the
// first are no-ops. If the token endpoint stays unreachable the resolution
// keeps retrying until ctx ends, and listeners hear nothing until it succeeds.
func (a *Auth) Start(ctx context.Context) {
	a.startOnce.Do(func() {
		go a.resolve(ctx)
	})
}

// OnAuthStateChanged registers fn for every identity change. A nil principal
// means signed out. If the initial state is already resolved, fn is called
// with it before OnAuthStateChanged returns. The returned function removes fn.
func (a *Auth) OnAuthStateChanged(fn func(*Principal)) (func(), error) {
	if a == nil {
		return nil, fmt.Errorf("auth is nil")
	}
	if fn == nil {
		return nil, fmt.Errorf("auth listener is nil")
	}

	a.dispatch.Lock()
	defer a.dispatch.Unlock()

	a.mu.Lock()
	id := a.nextID
	a.nextID++
	a.listeners = append(a.listeners, listener{id: id, fn: fn})
	resolved := a.resolved
	current := a.principalLocked()
	a.mu.Unlock()

	if resolved {
		fn(copyPrincipal(current))
	}

	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.listeners = slices.DeleteFunc(a.listeners, func(l listener) bool { return l.id == id })
	}, nil
}

// SignIn exchanges email and password for a session and persists it.
func (a *Auth) SignIn(ctx context.Context, email, password string) (Principal, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return Principal{}, fmt.Errorf("sign in: %w", ErrInvalidCredentials)
	}

	body := map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}
	var resp struct {
		LocalID      string `json:"localId"`
		Email        string `json:"email"`
		DisplayName  string `json:"displayName"`
		IDToken      string `json:"idToken"`
		RefreshToken string `json:"refreshToken"`
		ExpiresIn    string `json:"expiresIn"`
	}
	if err := a.client.postJSON(ctx, a.client.identityURL, "/v1/accounts:signInWithPassword", body, &resp); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == 400 {
			return Principal{}, fmt.Errorf("sign in: %w: %s", ErrInvalidCredentials, apiErr.Code)
		}
		return Principal{}, fmt.Errorf("sign in: %w", err)
	}

	session := Session{
		UID:          resp.LocalID,
		Email:        resp.Email,
		DisplayName:  resp.DisplayName,
		IDToken:      resp.IDToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    a.expiry(resp.ExpiresIn),
	}
	if err := a.sessions.Save(session); err != nil {
		a.logger.Warn("persist session", zap.Error(err))
	}
	a.logger.Info("signed in", zap.String("uid", session.UID))
	a.set(&session)
	return session.Principal(), nil
}

// SignOut forgets the session.
func (a *Auth) SignOut() error {
	err := a.sessions.Clear()
	a.logger.Info("signed out")
	a.set(nil)
	return err
}

// IDToken returns a current ID token, refreshing it when close to expiry.
// It returns "" when nobody is signed in.
func (a *Auth) IDToken(ctx context.Context) (string, error) {
	a.mu.Lock()
	var session Session
	signedIn := a.session != nil
	if signedIn {
		session = *a.session
	}
	a.mu.Unlock()

	if !signedIn {
		return "", nil
	}
	if a.now().Add(tokenRefreshMargin).Before(session.ExpiresAt) {
		return session.IDToken, nil
	}

	refreshed, err := a.refresh(ctx, session)
	if err != nil {
		if errors.Is(err, ErrSessionExpired) {
			_ = a.sessions.Clear()
			a.set(nil)
		}
		return "", err
	}
	if err := a.sessions.Save(refreshed); err != nil {
		a.logger.Warn("persist session", zap.Error(err))
	}
	a.mu.Lock()
	if a.session != nil && a.session.UID == refreshed.UID {
		a.session = &refreshed
	}
	a.mu.Unlock()
	return refreshed.IDToken, nil
}

func (a *Auth) resolve(ctx context.Context) {
	session, ok, err := a.sessions.Load()
	if err != nil {
		a.logger.Warn("load session", zap.Error(err))
	}
	if !ok {
		a.settle(nil)
		return
	}
	if a.now().Add(tokenRefreshMargin).Before(session.ExpiresAt) {
		a.settle(&session)
		return
	}

	failures := 0
	for {
		refreshed, err := a.refresh(ctx, session)
		switch {
		case err == nil:
			if err := a.sessions.Save(refreshed); err != nil {
				a.logger.Warn("persist session", zap.Error(err))
			}
			a.settle(&refreshed)
			return
		case errors.Is(err, ErrSessionExpired):
			a.logger.Info("persisted session expired", zap.Error(err))
			_ = a.sessions.Clear()
			a.settle(nil)
			return
		case ctx.Err() != nil:
			return
		}

		failures++
		a.logger.Warn("resolve session", zap.Error(err), zap.Int("failures", failures))
		timer := time.NewTimer(calculateBackoff(failures, a.client.retryBase))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (a *Auth) refresh(ctx context.Context, s Session) (Session, error) {
	body := map[string]string{
		"grant_type":    "refresh_token",
		"refresh_token": s.RefreshToken,
	}
	var resp struct {
		IDToken      string `json:"id_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    string `json:"expires_in"`
		UserID       string `json:"user_id"`
	}
	if err := a.client.postJSON(ctx, a.client.tokenURL, "/v1/token", body, &resp); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && refreshRejected(apiErr.StatusCode) {
			return Session{}, fmt.Errorf("refresh token: %w: %s", ErrSessionExpired, apiErr.Code)
		}
		return Session{}, fmt.Errorf("refresh token: %w", err)
	}

	s.IDToken = resp.IDToken
	if resp.RefreshToken != "" {
		s.RefreshToken = resp.RefreshToken
	}
	if resp.UserID != "" {
		s.UID = resp.UserID
	}
	s.ExpiresAt = a.expiry(resp.ExpiresIn)
	return s, nil
}

// refreshRejected reports whether the token endpoint refused the refresh
// token itself. Other statuses, such as 429, are worth retrying.
func refreshRejected(status int) bool {
	switch status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		return true
	}
	return false
}

// settle records the outcome of the initial resolution unless a sign-in or
// sign-out already decided the state.
func (a *Auth) settle(session *Session) {
	a.dispatch.Lock()
	defer a.dispatch.Unlock()

	a.mu.Lock()
	if a.resolved {
		a.mu.Unlock()
		return
	}
	a.session = session
	a.resolved = true
	a.mu.Unlock()
	a.notifyLocked()
}

func (a *Auth) set(session *Session) {
	a.dispatch.Lock()
	defer a.dispatch.Unlock()

	a.mu.Lock()
	a.session = session
	a.resolved = true
	a.mu.Unlock()
	a.notifyLocked()
}

// notifyLocked must be called with dispatch held so that a listener
// registered concurrently sees each state exactly once.
func (a *Auth) notifyLocked() {
	a.mu.Lock()
	current := a.principalLocked()
	fns := make([]func(*Principal), len(a.listeners))
	for i, l := range a.listeners {
		fns[i] = l.fn
	}
	a.mu.Unlock()

	for _, fn := range fns {
		fn(copyPrincipal(current))
	}
}

func (a *Auth) principalLocked() *Principal {
	if a.session == nil {
		return nil
	}
	p := a.session.Principal()
	return &p
}

func copyPrincipal(p *Principal) *Principal {
	if p == nil {
		return nil
	}
	dup := *p
	return &dup
}

func (a *Auth) expiry(expiresIn string) time.Time {
	seconds, err := strconv.Atoi(strings.TrimSpace(expiresIn))
	if err != nil || seconds <= 0 {
		seconds = 3600
	}
	return a.now().Add(time.Duration(seconds) * time.Second)
}
