package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/RoselietoPonce/weather-monitoring-system/internal/logging"
)

var (
	// ErrNotConfigured is returned when an operation needs a setting the client was built without.
	ErrNotConfigured = errors.New("backend not configured")
	// ErrInvalidCredentials is returned when sign-in is rejected.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrSessionExpired is returned when a persisted session can no longer be refreshed.
	ErrSessionExpired = errors.New("session expired")
	// ErrStreamCancelled is returned when the server ends a subscription for good,
	// typically because the security rules no longer allow the read.
	ErrStreamCancelled = errors.New("stream cancelled")
	// ErrAuthRevoked is returned when the credential attached to a stream expires.
	ErrAuthRevoked = errors.New("stream auth revoked")
	// ErrStreamIdle is returned when a stream goes quiet for longer than the
	// server's keep-alive interval allows.
	ErrStreamIdle = errors.New("stream idle")
)

// APIError reports a non-2xx response from one of the backend endpoints.
type APIError struct {
	Endpoint   string
	StatusCode int
	Code       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api %s returned status %d (%s)", e.Endpoint, e.StatusCode, e.Code)
	}
	return fmt.Sprintf("api %s returned status %d", e.Endpoint, e.StatusCode)
}

// Options configure a Client.
type Options struct {
	DatabaseURL string
	APIKey      string
	IdentityURL string
	TokenURL    string
	Logger      *zap.Logger
}

// Client talks to the realtime database and identity REST APIs.
type Client struct {
	databaseURL *url.URL
	identityURL *url.URL
	tokenURL    *url.URL
	apiKey      string
	http        *http.Client
	stream      *http.Client
	userAgent   string
	retryBase   time.Duration
	idleTimeout time.Duration
	logger      *zap.Logger
}

const (
	defaultIdentityURL = "https://identitytoolkit.googleapis.com"
	defaultTokenURL    = "https://securetoken.googleapis.com"
	defaultUserAgent   = "weatherdash/0.1"
	requestTimeout     = 10 * time.Second
	defaultRetryBase   = time.Second
	// The database sends keep-alive events every 30 seconds.
	defaultIdleTimeout = 75 * time.Second
)

// NewClient builds a Client. An empty DatabaseURL is allowed; Subscribe then fails.
func NewClient(opts Options) (*Client, error) {
	c := &Client{
		apiKey:      strings.TrimSpace(opts.APIKey),
		http:        &http.Client{Timeout: requestTimeout},
		stream:      &http.Client{},
		userAgent:   defaultUserAgent,
		retryBase:   defaultRetryBase,
		idleTimeout: defaultIdleTimeout,
		logger:      logging.OrNop(opts.Logger),
	}

	var err error
	if strings.TrimSpace(opts.DatabaseURL) != "" {
		if c.databaseURL, err = parseBaseURL(opts.DatabaseURL); err != nil {
			return nil, fmt.Errorf("parse database_url: %w", err)
		}
	}
	if c.identityURL, err = parseBaseURL(orDefault(opts.IdentityURL, defaultIdentityURL)); err != nil {
		return nil, fmt.Errorf("parse identity_url: %w", err)
	}
	if c.tokenURL, err = parseBaseURL(orDefault(opts.TokenURL, defaultTokenURL)); err != nil {
		return nil, fmt.Errorf("parse token_url: %w", err)
	}
	return c, nil
}

func (c *Client) postJSON(ctx context.Context, base *url.URL, path string, body, dest any) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	if c.apiKey == "" {
		return fmt.Errorf("api key: %w", ErrNotConfigured)
	}
	rel := &url.URL{Path: path, RawQuery: url.Values{"key": {c.apiKey}}.Encode()}
	reqURL := base.ResolveReference(rel)

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL.String(), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return decodeAPIError(path, resp)
	}
	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeAPIError(endpoint string, resp *http.Response) error {
	apiErr := &APIError{Endpoint: endpoint, StatusCode: resp.StatusCode}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		// Messages look like "TOO_MANY_ATTEMPTS_TRY_LATER : detail".
		code, _, _ := strings.Cut(payload.Error.Message, " ")
		apiErr.Code = strings.TrimSpace(code)
	}
	return apiErr
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("url is empty")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", raw, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse %q: missing host", raw)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

func orDefault(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}
