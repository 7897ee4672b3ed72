package backend

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
)

func TestParseBaseURL(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "adds scheme", raw: "demo.firebaseio.com", want: "https://demo.firebaseio.com"},
		{name: "trims slash", raw: "http://127.0.0.1:9000/", want: "http://127.0.0.1:9000"},
		{name: "drops query", raw: "https://demo.firebaseio.com/?ns=demo", want: "https://demo.firebaseio.com"},
		{name: "empty", raw: "  ", wantErr: true},
		{name: "no host", raw: "https://", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseBaseURL(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseBaseURL(%q) = %v, want error", tt.raw, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseBaseURL(%q) returned error: %v", tt.raw, err)
			}
			if got.String() != tt.want {
				t.Fatalf("parseBaseURL(%q) = %q, want %q", tt.raw, got.String(), tt.want)
			}
		})
	}
}

func TestNewClient_AllowsMissingDatabase(t *testing.T) {
	c, err := NewClient(Options{APIKey: "k"})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	if c.databaseURL != nil {
		t.Fatalf("databaseURL = %v, want nil", c.databaseURL)
	}
	if c.identityURL.Host != "identitytoolkit.googleapis.com" {
		t.Fatalf("identityURL = %v, want default", c.identityURL)
	}

	if _, err := NewClient(Options{DatabaseURL: "https://"}); err == nil {
		t.Fatalf("NewClient with bad database url returned nil error")
	}
}

func TestPostJSON_RequiresAPIKey(t *testing.T) {
	c, err := NewClient(Options{})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	err = c.postJSON(context.Background(), c.identityURL, "/v1/accounts:signInWithPassword", nil, nil)
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("postJSON error = %v, want ErrNotConfigured", err)
	}
}

func TestDecodeAPIError(t *testing.T) {
	resp := &http.Response{
		StatusCode: http.StatusBadRequest,
		Body:       io.NopCloser(strings.NewReader(`{"error":{"code":400,"message":"TOO_MANY_ATTEMPTS_TRY_LATER : Access disabled"}}`)),
	}
	err := decodeAPIError("/v1/token", resp)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("decodeAPIError returned %T, want *APIError", err)
	}
	if apiErr.Code != "TOO_MANY_ATTEMPTS_TRY_LATER" {
		t.Fatalf("Code = %q", apiErr.Code)
	}
	if want := "api /v1/token returned status 400 (TOO_MANY_ATTEMPTS_TRY_LATER)"; err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}

	plain := decodeAPIError("/x", &http.Response{StatusCode: 502, Body: io.NopCloser(strings.NewReader("bad gateway"))})
	if want := "api /x returned status 502"; plain.Error() != want {
		t.Fatalf("Error() = %q, want %q", plain.Error(), want)
	}
}
