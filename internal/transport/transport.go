// Package transport performs the network calls of the telemetry client.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"

	"wordrecords/internal/config"
	"wordrecords/internal/models"
)

const maxErrorBody = 512

// Transport talks to the logging endpoint and its collaborators.
// The underlying client keeps a cookie jar so credentials travel with every call.
type Transport struct {
	cfg    config.ClientConfig
	client *http.Client
	logger *slog.Logger
}

// Option customises a Transport
type Option func(*Transport)

// WithHTTPClient replaces the default HTTP client. A client without a jar gets one.
func WithHTTPClient(c *http.Client) Option {
	return func(t *Transport) { t.client = c }
}

// WithLogger sets the structured logger
func WithLogger(l *slog.Logger) Option {
	return func(t *Transport) { t.logger = l }
}

// New creates a transport for the configured base URL
func New(cfg config.ClientConfig, opts ...Option) (*Transport, error) {
	t := &Transport{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(t)
	}
	if t.client == nil {
		t.client = &http.Client{Timeout: cfg.RequestTimeout}
	}
	if t.client.Jar == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("failed to create cookie jar: %w", err)
		}
		t.client.Jar = jar
	}
	return t, nil
}

// Send posts an event envelope to the logging endpoint
func (t *Transport) Send(ctx context.Context, payload any) (*models.LogResponse, error) {
	resp, err := t.postJSON(ctx, t.cfg.URL(t.cfg.LogPath), payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	out := &models.LogResponse{OK: true}
	if len(bytes.TrimSpace(body)) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return out, nil
}

// Beacon sends payload without waiting for or inspecting the response.
// It reports whether the request was handed to the network.
func (t *Transport) Beacon(payload any) bool {
	ctx, cancel := context.WithTimeout(context.Background(), t.cfg.BeaconTimeout)
	defer cancel()

	resp, err := t.postJSON(ctx, t.cfg.URL(t.cfg.LogPath), payload)
	if err != nil {
		t.logger.Debug("beacon not delivered", "error", err)
		return false
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return true
}

// WhoAmI returns the authenticated user id, or "" when there is none.
// Only network failures are reported as errors.
func (t *Transport) WhoAmI(ctx context.Context) (string, error) {
	var out struct {
		UserID string `json:"user_id"`
	}
	ok, err := t.getJSON(ctx, t.cfg.URL(t.cfg.WhoAmIPath), &out)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}
	return out.UserID, nil
}

// Refresh asks the auth backend to renew the session cookie
func (t *Transport) Refresh(ctx context.Context) error {
	req, err := t.newRequest(ctx, http.MethodGet, t.cfg.URL(t.cfg.RefreshPath), nil)
	if err != nil {
		return err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("refresh request failed: %w", err)
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}

// Login signs in with student credentials; the session cookie lands in the jar
func (t *Transport) Login(ctx context.Context, username, password string) error {
	payload := map[string]string{"username": username, "password": password}
	resp, err := t.postJSON(ctx, t.cfg.URL(t.cfg.LoginPath), payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}

// Count fetches the lightweight points total. The bool is false when no number was returned.
func (t *Transport) Count(ctx context.Context) (int, bool, error) {
	var out struct {
		Points  *int `json:"points"`
		Correct *int `json:"correct"`
	}
	ok, err := t.getJSON(ctx, t.cfg.URL(t.cfg.CountPath), &out)
	if err != nil || !ok {
		return 0, false, err
	}
	switch {
	case out.Points != nil:
		return *out.Points, true, nil
	case out.Correct != nil:
		return *out.Correct, true, nil
	}
	return 0, false, nil
}

// Overview fetches the progress overview and returns its points value
func (t *Transport) Overview(ctx context.Context) (int, bool, error) {
	var out struct {
		Points *int `json:"points"`
	}
	ok, err := t.getJSON(ctx, t.cfg.URL(t.cfg.OverviewPath), &out)
	if err != nil || !ok || out.Points == nil {
		return 0, false, err
	}
	return *out.Points, true, nil
}

// RunToken looks up the newest assignment run token for a word list
func (t *Transport) RunToken(ctx context.Context, listName string) (string, error) {
	u := t.cfg.URL(t.cfg.RunTokenPath) + "?list_name=" + url.QueryEscape(listName)
	var out struct {
		Success  bool     `json:"success"`
		Tokens   []string `json:"tokens"`
		RunToken string   `json:"run_token"`
	}
	ok, err := t.getJSON(ctx, u, &out)
	if err != nil || !ok {
		return "", err
	}
	if out.RunToken != "" {
		return out.RunToken, nil
	}
	for i := len(out.Tokens) - 1; i >= 0; i-- {
		if tok := strings.TrimSpace(out.Tokens[i]); tok != "" {
			return tok, nil
		}
	}
	return "", nil
}

func (t *Transport) newRequest(ctx context.Context, method, u string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-store")
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (t *Transport) postJSON(ctx context.Context, u string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	req, err := t.newRequest(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", u, err)
	}
	return resp, nil
}

// getJSON decodes a 2xx body into out. Non-2xx answers return ok=false without error.
func (t *Transport) getJSON(ctx context.Context, u string, out any) (bool, error) {
	req, err := t.newRequest(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("request to %s failed: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return false, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.logger.Debug("ignoring unreadable response", "url", u, "error", err)
		return false, nil
	}
	return true, nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}
