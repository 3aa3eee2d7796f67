// Package rp exchanges typed JSON payloads with the relying-party server:
// challenge issuance, registration and assertion verification, and logout.
package rp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/louisbranch/frbpasskey/internal/platform/errors"
	"github.com/louisbranch/frbpasskey/internal/platform/id"
	"github.com/louisbranch/frbpasskey/internal/session"
	"github.com/louisbranch/frbpasskey/internal/wire"
)

const (
	loginChallengePath  = "/login/public-key/challenge"
	signupChallengePath = "/signup/public-key/challenge"
	loginPath           = "/login/public-key"
	logoutPath          = "/logout"

	contentTypeJSON = "application/json; charset=utf-8"

	// maxResponseBytes bounds response reads; relying-party bodies are small.
	maxResponseBytes = 1 << 20
)

// Client performs typed POST exchanges against a single relying-party
// origin. Session cookies returned by login-class endpoints are persisted to
// the injected store and replayed on subsequent requests.
type Client struct {
	domain     string
	baseURL    *url.URL
	httpClient *http.Client
	sessions   session.Store
	newToken   func() (string, error)
}

// New creates a relying-party client for cfg backed by the given session
// store. A nil httpClient falls back to a timeout-bounded default.
func New(cfg Config, store session.Store, httpClient *http.Client) (*Client, error) {
	domain := strings.TrimSpace(cfg.Domain)
	if domain == "" {
		return nil, fmt.Errorf("relying-party domain is required")
	}
	rawBase := strings.TrimSpace(cfg.BaseURL)
	if rawBase == "" {
		rawBase = "https://" + domain
	}
	baseURL, err := url.Parse(rawBase)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", rawBase)
	}
	if store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		domain:     domain,
		baseURL:    baseURL,
		httpClient: httpClient,
		sessions:   store,
		newToken:   id.NewID,
	}, nil
}

// Domain returns the configured relying-party identifier.
func (c *Client) Domain() string {
	return c.domain
}

// Origin returns the configured relying-party origin URL.
func (c *Client) Origin() *url.URL {
	u := *c.baseURL
	return &u
}

// FetchLoginChallenge requests a fresh login challenge.
func (c *Client) FetchLoginChallenge(ctx context.Context) (wire.Challenge, error) {
	var challenge wire.Challenge
	if err := c.post(ctx, loginChallengePath, struct{}{}, &challenge, false); err != nil {
		return wire.Challenge{}, err
	}
	return challenge, nil
}

// FetchSignupChallenge requests a signup challenge for username. Every call
// sends a freshly generated anti-forgery token.
func (c *Client) FetchSignupChallenge(ctx context.Context, username string) (wire.Challenge, error) {
	token, err := c.newToken()
	if err != nil {
		return wire.Challenge{}, errors.Wrap(errors.CodeUnknown, "generate anti-forgery token", err)
	}
	body := wire.SignupChallengeParams{
		CSRF:     token,
		Name:     username,
		Username: username,
	}
	var challenge wire.Challenge
	if err := c.post(ctx, signupChallengePath, body, &challenge, false); err != nil {
		return wire.Challenge{}, err
	}
	return challenge, nil
}

// SubmitRegistration submits a finished registration ceremony. On success the
// server's session cookies are persisted for the origin.
func (c *Client) SubmitRegistration(ctx context.Context, submission wire.SignUpSubmission) (wire.LoginResult, error) {
	var result wire.LoginResult
	if err := c.post(ctx, loginPath, submission, &result, true); err != nil {
		return wire.LoginResult{}, err
	}
	return result, nil
}

// SubmitAssertion submits a finished assertion ceremony. On success the
// server's session cookies are persisted for the origin.
func (c *Client) SubmitAssertion(ctx context.Context, submission wire.SignInSubmission) (wire.LoginResult, error) {
	var result wire.LoginResult
	if err := c.post(ctx, loginPath, submission, &result, true); err != nil {
		return wire.LoginResult{}, err
	}
	return result, nil
}

// LogOut terminates the server-side session.
func (c *Client) LogOut(ctx context.Context) (wire.LogoutResult, error) {
	var result wire.LogoutResult
	if err := c.post(ctx, logoutPath, struct{}{}, &result, false); err != nil {
		return wire.LogoutResult{}, err
	}
	return result, nil
}

// post performs one JSON POST exchange. Transport faults map to
// TRANSPORT_FAILURE, non-200 statuses to SERVER_REJECTED with the
// server-provided message when decodable, and undecodable 200 bodies to
// DECODE_FAILURE.
func (c *Client) post(ctx context.Context, path string, body, out any, persistSession bool) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(errors.CodeDecodeFailure, "encode request body", err)
	}

	endpoint := c.baseURL.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(errors.CodeTransportFailure, "build request", err)
	}
	req.Header.Set("Content-Type", contentTypeJSON)
	req.Header.Set("Accept", "application/json")
	for _, cookie := range c.sessions.Cookies(c.baseURL) {
		req.AddCookie(cookie)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(errors.CodeTransportFailure, "post "+path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return errors.Wrap(errors.CodeTransportFailure, "read response body", err)
	}

	if resp.StatusCode != http.StatusOK {
		message := "request rejected by server"
		var serverErr wire.ServerError
		if err := json.Unmarshal(raw, &serverErr); err == nil && serverErr.Error != "" {
			message = serverErr.Error
		}
		return errors.WithMetadata(errors.CodeServerRejected, message, map[string]string{
			"endpoint": path,
			"status":   strconv.Itoa(resp.StatusCode),
		})
	}

	if persistSession {
		if cookies := resp.Cookies(); len(cookies) > 0 {
			c.sessions.SetCookies(c.baseURL, cookies)
		}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return errors.Wrap(errors.CodeDecodeFailure, "decode "+path+" response", err)
	}
	return nil
}
