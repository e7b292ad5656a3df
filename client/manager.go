// Package client talks to the authorization server on behalf of one user
// session: it registers, logs in, fetches the protected user list and
// refreshes the token pair when the server answers 401.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jrsteele09/go-password-auth/oauth2"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// SuccessMessage is returned by Authenticate.
const SuccessMessage = "Successful authorization"

const (
	defaultTimeout = 30 * time.Second
	maxBodyBytes   = 1 << 20

	registerPath = "/connect/register"
	tokenPath    = "/connect/token"
	refreshPath  = "/connect/refresh"
	usersPath    = "/users"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Manager holds the current session and performs requests with it. It is
// safe for concurrent use; overlapping refreshes are collapsed into one.
type Manager struct {
	baseURL    string
	httpClient *http.Client

	mu      sync.Mutex
	session Session

	refreshGroup singleflight.Group
}

type Option func(*Manager)

// WithHTTPClient replaces the default client (30s timeout).
func WithHTTPClient(httpClient *http.Client) Option {
	return func(m *Manager) {
		m.httpClient = httpClient
	}
}

// WithTimeout sets the timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(m *Manager) {
		m.httpClient = &http.Client{Timeout: timeout}
	}
}

// WithSession starts the manager with an existing token pair.
func WithSession(session Session) Option {
	return func(m *Manager) {
		m.session = session
	}
}

// New creates a Manager for the server at baseURL, e.g. http://localhost:8080.
func New(baseURL string, options ...Option) (*Manager, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("[client New] invalid server URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("[client New] server URL must be http or https, got %q", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("[client New] server URL %q has no host", baseURL)
	}

	m := &Manager{
		baseURL:    strings.TrimSuffix(u.String(), "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range options {
		opt(m)
	}
	return m, nil
}

// Session returns a snapshot of the current token pair.
func (m *Manager) Session() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// Logout forgets the current token pair.
func (m *Manager) Logout() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = Session{}
}

// Register creates an account and returns the server's message verbatim.
func (m *Manager) Register(ctx context.Context, username, password string) (string, error) {
	body, err := json.Marshal(oauth2.RegisterRequest{Username: username, Password: password})
	if err != nil {
		return "", fmt.Errorf("[Register] %w", err)
	}

	status, respBody, err := m.do(ctx, http.MethodPost, registerPath, "application/json", bytes.NewReader(body), "")
	if err != nil {
		return "", err
	}
	if !isSuccess(status) {
		return "", &ResponseError{StatusCode: status, Message: registrationFailedPrefix + string(respBody), Body: string(respBody)}
	}
	return string(respBody), nil
}

// Authenticate exchanges username and password for a token pair and keeps it.
// The tokens themselves are not returned.
func (m *Manager) Authenticate(ctx context.Context, username, password string) (string, error) {
	form := url.Values{
		"grant_type": {string(oauth2.PasswordGrant)},
		"username":   {username},
		"password":   {password},
	}

	tokens, err := m.postTokenForm(ctx, tokenPath, form, authFailedPrefix)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	m.session = sessionFromResponse(tokens)
	m.mu.Unlock()

	log.Debug().Msg("authenticated")
	return SuccessMessage, nil
}

// GetProtectedResource fetches the user list. A 401 triggers exactly one
// refresh followed by exactly one retry; a failed refresh returns its own error.
func (m *Manager) GetProtectedResource(ctx context.Context) ([]oauth2.UserRecord, error) {
	used := m.Session().AccessToken
	status, body, err := m.do(ctx, http.MethodGet, usersPath, "", nil, used)
	if err != nil {
		return nil, err
	}

	if status == http.StatusUnauthorized {
		log.Debug().Msg("access token rejected, refreshing")
		if err := m.refreshIfCurrent(ctx, used); err != nil {
			return nil, err
		}

		status, body, err = m.do(ctx, http.MethodGet, usersPath, "", nil, m.Session().AccessToken)
		if err != nil {
			return nil, err
		}
	}

	if !isSuccess(status) {
		return nil, &ResponseError{StatusCode: status, Message: userDataFailedPrefix + string(body), Body: string(body)}
	}

	var records []oauth2.UserRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("[GetProtectedResource] invalid response body: %w", err)
	}
	return records, nil
}

// Refresh redeems the stored refresh token for a new pair. On failure the
// stored pair is left untouched. A cancelled ctx only abandons this caller's
// wait; the shared request runs on, bounded by the HTTP client timeout.
func (m *Manager) Refresh(ctx context.Context) error {
	ch := m.refreshGroup.DoChan("refresh", func() (any, error) {
		return nil, m.doRefresh(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// refreshIfCurrent refreshes unless another caller already replaced the
// access token that was rejected, in which case the retry uses the new one.
func (m *Manager) refreshIfCurrent(ctx context.Context, rejected string) error {
	if current := m.Session().AccessToken; current != rejected {
		return nil
	}
	return m.Refresh(ctx)
}

func (m *Manager) doRefresh(ctx context.Context) error {
	sent := m.Session().RefreshToken
	form := url.Values{
		"grant_type":    {string(oauth2.RefreshTokenGrant)},
		"refresh_token": {sent},
	}

	tokens, err := m.postTokenForm(ctx, refreshPath, form, refreshFailedPrefix)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Authenticate or Logout ran while the request was in flight; theirs wins.
	if m.session.RefreshToken != sent {
		log.Debug().Msg("session replaced during refresh, discarding refreshed pair")
		return nil
	}
	m.session = sessionFromResponse(tokens)
	log.Debug().Msg("token pair refreshed")
	return nil
}

func (m *Manager) postTokenForm(ctx context.Context, path string, form url.Values, failurePrefix string) (*oauth2.TokenResponse, error) {
	status, body, err := m.do(ctx, http.MethodPost, path, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()), "")
	if err != nil {
		return nil, err
	}
	if !isSuccess(status) {
		return nil, &ResponseError{StatusCode: status, Message: failurePrefix + errorDescription(body), Body: string(body)}
	}

	var tokens oauth2.TokenResponse
	if err := json.Unmarshal(body, &tokens); err != nil {
		return nil, fmt.Errorf("[%s] invalid token response: %w", path, err)
	}
	return &tokens, nil
}

// do sends one request and reads the whole body. Requests to the users
// endpoint carry accessToken as a bearer token.
func (m *Manager) do(ctx context.Context, method, path, contentType string, body io.Reader, accessToken string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, m.baseURL+path, body)
	if err != nil {
		return 0, nil, fmt.Errorf("[%s %s] %w", method, path, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if path == usersPath {
		// sent even when empty, the server decides
		Session{AccessToken: accessToken}.Token().SetAuthHeader(req)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, nil, ctxErr
		}
		log.Debug().Err(err).Str("url", req.URL.String()).Msg("transport failure")
		return 0, nil, ErrCannotConnect
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, nil, ctxErr
		}
		return 0, nil, ErrCannotConnect
	}
	return resp.StatusCode, respBody, nil
}

func sessionFromResponse(tokens *oauth2.TokenResponse) Session {
	s := Session{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	}
	if tokens.ExpiresIn > 0 {
		s.Expiry = NowTimeFunc().Add(time.Duration(tokens.ExpiresIn) * time.Second)
	}
	return s
}

// errorDescription extracts error_description from an OAuth2 error body,
// falling back to the raw body when it is not one.
func errorDescription(body []byte) string {
	var errResp oauth2.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && (errResp.ErrorDescription != "" || errResp.Error != "") {
		return errResp.ErrorDescription
	}
	return strings.TrimSpace(string(body))
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

// IsCannotConnect reports whether err means the server was unreachable.
func IsCannotConnect(err error) bool {
	return errors.Is(err, ErrCannotConnect)
}
