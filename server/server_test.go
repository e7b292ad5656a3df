package server_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-password-auth/auth"
	"github.com/jrsteele09/go-password-auth/internal/config"
	"github.com/jrsteele09/go-password-auth/oauth2"
	"github.com/jrsteele09/go-password-auth/server"
	"github.com/jrsteele09/go-password-auth/token"
	"github.com/jrsteele09/go-password-auth/token/refresh"
	refreshrepofake "github.com/jrsteele09/go-password-auth/token/refresh/repofake"
	fakeuserrepo "github.com/jrsteele09/go-password-auth/users/repofake"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	config.EnvVars
	config.Cors
	config.OAuth
	config.Security
	config.Storage
}

type testFixture struct {
	mu     sync.Mutex
	now    time.Time
	srv    *server.Server
	auth   *auth.AuthorizationService
	client *http.Client
	url    string
}

func (f *testFixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *testFixture) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func setupTestFixture(t *testing.T, signer token.Signer) *testFixture {
	t.Helper()

	f := &testFixture{now: time.Now()}

	cfg := testConfig{
		EnvVars: config.EnvVars{Env: "TEST"},
		Cors:    config.Cors{AllowedOrigins: []string{"*"}},
		OAuth:   config.OAuth{AccessTokenTTL: 30 * time.Second, RefreshTokenTTL: time.Minute},
	}

	ur := fakeuserrepo.NewFakeUserRepo()
	refreshManager := refresh.NewManager(refreshrepofake.NewFakeRefreshTokenRepo(), cfg.OAuth)
	tokenCreator := token.New(refreshManager, ur, signer,
		token.WithAccessTokenExpiry(cfg.GetDefaultAccessTokenExpiry()),
		token.WithNowFunc(f.clock),
	)

	authService, err := auth.NewAuthorizationService(auth.Repos{Users: ur}, tokenCreator, auth.WithSecurityConfig(cfg.Security))
	require.NoError(t, err)

	srv, err := server.New(cfg, authService)
	require.NoError(t, err)

	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	f.srv = srv
	f.auth = authService
	f.client = ts.Client()
	f.url = ts.URL
	return f
}

func (f *testFixture) register(t *testing.T, username, password string) (int, string) {
	t.Helper()
	body, err := json.Marshal(oauth2.RegisterRequest{Username: username, Password: password})
	require.NoError(t, err)

	resp, err := f.client.Post(f.url+server.RouteRegister, "application/json", strings.NewReader(string(body)))
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(raw)
}

func (f *testFixture) postForm(t *testing.T, path string, form url.Values) *http.Response {
	t.Helper()
	resp, err := f.client.PostForm(f.url+path, form)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (f *testFixture) login(t *testing.T, username, password string) oauth2.TokenResponse {
	t.Helper()
	resp := f.postForm(t, server.RouteToken, url.Values{
		"grant_type": {"password"},
		"username":   {username},
		"password":   {password},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var tokens oauth2.TokenResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&tokens))
	return tokens
}

func (f *testFixture) getUsers(t *testing.T, accessToken string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, f.url+server.RouteUsers, nil)
	require.NoError(t, err)
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	resp, err := f.client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeError(t *testing.T, resp *http.Response) oauth2.ErrorResponse {
	t.Helper()
	require.Contains(t, resp.Header.Get("Content-Type"), "application/json")
	var errResp oauth2.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
	return errResp
}

func TestRegisterEndpoint(t *testing.T) {
	f := setupTestFixture(t, token.NewHMACSigner("secret"))

	status, body := f.register(t, "alice", "password1")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, auth.RegisteredMessage, body)

	status, body = f.register(t, "alice", "password2")
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, auth.UserExistsMessage, body)

	status, body = f.register(t, "bob", "123")
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "Password must be at least 6 characters long", body)

	status, body = f.register(t, "", "")
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "Fields cannot be empty", body)

	resp, err := f.client.Post(f.url+server.RouteRegister, "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTokenEndpoint(t *testing.T) {
	f := setupTestFixture(t, token.NewHMACSigner("secret"))
	f.register(t, "alice", "password1")

	t.Run("password grant", func(t *testing.T) {
		resp := f.postForm(t, server.RouteToken, url.Values{
			"grant_type": {"password"},
			"username":   {"alice"},
			"password":   {"password1"},
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
		require.Equal(t, "no-cache", resp.Header.Get("Pragma"))

		var tokens oauth2.TokenResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&tokens))
		require.NotEmpty(t, tokens.AccessToken)
		require.NotEmpty(t, tokens.RefreshToken)
		require.Equal(t, "Bearer", tokens.TokenType)
		require.Equal(t, 30, tokens.ExpiresIn)
	})

	t.Run("invalid credentials", func(t *testing.T) {
		resp := f.postForm(t, server.RouteToken, url.Values{
			"grant_type": {"password"},
			"username":   {"alice"},
			"password":   {"wrong-password"},
		})
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		errResp := decodeError(t, resp)
		require.Equal(t, oauth2.ErrorInvalidGrant, errResp.Error)
		require.Equal(t, auth.InvalidCredentialsMessage, errResp.ErrorDescription)
	})

	t.Run("refresh grant rejected", func(t *testing.T) {
		resp := f.postForm(t, server.RouteToken, url.Values{
			"grant_type":    {"refresh_token"},
			"refresh_token": {"abc"},
		})
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		errResp := decodeError(t, resp)
		require.Equal(t, oauth2.ErrorInvalidRequest, errResp.Error)
		require.Equal(t, auth.UnsupportedGrantTypeMessage, errResp.ErrorDescription)
	})
}

func TestRefreshEndpoint(t *testing.T) {
	f := setupTestFixture(t, token.NewHMACSigner("secret"))
	f.register(t, "alice", "password1")
	first := f.login(t, "alice", "password1")

	resp := f.postForm(t, server.RouteRefresh, url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {first.RefreshToken},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var second oauth2.TokenResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&second))
	require.NotEqual(t, first.AccessToken, second.AccessToken)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)

	// the rotated refresh token is single use
	resp = f.postForm(t, server.RouteRefresh, url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {first.RefreshToken},
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	errResp := decodeError(t, resp)
	require.Equal(t, oauth2.ErrorInvalidGrant, errResp.Error)
	require.Equal(t, auth.InvalidRefreshTokenMessage, errResp.ErrorDescription)

	// the old access token is revoked, the new one works
	require.Equal(t, http.StatusUnauthorized, f.getUsers(t, first.AccessToken).StatusCode)
	require.Equal(t, http.StatusOK, f.getUsers(t, second.AccessToken).StatusCode)

	// password grant is not accepted at the refresh endpoint
	resp = f.postForm(t, server.RouteRefresh, url.Values{
		"grant_type": {"password"},
		"username":   {"alice"},
		"password":   {"password1"},
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, auth.UnsupportedGrantTypeMessage, decodeError(t, resp).ErrorDescription)
}

func TestUsersEndpoint(t *testing.T) {
	f := setupTestFixture(t, token.NewHMACSigner("secret"))
	f.register(t, "user1", "password1")
	f.register(t, "user2", "password2")

	t.Run("missing token", func(t *testing.T) {
		resp := f.getUsers(t, "")
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		require.Contains(t, resp.Header.Get("WWW-Authenticate"), "Bearer")
		require.Equal(t, oauth2.ErrorInvalidToken, decodeError(t, resp).Error)
	})

	t.Run("garbage token", func(t *testing.T) {
		resp := f.getUsers(t, "garbage")
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		require.Contains(t, resp.Header.Get("WWW-Authenticate"), `error="invalid_token"`)
	})

	t.Run("valid token", func(t *testing.T) {
		tokens := f.login(t, "user1", "password1")
		resp := f.getUsers(t, tokens.AccessToken)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var records []oauth2.UserRecord
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&records))
		require.Len(t, records, 2)
		for _, r := range records {
			require.Empty(t, r.PasswordHash)
		}
	})

	t.Run("expired token", func(t *testing.T) {
		tokens := f.login(t, "user1", "password1")
		f.advance(31 * time.Second)
		t.Cleanup(func() { f.advance(-31 * time.Second) })

		resp := f.getUsers(t, tokens.AccessToken)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		require.Equal(t, auth.ExpiredAccessTokenMessage, decodeError(t, resp).ErrorDescription)
	})
}

func TestUsersHandler_RequiresClaims(t *testing.T) {
	f := setupTestFixture(t, token.NewHMACSigner("secret"))

	rec := httptest.NewRecorder()
	f.srv.Users()(rec, httptest.NewRequest(http.MethodGet, server.RouteUsers, nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Header().Get("WWW-Authenticate"), `error="invalid_token"`)

	_, ok := server.ClaimsFromContext(context.Background())
	require.False(t, ok)

	var got *token.Claims
	handler := f.srv.RequireAuth()(func(w http.ResponseWriter, r *http.Request) {
		got, _ = server.ClaimsFromContext(r.Context())
	})
	f.register(t, "user1", "password1")
	tokens := f.login(t, "user1", "password1")
	req := httptest.NewRequest(http.MethodGet, server.RouteUsers, nil)
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	handler(httptest.NewRecorder(), req)
	require.NotNil(t, got)
	require.Equal(t, "user1", got.Username)
	require.NotEmpty(t, got.Subject)
}

func TestJWKSEndpoint(t *testing.T) {
	t.Run("hmac", func(t *testing.T) {
		f := setupTestFixture(t, token.NewHMACSigner("secret"))
		resp, err := f.client.Get(f.url + server.RouteWellKnownJWKS)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("rsa", func(t *testing.T) {
		kp, err := token.GenerateRSAKeyPair("kid-1", 2048)
		require.NoError(t, err)
		f := setupTestFixture(t, token.NewKeyPairSigner(kp))

		resp, err := f.client.Get(f.url + server.RouteWellKnownJWKS)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var jwks token.JWKS
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&jwks))
		require.Len(t, jwks.Keys, 1)
		require.Equal(t, "kid-1", jwks.Keys[0].Kid)
	})
}

func TestHealthAndMetrics(t *testing.T) {
	f := setupTestFixture(t, token.NewHMACSigner("secret"))
	f.register(t, "alice", "password1")
	f.login(t, "alice", "password1")

	resp, err := f.client.Get(f.url + server.RouteHealth)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "ok", string(body))

	resp, err = f.client.Get(f.url + server.RouteMetrics)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err = io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `password_auth_tokens_issued_total{grant_type="password"} 1`)
	require.Contains(t, string(body), `password_auth_users_registered_total 1`)
	require.Contains(t, string(body), `route="POST /connect/token"`)
}

func TestCorsPreflight(t *testing.T) {
	f := setupTestFixture(t, token.NewHMACSigner("secret"))

	req, err := http.NewRequest(http.MethodOptions, f.url+server.RouteToken, nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")

	resp, err := f.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	require.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "POST")
}

func TestRecoverMiddleware(t *testing.T) {
	f := setupTestFixture(t, token.NewHMACSigner("secret"))

	handler := server.ChainMiddleware(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}, f.srv.APIMiddleware()...)

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), oauth2.ErrorServerError)
}

func TestJanitor(t *testing.T) {
	f := setupTestFixture(t, token.NewHMACSigner("secret"))

	_, err := server.NewJanitor(f.auth, "not a schedule", nil)
	require.Error(t, err)

	j, err := server.NewJanitor(f.auth, "@every 1h", f.srv.Metrics())
	require.NoError(t, err)
	require.NoError(t, j.RunOnce(context.Background()))

	j.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	j.Stop(ctx)
}
