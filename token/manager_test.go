package token_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-password-auth/internal/config"
	autherrors "github.com/jrsteele09/go-password-auth/internal/errors"
	"github.com/jrsteele09/go-password-auth/oauth2"
	"github.com/jrsteele09/go-password-auth/token"
	"github.com/jrsteele09/go-password-auth/token/refresh"
	refreshrepofake "github.com/jrsteele09/go-password-auth/token/refresh/repofake"
	"github.com/jrsteele09/go-password-auth/users"
	fakeuserrepo "github.com/jrsteele09/go-password-auth/users/repofake"
	"github.com/stretchr/testify/require"
)

const (
	secretStr = "1234"
	issuer    = "com.testissuer"
	audience  = "api"
)

type testFixture struct {
	now      time.Time
	user     *users.User
	userRepo *flakyUserRepo
	refresh  *refreshrepofake.FakeRefreshTokenRepo
	revoked  *token.InMemoryRevokedTokenCache
	manager  *token.Manager
}

func (f *testFixture) clock() time.Time {
	return f.now
}

func (f *testFixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

// flakyUserRepo fails the next failGetByID lookups by ID with a storage error.
type flakyUserRepo struct {
	users.UserRepo
	failGetByID int
}

func (r *flakyUserRepo) GetByID(ctx context.Context, id string) (*users.User, error) {
	if r.failGetByID > 0 {
		r.failGetByID--
		return nil, errors.New("connection reset")
	}
	return r.UserRepo.GetByID(ctx, id)
}

// failingRevokedTokenCache rejects every Add.
type failingRevokedTokenCache struct {
	*token.InMemoryRevokedTokenCache
}

func (failingRevokedTokenCache) Add(context.Context, string, time.Time) error {
	return errors.New("redis down")
}

// setupTestFixture builds a manager on in-memory stores. opts are applied
// after the defaults and can replace them.
func setupTestFixture(t *testing.T, signer token.Signer, opts ...token.ManagerOption) *testFixture {
	t.Helper()

	f := &testFixture{
		now:      time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
		userRepo: &flakyUserRepo{UserRepo: fakeuserrepo.NewFakeUserRepo()},
		refresh:  refreshrepofake.NewFakeRefreshTokenRepo(),
		revoked:  token.NewInMemoryRevokedTokenCache(),
	}

	user, err := users.New("alice", "password123", f.now)
	require.NoError(t, err)
	require.NoError(t, f.userRepo.Insert(context.Background(), user))
	f.user = user

	refreshManager := refresh.NewManager(f.refresh, config.OAuth{RefreshTokenTTL: time.Minute})
	f.manager = token.New(refreshManager, f.userRepo, signer, append([]token.ManagerOption{
		token.WithAccessTokenExpiry(30 * time.Second),
		token.WithIssuer(issuer),
		token.WithAudience(audience),
		token.WithNowFunc(f.clock),
		token.WithRevokedTokenCache(f.revoked),
	}, opts...)...)
	return f
}

func TestGenerateTokenResponse(t *testing.T) {
	f := setupTestFixture(t, token.NewHMACSigner(secretStr))
	ctx := context.Background()

	resp, err := f.manager.GenerateTokenResponse(ctx, f.user)
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)
	require.NotEmpty(t, resp.RefreshToken)
	require.Equal(t, oauth2.TokenType, resp.TokenType)
	require.Equal(t, 30, resp.ExpiresIn)
	require.Equal(t, 1, f.refresh.Len())

	claims, err := f.manager.ValidateAccessToken(ctx, resp.AccessToken)
	require.NoError(t, err)
	require.Equal(t, f.user.ID, claims.Subject)
	require.Equal(t, "alice", claims.Username)
	require.Equal(t, issuer, claims.Issuer)
	require.Equal(t, audience, claims.Audience)
	require.NotEmpty(t, claims.ID)
	require.Equal(t, f.now.Add(30*time.Second).Unix(), claims.ExpiresAt.Unix())
}

func TestValidateAccessToken_Expired(t *testing.T) {
	f := setupTestFixture(t, token.NewHMACSigner(secretStr))
	ctx := context.Background()

	resp, err := f.manager.GenerateTokenResponse(ctx, f.user)
	require.NoError(t, err)

	f.advance(29 * time.Second)
	_, err = f.manager.ValidateAccessToken(ctx, resp.AccessToken)
	require.NoError(t, err)

	f.advance(time.Second)
	_, err = f.manager.ValidateAccessToken(ctx, resp.AccessToken)
	require.ErrorIs(t, err, autherrors.ErrTokenExpired)
}

func TestValidateAccessToken_Rejects(t *testing.T) {
	f := setupTestFixture(t, token.NewHMACSigner(secretStr))
	ctx := context.Background()

	resp, err := f.manager.GenerateTokenResponse(ctx, f.user)
	require.NoError(t, err)

	t.Run("empty", func(t *testing.T) {
		_, err := f.manager.ValidateAccessToken(ctx, "  ")
		require.ErrorIs(t, err, autherrors.ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := f.manager.ValidateAccessToken(ctx, "not.a.jwt")
		require.ErrorIs(t, err, autherrors.ErrInvalidToken)
	})

	t.Run("tampered signature", func(t *testing.T) {
		parts := strings.Split(resp.AccessToken, ".")
		require.Len(t, parts, 3)
		tampered := parts[0] + "." + parts[1] + ".AAAA" + parts[2][4:]
		_, err := f.manager.ValidateAccessToken(ctx, tampered)
		require.ErrorIs(t, err, autherrors.ErrInvalidToken)
	})

	t.Run("other secret", func(t *testing.T) {
		other := setupTestFixture(t, token.NewHMACSigner("another-secret"))
		_, err := other.manager.ValidateAccessToken(ctx, resp.AccessToken)
		require.ErrorIs(t, err, autherrors.ErrInvalidToken)
	})

	t.Run("wrong audience", func(t *testing.T) {
		signed, err := token.NewHMACSigner(secretStr).Sign(jwt.MapClaims{
			"sub": f.user.ID,
			"jti": "jti-1",
			"iss": issuer,
			"aud": "someone-else",
			"iat": f.now.Unix(),
			"exp": f.now.Add(time.Minute).Unix(),
		})
		require.NoError(t, err)
		_, err = f.manager.ValidateAccessToken(ctx, signed)
		require.ErrorIs(t, err, autherrors.ErrInvalidToken)
	})

	t.Run("missing expiry", func(t *testing.T) {
		signed, err := token.NewHMACSigner(secretStr).Sign(jwt.MapClaims{
			"sub": f.user.ID,
			"jti": "jti-2",
			"iss": issuer,
			"aud": audience,
		})
		require.NoError(t, err)
		_, err = f.manager.ValidateAccessToken(ctx, signed)
		require.ErrorIs(t, err, autherrors.ErrInvalidToken)
	})
}

func TestRefreshTokenResponse(t *testing.T) {
	f := setupTestFixture(t, token.NewHMACSigner(secretStr))
	ctx := context.Background()

	first, err := f.manager.GenerateTokenResponse(ctx, f.user)
	require.NoError(t, err)

	f.advance(10 * time.Second)
	second, err := f.manager.RefreshTokenResponse(ctx, first.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, first.AccessToken, second.AccessToken)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)
	require.Equal(t, 1, f.refresh.Len())

	// the superseded access token stops working straight away
	_, err = f.manager.ValidateAccessToken(ctx, first.AccessToken)
	require.ErrorIs(t, err, autherrors.ErrTokenRevoked)

	claims, err := f.manager.ValidateAccessToken(ctx, second.AccessToken)
	require.NoError(t, err)
	require.Equal(t, f.user.ID, claims.Subject)

	// a refresh token can only be redeemed once
	_, err = f.manager.RefreshTokenResponse(ctx, first.RefreshToken)
	require.ErrorIs(t, err, autherrors.ErrInvalidRefreshToken)
}

func TestRefreshTokenResponse_Expired(t *testing.T) {
	f := setupTestFixture(t, token.NewHMACSigner(secretStr))
	ctx := context.Background()

	resp, err := f.manager.GenerateTokenResponse(ctx, f.user)
	require.NoError(t, err)

	f.advance(time.Minute)
	_, err = f.manager.RefreshTokenResponse(ctx, resp.RefreshToken)
	require.ErrorIs(t, err, autherrors.ErrRefreshTokenExpired)
}

func TestRefreshTokenResponse_UnknownUser(t *testing.T) {
	f := setupTestFixture(t, token.NewHMACSigner(secretStr))
	ctx := context.Background()

	ghost := &users.User{ID: "ghost", Username: "ghost"}
	resp, err := f.manager.GenerateTokenResponse(ctx, ghost)
	require.NoError(t, err)

	_, err = f.manager.RefreshTokenResponse(ctx, resp.RefreshToken)
	require.ErrorIs(t, err, autherrors.ErrInvalidRefreshToken)
}

func TestRefreshTokenResponse_RevocationFailure(t *testing.T) {
	f := setupTestFixture(t, token.NewHMACSigner(secretStr),
		token.WithRevokedTokenCache(failingRevokedTokenCache{token.NewInMemoryRevokedTokenCache()}))
	ctx := context.Background()

	first, err := f.manager.GenerateTokenResponse(ctx, f.user)
	require.NoError(t, err)

	second, err := f.manager.RefreshTokenResponse(ctx, first.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)
	require.Equal(t, 1, f.refresh.Len())

	// rotation still completes and the new pair keeps working
	third, err := f.manager.RefreshTokenResponse(ctx, second.RefreshToken)
	require.NoError(t, err)
	_, err = f.manager.ValidateAccessToken(ctx, third.AccessToken)
	require.NoError(t, err)
}

func TestRefreshTokenResponse_StorageFailureKeepsToken(t *testing.T) {
	f := setupTestFixture(t, token.NewHMACSigner(secretStr))
	ctx := context.Background()

	first, err := f.manager.GenerateTokenResponse(ctx, f.user)
	require.NoError(t, err)

	f.userRepo.failGetByID = 1
	_, err = f.manager.RefreshTokenResponse(ctx, first.RefreshToken)
	require.Error(t, err)
	require.NotErrorIs(t, err, autherrors.ErrInvalidRefreshToken)
	require.Equal(t, 1, f.refresh.Len())
	require.Zero(t, f.revoked.Len())

	// the same refresh token works once storage recovers
	second, err := f.manager.RefreshTokenResponse(ctx, first.RefreshToken)
	require.NoError(t, err)
	require.NotEmpty(t, second.AccessToken)

	_, err = f.manager.ValidateAccessToken(ctx, first.AccessToken)
	require.ErrorIs(t, err, autherrors.ErrTokenRevoked)
}

func TestRefreshTokenResponse_UsesInjectedClock(t *testing.T) {
	f := setupTestFixture(t, token.NewHMACSigner(secretStr))
	ctx := context.Background()

	// the fixture clock is fixed in 2026, so a wall-clock expiry check would pass
	resp, err := f.manager.GenerateTokenResponse(ctx, f.user)
	require.NoError(t, err)

	f.advance(59 * time.Second)
	next, err := f.manager.RefreshTokenResponse(ctx, resp.RefreshToken)
	require.NoError(t, err)

	f.advance(time.Minute)
	_, err = f.manager.RefreshTokenResponse(ctx, next.RefreshToken)
	require.ErrorIs(t, err, autherrors.ErrRefreshTokenExpired)
}

func TestGetJWKS(t *testing.T) {
	t.Run("hmac", func(t *testing.T) {
		f := setupTestFixture(t, token.NewHMACSigner(secretStr))
		_, err := f.manager.GetJWKS()
		require.ErrorIs(t, err, autherrors.ErrUnsupported)
	})

	t.Run("rsa", func(t *testing.T) {
		kp, err := token.GenerateRSAKeyPair("kid-1", 2048)
		require.NoError(t, err)
		f := setupTestFixture(t, token.NewKeyPairSigner(kp))

		jwks, err := f.manager.GetJWKS()
		require.NoError(t, err)
		require.Len(t, jwks.Keys, 1)
		require.Equal(t, "kid-1", jwks.Keys[0].Kid)
		require.Equal(t, "RSA", jwks.Keys[0].Kty)

		resp, err := f.manager.GenerateTokenResponse(context.Background(), f.user)
		require.NoError(t, err)
		_, err = f.manager.ValidateAccessToken(context.Background(), resp.AccessToken)
		require.NoError(t, err)
	})
}

func TestCleanupExpired(t *testing.T) {
	f := setupTestFixture(t, token.NewHMACSigner(secretStr))
	ctx := context.Background()

	first, err := f.manager.GenerateTokenResponse(ctx, f.user)
	require.NoError(t, err)
	_, err = f.manager.RefreshTokenResponse(ctx, first.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, 1, f.revoked.Len())

	f.advance(2 * time.Minute)
	deleted, err := f.manager.CleanupExpired(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, deleted)
	require.Zero(t, f.refresh.Len())
}
