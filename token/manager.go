package token

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	autherrors "github.com/jrsteele09/go-password-auth/internal/errors"
	"github.com/jrsteele09/go-password-auth/oauth2"
	"github.com/jrsteele09/go-password-auth/token/refresh"
	"github.com/jrsteele09/go-password-auth/users"
	"github.com/rs/zerolog/log"
)

// Claims is the validated content of an access token.
type Claims struct {
	Subject   string // user ID
	Username  string
	Issuer    string
	Audience  string
	ID        string // jti
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type Manager struct {
	signer            Signer            // Token signing and verification
	issuer            string            // iss claim
	audience          string            // aud claim
	refresh           *refresh.Manager  // Refresh token storage and rotation
	userRepo          users.UserRepo    // Repository for user data
	revokedCache      RevokedTokenCache // Cache for revoked access tokens
	accessTokenExpiry time.Duration
	nowFunc           func() time.Time
}

type ManagerOption func(*Manager)

func WithAccessTokenExpiry(expiry time.Duration) ManagerOption {
	return func(m *Manager) {
		m.accessTokenExpiry = expiry
	}
}

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

func WithIssuer(issuer string) ManagerOption {
	return func(m *Manager) {
		m.issuer = issuer
	}
}

func WithAudience(audience string) ManagerOption {
	return func(m *Manager) {
		m.audience = audience
	}
}

func WithRevokedTokenCache(cache RevokedTokenCache) ManagerOption {
	return func(m *Manager) {
		m.revokedCache = cache
	}
}

func New(refreshManager *refresh.Manager, userRepo users.UserRepo, signer Signer, options ...ManagerOption) *Manager {
	m := &Manager{
		refresh:      refreshManager,
		userRepo:     userRepo,
		signer:       signer,
		revokedCache: NewInMemoryRevokedTokenCache(), // Default implementation
	}

	for _, opt := range options {
		opt(m)
	}

	if m.accessTokenExpiry == 0 {
		m.accessTokenExpiry = 30 * time.Second
	}
	if m.nowFunc == nil {
		m.nowFunc = time.Now
	}
	return m
}

// CreateAccessToken signs a new access token for user and returns it with its jti and expiry.
func (c *Manager) CreateAccessToken(user *users.User) (string, *Claims, error) {
	now := c.nowFunc()
	claims := &Claims{
		Subject:   user.ID,
		Username:  user.Username,
		Issuer:    c.issuer,
		Audience:  c.audience,
		ID:        uuid.New().String(),
		IssuedAt:  now,
		ExpiresAt: now.Add(c.accessTokenExpiry),
	}

	mapClaims := jwt.MapClaims{
		"sub":  claims.Subject,          // The subject, the user ID
		"name": claims.Username,         // Username for display
		"iat":  claims.IssuedAt.Unix(),  // Issued At: the time at which the token was issued
		"exp":  claims.ExpiresAt.Unix(), // Expiry: when the token will expire
		"jti":  claims.ID,               // Unique token ID for revocation
	}
	if c.issuer != "" {
		mapClaims["iss"] = c.issuer
	}
	if c.audience != "" {
		mapClaims["aud"] = c.audience
	}

	signed, err := c.signer.Sign(mapClaims)
	if err != nil {
		return "", nil, fmt.Errorf("[Manager CreateAccessToken] %w", err)
	}
	return signed, claims, nil
}

// GenerateTokenResponse issues a fresh access and refresh token pair for user.
func (c *Manager) GenerateTokenResponse(ctx context.Context, user *users.User) (*oauth2.TokenResponse, error) {
	accessToken, claims, err := c.CreateAccessToken(user)
	if err != nil {
		return nil, err
	}

	refreshToken, err := c.refresh.Create(ctx, user.ID, claims.ID, claims.ExpiresAt, claims.IssuedAt)
	if err != nil {
		return nil, fmt.Errorf("[Manager GenerateTokenResponse] %w", err)
	}

	return &oauth2.TokenResponse{
		AccessToken:  accessToken,
		TokenType:    oauth2.TokenType,
		ExpiresIn:    int(c.accessTokenExpiry.Seconds()),
		RefreshToken: refreshToken,
	}, nil
}

// RefreshTokenResponse redeems refreshToken for a new pair. The refresh token is
// rotated and the access token issued with it is revoked, so the previous pair
// stops working entirely. If the new pair cannot be issued the consumed token is
// restored and the caller may retry with it.
func (c *Manager) RefreshTokenResponse(ctx context.Context, refreshToken string) (*oauth2.TokenResponse, error) {
	rt, err := c.refresh.Consume(ctx, refreshToken, c.nowFunc())
	if err != nil {
		return nil, err
	}

	user, err := c.userRepo.GetByID(ctx, rt.UserID)
	if err != nil {
		if errors.Is(err, autherrors.ErrUserNotFound) {
			return nil, autherrors.ErrInvalidRefreshToken
		}
		return nil, c.restore(ctx, rt, fmt.Errorf("[Manager RefreshTokenResponse] failed to load user for refresh token: %w", err))
	}

	resp, err := c.GenerateTokenResponse(ctx, user)
	if err != nil {
		return nil, c.restore(ctx, rt, err)
	}

	// The superseded access token expires within the access TTL regardless.
	if rt.AccessTokenID != "" && c.nowFunc().Before(rt.AccessExpiresAt) {
		if err := c.revokedCache.Add(ctx, rt.AccessTokenID, rt.AccessExpiresAt); err != nil {
			log.Error().Err(err).Str("jti", rt.AccessTokenID).Msg("failed to revoke previous access token")
		}
	}
	return resp, nil
}

func (c *Manager) restore(ctx context.Context, rt *refresh.StoredRefreshToken, cause error) error {
	if err := c.refresh.Restore(ctx, rt); err != nil {
		log.Error().Err(err).Str("user_id", rt.UserID).Msg("refresh token lost after failed rotation")
	}
	return cause
}

// ValidateAccessToken verifies the signature, expiry, issuer, audience and
// revocation state of rawToken.
func (c *Manager) ValidateAccessToken(ctx context.Context, rawToken string) (*Claims, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, autherrors.ErrInvalidToken
	}

	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{c.signer.GetSigningMethod().Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(c.nowFunc),
	}
	if c.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(c.issuer))
	}
	if c.audience != "" {
		parserOptions = append(parserOptions, jwt.WithAudience(c.audience))
	}

	parsed, err := jwt.Parse(rawToken, c.signer.GetVerificationKey, parserOptions...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, autherrors.Wrapf(autherrors.ErrTokenExpired, "[Manager ValidateAccessToken]")
		}
		return nil, autherrors.Wrapf(autherrors.ErrInvalidToken, "[Manager ValidateAccessToken] %s", err.Error())
	}

	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, autherrors.ErrInvalidToken
	}

	claims := &Claims{}
	claims.Subject, _ = mapClaims["sub"].(string)
	claims.Username, _ = mapClaims["name"].(string)
	claims.Issuer, _ = mapClaims["iss"].(string)
	claims.ID, _ = mapClaims["jti"].(string)
	if aud, err := mapClaims.GetAudience(); err == nil && len(aud) > 0 {
		claims.Audience = aud[0]
	}
	if iat, err := mapClaims.GetIssuedAt(); err == nil && iat != nil {
		claims.IssuedAt = iat.Time
	}
	if exp, err := mapClaims.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}

	if claims.ID == "" || claims.Subject == "" {
		return nil, autherrors.Wrapf(autherrors.ErrInvalidToken, "[Manager ValidateAccessToken] missing sub or jti")
	}

	revoked, err := c.revokedCache.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("[Manager ValidateAccessToken] revocation lookup failed: %w", err)
	}
	if revoked {
		return nil, autherrors.Wrapf(autherrors.ErrTokenRevoked, "[Manager ValidateAccessToken]")
	}

	return claims, nil
}

// GetJWKS returns the JSON Web Key Set for public key distribution
// Only works with KeyPairSigner (asymmetric keys)
func (c *Manager) GetJWKS() (*JWKS, error) {
	keyPairSigner, ok := c.signer.(*KeyPairSigner)
	if !ok {
		return nil, autherrors.Wrapf(autherrors.ErrUnsupported, "JWKS only supported for asymmetric signing")
	}
	return keyPairSigner.GetJWKS()
}

// AccessTokenExpiry is the lifetime of issued access tokens.
func (c *Manager) AccessTokenExpiry() time.Duration {
	return c.accessTokenExpiry
}

// CleanupExpired removes expired refresh tokens and stale revocation entries
func (c *Manager) CleanupExpired(ctx context.Context) (int64, error) {
	if err := c.revokedCache.Cleanup(ctx); err != nil {
		return 0, fmt.Errorf("[Manager CleanupExpired] revoked cache: %w", err)
	}
	deleted, err := c.refresh.DeleteExpired(ctx, c.nowFunc())
	if err != nil {
		return 0, fmt.Errorf("[Manager CleanupExpired] refresh tokens: %w", err)
	}
	return deleted, nil
}
