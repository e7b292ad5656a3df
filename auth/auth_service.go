package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jrsteele09/go-password-auth/internal/config"
	autherrors "github.com/jrsteele09/go-password-auth/internal/errors"
	"github.com/jrsteele09/go-password-auth/oauth2"
	"github.com/jrsteele09/go-password-auth/token"
	"github.com/jrsteele09/go-password-auth/users"
	"github.com/rs/zerolog/log"
)

// Repos holds all repository dependencies for the AuthorizationService
type Repos struct {
	Users users.UserRepo // Repository for user data
}

// AuthorizationService registers users, issues and refreshes tokens, and
// authenticates bearer tokens for the protected endpoints.
type AuthorizationService struct {
	repos                Repos                // All repository dependencies
	tokenCreator         *token.Manager       // Create and handle token generation
	validator            *Validator           // Token request validation
	passwordPolicy       users.PasswordPolicy // Rules applied at registration
	exposePasswordHashes bool                 // Whether ListUsers returns real hashes
	nowTime              func() time.Time     // nowTime function (injectable for testing)
}

// AuthorizationServiceOption defines a function type to modify the AuthorizationService instance.
type AuthorizationServiceOption func(*AuthorizationService)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.nowTime = nowFunc
	}
}

// WithPasswordPolicy overrides the default six character minimum.
func WithPasswordPolicy(policy users.PasswordPolicy) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.passwordPolicy = policy
	}
}

// WithExposePasswordHashes makes ListUsers return stored password hashes
// instead of blanking them.
func WithExposePasswordHashes(expose bool) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.exposePasswordHashes = expose
	}
}

// WithSecurityConfig applies the password policy and hash exposure settings from cfg.
func WithSecurityConfig(cfg config.SecurityConfig) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.passwordPolicy = users.PasswordPolicy{
			MinLength:     cfg.GetPasswordMinLength(),
			RequireDigit:  cfg.GetPasswordRequireDigit(),
			RequireUpper:  cfg.GetPasswordRequireUpper(),
			RequireLower:  cfg.GetPasswordRequireLower(),
			RequireSymbol: cfg.GetPasswordRequireSymbol(),
		}
		as.exposePasswordHashes = cfg.GetExposePasswordHashes()
	}
}

// NewAuthorizationService initializes a new AuthorizationService with required dependencies.
func NewAuthorizationService(
	repos Repos,
	tokenCreator *token.Manager,
	options ...AuthorizationServiceOption,
) (*AuthorizationService, error) {
	if repos.Users == nil {
		return nil, errors.New("[NewAuthorizationService] Users repo is required")
	}
	if tokenCreator == nil {
		return nil, errors.New("[NewAuthorizationService] tokenCreator is required")
	}

	authService := &AuthorizationService{
		repos:          repos,
		tokenCreator:   tokenCreator,
		validator:      NewValidator(),
		passwordPolicy: users.DefaultPasswordPolicy,
		nowTime:        time.Now,
	}

	for _, opt := range options {
		opt(authService)
	}

	return authService, nil
}

// Register creates a user and returns the confirmation message. Failures are
// *OAuthError values whose Description is the message to show the caller.
func (as *AuthorizationService) Register(ctx context.Context, username, password string) (string, error) {
	if err := users.ValidateRegistration(username, password, as.passwordPolicy); err != nil {
		return "", newOAuthError(autherrors.ErrValidation, oauth2.ErrorInvalidRequest, err.Error(), http.StatusBadRequest)
	}

	if _, err := as.repos.Users.GetByUsername(ctx, username); err == nil {
		return "", as.userExistsErr()
	} else if !errors.Is(err, autherrors.ErrUserNotFound) {
		log.Err(err).Msg("[Register] user lookup failed")
		return "", as.registrationFailedErr(err)
	}

	user, err := users.New(username, password, as.nowTime())
	if err != nil {
		log.Err(err).Msg("[Register] failed to create user")
		return "", as.registrationFailedErr(err)
	}

	if err := as.repos.Users.Insert(ctx, user); err != nil {
		// lost a race with a concurrent registration of the same name
		if errors.Is(err, autherrors.ErrUserExists) {
			return "", as.userExistsErr()
		}
		log.Err(err).Msg("[Register] failed to store user")
		return "", as.registrationFailedErr(err)
	}

	log.Info().Str("user_id", user.ID).Str("username", user.Username).Msg("user registered")
	return RegisteredMessage, nil
}

func (as *AuthorizationService) userExistsErr() error {
	return newOAuthError(autherrors.ErrUserExists, oauth2.ErrorInvalidRequest, UserExistsMessage, http.StatusBadRequest)
}

func (as *AuthorizationService) registrationFailedErr(err error) error {
	return newOAuthError(err, oauth2.ErrorServerError, RegistrationFailedMessage, http.StatusBadRequest)
}

// Token handles a token endpoint request. allowed restricts the grant types
// the calling endpoint accepts; with none given both grants are accepted.
func (as *AuthorizationService) Token(ctx context.Context, req oauth2.TokenRequest, allowed ...oauth2.GrantType) (*oauth2.TokenResponse, error) {
	if err := as.validator.ValidateTokenRequest(req, allowed...); err != nil {
		return nil, err
	}

	switch req.GrantType {
	case oauth2.PasswordGrant:
		return as.passwordGrant(ctx, req.Username, req.Password)
	case oauth2.RefreshTokenGrant:
		return as.refreshTokenGrant(ctx, req.RefreshToken)
	default:
		return nil, autherrors.Wrapf(autherrors.ErrUnsupportedGrant, "[Token] grant type %q", req.GrantType)
	}
}

// passwordGrant never tells the caller whether the username or the password was wrong.
func (as *AuthorizationService) passwordGrant(ctx context.Context, username, password string) (*oauth2.TokenResponse, error) {
	user, err := as.repos.Users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, autherrors.ErrUserNotFound) {
			users.CheckPasswordNoUser(password)
			return nil, autherrors.Wrapf(autherrors.ErrInvalidCredentials, "[Token] unknown user")
		}
		return nil, fmt.Errorf("[Token] user lookup failed: %w", err)
	}

	if !user.CheckPassword(password) {
		log.Debug().Str("user_id", user.ID).Msg("password mismatch")
		return nil, autherrors.Wrapf(autherrors.ErrInvalidCredentials, "[Token] password mismatch")
	}

	resp, err := as.tokenCreator.GenerateTokenResponse(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("[Token] failed to generate tokens: %w", err)
	}
	log.Info().Str("user_id", user.ID).Msg("tokens issued")
	return resp, nil
}

func (as *AuthorizationService) refreshTokenGrant(ctx context.Context, refreshToken string) (*oauth2.TokenResponse, error) {
	resp, err := as.tokenCreator.RefreshTokenResponse(ctx, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("[Token] refresh failed: %w", err)
	}
	log.Debug().Msg("tokens refreshed")
	return resp, nil
}

// Authenticate validates a bearer access token and returns its claims.
func (as *AuthorizationService) Authenticate(ctx context.Context, accessToken string) (*token.Claims, error) {
	claims, err := as.tokenCreator.ValidateAccessToken(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// ListUsers returns every registered user. Password hashes are blanked unless
// the service was built WithExposePasswordHashes(true).
func (as *AuthorizationService) ListUsers(ctx context.Context) ([]oauth2.UserRecord, error) {
	all, err := as.repos.Users.List(ctx, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("[ListUsers] %w", err)
	}

	records := make([]oauth2.UserRecord, 0, len(all))
	for _, u := range all {
		record := oauth2.UserRecord{UserName: u.Username}
		if as.exposePasswordHashes {
			record.PasswordHash = u.PasswordHash
		}
		records = append(records, record)
	}
	return records, nil
}

// GetJWKS returns the public signing keys. It fails with ErrUnsupported for HMAC signers.
func (as *AuthorizationService) GetJWKS() (*token.JWKS, error) {
	return as.tokenCreator.GetJWKS()
}

// CleanupExpired removes expired refresh tokens and revocation entries.
func (as *AuthorizationService) CleanupExpired(ctx context.Context) error {
	deleted, err := as.tokenCreator.CleanupExpired(ctx)
	if err != nil {
		return fmt.Errorf("[CleanupExpired] %w", err)
	}
	if deleted > 0 {
		log.Info().Int64("refresh_tokens", deleted).Msg("expired tokens removed")
	}
	return nil
}
