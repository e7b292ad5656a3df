package auth

import (
	"errors"
	"net/http"

	autherrors "github.com/jrsteele09/go-password-auth/internal/errors"
	"github.com/jrsteele09/go-password-auth/oauth2"
)

// Messages returned to callers. They are part of the public contract and are
// matched by clients, so they never carry internal detail.
const (
	RegisteredMessage           = "User registered successfully."
	UserExistsMessage           = "User with this username already exists."
	RegistrationFailedMessage   = "User registration failed."
	InvalidCredentialsMessage   = "The username/password couple is invalid."
	InvalidRefreshTokenMessage  = "The refresh token is invalid or has expired."
	UnsupportedGrantTypeMessage = "The specified grant type is not supported."
	InvalidAccessTokenMessage   = "The access token is invalid."
	ExpiredAccessTokenMessage   = "The access token has expired."
	RevokedAccessTokenMessage   = "The access token has been revoked."
	ServerErrorMessage          = "An internal error occurred while processing the request."
)

// OAuthError is an error that knows how it is reported over HTTP.
type OAuthError struct {
	Code        string // OAuth2 error code, e.g. invalid_grant
	Description string // error_description shown to the caller
	Status      int    // HTTP status code
	Err         error  // underlying sentinel
}

func (e *OAuthError) Error() string {
	return e.Code + ": " + e.Description
}

func (e *OAuthError) Unwrap() error {
	return e.Err
}

// Response returns the JSON error body.
func (e *OAuthError) Response() oauth2.ErrorResponse {
	return oauth2.ErrorResponse{Error: e.Code, ErrorDescription: e.Description}
}

func newOAuthError(err error, code, description string, status int) *OAuthError {
	return &OAuthError{Code: code, Description: description, Status: status, Err: err}
}

// ToOAuthError classifies err. Errors that are already an *OAuthError are
// returned unchanged; anything unknown becomes a 500 server_error.
func ToOAuthError(err error) *OAuthError {
	if err == nil {
		return nil
	}

	var oauthErr *OAuthError
	if errors.As(err, &oauthErr) {
		return oauthErr
	}

	switch {
	case errors.Is(err, autherrors.ErrInvalidCredentials), errors.Is(err, autherrors.ErrUserNotFound):
		return newOAuthError(err, oauth2.ErrorInvalidGrant, InvalidCredentialsMessage, http.StatusBadRequest)
	case errors.Is(err, autherrors.ErrInvalidRefreshToken), errors.Is(err, autherrors.ErrRefreshTokenExpired):
		return newOAuthError(err, oauth2.ErrorInvalidGrant, InvalidRefreshTokenMessage, http.StatusBadRequest)
	case errors.Is(err, autherrors.ErrUnsupportedGrant):
		return newOAuthError(err, oauth2.ErrorInvalidRequest, UnsupportedGrantTypeMessage, http.StatusBadRequest)
	case errors.Is(err, autherrors.ErrInvalidRequest), errors.Is(err, autherrors.ErrValidation):
		return newOAuthError(err, oauth2.ErrorInvalidRequest, err.Error(), http.StatusBadRequest)
	case errors.Is(err, autherrors.ErrTokenExpired):
		return newOAuthError(err, oauth2.ErrorInvalidToken, ExpiredAccessTokenMessage, http.StatusUnauthorized)
	case errors.Is(err, autherrors.ErrTokenRevoked):
		return newOAuthError(err, oauth2.ErrorInvalidToken, RevokedAccessTokenMessage, http.StatusUnauthorized)
	case errors.Is(err, autherrors.ErrInvalidToken):
		return newOAuthError(err, oauth2.ErrorInvalidToken, InvalidAccessTokenMessage, http.StatusUnauthorized)
	default:
		return newOAuthError(err, oauth2.ErrorServerError, ServerErrorMessage, http.StatusInternalServerError)
	}
}
