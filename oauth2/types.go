package oauth2

// GrantType represents the OAuth 2.0 grant type used at the token endpoints.
// Determines what credentials are required to obtain tokens.
type GrantType string

const (
	// PasswordGrant exchanges a username and password for a token pair.
	// Token request includes: grant_type=password, username, password
	// Returns: access_token, refresh_token
	PasswordGrant GrantType = "password"

	// RefreshTokenGrant exchanges a refresh token for a new token pair.
	// Token request includes: grant_type=refresh_token, refresh_token
	// Returns: new access_token and a rotated refresh_token
	// Security: the presented refresh token can be redeemed once only
	RefreshTokenGrant GrantType = "refresh_token"
)

// TokenType is the token_type value returned with every access token.
const TokenType = "Bearer"

// Error codes returned in ErrorResponse.Error (RFC 6749 section 5.2).
const (
	ErrorInvalidRequest = "invalid_request"
	ErrorInvalidGrant   = "invalid_grant"
	ErrorInvalidToken   = "invalid_token"
	ErrorServerError    = "server_error"
)

// TokenRequest carries the form parameters posted to the token endpoints.
type TokenRequest struct {
	GrantType    GrantType
	Username     string
	Password     string
	RefreshToken string
}

// RegisterRequest is the JSON body accepted by the registration endpoint.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// UserRecord is one element of the protected users listing.
type UserRecord struct {
	UserName     string `json:"userName"`
	PasswordHash string `json:"passwordHash"`
}

// ErrorResponse is the OAuth2 error body.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}
