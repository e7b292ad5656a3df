package auth

import (
	"net/http"
	"strings"

	autherrors "github.com/jrsteele09/go-password-auth/internal/errors"
	"github.com/jrsteele09/go-password-auth/oauth2"
)

// Validator checks token requests before any credential or token lookup.
type Validator struct{}

// NewValidator creates a new Validator instance
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateTokenRequest checks that req uses one of the allowed grants and
// carries the parameters that grant needs.
func (v *Validator) ValidateTokenRequest(req oauth2.TokenRequest, allowed ...oauth2.GrantType) error {
	if req.GrantType == "" {
		return newOAuthError(autherrors.ErrInvalidRequest, oauth2.ErrorInvalidRequest,
			"The mandatory 'grant_type' parameter is missing.", http.StatusBadRequest)
	}

	if !v.IsAllowedGrant(req.GrantType, allowed...) {
		return autherrors.Wrapf(autherrors.ErrUnsupportedGrant, "grant type %q", req.GrantType)
	}

	switch req.GrantType {
	case oauth2.PasswordGrant:
		if strings.TrimSpace(req.Username) == "" || req.Password == "" {
			return newOAuthError(autherrors.ErrInvalidRequest, oauth2.ErrorInvalidRequest,
				"The mandatory 'username' and/or 'password' parameters are missing.", http.StatusBadRequest)
		}
	case oauth2.RefreshTokenGrant:
		if req.RefreshToken == "" {
			return newOAuthError(autherrors.ErrInvalidRequest, oauth2.ErrorInvalidRequest,
				"The mandatory 'refresh_token' parameter is missing.", http.StatusBadRequest)
		}
	}
	return nil
}

// IsAllowedGrant reports whether grant is in allowed. An empty allowed list
// accepts both supported grants.
func (v *Validator) IsAllowedGrant(grant oauth2.GrantType, allowed ...oauth2.GrantType) bool {
	if len(allowed) == 0 {
		allowed = []oauth2.GrantType{oauth2.PasswordGrant, oauth2.RefreshTokenGrant}
	}
	for _, g := range allowed {
		if g == grant {
			return true
		}
	}
	return false
}
