package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-password-auth/auth"
	autherrors "github.com/jrsteele09/go-password-auth/internal/errors"
	"github.com/jrsteele09/go-password-auth/oauth2"
	"github.com/jrsteele09/go-password-auth/token"
	"github.com/rs/zerolog/log"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyUserID stores the authenticated user ID
	ContextKeyUserID ContextKey = "user_id"
	// ContextKeyClaims stores parsed token claims
	ContextKeyClaims ContextKey = "claims"
)

// ClaimsFromContext returns the claims RequireAuth stored on the request context.
func ClaimsFromContext(ctx context.Context) (*token.Claims, bool) {
	claims, ok := ctx.Value(ContextKeyClaims).(*token.Claims)
	return claims, ok
}

// bearerToken extracts the token from an "Authorization: Bearer <token>" header.
func bearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", autherrors.Wrapf(autherrors.ErrInvalidToken, "Missing Authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", autherrors.Wrapf(autherrors.ErrInvalidToken, "Invalid Authorization header format")
	}

	tokenStr := strings.TrimSpace(parts[1])
	if tokenStr == "" {
		return "", autherrors.Wrapf(autherrors.ErrInvalidToken, "Empty token")
	}
	return tokenStr, nil
}

// RequireAuth is middleware that validates a Bearer access token
// Used for API routes that expect OAuth2 tokens in Authorization header
func (s *Server) RequireAuth() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			tokenStr, err := bearerToken(r)
			if err != nil {
				writeUnauthorized(w, auth.ToOAuthError(err))
				return
			}

			claims, err := s.auth.Authenticate(r.Context(), tokenStr)
			if err != nil {
				oauthErr := auth.ToOAuthError(err)
				if oauthErr.Status >= http.StatusInternalServerError {
					log.Err(err).Msg("[RequireAuth] token validation failed")
					writeJSONError(w, oauthErr.Code, oauthErr.Description, oauthErr.Status)
					return
				}
				log.Debug().Err(err).Msg("[RequireAuth] rejected bearer token")
				writeUnauthorized(w, oauthErr)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyUserID, claims.Subject)
			ctx = context.WithValue(ctx, ContextKeyClaims, claims)
			next(w, r.WithContext(ctx))
		}
	}
}

// writeUnauthorized sends a 401 with the RFC 6750 challenge header.
func writeUnauthorized(w http.ResponseWriter, oauthErr *auth.OAuthError) {
	code := oauth2.ErrorInvalidToken
	description := auth.InvalidAccessTokenMessage
	if oauthErr != nil {
		code, description = oauthErr.Code, oauthErr.Description
	}
	w.Header().Set("WWW-Authenticate", fmt.Sprintf(`Bearer error=%q, error_description=%q`, code, description))
	writeJSONError(w, code, description, http.StatusUnauthorized)
}
