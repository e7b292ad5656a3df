package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/jrsteele09/go-password-auth/auth"
	autherrors "github.com/jrsteele09/go-password-auth/internal/errors"
	"github.com/jrsteele09/go-password-auth/oauth2"
	"github.com/rs/zerolog/log"
)

const (
	contentTypeJSON = "application/json; charset=utf-8"
	contentTypeText = "text/plain; charset=utf-8"

	maxBodyBytes = 1 << 20
)

// Register creates a user from a JSON {username, password} body. Both the
// success and failure responses are plain text messages.
func (s *Server) Register() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req oauth2.RegisterRequest
		body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := json.NewDecoder(body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeText(w, auth.RegistrationFailedMessage, http.StatusBadRequest)
			return
		}

		msg, err := s.auth.Register(r.Context(), req.Username, req.Password)
		if err != nil {
			oauthErr := auth.ToOAuthError(err)
			writeText(w, oauthErr.Description, oauthErr.Status)
			return
		}

		s.metrics.UserRegistered()
		writeText(w, msg, http.StatusOK)
	}
}

// TokenEndpoint exchanges form-encoded credentials for a token pair. grant is
// the only grant_type the endpoint accepts.
func (s *Server) TokenEndpoint(grant oauth2.GrantType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := r.ParseForm(); err != nil {
			s.metrics.TokenRejected(string(grant), oauth2.ErrorInvalidRequest)
			writeJSONError(w, oauth2.ErrorInvalidRequest, "Failed to parse form data", http.StatusBadRequest)
			return
		}

		tokenReq := oauth2.TokenRequest{
			GrantType:    oauth2.GrantType(r.PostFormValue("grant_type")),
			Username:     r.PostFormValue("username"),
			Password:     r.PostFormValue("password"),
			RefreshToken: r.PostFormValue("refresh_token"),
		}

		tokenResponse, err := s.auth.Token(r.Context(), tokenReq, grant)
		if err != nil {
			oauthErr := auth.ToOAuthError(err)
			if oauthErr.Status >= http.StatusInternalServerError {
				log.Err(err).Str("grant_type", string(grant)).Msg("[TokenEndpoint] token request failed")
			}
			s.metrics.TokenRejected(string(grant), oauthErr.Code)
			writeJSONError(w, oauthErr.Code, oauthErr.Description, oauthErr.Status)
			return
		}

		s.metrics.TokenIssued(string(grant))
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Pragma", "no-cache")
		writeJSON(w, tokenResponse, http.StatusOK)
	}
}

// Users lists registered users. It expects RequireAuth in front of it.
func (s *Server) Users() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			// mounted without RequireAuth
			writeUnauthorized(w, nil)
			return
		}
		log.Debug().Str("user_id", claims.Subject).Msg("[Users] listing users")

		records, err := s.auth.ListUsers(r.Context())
		if err != nil {
			log.Err(err).Msg("[Users] failed to list users")
			writeJSONError(w, oauth2.ErrorServerError, auth.ServerErrorMessage, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, records, http.StatusOK)
	}
}

// JWKS returns the JSON Web Key Set used to validate tokens
func (s *Server) JWKS() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jwks, err := s.auth.GetJWKS()
		if err != nil {
			if errors.Is(err, autherrors.ErrUnsupported) {
				writeJSONError(w, "not_found", "No public keys are published for symmetric signing", http.StatusNotFound)
				return
			}
			log.Err(err).Msg("[JWKS] failed to build key set")
			writeJSONError(w, oauth2.ErrorServerError, auth.ServerErrorMessage, http.StatusInternalServerError)
			return
		}

		w.Header().Set("Cache-Control", "public, max-age=3600") // Cache for 1 hour
		writeJSON(w, jwks, http.StatusOK)
	}
}

func (s *Server) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeText(w, "ok", http.StatusOK)
	}
}

func writeJSON(w http.ResponseWriter, v any, statusCode int) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Err(err).Msg("failed to encode response")
	}
}

func writeText(w http.ResponseWriter, msg string, statusCode int) {
	w.Header().Set("Content-Type", contentTypeText)
	w.WriteHeader(statusCode)
	_, _ = io.WriteString(w, msg)
}

// writeJSONError writes an OAuth2 error response
func writeJSONError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	writeJSON(w, oauth2.ErrorResponse{Error: errorCode, ErrorDescription: description}, statusCode)
}
