package client

import (
	"fmt"
	"time"

	xoauth2 "golang.org/x/oauth2"
)

// Session is the token pair currently held by a Manager. Both tokens are
// always replaced together.
type Session struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time // zero when the server did not send expires_in
}

// IsAuthenticated reports whether an access token is held.
func (s Session) IsAuthenticated() bool {
	return s.AccessToken != ""
}

// Token converts the session into an x/oauth2 token, used to set the
// Authorization header.
func (s Session) Token() *xoauth2.Token {
	return &xoauth2.Token{
		AccessToken:  s.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: s.RefreshToken,
		Expiry:       s.Expiry,
	}
}

// String never prints token values.
func (s Session) String() string {
	if !s.IsAuthenticated() {
		return "Session{unauthenticated}"
	}
	if s.Expiry.IsZero() {
		return "Session{access_token:[REDACTED] refresh_token:[REDACTED]}"
	}
	return fmt.Sprintf("Session{access_token:[REDACTED] refresh_token:[REDACTED] expiry:%s}", s.Expiry.Format(time.RFC3339))
}
