package client

import (
	"errors"

	"github.com/jrsteele09/go-password-auth/users"
)

// ErrCannotConnect is returned when the server could not be reached. The
// underlying transport error is deliberately not exposed.
var ErrCannotConnect = errors.New("Cannot connect to server")

// Message prefixes used for failed calls.
const (
	registrationFailedPrefix = "Registration failed: "
	authFailedPrefix         = "Authentication failed: "
	refreshFailedPrefix      = "Token refresh failed: "
	userDataFailedPrefix     = "Failed to retrieve user data: "
)

// ResponseError is a non-2xx answer from the server. Error returns the
// message meant for the user.
type ResponseError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *ResponseError) Error() string {
	return e.Message
}

// ValidateCredentials performs the checks the client makes before sending
// anything: both fields are required and, when registering, the password
// must satisfy the default password policy.
func ValidateCredentials(username, password string, registering bool) error {
	if registering {
		return users.ValidateRegistration(username, password, users.DefaultPasswordPolicy)
	}
	return users.ValidateCredentials(username, password)
}
