package users

import (
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Messages shown for credentials rejected before they leave the client.
const (
	EmptyFieldsMessage = "Fields cannot be empty"
	minLengthMessage   = "Password must be at least %d characters long"
)

type User struct {
	ID           string    `json:"id,omitempty"`          // Unique identifier for the user
	Username     string    `json:"username,omitempty"`    // Unique username, compared exactly as stored
	PasswordHash string    `json:"-"`                     // Hashed version of the user's password - never serialize
	DateJoined   time.Time `json:"date_joined,omitempty"` // Date and time when the user registered
}

// New builds a user with a fresh ID and a bcrypt hash of password.
func New(username, password string, joined time.Time) (*User, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("[users New] failed to hash password: %w", err)
	}
	return &User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: hash,
		DateJoined:   joined,
	}, nil
}

// PasswordPolicy describes the rules a new password has to satisfy.
type PasswordPolicy struct {
	MinLength     int
	RequireDigit  bool
	RequireUpper  bool
	RequireLower  bool
	RequireSymbol bool
}

// DefaultPasswordPolicy only enforces a six character minimum.
var DefaultPasswordPolicy = PasswordPolicy{MinLength: 6}

// Validate checks password against the policy.
func (p PasswordPolicy) Validate(password string) error {
	minLength := p.MinLength
	if minLength <= 0 {
		minLength = DefaultPasswordPolicy.MinLength
	}
	if len([]rune(password)) < minLength {
		return fmt.Errorf(minLengthMessage, minLength)
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
		hasSymbol bool
	)

	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsDigit(char):
			hasNumber = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSymbol = true
		}
	}

	if p.RequireUpper && !hasUpper {
		return fmt.Errorf("Password must contain at least one uppercase letter")
	}
	if p.RequireLower && !hasLower {
		return fmt.Errorf("Password must contain at least one lowercase letter")
	}
	if p.RequireDigit && !hasNumber {
		return fmt.Errorf("Password must contain at least one number")
	}
	if p.RequireSymbol && !hasSymbol {
		return fmt.Errorf("Password must contain at least one symbol")
	}

	return nil
}

// ValidateCredentials rejects blank input. It is shared by the server and
// the client so both report the same message.
func ValidateCredentials(username, password string) error {
	if strings.TrimSpace(username) == "" || password == "" {
		return fmt.Errorf(EmptyFieldsMessage)
	}
	return nil
}

// ValidateRegistration checks the credentials and the password policy.
func ValidateRegistration(username, password string, policy PasswordPolicy) error {
	if err := ValidateCredentials(username, password); err != nil {
		return err
	}
	return policy.Validate(password)
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// CheckPassword reports whether password matches the user's stored hash
func (u *User) CheckPassword(password string) bool {
	return CheckPasswordHash(password, u.PasswordHash)
}

var dummyPasswordHash = sync.OnceValue(func() string {
	hash, _ := HashPassword(uuid.NewString())
	return hash
})

// CheckPasswordNoUser does the bcrypt work of CheckPassword against a hash
// nothing matches, so a username miss costs as much as a wrong password.
// It always returns false.
func CheckPasswordNoUser(password string) bool {
	_ = CheckPasswordHash(password, dummyPasswordHash())
	return false
}
