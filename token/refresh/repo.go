package refresh

import (
	"context"
	"time"
)

// StoredRefreshToken represents the server-side storage of refresh token metadata.
// The client only receives the random token string; the server keeps its SHA-256
// hash plus the metadata needed to rotate it.
type StoredRefreshToken struct {
	TokenHash       string    // hex SHA-256 of the token sent to the client
	UserID          string    // owner of the token pair
	AccessTokenID   string    // jti of the access token issued alongside
	AccessExpiresAt time.Time // exp of that access token
	IssuedAt        time.Time
	ExpiresAt       time.Time
}

// IsExpired reports whether the token is past its expiry at now.
func (t *StoredRefreshToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Repo manages server-side storage of refresh token metadata keyed by token hash.
type Repo interface {
	Insert(ctx context.Context, token *StoredRefreshToken) error
	// Consume atomically removes and returns the token so it can be redeemed
	// at most once. Unknown hashes fail with errors.ErrNotFound.
	Consume(ctx context.Context, tokenHash string) (*StoredRefreshToken, error)
	// DeleteExpired removes every token with ExpiresAt <= now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
