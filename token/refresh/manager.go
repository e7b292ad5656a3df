package refresh

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/jrsteele09/go-password-auth/internal/config"
	autherrors "github.com/jrsteele09/go-password-auth/internal/errors"
)

// Manager handles refresh token creation, validation, and rotation
type Manager struct {
	repo   Repo
	config config.OAuthConfig
}

// NewManager creates a new refresh token manager
func NewManager(repo Repo, cfg config.OAuthConfig) *Manager {
	return &Manager{
		repo:   repo,
		config: cfg,
	}
}

// HashToken returns the storage key for a refresh token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Create generates a new refresh token bound to the access token accessJTI and
// stores its hash. now is the issue time, expiry is counted from it.
func (m *Manager) Create(ctx context.Context, userID, accessJTI string, accessExp, now time.Time) (string, error) {
	tokenBytes := make([]byte, m.config.GetRefreshTokenLength()) // Configured length (default: 32 bytes = 256 bits)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	tokenStr := hex.EncodeToString(tokenBytes)
	if err := m.repo.Insert(ctx, &StoredRefreshToken{
		TokenHash:       HashToken(tokenStr),
		UserID:          userID,
		AccessTokenID:   accessJTI,
		AccessExpiresAt: accessExp,
		IssuedAt:        now,
		ExpiresAt:       now.Add(m.config.GetDefaultRefreshTokenExpiry()),
	}); err != nil {
		return "", fmt.Errorf("failed to store refresh token: %w", err)
	}

	return tokenStr, nil
}

// Consume redeems a refresh token at time now. The token is removed whatever
// the outcome, so a second call with the same value fails unless Restore puts it back.
func (m *Manager) Consume(ctx context.Context, token string, now time.Time) (*StoredRefreshToken, error) {
	if token == "" {
		return nil, autherrors.ErrInvalidRefreshToken
	}

	rt, err := m.repo.Consume(ctx, HashToken(token))
	if err != nil {
		if autherrors.Is(err, autherrors.ErrNotFound) {
			return nil, autherrors.ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("failed to consume refresh token: %w", err)
	}

	if rt.IsExpired(now) {
		return nil, autherrors.ErrRefreshTokenExpired
	}
	return rt, nil
}

// Restore puts back a token taken by Consume when the new pair could not be
// issued, so a transient failure does not end the session.
func (m *Manager) Restore(ctx context.Context, rt *StoredRefreshToken) error {
	if err := m.repo.Insert(ctx, rt); err != nil {
		return fmt.Errorf("failed to restore refresh token: %w", err)
	}
	return nil
}

// DeleteExpired removes tokens expired at now from storage
func (m *Manager) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return m.repo.DeleteExpired(ctx, now)
}
