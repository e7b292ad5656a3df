package pgrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	autherrors "github.com/jrsteele09/go-password-auth/internal/errors"
	"github.com/jrsteele09/go-password-auth/token/refresh"
)

var _ refresh.Repo = (*RefreshTokenRepo)(nil)

// RefreshTokenRepo is a PostgreSQL backed refresh.Repo.
type RefreshTokenRepo struct {
	db *pgxpool.Pool
}

func NewRefreshTokenRepo(db *pgxpool.Pool) *RefreshTokenRepo {
	return &RefreshTokenRepo{db: db}
}

func (r *RefreshTokenRepo) Insert(ctx context.Context, token *refresh.StoredRefreshToken) error {
	const op = "pgrepo.RefreshTokenRepo.Insert"

	query := `
		INSERT INTO refresh_tokens (token_hash, user_id, access_token_id, access_expires_at, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.Exec(ctx, query,
		token.TokenHash,
		token.UserID,
		token.AccessTokenID,
		token.AccessExpiresAt,
		token.IssuedAt,
		token.ExpiresAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgerrcode.UniqueViolation:
				return fmt.Errorf("%s: duplicate token hash: %w", op, autherrors.ErrInternal)
			case pgerrcode.ForeignKeyViolation:
				return fmt.Errorf("%s: %w", op, autherrors.ErrUserNotFound)
			}
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Consume deletes the row and returns it in one statement, so two concurrent
// redemptions of the same token cannot both succeed.
func (r *RefreshTokenRepo) Consume(ctx context.Context, tokenHash string) (*refresh.StoredRefreshToken, error) {
	const op = "pgrepo.RefreshTokenRepo.Consume"

	query := `
		DELETE FROM refresh_tokens
		WHERE token_hash = $1
		RETURNING token_hash, user_id::text, access_token_id, access_expires_at, issued_at, expires_at
	`
	var rt refresh.StoredRefreshToken
	err := r.db.QueryRow(ctx, query, tokenHash).Scan(
		&rt.TokenHash,
		&rt.UserID,
		&rt.AccessTokenID,
		&rt.AccessExpiresAt,
		&rt.IssuedAt,
		&rt.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, autherrors.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &rt, nil
}

func (r *RefreshTokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	const op = "pgrepo.RefreshTokenRepo.DeleteExpired"

	tag, err := r.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return tag.RowsAffected(), nil
}
