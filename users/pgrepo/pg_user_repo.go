package pgrepo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	autherrors "github.com/jrsteele09/go-password-auth/internal/errors"
	"github.com/jrsteele09/go-password-auth/users"
)

var _ users.UserRepo = (*UserRepo)(nil)

// UserRepo is a PostgreSQL backed users.UserRepo.
type UserRepo struct {
	db *pgxpool.Pool
}

func NewUserRepo(db *pgxpool.Pool) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) Insert(ctx context.Context, user *users.User) error {
	const op = "pgrepo.UserRepo.Insert"

	if user.ID == "" {
		user.ID = uuid.New().String()
	}

	query := `
		INSERT INTO users (id, username, password_hash, date_joined)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.db.Exec(ctx, query, user.ID, user.Username, user.PasswordHash, user.DateJoined)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%s: %w", op, autherrors.ErrUserExists)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*users.User, error) {
	query := `
		SELECT id, username, password_hash, date_joined
		FROM users
		WHERE username = $1
	`
	return r.getOne(ctx, "pgrepo.UserRepo.GetByUsername", query, username)
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*users.User, error) {
	const op = "pgrepo.UserRepo.GetByID"

	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%s: %w", op, autherrors.ErrUserNotFound)
	}

	query := `
		SELECT id, username, password_hash, date_joined
		FROM users
		WHERE id = $1
	`
	return r.getOne(ctx, op, query, id)
}

func (r *UserRepo) List(ctx context.Context, offset, limit int) ([]*users.User, error) {
	const op = "pgrepo.UserRepo.List"

	if offset < 0 {
		offset = 0
	}
	var lim any // NULL means no limit
	if limit > 0 {
		lim = limit
	}

	query := `
		SELECT id, username, password_hash, date_joined
		FROM users
		ORDER BY date_joined, username
		OFFSET $1
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, offset, lim)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	result := make([]*users.User, 0)
	for rows.Next() {
		var u users.User
		if err := rows.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.DateJoined); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

func (r *UserRepo) getOne(ctx context.Context, op, query string, arg any) (*users.User, error) {
	var u users.User
	err := r.db.QueryRow(ctx, query, arg).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.DateJoined)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, autherrors.ErrUserNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &u, nil
}
