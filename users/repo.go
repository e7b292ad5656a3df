package users

import "context"

// UserRepo stores registered users.
// Insert fails with errors.ErrUserExists when the username is taken; lookups
// fail with errors.ErrUserNotFound.
type UserRepo interface {
	Insert(ctx context.Context, user *User) error
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	// List returns users ordered by join date. A limit <= 0 returns everything after offset.
	List(ctx context.Context, offset, limit int) ([]*User, error)
}
