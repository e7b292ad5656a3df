package fakeuserrepo_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	autherrors "github.com/jrsteele09/go-password-auth/internal/errors"
	"github.com/jrsteele09/go-password-auth/users"
	fakeuserrepo "github.com/jrsteele09/go-password-auth/users/repofake"
	"github.com/stretchr/testify/require"
)

func TestFakeUserRepo_InsertAndGet(t *testing.T) {
	ctx := context.Background()
	repo := fakeuserrepo.NewFakeUserRepo()

	u := &users.User{Username: "alice", PasswordHash: "hash", DateJoined: time.Now()}
	require.NoError(t, repo.Insert(ctx, u))
	require.NotEmpty(t, u.ID)

	byName, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, u.ID, byName.ID)

	byID, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "alice", byID.Username)

	_, err = repo.GetByUsername(ctx, "Alice")
	require.ErrorIs(t, err, autherrors.ErrUserNotFound)

	_, err = repo.GetByID(ctx, "missing")
	require.ErrorIs(t, err, autherrors.ErrUserNotFound)
}

func TestFakeUserRepo_DuplicateUsername(t *testing.T) {
	ctx := context.Background()
	repo := fakeuserrepo.NewFakeUserRepo()

	require.NoError(t, repo.Insert(ctx, &users.User{Username: "bob"}))
	err := repo.Insert(ctx, &users.User{Username: "bob"})
	require.ErrorIs(t, err, autherrors.ErrUserExists)
}

func TestFakeUserRepo_ConcurrentInsertSameUsername(t *testing.T) {
	ctx := context.Background()
	repo := fakeuserrepo.NewFakeUserRepo()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := repo.Insert(ctx, &users.User{Username: "racer"}); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, successes)
}

func TestFakeUserRepo_List(t *testing.T) {
	ctx := context.Background()
	repo := fakeuserrepo.NewFakeUserRepo()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Insert(ctx, &users.User{
			Username:   fmt.Sprintf("user%d", i),
			DateJoined: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	all, err := repo.List(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 5)
	require.Equal(t, "user0", all[0].Username)
	require.Equal(t, "user4", all[4].Username)

	page, err := repo.List(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.Equal(t, "user1", page[0].Username)
	require.Equal(t, "user2", page[1].Username)

	tail, err := repo.List(ctx, 3, 10)
	require.NoError(t, err)
	require.Len(t, tail, 2)

	empty, err := repo.List(ctx, 10, 2)
	require.NoError(t, err)
	require.Empty(t, empty)
}
