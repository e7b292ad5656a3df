package refreshrepofake

import (
	"context"
	"sync"
	"time"

	autherrors "github.com/jrsteele09/go-password-auth/internal/errors"
	"github.com/jrsteele09/go-password-auth/token/refresh"
)

var _ refresh.Repo = (*FakeRefreshTokenRepo)(nil)

type FakeRefreshTokenRepo struct {
	tokens map[string]*refresh.StoredRefreshToken
	lock   sync.Mutex
}

func NewFakeRefreshTokenRepo() *FakeRefreshTokenRepo {
	return &FakeRefreshTokenRepo{
		tokens: make(map[string]*refresh.StoredRefreshToken),
	}
}

func (tr *FakeRefreshTokenRepo) Insert(_ context.Context, token *refresh.StoredRefreshToken) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	if _, ok := tr.tokens[token.TokenHash]; ok {
		return autherrors.Wrapf(autherrors.ErrInternal, "[FakeRefreshTokenRepo Insert] duplicate token hash")
	}
	stored := *token
	tr.tokens[token.TokenHash] = &stored
	return nil
}

func (tr *FakeRefreshTokenRepo) Consume(_ context.Context, tokenHash string) (*refresh.StoredRefreshToken, error) {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	rt, ok := tr.tokens[tokenHash]
	if !ok {
		return nil, autherrors.ErrNotFound
	}
	delete(tr.tokens, tokenHash)
	return rt, nil
}

func (tr *FakeRefreshTokenRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	var deleted int64
	for hash, rt := range tr.tokens {
		if rt.IsExpired(now) {
			delete(tr.tokens, hash)
			deleted++
		}
	}
	return deleted, nil
}

// Len returns the number of stored tokens.
func (tr *FakeRefreshTokenRepo) Len() int {
	tr.lock.Lock()
	defer tr.lock.Unlock()
	return len(tr.tokens)
}
