package auth

import (
	"context"
	"errors"
	"sync"

	"github.com/af-corp/appgen-gateway/internal/identity"
)

// fakeProvider implements identity.Provider for testing.
type fakeProvider struct {
	mu        sync.Mutex
	verified  map[string]identity.User
	users     []identity.User
	err       error
	verifyErr error
	// emptyHit makes every lookup answer (nil, nil).
	emptyHit bool
	calls    []string
}

func (f *fakeProvider) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeProvider) VerifyToken(_ context.Context, token string) (*identity.User, error) {
	f.record("verify")
	if f.emptyHit {
		return nil, nil
	}
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.verified[token]
	if !ok {
		return nil, identity.ErrNotFound
	}
	return &u, nil
}

func (f *fakeProvider) FindByRefreshToken(_ context.Context, token string) (*identity.User, error) {
	f.record("refresh")
	if f.emptyHit {
		return nil, nil
	}
	if f.err != nil {
		return nil, f.err
	}
	for _, u := range f.users {
		if u.RefreshToken == token {
			return &u, nil
		}
	}
	return nil, identity.ErrNotFound
}

func (f *fakeProvider) FindByIDAndEmail(_ context.Context, id, email string) (*identity.User, error) {
	f.record("pair")
	if f.emptyHit {
		return nil, nil
	}
	if f.err != nil {
		return nil, f.err
	}
	for _, u := range f.users {
		if u.ID == id && u.Email == email {
			return &u, nil
		}
	}
	return nil, identity.ErrNotFound
}

var errNetwork = errors.New("dial tcp: connection refused")
