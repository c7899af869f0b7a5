// Package identity talks to the systems of record for user identities. The
// gateway never stores identities itself; every lookup goes to a Provider.
package identity

import (
	"context"
	"errors"
)

// ErrNotFound means the provider answered and no user matched. Any other
// error from a Provider means the provider itself could not be consulted.
var ErrNotFound = errors.New("identity: no matching user")

// User is a user record as returned by the identity provider.
type User struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// Provider is the narrow read-only contract the auth strategies rely on.
type Provider interface {
	// VerifyToken checks a bearer token with the provider and returns its owner.
	VerifyToken(ctx context.Context, token string) (*User, error)
	// FindByRefreshToken returns the first user holding refresh token token.
	FindByRefreshToken(ctx context.Context, token string) (*User, error)
	// FindByIDAndEmail returns the user matching both id and email.
	FindByIDAndEmail(ctx context.Context, id, email string) (*User, error)
}
