package auth

import "context"

type contextKey string

const identityContextKey contextKey = "appgen_identity"

// Identity is an authenticated caller. ID is empty for identities produced by
// the bearer_email strategy.
type Identity struct {
	ID       string `json:"id,omitempty"`
	Email    string `json:"email"`
	Strategy string `json:"-"`
}

func ContextWithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityContextKey).(*Identity)
	return id, ok
}
