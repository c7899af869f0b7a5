package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/af-corp/appgen-gateway/internal/identity"
)

// Strategy names as used in configuration.
const (
	StrategyBearerEmail   = "bearer_email"
	StrategyVerifiedToken = "verified_token"
	StrategyRefreshToken  = "refresh_token"
	StrategyHeaderPair    = "header_pair"
)

// Credential is the raw credential material taken from request headers.
type Credential struct {
	Bearer    string
	UserID    string
	UserEmail string
}

// Strategy turns a credential into an identity. On failure it returns an
// error wrapping ErrNoMatch, ErrMalformed or ErrProviderUnavailable.
type Strategy interface {
	Name() string
	Resolve(ctx context.Context, cred Credential) (*Identity, error)
}

// BearerEmail accepts any bearer token containing '@' as the caller's email.
// Nothing is verified.
type BearerEmail struct{}

func (BearerEmail) Name() string { return StrategyBearerEmail }

func (BearerEmail) Resolve(_ context.Context, cred Credential) (*Identity, error) {
	if !strings.Contains(cred.Bearer, "@") {
		return nil, fmt.Errorf("%w: bearer token is not an email address", ErrMalformed)
	}
	return &Identity{Email: cred.Bearer, Strategy: StrategyBearerEmail}, nil
}

// VerifiedToken asks the identity provider to verify the bearer token.
type VerifiedToken struct {
	Provider identity.Provider
}

func (VerifiedToken) Name() string { return StrategyVerifiedToken }

func (s VerifiedToken) Resolve(ctx context.Context, cred Credential) (*Identity, error) {
	u, err := s.Provider.VerifyToken(ctx, cred.Bearer)
	return fromUser(StrategyVerifiedToken, u, err)
}

// RefreshToken looks the bearer token up as a stored refresh token.
type RefreshToken struct {
	Provider identity.Provider
}

func (RefreshToken) Name() string { return StrategyRefreshToken }

func (s RefreshToken) Resolve(ctx context.Context, cred Credential) (*Identity, error) {
	u, err := s.Provider.FindByRefreshToken(ctx, cred.Bearer)
	return fromUser(StrategyRefreshToken, u, err)
}

// HeaderPair requires a stored user matching both the id and email headers.
type HeaderPair struct {
	Provider identity.Provider
}

func (HeaderPair) Name() string { return StrategyHeaderPair }

func (s HeaderPair) Resolve(ctx context.Context, cred Credential) (*Identity, error) {
	u, err := s.Provider.FindByIDAndEmail(ctx, cred.UserID, cred.UserEmail)
	if err == nil && u != nil && (u.ID != cred.UserID || u.Email != cred.UserEmail) {
		return nil, fmt.Errorf("%w: provider returned a different user", ErrNoMatch)
	}
	return fromUser(StrategyHeaderPair, u, err)
}

func fromUser(strategy string, u *identity.User, err error) (*Identity, error) {
	switch {
	case errors.Is(err, identity.ErrNotFound):
		return nil, fmt.Errorf("%s: %w", strategy, ErrNoMatch)
	case err != nil:
		return nil, fmt.Errorf("%s: %w: %w", strategy, ErrProviderUnavailable, err)
	case u == nil || u.Email == "":
		return nil, fmt.Errorf("%s: %w: user has no email", strategy, ErrNoMatch)
	}
	return &Identity{ID: u.ID, Email: u.Email, Strategy: strategy}, nil
}
