package auth

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/af-corp/appgen-gateway/internal/config"
	"github.com/af-corp/appgen-gateway/internal/identity"
)

// Mode selects which request headers carry the credential.
type Mode string

const (
	ModeBearer  Mode = "bearer"
	ModeHeaders Mode = "headers"
)

// strategyOrder is the fixed execution order.
var strategyOrder = []string{
	StrategyBearerEmail,
	StrategyVerifiedToken,
	StrategyRefreshToken,
	StrategyHeaderPair,
}

// Resolver runs an ordered chain of strategies until one yields an identity.
// It holds no per-request state and never caches results.
type Resolver struct {
	mode       Mode
	strategies []Strategy
}

// NewResolver builds a resolver from already constructed strategies. They are
// run in the order given.
func NewResolver(mode Mode, strategies ...Strategy) *Resolver {
	return &Resolver{mode: mode, strategies: strategies}
}

// NewResolverFromConfig constructs only the enabled strategies, in fixed
// order. Header mode always uses the header_pair strategy alone.
func NewResolverFromConfig(cfg config.AuthConfig, provider identity.Provider) (*Resolver, error) {
	mode := Mode(cfg.Mode)
	switch mode {
	case "":
		mode = ModeBearer
	case ModeBearer, ModeHeaders:
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.Mode)
	}

	names := cfg.Strategies
	if mode == ModeHeaders {
		names = []string{StrategyHeaderPair}
	}
	if len(names) == 0 {
		return nil, errors.New("no auth strategies configured")
	}

	enabled := make(map[string]bool, len(names))
	for _, name := range names {
		if !slices.Contains(strategyOrder, name) {
			return nil, fmt.Errorf("unknown auth strategy %q", name)
		}
		if mode == ModeBearer && name == StrategyHeaderPair {
			return nil, fmt.Errorf("strategy %q requires auth mode %q", name, ModeHeaders)
		}
		if name != StrategyBearerEmail && provider == nil {
			return nil, fmt.Errorf("strategy %q requires an identity provider", name)
		}
		enabled[name] = true
	}

	var strategies []Strategy
	for _, name := range strategyOrder {
		if !enabled[name] {
			continue
		}
		switch name {
		case StrategyBearerEmail:
			strategies = append(strategies, BearerEmail{})
		case StrategyVerifiedToken:
			strategies = append(strategies, VerifiedToken{Provider: provider})
		case StrategyRefreshToken:
			strategies = append(strategies, RefreshToken{Provider: provider})
		case StrategyHeaderPair:
			strategies = append(strategies, HeaderPair{Provider: provider})
		}
	}
	return NewResolver(mode, strategies...), nil
}

func (r *Resolver) Mode() Mode { return r.mode }

// Strategies returns the names of the configured strategies in run order.
func (r *Resolver) Strategies() []string {
	names := make([]string, len(r.strategies))
	for i, s := range r.strategies {
		names[i] = s.Name()
	}
	return names
}

// Resolve returns the identity produced by the first succeeding strategy.
// On failure the error is an *Error whose Kind is Malformed if every attempt
// was malformed, ProviderUnavailable if every attempt hit a provider error,
// and Rejected otherwise.
func (r *Resolver) Resolve(ctx context.Context, cred Credential) (*Identity, error) {
	if r.missing(cred) {
		return nil, &Error{Kind: KindMissing}
	}
	if len(r.strategies) == 0 {
		return nil, &Error{Kind: KindRejected, Err: ErrNoMatch}
	}

	var (
		causes      []error
		malformed   int
		unavailable int
	)
	for _, s := range r.strategies {
		id, err := s.Resolve(ctx, cred)
		if err == nil {
			return id, nil
		}
		causes = append(causes, err)
		switch {
		case errors.Is(err, ErrMalformed):
			malformed++
		case errors.Is(err, ErrProviderUnavailable):
			unavailable++
		}
	}

	kind := KindRejected
	switch len(causes) {
	case malformed:
		kind = KindMalformed
	case unavailable:
		kind = KindProviderUnavailable
	}
	return nil, &Error{Kind: kind, Err: errors.Join(causes...)}
}

func (r *Resolver) missing(cred Credential) bool {
	if r.mode == ModeHeaders {
		return cred.UserID == "" || cred.UserEmail == ""
	}
	return cred.Bearer == ""
}
