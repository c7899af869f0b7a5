package auth

import (
	"errors"
	"fmt"
)

// Kind classifies an authentication failure. Kinds are for logs and metrics
// only; callers always receive the same generic 401.
type Kind int

const (
	KindMissing Kind = iota + 1
	KindMalformed
	KindRejected
	KindProviderUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindMissing:
		return "missing"
	case KindMalformed:
		return "malformed"
	case KindRejected:
		return "rejected"
	case KindProviderUnavailable:
		return "provider_unavailable"
	default:
		return "unknown"
	}
}

// Strategy outcomes. A strategy that does not produce an identity returns an
// error wrapping exactly one of these.
var (
	ErrNoMatch             = errors.New("no matching identity")
	ErrMalformed           = errors.New("malformed credential")
	ErrProviderUnavailable = errors.New("identity provider unavailable")
)

// Error is returned by Resolver.Resolve when no identity could be established.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "auth: " + e.Kind.String()
	}
	return fmt.Sprintf("auth: %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of err, or 0 if err is not an *Error.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return 0
}
