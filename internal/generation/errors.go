package generation

import (
	"errors"
	"fmt"
)

// Kind classifies a generation failure.
type Kind int

const (
	KindInvalidInput Kind = iota + 1
	KindUpstreamFailure
	KindEmptyResponse
)

// String returns the error code sent to callers.
func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindUpstreamFailure:
		return "upstream_failure"
	case KindEmptyResponse:
		return "empty_response"
	default:
		return "unknown"
	}
}

// Error aborts a pipeline run. Stage is the zero-based stage index, or -1
// when the failure happened before any stage ran.
type Error struct {
	Kind  Kind
	Stage int
	Err   error
}

func (e *Error) Error() string {
	if e.Stage < 0 {
		return fmt.Sprintf("generation %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("generation %s at stage %d: %v", e.Kind, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of err, or 0 if err is not an *Error.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return 0
}
