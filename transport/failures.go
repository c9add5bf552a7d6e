package transport

import (
	"errors"
	"fmt"
)

// FailureKind tags every failure the pipeline and the components built
// on it can return, so callers match on the kind instead of probing
// unstructured errors.
type FailureKind string

const (
	// FailureNetwork covers transport errors and timeouts.
	FailureNetwork FailureKind = "network"
	// FailureValidation is any non-auth 4xx, surfaced verbatim.
	FailureValidation FailureKind = "validation"
	// FailureAuth is an authorization rejection that survived the one
	// renew-and-retry attempt.
	FailureAuth FailureKind = "auth"
	// FailureServer is a 5xx response.
	FailureServer FailureKind = "server"
	// FailureRenewal means credential renewal failed; the session has
	// already been torn down when this is observed.
	FailureRenewal FailureKind = "renewal"
	// FailureConflict is a locally rejected re-entrant checkout
	// submission. No network call was made.
	FailureConflict FailureKind = "conflict"
)

type Failure struct {
	Kind    FailureKind
	Status  int
	Message string
	Err     error
}

func (f *Failure) Error() string {
	if f.Message != "" {
		return fmt.Sprintf("%s failure: %s", f.Kind, f.Message)
	}
	if f.Err != nil {
		return fmt.Sprintf("%s failure: %v", f.Kind, f.Err)
	}
	return fmt.Sprintf("%s failure", f.Kind)
}

func (f *Failure) Unwrap() error { return f.Err }

// AsFailure extracts the typed failure from an error chain.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// KindOf returns the failure kind, or FailureNetwork for errors that
// escaped the taxonomy (there should be none).
func KindOf(err error) FailureKind {
	if f, ok := AsFailure(err); ok {
		return f.Kind
	}
	return FailureNetwork
}
