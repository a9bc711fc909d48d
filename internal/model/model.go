// Package model wraps the generative-model transport. Callers see one
// contract: a text prompt in, a text response out, with transport failures
// folded into a single error type that distinguishes timeouts.
package model

import (
	"context"
	"errors"
	"fmt"
)

// Caller is the opaque generative-model call the pipeline depends on.
// Implementations apply their own per-call timeout.
type Caller interface {
	Call(ctx context.Context, prompt string) (string, error)
}

// CallerFunc adapts a function to the Caller interface.
type CallerFunc func(ctx context.Context, prompt string) (string, error)

func (f CallerFunc) Call(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// TransportError is any transport-level model failure: HTTP errors,
// connection failures, or timeouts. Timeout is set so callers can report
// "timed out" distinctly while still retrying uniformly.
type TransportError struct {
	Endpoint string
	Timeout  bool
	Err      error
}

func (e *TransportError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("model call to %s timed out: %v", e.Endpoint, e.Err)
	}
	return fmt.Sprintf("model call to %s failed: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTimeout reports whether err is a transport timeout.
func IsTimeout(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Timeout
}
