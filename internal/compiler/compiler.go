// Package compiler defines the external compiler contract and the local
// process-backed implementation that drives a LaTeX toolchain.
package compiler

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a compile failure. All kinds are fatal to the request
// and non-fatal to the session.
type Kind string

const (
	// ProcessLaunchFailure: the compiler binary could not be started
	// (missing, not executable) or was cut off by the wall-clock timeout.
	ProcessLaunchFailure Kind = "process_launch_failure"
	// CompilationError: the tool ran and reported a problem with the source.
	CompilationError Kind = "compilation_error"
	// OutputMissing: the tool exited cleanly but produced no artifact.
	OutputMissing Kind = "output_missing"
)

// Error is a structured compile failure. Diagnostic carries the raw
// error stream of the external tool when one ran.
type Error struct {
	Kind       Kind
	Diagnostic string
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("compiler: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("compiler: %s", e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// AsError extracts a *Error from err, wrapping unknown errors as a
// launch failure so nothing raw crosses the adapter boundary.
func AsError(err error) *Error {
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}
	return &Error{Kind: ProcessLaunchFailure, Err: err}
}

// Service compiles LaTeX source into a binary artifact. Implementations
// must be safe for concurrent invocation: each call uses its own
// isolated working storage and leaves no residue behind.
type Service interface {
	Compile(ctx context.Context, source string) ([]byte, error)
}

// Func adapts a plain function to Service.
type Func func(ctx context.Context, source string) ([]byte, error)

// Compile implements Service.
func (f Func) Compile(ctx context.Context, source string) ([]byte, error) {
	return f(ctx, source)
}
