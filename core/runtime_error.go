package core

import "fmt"

// RuntimeError is a VM-stage failure: division by zero, unknown opcode,
// invalid function index, stack overflow/underflow, or a built-in
// reporting a problem with its arguments. Grounded on ion/core/env.go's
// RuntimeError, simplified: birch's VM is flat (no closures), so there
// is no call-stack trace to accumulate beyond the offending location.
type RuntimeError struct {
	Reason string
	Loc    Location
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error at %s: %s", e.Loc, e.Reason)
}

func rtErrorf(loc Location, format string, args ...any) *RuntimeError {
	return &RuntimeError{Reason: fmt.Sprintf(format, args...), Loc: loc}
}
