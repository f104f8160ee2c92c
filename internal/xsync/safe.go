// Package xsync provides the small set of concurrency primitives shared
// across node execution: a single-value future for correlating an
// asynchronous request with its later response, and a panic-barrier error
// type for recording a node task's panic as a terminal Failed state instead
// of crashing the run out from under its siblings.
package xsync

import "fmt"

// PanicError wraps a recovered panic with its stack trace.
type PanicError struct {
	Info  any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v\n%s", e.Info, e.Stack)
}
