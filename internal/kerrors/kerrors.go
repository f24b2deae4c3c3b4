// Package kerrors defines the error kinds shared across the orchestration
// kernel. Components wrap one of these sentinels with fmt.Errorf("...: %w")
// at the call site; callers classify with errors.Is.
package kerrors

import "errors"

var (
	// ErrNotFound signals a missing key, agent, or record. Recoverable by
	// the caller (default value vs. surface to the user).
	ErrNotFound = errors.New("not found")

	// ErrTimeout signals a bounded operation exceeded its limit.
	ErrTimeout = errors.New("timeout")

	// ErrTransient signals a retryable condition (DB blip, bus saturation).
	ErrTransient = errors.New("transient error")

	// ErrInvalid signals malformed configuration or an out-of-range value
	// detected at configuration time.
	ErrInvalid = errors.New("invalid")

	// ErrUnavailable signals a downstream driver refused the request.
	ErrUnavailable = errors.New("unavailable")

	// ErrFatal signals unrecoverable corruption; the scheduler stops and
	// reports critical health.
	ErrFatal = errors.New("fatal")
)
