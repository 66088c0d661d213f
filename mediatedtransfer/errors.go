package mediatedtransfer

import "fmt"

// ValidationError signals a malformed value, wrong sender, or bad signature.
// The event is rejected, no state change occurs, and a diagnostic is
// emitted (spec.md §7).
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "validation error: " + e.Reason }

// ProtocolViolationError signals a non-monotonic nonce, mismatched secret,
// or value-creation attempt by the counterparty. The event is rejected and
// logged; callers escalate the channel to unilateral close when the
// violation is attributable to the counterparty (spec.md §7).
type ProtocolViolationError struct {
	Reason string
}

func (e *ProtocolViolationError) Error() string { return "protocol violation: " + e.Reason }

// ResourceExhaustionError signals too many concurrent locks on a channel or
// a locksroot size limit breach. New outgoing transfers are rejected;
// existing transfers are unaffected (spec.md §7).
type ResourceExhaustionError struct {
	Reason string
}

func (e *ResourceExhaustionError) Error() string { return "resource exhaustion: " + e.Reason }

// InternalInvariantError is fatal: the core aborts the payment and
// surfaces the condition to the supervisor, which decides whether to
// snapshot and halt (spec.md §7).
type InternalInvariantError struct {
	Reason string
}

func (e *InternalInvariantError) Error() string { return "internal invariant violation: " + e.Reason }

// NewProtocolViolation is a convenience constructor used throughout the
// transition packages.
func NewProtocolViolation(format string, args ...interface{}) *ProtocolViolationError {
	return &ProtocolViolationError{Reason: fmt.Sprintf(format, args...)}
}

// NewValidationError is a convenience constructor.
func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// NewInternalInvariantError is a convenience constructor.
func NewInternalInvariantError(format string, args ...interface{}) *InternalInvariantError {
	return &InternalInvariantError{Reason: fmt.Sprintf(format, args...)}
}
