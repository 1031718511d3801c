package message

import "fmt"

// DecodeError reports a malformed wire- or storage-form message. The run
// controller must not continue past this error (§4.A).
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("message: decode error: %s", e.Reason)
}

// NewDecodeError constructs a DecodeError with a formatted reason.
func NewDecodeError(format string, args ...any) *DecodeError {
	return &DecodeError{Reason: fmt.Sprintf(format, args...)}
}
