package modelclient

import "fmt"

// TransientError wraps a provider failure worth retrying: rate limits,
// timeouts, transient 5xx responses. The run controller does not retry:
// a TransientError returned from Complete ends the run with
// RunStatusError like any other model failure (§7).
type TransientError struct {
	Provider string
	Cause    error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("modelclient: transient error from %s: %v", e.Provider, e.Cause)
}

func (e *TransientError) Unwrap() error { return e.Cause }

// PermanentError wraps a provider failure that will not resolve on
// retry: invalid request, authentication failure, unsupported model.
// The run controller records this and terminates the run with
// RunStatusError (§7).
type PermanentError struct {
	Provider string
	Cause    error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("modelclient: permanent error from %s: %v", e.Provider, e.Cause)
}

func (e *PermanentError) Unwrap() error { return e.Cause }
