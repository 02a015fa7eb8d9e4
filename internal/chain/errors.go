package chain

import (
	"errors"
	"fmt"
)

// ErrUnavailable indicates the RPC node could not be reached at all. Reads
// and writes both surface it; callers treat it as transient.
var ErrUnavailable = errors.New("chain unavailable")

// WriteError reports a mutating call that did not confirm: a revert, a
// confirmation timeout, or a submission failure. The registry client never
// retries these; retry policy belongs to the lifecycle coordinator, which
// knows whether the prior attempt may have landed.
type WriteError struct {
	Op     string // "register" or "setStatus"
	Reason string
	Err    error
}

func (e *WriteError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("chain %s failed: %s: %v", e.Op, e.Reason, e.Err)
	}
	return fmt.Sprintf("chain %s failed: %s", e.Op, e.Reason)
}

func (e *WriteError) Unwrap() error { return e.Err }

// IsWriteError reports whether err is a chain write failure.
func IsWriteError(err error) bool {
	var we *WriteError
	return errors.As(err, &we)
}
