package lockdir

import (
	"errors"
	"fmt"
)

// ErrBusy is returned by Acquire when the lock stayed genuinely held by
// a live process for the whole wait window.
var ErrBusy = errors.New("authentication lock is busy")

// LockError wraps failures to create, inspect or remove the lock
// directory. A busy lock is reported as ErrBusy, never as a LockError.
type LockError struct {
	Dir string
	Pid int
	Err error
}

// Error implements the error interface.
func (e *LockError) Error() string {
	if e.Pid > 0 {
		return fmt.Sprintf("lock %s (pid %d): %v", e.Dir, e.Pid, e.Err)
	}
	return fmt.Sprintf("lock %s: %v", e.Dir, e.Err)
}

// Unwrap returns the underlying error for use with errors.Is and errors.As.
func (e *LockError) Unwrap() error {
	return e.Err
}
