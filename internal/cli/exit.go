package cli

import (
	"errors"
	"fmt"
)

// An error carrying a specific process exit code.
//
// A nil Err means the code is a propagated status from the containerized
// process and nothing should be printed; a non-nil Err describes a failure
// of kiln itself.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// Returns the exit code the process should terminate with for err, and
// whether the error's message should be printed.
func ExitCode(err error) (int, bool) {
	if err == nil {
		return 0, false
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code, ee.Err != nil
	}
	return 1, true
}
