package executor

import (
	"errors"
	"fmt"
)

// FatalError marks an action failure that retrying or backing off cannot
// fix, e.g. a policy rejection or malformed request. Fatal failures still
// count against rate windows but carry no adaptive-delay feedback and no
// self-throttle.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal: %v", e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Fatal wraps err as a FatalError. A nil err returns nil.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// IsFatal reports whether err is or wraps a FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
