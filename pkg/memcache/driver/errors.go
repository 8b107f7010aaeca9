package driver

import (
	"errors"
	"fmt"
)

// OpError describes a failed driver operation together with the server
// diagnostic that caused it.
type OpError struct {
	Op     string
	Key    string
	Server string
	Err    error
}

// Error implements the error interface.
func (e *OpError) Error() string {
	switch {
	case e.Server != "" && e.Key != "":
		return fmt.Sprintf("memcache %s %q on %s: %v", e.Op, e.Key, e.Server, e.Err)
	case e.Key != "":
		return fmt.Sprintf("memcache %s %q: %v", e.Op, e.Key, e.Err)
	default:
		return fmt.Sprintf("memcache %s: %v", e.Op, e.Err)
	}
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *OpError) Unwrap() error {
	return e.Err
}

// ResultMessage returns the driver diagnostic carried by err, without the
// operation context added by OpError.
func ResultMessage(err error) string {
	if err == nil {
		return "SUCCESS"
	}
	var opErr *OpError
	if errors.As(err, &opErr) && opErr.Err != nil {
		return opErr.Err.Error()
	}
	return err.Error()
}

// IsNotFound reports whether err signals an absent key.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
