package errors

import (
	"fmt"
	"syscall"
)

// DriverError is the error interface returned by every bmpfs operation. It
// carries both a human-readable message and a fixed POSIX errno, so a host
// protocol adapter never has to guess at a mapping.
type DriverError interface {
	error
	WithMessage(message string) DriverError
	WrapError(err error) DriverError
	Errno() syscall.Errno
}

// -----------------------------------------------------------------------------

type customDriverError struct {
	message       string
	originalError error
	sentinel      BmpfsError
}

// Error implements the `error` object interface. When called, it returns a string
// describing the error.
func (e customDriverError) Error() string {
	return e.message
}

func (e customDriverError) WithMessage(message string) DriverError {
	return customDriverError{
		message:       fmt.Sprintf("%s: %s", e.message, message),
		originalError: e,
		sentinel:      e.sentinel,
	}
}

func (e customDriverError) WrapError(err error) DriverError {
	return customDriverError{
		message:       fmt.Sprintf("%s: %s", e.Error(), err.Error()),
		originalError: err,
		sentinel:      e.sentinel,
	}
}

func (e customDriverError) Errno() syscall.Errno {
	if e.sentinel != "" {
		return e.sentinel.Errno()
	}
	return syscall.EIO
}

func (e customDriverError) Unwrap() error {
	return e.originalError
}

// Is reports whether target is the sentinel this error was built from, so
// errors.Is matches it even when WrapError wrapped a different cause.
func (e customDriverError) Is(target error) bool {
	sentinel, ok := target.(BmpfsError)
	return ok && e.sentinel != "" && sentinel == e.sentinel
}
