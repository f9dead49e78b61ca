package orders

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
)

// BadRequestError carries a human-readable reason the caller can surface.
type BadRequestError struct {
	Reason string
}

func (e BadRequestError) Error() string { return e.Reason }

func badRequestf(format string, args ...any) error {
	return BadRequestError{Reason: fmt.Sprintf(format, args...)}
}

// IsBadRequest reports whether err is a caller mistake rather than a fault.
func IsBadRequest(err error) bool {
	var bad BadRequestError
	return errors.As(err, &bad)
}
