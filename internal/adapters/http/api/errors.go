package api

import (
	"errors"
	"fmt"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest    = errors.New("bad request")
	ErrLimitExceeded = errors.New("limit exceeds maximum")
)

// wrap prefixes err with the operation that failed.
func wrap(op string, err error) error {
	return fmt.Errorf("%s: %w", op, err)
}
