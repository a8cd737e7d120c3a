package sheets

import "errors"

var (
	// ErrRequest is returned when the source could not be reached.
	ErrRequest = errors.New("sheets request failed")
	// ErrStatus is returned for a non-2xx response.
	ErrStatus = errors.New("sheets unexpected status")
	// ErrDecode is returned when the body is not a values payload.
	ErrDecode = errors.New("sheets decode failed")
	// ErrEndpoint is returned for an unusable endpoint description.
	ErrEndpoint = errors.New("sheets endpoint invalid")
)
