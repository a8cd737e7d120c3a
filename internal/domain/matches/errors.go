package matches

import (
	"errors"
	"fmt"
)

// Sentinel error kinds for row parsing. Callers match them with errors.Is.
var (
	ErrMalformedRow  = errors.New("malformed match row")
	ErrUnknownWinner = fmt.Errorf("%w: unknown winner marker", ErrMalformedRow)
	ErrInvalidPolicy = errors.New("invalid row policy")
)

// RowError describes a single rejected row.
type RowError struct {
	Index  int    // zero-based position in the input rows
	Reason string // human readable cause
	Err    error  // sentinel kind
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Index, e.Reason)
}

func (e *RowError) Unwrap() error {
	return e.Err
}
