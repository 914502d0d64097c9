package marketplace

import (
	"errors"
	"fmt"
)

// CallError marks a failure of the marketplace infrastructure (RPC node,
// order book API, storage service). Domain outcomes such as an empty order
// book are never CallErrors.
type CallError struct {
	Op  string
	Err error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("marketplace %s: %v", e.Op, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// IsCallError reports whether err's chain holds a *CallError.
func IsCallError(err error) bool {
	var ce *CallError
	return errors.As(err, &ce)
}
