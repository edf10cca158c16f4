package pricelist

import (
	"errors"
	"fmt"
)

var (
	// ErrInputNotFound is returned when the pricing file can't be opened.
	ErrInputNotFound = errors.New("pricing file not found")
	// ErrSetCodeNotResolved is returned when a line names a set code no table knows.
	ErrSetCodeNotResolved = errors.New("set code not resolved")
)

// SetCodeError identifies the line and code that stopped a parse.
type SetCodeError struct {
	Code string
	Line int
}

func (e *SetCodeError) Error() string {
	return fmt.Sprintf("line %d: set code %q not found", e.Line, e.Code)
}

func (e *SetCodeError) Unwrap() error {
	return ErrSetCodeNotResolved
}
