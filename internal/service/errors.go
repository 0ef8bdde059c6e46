package service

import (
	"errors"
	"strings"
)

const (
	MsgTermsNotAccepted = "You must accept the terms and conditions to place an order."
	MsgEmptyBasket      = "No items in your basket."
)

var (
	// ErrUnknownBook means a basket line names a book the catalog does not
	// have. It points at a bug or a book deleted mid-checkout, not bad input.
	ErrUnknownBook   = errors.New("basket references a book missing from the catalog")
	ErrInvalidReview = errors.New("review must have a voter name and 0 to 5 stars")
	ErrInvalidPrice  = errors.New("price must not be negative")
)

// ValidationError carries problems that are safe to show to the user.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Problems, " ")
}

func newValidationError(problems ...string) *ValidationError {
	return &ValidationError{Problems: problems}
}
