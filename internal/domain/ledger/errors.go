package ledger

import (
	"errors"
	"fmt"
)

// Domain errors for the ledger.
var (
	// Validation errors
	ErrInvalidAmount = errors.New("amount must be positive")
	ErrInvalidKind   = errors.New("invalid credit kind")

	// Balance errors
	ErrInsufficientCredits = errors.New("insufficient credits")
)

// InsufficientCreditsError carries the amounts behind ErrInsufficientCredits.
type InsufficientCreditsError struct {
	Required  int64
	Available int64
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: need %d, have %d", e.Required, e.Available)
}

// Is makes errors.Is(err, ErrInsufficientCredits) match.
func (e *InsufficientCreditsError) Is(target error) bool {
	return target == ErrInsufficientCredits
}
