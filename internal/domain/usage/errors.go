package usage

import "errors"

var (
	// ErrInvalidRequest is returned when a consume request lacks a user or resource.
	ErrInvalidRequest = errors.New("invalid usage request")

	// ErrUsageNotFound is returned when a usage record does not exist.
	ErrUsageNotFound = errors.New("usage record not found")

	// ErrUsageAlreadyFinal is returned when completing a record that is no longer pending.
	ErrUsageAlreadyFinal = errors.New("usage record already completed")

	// ErrInvalidStatus is returned when a completion status is not terminal.
	ErrInvalidStatus = errors.New("status must be completed or failed")
)
