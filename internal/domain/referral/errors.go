package referral

import "errors"

var (
	ErrInvalidEmail = errors.New("invalid referred email")
	ErrInvalidUser  = errors.New("invalid user id")
	ErrSelfReferral = errors.New("referrer and referred user must differ")

	// errAlreadyReferred rolls back a completion that lost the race on the
	// referred user.
	errAlreadyReferred = errors.New("referred user already completed a referral")
)
