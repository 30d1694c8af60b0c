package outbound

import (
	"context"
	"errors"
)

var (
	// ErrDuplicate is returned by Create operations that hit a unique constraint.
	ErrDuplicate = errors.New("duplicate record")

	// ErrPersistenceConflict is returned when a transaction kept conflicting after retries.
	ErrPersistenceConflict = errors.New("persistence conflict")
)

// TxManagerPort defines transaction scoping for database adapters.
// The transaction travels in the context; adapters pick it up from there.
type TxManagerPort interface {
	// WithinTx runs fn inside a transaction. A call made while a transaction
	// is already open on ctx joins it instead of starting a new one.
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error

	// AfterCommit runs fn once the outermost transaction on ctx commits. fn gets
	// a context without the transaction. Without an open transaction fn runs immediately.
	AfterCommit(ctx context.Context, fn func(ctx context.Context))
}
