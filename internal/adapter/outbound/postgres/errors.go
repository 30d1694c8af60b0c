package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/l2laihub/creditengine/internal/port/outbound"
	"gorm.io/gorm"
)

// SQLSTATE codes the adapters care about.
const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
)

func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// isRetryable reports whether the transaction can be rerun from scratch.
func isRetryable(err error) bool {
	switch sqlState(err) {
	case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
		return true
	}
	return false
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || sqlState(err) == codeUniqueViolation
}

// mapCreateError turns unique violations into outbound.ErrDuplicate.
func mapCreateError(err error) error {
	if isUniqueViolation(err) {
		return outbound.ErrDuplicate
	}
	return err
}
