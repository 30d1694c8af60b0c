package inbound

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/l2laihub/creditengine/internal/model"
)

// LedgerDomain defines the credit ledger inbound port.
type LedgerDomain interface {
	Credit(ctx context.Context, userID uuid.UUID, amount int64, kind model.TransactionType, description string, externalRef *string) (int64, error)
	Debit(ctx context.Context, userID uuid.UUID, amount int64, description string) (int64, error)
	Refund(ctx context.Context, userID uuid.UUID, amount int64, externalRef *string, description string) (int64, error)
	ClaimFreeCredit(ctx context.Context, userID uuid.UUID) (bool, int, error)

	GetBalance(ctx context.Context, userID uuid.UUID) (*model.BalanceResponse, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*model.CreditTransaction, int64, error)
	VerifyReplay(ctx context.Context, userID uuid.UUID) (*model.ReplayReport, error)
}

// CreditsHttpPort defines HTTP handler interface for admin credit operations.
type CreditsHttpPort interface {
	// Grant handles POST /admin/credits/grant
	Grant(c *gin.Context)

	// Debit handles POST /admin/credits/debit
	Debit(c *gin.Context)

	// Refund handles POST /admin/credits/refund
	Refund(c *gin.Context)

	// GetBalance handles GET /admin/credits/:user_id
	GetBalance(c *gin.Context)

	// ListTransactions handles GET /admin/credits/:user_id/transactions
	ListTransactions(c *gin.Context)

	// VerifyReplay handles GET /admin/credits/:user_id/verify
	VerifyReplay(c *gin.Context)
}
