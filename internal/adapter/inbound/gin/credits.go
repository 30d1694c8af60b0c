package gin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/l2laihub/creditengine/internal/model"
	"github.com/l2laihub/creditengine/internal/port/inbound"
)

// GrantCreditsRequest credits a user outside the payment flow.
type GrantCreditsRequest struct {
	UserID      uuid.UUID             `json:"user_id" binding:"required"`
	Amount      int64                 `json:"amount" binding:"required,gt=0"`
	Kind        model.TransactionType `json:"kind" binding:"omitempty,oneof=purchase bonus refund"`
	Description string                `json:"description" binding:"max=500"`
	ExternalRef *string               `json:"external_ref"`
}

// DebitCreditsRequest removes credits from a user.
type DebitCreditsRequest struct {
	UserID      uuid.UUID `json:"user_id" binding:"required"`
	Amount      int64     `json:"amount" binding:"required,gt=0"`
	Description string    `json:"description" binding:"max=500"`
}

// RefundCreditsRequest takes back previously purchased credits.
type RefundCreditsRequest struct {
	UserID      uuid.UUID `json:"user_id" binding:"required"`
	Amount      int64     `json:"amount" binding:"required,gt=0"`
	ExternalRef *string   `json:"external_ref"`
	Description string    `json:"description" binding:"max=500"`
}

// BalanceMutationResponse reports the balance after a mutation.
type BalanceMutationResponse struct {
	UserID     uuid.UUID `json:"user_id"`
	NewBalance int64     `json:"new_balance"`
}

// creditsAdapter implements inbound.CreditsHttpPort.
type creditsAdapter struct {
	ledger inbound.LedgerDomain
}

// NewCreditsAdapter creates a new credits HTTP adapter.
func NewCreditsAdapter(ledger inbound.LedgerDomain) inbound.CreditsHttpPort {
	return &creditsAdapter{ledger: ledger}
}

// RegisterCreditsRoutes registers admin credit routes. Mutations go through
// the supplied middleware (idempotency in production).
func RegisterCreditsRoutes(r *gin.RouterGroup, adapter inbound.CreditsHttpPort, mutate ...gin.HandlerFunc) {
	credits := r.Group("/credits")
	{
		writes := credits.Group("", mutate...)
		writes.POST("/grant", adapter.Grant)
		writes.POST("/debit", adapter.Debit)
		writes.POST("/refund", adapter.Refund)
		credits.GET("/:user_id", adapter.GetBalance)
		credits.GET("/:user_id/transactions", adapter.ListTransactions)
		credits.GET("/:user_id/verify", adapter.VerifyReplay)
	}
}

// Grant credits a user.
//
//	@Summary		Grant credits
//	@Description	Credit a user's balance. Kind defaults to bonus.
//	@Tags			Credits
//	@Accept			json
//	@Produce		json
//	@Param			Idempotency-Key	header		string				false	"Idempotency key"
//	@Param			request			body		GrantCreditsRequest	true	"Grant request"
//	@Success		200				{object}	BalanceMutationResponse
//	@Failure		400				{object}	errors.ErrorResponse
//	@Router			/admin/credits/grant [post]
func (a *creditsAdapter) Grant(c *gin.Context) {
	var req GrantCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if req.Kind == "" {
		req.Kind = model.TransactionTypeBonus
	}

	balance, err := a.ledger.Credit(c.Request.Context(), req.UserID, req.Amount, req.Kind, req.Description, req.ExternalRef)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, BalanceMutationResponse{UserID: req.UserID, NewBalance: balance})
}

// Debit removes credits from a user.
//
//	@Summary		Debit credits
//	@Tags			Credits
//	@Accept			json
//	@Produce		json
//	@Param			Idempotency-Key	header		string				false	"Idempotency key"
//	@Param			request			body		DebitCreditsRequest	true	"Debit request"
//	@Success		200				{object}	BalanceMutationResponse
//	@Failure		402				{object}	errors.ErrorResponse
//	@Router			/admin/credits/debit [post]
func (a *creditsAdapter) Debit(c *gin.Context) {
	var req DebitCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	balance, err := a.ledger.Debit(c.Request.Context(), req.UserID, req.Amount, req.Description)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, BalanceMutationResponse{UserID: req.UserID, NewBalance: balance})
}

// Refund takes back purchased credits, floored at zero.
//
//	@Summary		Refund credits
//	@Tags			Credits
//	@Accept			json
//	@Produce		json
//	@Param			Idempotency-Key	header		string					false	"Idempotency key"
//	@Param			request			body		RefundCreditsRequest	true	"Refund request"
//	@Success		200				{object}	BalanceMutationResponse
//	@Router			/admin/credits/refund [post]
func (a *creditsAdapter) Refund(c *gin.Context) {
	var req RefundCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	balance, err := a.ledger.Refund(c.Request.Context(), req.UserID, req.Amount, req.ExternalRef, req.Description)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, BalanceMutationResponse{UserID: req.UserID, NewBalance: balance})
}

// GetBalance returns a user's balance.
//
//	@Summary	Get balance
//	@Tags		Credits
//	@Produce	json
//	@Param		user_id	path		string	true	"User ID"
//	@Success	200		{object}	model.BalanceResponse
//	@Router		/admin/credits/{user_id} [get]
func (a *creditsAdapter) GetBalance(c *gin.Context) {
	userID, ok := parseUUIDParam(c, "user_id")
	if !ok {
		return
	}

	balance, err := a.ledger.GetBalance(c.Request.Context(), userID)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, balance)
}

// ListTransactions returns a page of ledger entries, newest first.
//
//	@Summary	List transactions
//	@Tags		Credits
//	@Produce	json
//	@Param		user_id		path		string	true	"User ID"
//	@Param		page		query		int		false	"Page"
//	@Param		page_size	query		int		false	"Page size"
//	@Success	200			{object}	model.PaginatedResponse[model.CreditTransaction]
//	@Router		/admin/credits/{user_id}/transactions [get]
func (a *creditsAdapter) ListTransactions(c *gin.Context) {
	userID, ok := parseUUIDParam(c, "user_id")
	if !ok {
		return
	}
	var page model.PaginationRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		badRequest(c, err.Error())
		return
	}
	page.DefaultPagination()

	txs, total, err := a.ledger.ListTransactions(c.Request.Context(), userID, page.PageSize, page.Offset())
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.NewPaginatedResponse(txs, total, page.Page, page.PageSize))
}

// VerifyReplay replays the user's ledger and compares it with the live balance.
//
//	@Summary	Verify ledger replay
//	@Tags		Credits
//	@Produce	json
//	@Param		user_id	path		string	true	"User ID"
//	@Success	200		{object}	model.ReplayReport
//	@Router		/admin/credits/{user_id}/verify [get]
func (a *creditsAdapter) VerifyReplay(c *gin.Context) {
	userID, ok := parseUUIDParam(c, "user_id")
	if !ok {
		return
	}

	report, err := a.ledger.VerifyReplay(c.Request.Context(), userID)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// Compile-time check
var _ inbound.CreditsHttpPort = (*creditsAdapter)(nil)
