package gin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/l2laihub/creditengine/internal/port/inbound"
)

// CreateReferralRequest registers an invitation.
type CreateReferralRequest struct {
	ReferrerID    uuid.UUID `json:"referrer_id" binding:"required"`
	ReferredEmail string    `json:"referred_email" binding:"required,email"`
}

// CompleteReferralRequest reports that an invitee signed up.
type CompleteReferralRequest struct {
	ReferrerID uuid.UUID `json:"referrer_id" binding:"required"`
	ReferredID uuid.UUID `json:"referred_id" binding:"required"`
}

// referralAdapter implements inbound.ReferralHttpPort.
type referralAdapter struct {
	domain inbound.ReferralDomain
}

// NewReferralAdapter creates a new referral HTTP adapter.
func NewReferralAdapter(domain inbound.ReferralDomain) inbound.ReferralHttpPort {
	return &referralAdapter{domain: domain}
}

// RegisterReferralRoutes registers referral routes. create wraps the invitation route.
func RegisterReferralRoutes(r *gin.RouterGroup, adapter inbound.ReferralHttpPort, create ...gin.HandlerFunc) {
	referrals := r.Group("/referrals")
	{
		referrals.Group("", create...).POST("", adapter.Create)
		referrals.POST("/complete", adapter.Complete)
	}
}

// Create registers a pending referral.
//
//	@Summary	Create referral
//	@Tags		Referral
//	@Accept		json
//	@Produce	json
//	@Param		request	body		CreateReferralRequest	true	"Referral"
//	@Success	201		{object}	model.Referral
//	@Failure	400		{object}	errors.ErrorResponse
//	@Router		/referrals [post]
func (a *referralAdapter) Create(c *gin.Context) {
	var req CreateReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	ref, err := a.domain.CreateReferral(c.Request.Context(), req.ReferrerID, req.ReferredEmail)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, ref)
}

// Complete grants both referral bonuses once.
//
//	@Summary		Complete referral
//	@Description	Completes the oldest pending referral of the referrer. completed=false when none is pending.
//	@Tags			Referral
//	@Accept			json
//	@Produce		json
//	@Param			request	body		CompleteReferralRequest	true	"Completion"
//	@Success		200		{object}	map[string]bool
//	@Router			/referrals/complete [post]
func (a *referralAdapter) Complete(c *gin.Context) {
	var req CompleteReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	completed, err := a.domain.CompleteReferral(c.Request.Context(), req.ReferrerID, req.ReferredID)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"completed": completed})
}

// Compile-time check
var _ inbound.ReferralHttpPort = (*referralAdapter)(nil)
