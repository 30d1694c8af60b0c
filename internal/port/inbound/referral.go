package inbound

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/l2laihub/creditengine/internal/model"
)

// ReferralDomain defines the referral grantor inbound port.
type ReferralDomain interface {
	CreateReferral(ctx context.Context, referrerID uuid.UUID, referredEmail string) (*model.Referral, error)
	CompleteReferral(ctx context.Context, referrerID, referredID uuid.UUID) (bool, error)
}

// ReferralHttpPort defines HTTP handler interface for referral operations.
type ReferralHttpPort interface {
	// Create handles POST /referrals
	Create(c *gin.Context)

	// Complete handles POST /referrals/complete
	Complete(c *gin.Context)
}
