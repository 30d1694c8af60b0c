package inbound

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/l2laihub/creditengine/internal/model"
)

// UsageDomain defines the usage processor inbound port.
type UsageDomain interface {
	ConsumeForUsage(ctx context.Context, req *model.ConsumeRequest) (*model.ConsumeResult, error)
	CompleteUsage(ctx context.Context, usageID uuid.UUID, status model.UsageStatus, processingTimeMs int64, errMsg *string) (*model.UsageRecord, error)
	GetUsage(ctx context.Context, usageID uuid.UUID) (*model.UsageRecord, error)
}

// UsageHttpPort defines HTTP handler interface for usage operations.
type UsageHttpPort interface {
	// Consume handles POST /usage/consume
	Consume(c *gin.Context)

	// Complete handles POST /usage/:id/complete
	Complete(c *gin.Context)

	// GetUsage handles GET /usage/:id
	GetUsage(c *gin.Context)
}
