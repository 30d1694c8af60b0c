package gin

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/l2laihub/creditengine/internal/domain/ledger"
	"github.com/l2laihub/creditengine/internal/domain/payment"
	"github.com/l2laihub/creditengine/internal/domain/ratelimit"
	"github.com/l2laihub/creditengine/internal/domain/referral"
	"github.com/l2laihub/creditengine/internal/domain/usage"
	"github.com/l2laihub/creditengine/internal/port/outbound"
	"github.com/l2laihub/creditengine/internal/shared/logger"
	apperrors "github.com/l2laihub/creditengine/internal/utils/errors"
)

// now is swapped in tests to pin Retry-After.
var now = time.Now

// toAppError maps domain errors to HTTP-facing errors.
func toAppError(err error) *apperrors.AppError {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var insufficient *ledger.InsufficientCreditsError
	var limited *ratelimit.RateLimitedError

	switch {
	case errors.As(err, &insufficient):
		return apperrors.InsufficientCredits(insufficient.Required, insufficient.Available)
	case errors.Is(err, ledger.ErrInsufficientCredits):
		return apperrors.InsufficientCredits(0, 0)

	case errors.As(err, &limited):
		return apperrors.RateLimitExceeded(string(limited.Reason), limited.ResetAt, limited.RetryAfter(now()))
	case errors.Is(err, ratelimit.ErrRateLimited):
		return apperrors.RateLimited("")

	case errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrInvalidKind),
		errors.Is(err, ratelimit.ErrInvalidConfig),
		errors.Is(err, ratelimit.ErrInvalidInput),
		errors.Is(err, usage.ErrInvalidRequest),
		errors.Is(err, usage.ErrInvalidStatus),
		errors.Is(err, payment.ErrInvalidEvent),
		errors.Is(err, payment.ErrUnsupportedEventType),
		errors.Is(err, referral.ErrInvalidEmail),
		errors.Is(err, referral.ErrInvalidUser),
		errors.Is(err, referral.ErrSelfReferral):
		return apperrors.BadRequest(err.Error())

	case errors.Is(err, payment.ErrUnknownPriceTier):
		return apperrors.ValidationError(err.Error())

	case errors.Is(err, usage.ErrUsageNotFound):
		return apperrors.NotFound("usage record")
	case errors.Is(err, usage.ErrUsageAlreadyFinal):
		return apperrors.Conflict(err.Error())

	case errors.Is(err, outbound.ErrPersistenceConflict):
		return apperrors.Contention(err)
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.Timeout("")

	default:
		return apperrors.Internal("internal server error", err)
	}
}

// handleError writes the error response and aborts the chain.
func handleError(c *gin.Context, err error) {
	appErr := toAppError(err)

	if appErr.StatusCode >= http.StatusInternalServerError {
		logger.FromContext(c.Request.Context(), zap.NewNop()).Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	_ = c.Error(err)

	if appErr.RetryAfter > 0 {
		secs := int64(math.Ceil(appErr.RetryAfter.Seconds()))
		c.Header("Retry-After", strconv.FormatInt(secs, 10))
	}
	c.AbortWithStatusJSON(appErr.StatusCode, appErr.ToResponse())
}

// badRequest writes a binding or parameter error.
func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, apperrors.BadRequest(message).ToResponse())
}
