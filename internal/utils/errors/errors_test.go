package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAppError(t *testing.T) {
	t.Run("Error returns message", func(t *testing.T) {
		err := &AppError{
			Code:    "TEST_ERROR",
			Message: "test error message",
		}
		assert.Equal(t, "test error message", err.Error())
	})

	t.Run("Error includes wrapped error", func(t *testing.T) {
		wrapped := errors.New("wrapped error")
		err := &AppError{
			Code:    "TEST_ERROR",
			Message: "test error message",
			Err:     wrapped,
		}
		assert.Contains(t, err.Error(), "test error message")
		assert.Contains(t, err.Error(), "wrapped error")
	})

	t.Run("Unwrap returns wrapped error", func(t *testing.T) {
		wrapped := errors.New("wrapped error")
		err := &AppError{
			Code:    "TEST_ERROR",
			Message: "test message",
			Err:     wrapped,
		}
		assert.Equal(t, wrapped, err.Unwrap())
	})
}

func TestNewAppError(t *testing.T) {
	wrapped := errors.New("original")
	err := NewAppError("CUSTOM_ERROR", "custom message", 418, wrapped)

	assert.Equal(t, "CUSTOM_ERROR", err.Code)
	assert.Equal(t, "custom message", err.Message)
	assert.Equal(t, 418, err.StatusCode)
	assert.Equal(t, wrapped, err.Err)
}

func TestNotFound(t *testing.T) {
	err := NotFound("usage record")

	assert.Equal(t, "NOT_FOUND", err.Code)
	assert.Equal(t, "usage record not found", err.Message)
	assert.Equal(t, http.StatusNotFound, err.StatusCode)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestBadRequest(t *testing.T) {
	err := BadRequest("invalid input")

	assert.Equal(t, "BAD_REQUEST", err.Code)
	assert.Equal(t, "invalid input", err.Message)
	assert.Equal(t, http.StatusBadRequest, err.StatusCode)
}

func TestValidationError(t *testing.T) {
	err := ValidationError("amount must be positive")

	assert.Equal(t, "VALIDATION_ERROR", err.Code)
	assert.Equal(t, http.StatusUnprocessableEntity, err.StatusCode)
	assert.True(t, errors.Is(err, ErrUnprocessableEntity))
}

func TestInsufficientCredits(t *testing.T) {
	err := InsufficientCredits(5, 3)

	assert.Equal(t, "INSUFFICIENT_CREDITS", err.Code)
	assert.Equal(t, http.StatusPaymentRequired, err.StatusCode)
	assert.Equal(t, "insufficient credits: need 5, have 3", err.Message)
	assert.Equal(t, int64(5), err.Details["required"])
	assert.Equal(t, int64(3), err.Details["available"])
	assert.True(t, IsInsufficientCredits(err))

	resp := err.ToResponse()
	assert.Equal(t, "INSUFFICIENT_CREDITS", resp.Error.Code)
	assert.Equal(t, err.Details, resp.Error.Details)
}

func TestRateLimited(t *testing.T) {
	t.Run("with empty message uses default", func(t *testing.T) {
		err := RateLimited("")
		assert.Equal(t, "too many requests", err.Message)
		assert.Equal(t, http.StatusTooManyRequests, err.StatusCode)
	})

	t.Run("window exceeded", func(t *testing.T) {
		resetAt := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
		err := RateLimitExceeded("hourly_limit_exceeded", resetAt, 45*time.Minute)

		assert.Equal(t, "RATE_LIMITED", err.Code)
		assert.Equal(t, 45*time.Minute, err.RetryAfter)
		assert.Equal(t, "hourly_limit_exceeded", err.Details["reason"])
		assert.Equal(t, "2026-03-10T10:00:00Z", err.Details["reset_at"])
		assert.True(t, IsRateLimited(err))
	})
}

func TestContention(t *testing.T) {
	cause := errors.New("persistence conflict")
	err := Contention(cause)

	assert.Equal(t, http.StatusServiceUnavailable, err.StatusCode)
	assert.Equal(t, time.Second, err.RetryAfter)
	assert.True(t, errors.Is(err, ErrPersistenceContention))
	assert.True(t, errors.Is(err, cause))
}

func TestInvalidSignature(t *testing.T) {
	err := InvalidSignature()
	assert.Equal(t, http.StatusBadRequest, err.StatusCode)
	assert.True(t, errors.Is(err, ErrInvalidSignature))
}

func TestTimeoutAndUnavailable(t *testing.T) {
	assert.Equal(t, "request timeout", Timeout("").Message)
	assert.Equal(t, http.StatusGatewayTimeout, Timeout("slow").StatusCode)
	assert.Equal(t, "service temporarily unavailable", ServiceUnavailable("").Message)
	assert.Equal(t, http.StatusServiceUnavailable, ServiceUnavailable("down").StatusCode)
}

func TestGetStatusCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"AppError", Conflict("dup"), http.StatusConflict},
		{"wrapped AppError", fmt.Errorf("op: %w", InsufficientCredits(1, 0)), http.StatusPaymentRequired},
		{"not found", ErrNotFound, http.StatusNotFound},
		{"bad request", ErrBadRequest, http.StatusBadRequest},
		{"signature", ErrInvalidSignature, http.StatusBadRequest},
		{"unprocessable", ErrUnprocessableEntity, http.StatusUnprocessableEntity},
		{"conflict", ErrConflict, http.StatusConflict},
		{"insufficient", ErrInsufficientCredits, http.StatusPaymentRequired},
		{"rate limited", ErrRateLimited, http.StatusTooManyRequests},
		{"timeout", ErrTimeout, http.StatusGatewayTimeout},
		{"unavailable", ErrServiceUnavail, http.StatusServiceUnavailable},
		{"contention", ErrPersistenceContention, http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetStatusCode(tt.err))
		})
	}
}

func TestAppError_Is(t *testing.T) {
	err := NotFound("referral")

	assert.True(t, err.Is(&AppError{Code: "NOT_FOUND"}))
	assert.False(t, err.Is(&AppError{Code: "CONFLICT"}))
	assert.True(t, err.Is(ErrNotFound))
	assert.True(t, IsNotFound(err))
	assert.False(t, IsConflict(err))
}

func TestWithDetailsAndError(t *testing.T) {
	cause := errors.New("cause")
	err := BadRequest("bad").WithDetails(map[string]any{"field": "amount"}).WithError(cause)

	assert.Equal(t, "amount", err.Details["field"])
	assert.Equal(t, cause, err.Unwrap())
}
