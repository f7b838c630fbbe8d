package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvalidTransitionNamesBothStatuses(t *testing.T) {
	err := NewInvalidTransition("resolved", "in-progress")

	de := ToDomainError(err)
	require.NotNil(t, de)
	assert.Equal(t, CodeInvalidTransition, de.Code)
	assert.Equal(t, http.StatusBadRequest, de.HTTPStatus)
	assert.Equal(t, "invalid status transition from resolved to in-progress", de.Message)
	assert.Equal(t, "resolved", de.Details["current_status"])
	assert.Equal(t, "in-progress", de.Details["requested_status"])
}

func TestToDomainErrorUnwrapsWrapped(t *testing.T) {
	wrapped := fmt.Errorf("loading: %w", NewForbidden("not your ticket"))

	assert.True(t, HasCode(wrapped, CodeForbidden))
	assert.Equal(t, http.StatusForbidden, ToDomainError(wrapped).HTTPStatus)
}

func TestToDomainErrorFallsBackToInternal(t *testing.T) {
	cause := errors.New("boom")
	de := ToDomainError(cause)

	assert.Equal(t, CodeInternal, de.Code)
	assert.Equal(t, "internal server error", de.Message)
	assert.ErrorIs(t, de, cause)
}

func TestToDomainErrorFromFiber(t *testing.T) {
	de := ToDomainError(fiber.NewError(http.StatusUnauthorized, "missing token"))

	assert.Equal(t, CodeUnauthorized, de.Code)
	assert.Equal(t, "missing token", de.Message)
}

func TestConcurrencyConflictIsRetryable(t *testing.T) {
	de := ToDomainError(NewConcurrencyConflict("ticket", errors.New("version mismatch")))

	assert.Equal(t, http.StatusConflict, de.HTTPStatus)
	assert.Equal(t, true, de.Details["retryable"])
}

func TestMapErrorNil(t *testing.T) {
	assert.NoError(t, MapError(nil))
}
