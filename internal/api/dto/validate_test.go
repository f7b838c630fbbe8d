package dto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/spec-kit/support-ticket-service/pkg/util/errorutil"
)

func TestValidateCreateTicket(t *testing.T) {
	require.NoError(t, Validate(CreateTicketRequest{Subject: "s", Message: "m", Priority: "low"}))

	err := Validate(CreateTicketRequest{Subject: "", Message: "m", Priority: "urgent"})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	details := apperrors.ToDomainError(err).Details["fields"].(map[string]any)
	assert.Equal(t, "required", details["subject"])
	assert.Equal(t, "oneof=low medium high", details["priority"])
	assert.NotContains(t, details, "message")
}

func TestValidateLimits(t *testing.T) {
	err := Validate(AppendMessageRequest{Text: strings.Repeat("a", 10001)})
	require.Error(t, err)
	details := apperrors.ToDomainError(err).Details["fields"].(map[string]any)
	assert.Equal(t, "max=10000", details["text"])

	assert.NoError(t, Validate(AppendMessageRequest{Text: strings.Repeat("a", 10000)}))
}

func TestValidateStatus(t *testing.T) {
	assert.NoError(t, Validate(TransitionStatusRequest{Status: "in-progress"}))
	err := Validate(TransitionStatusRequest{Status: "archived"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}
