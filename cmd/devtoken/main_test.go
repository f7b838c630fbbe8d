package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-ticket-service/internal/auth"
	"github.com/spec-kit/support-ticket-service/internal/domain"
)

func TestRunMintsVerifiableToken(t *testing.T) {
	var out, errOut bytes.Buffer
	err := run([]string{"--sub", "S1", "--role", "staff", "--secret", "s3cret", "--ttl", "5"}, &out, &errOut)
	require.NoError(t, err)

	claims, err := auth.NewTokenManager("s3cret", 5).ParseToken(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, "S1", claims.Subject)
	assert.Equal(t, domain.RoleStaff, claims.Role)
}

func TestRunRejectsBadInput(t *testing.T) {
	cases := map[string][]string{
		"missing sub":  {"--secret", "x"},
		"bad role":     {"--sub", "U1", "--role", "admin", "--secret", "x"},
		"extra arg":    {"--sub", "U1", "--secret", "x", "oops"},
		"unknown flag": {"--nope"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			var out, errOut bytes.Buffer
			assert.Error(t, run(args, &out, &errOut))
			assert.Empty(t, out.String())
		})
	}
}
