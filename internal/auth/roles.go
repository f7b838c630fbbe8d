package auth

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/support-ticket-service/pkg/util/errorutil"
)

// RequireOwnerRole admits end users (buyers and suppliers) only.
func RequireOwnerRole() fiber.Handler {
	return func(c *fiber.Ctx) error {
		requester, ok := RequesterFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if requester.IsStaff() {
			return apperrors.NewForbidden("end-user role required")
		}
		return c.Next()
	}
}

// RequireStaff admits staff only.
func RequireStaff() fiber.Handler {
	return func(c *fiber.Ctx) error {
		requester, ok := RequesterFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if !CanTransition(requester) {
			return apperrors.NewForbidden("staff role required")
		}
		return c.Next()
	}
}
