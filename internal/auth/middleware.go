package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-ticket-service/internal/domain"
	apperrors "github.com/spec-kit/support-ticket-service/pkg/util/errorutil"
)

const requesterKey = "auth_requester"

// AuthMiddleware validates bearer tokens and stores the requester on the request.
type AuthMiddleware struct {
	tokens *TokenManager
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(strings.TrimSpace(parts[1]))
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	c.Locals(requesterKey, domain.Requester{ID: claims.Subject, Role: claims.Role})
	return c.Next()
}

// RequesterFromContext retrieves the authenticated caller.
func RequesterFromContext(c *fiber.Ctx) (domain.Requester, bool) {
	requester, ok := c.Locals(requesterKey).(domain.Requester)
	return requester, ok
}
