package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-ticket-service/internal/auth"
	"github.com/spec-kit/support-ticket-service/internal/domain"
	"github.com/spec-kit/support-ticket-service/internal/service"
	apperrors "github.com/spec-kit/support-ticket-service/pkg/util/errorutil"
)

// IdempotencyKeyHeader lets clients retry a message post without duplicating it.
const IdempotencyKeyHeader = "Idempotency-Key"

// TicketOperations is the ticket workflow surface shared by the owner and staff handlers. Each
// handler exposes only the subset its audience may call.
type TicketOperations interface {
	CreateTicket(ctx context.Context, requester domain.Requester, input service.CreateTicketInput) (*domain.Ticket, error)
	ListTicketsForOwner(ctx context.Context, requester domain.Requester) ([]domain.Ticket, error)
	ListAllTickets(ctx context.Context, requester domain.Requester, filter service.TicketListFilter) ([]domain.Ticket, error)
	GetTicket(ctx context.Context, requester domain.Requester, ticketID string) (*domain.Ticket, error)
	AppendMessage(ctx context.Context, requester domain.Requester, ticketID, text string, opts service.AppendOptions) (*domain.Ticket, error)
	TransitionStatus(ctx context.Context, requester domain.Requester, ticketID string, status domain.TicketStatus) (*domain.Ticket, error)
	ListStatusHistory(ctx context.Context, requester domain.Requester, ticketID string) ([]domain.StatusChange, error)
}

var _ TicketOperations = (*service.TicketService)(nil)

func requester(c *fiber.Ctx) (domain.Requester, error) {
	r, ok := auth.RequesterFromContext(c)
	if !ok {
		return domain.Requester{}, apperrors.NewUnauthorized("authentication required")
	}
	return r, nil
}

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return apperrors.NewValidationError("invalid payload", map[string]any{"reason": err.Error()})
	}
	return nil
}
