package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-ticket-service/internal/api/dto"
	"github.com/spec-kit/support-ticket-service/internal/service"
)

// OwnerTicketsHandler serves buyers and suppliers working on their own tickets.
type OwnerTicketsHandler struct {
	tickets TicketOperations
}

// NewOwnerTicketsHandler constructs handler.
func NewOwnerTicketsHandler(tickets TicketOperations) *OwnerTicketsHandler {
	return &OwnerTicketsHandler{tickets: tickets}
}

// CreateTicket POST /tickets.
func (h *OwnerTicketsHandler) CreateTicket(c *fiber.Ctx) error {
	owner, err := requester(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := dto.Validate(req); err != nil {
		return err
	}
	ticket, err := h.tickets.CreateTicket(c.UserContext(), owner, service.CreateTicketInput{
		Subject:  req.Subject,
		Message:  req.Message,
		Priority: req.Priority,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// ListTickets GET /tickets.
func (h *OwnerTicketsHandler) ListTickets(c *fiber.Ctx) error {
	owner, err := requester(c)
	if err != nil {
		return err
	}
	tickets, err := h.tickets.ListTicketsForOwner(c.UserContext(), owner)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketListResponse(tickets)})
}

// GetTicket GET /tickets/:id.
func (h *OwnerTicketsHandler) GetTicket(c *fiber.Ctx) error {
	owner, err := requester(c)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.GetTicket(c.UserContext(), owner, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// AppendMessage POST /tickets/:id/messages.
func (h *OwnerTicketsHandler) AppendMessage(c *fiber.Ctx) error {
	owner, err := requester(c)
	if err != nil {
		return err
	}
	var req dto.AppendMessageRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := dto.Validate(req); err != nil {
		return err
	}
	ticket, err := h.tickets.AppendMessage(c.UserContext(), owner, c.Params("id"), req.Text, service.AppendOptions{
		IdempotencyKey: c.Get(IdempotencyKeyHeader),
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// ListHistory GET /tickets/:id/history.
func (h *OwnerTicketsHandler) ListHistory(c *fiber.Ctx) error {
	owner, err := requester(c)
	if err != nil {
		return err
	}
	entries, err := h.tickets.ListStatusHistory(c.UserContext(), owner, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewStatusHistoryResponse(entries)})
}
