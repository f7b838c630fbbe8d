package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-ticket-service/internal/api/dto"
	"github.com/spec-kit/support-ticket-service/internal/domain"
	"github.com/spec-kit/support-ticket-service/internal/service"
)

// StaffTicketsHandler serves the support team working the shared queue.
type StaffTicketsHandler struct {
	tickets TicketOperations
}

// NewStaffTicketsHandler constructs handler.
func NewStaffTicketsHandler(tickets TicketOperations) *StaffTicketsHandler {
	return &StaffTicketsHandler{tickets: tickets}
}

// ListTickets GET /staff/tickets?status=.
func (h *StaffTicketsHandler) ListTickets(c *fiber.Ctx) error {
	staff, err := requester(c)
	if err != nil {
		return err
	}
	var filter service.TicketListFilter
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status := domain.TicketStatus(raw)
		filter.Status = &status
	}
	tickets, err := h.tickets.ListAllTickets(c.UserContext(), staff, filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketListResponse(tickets)})
}

// GetTicket GET /staff/tickets/:id.
func (h *StaffTicketsHandler) GetTicket(c *fiber.Ctx) error {
	staff, err := requester(c)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.GetTicket(c.UserContext(), staff, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// AppendMessage POST /staff/tickets/:id/messages.
func (h *StaffTicketsHandler) AppendMessage(c *fiber.Ctx) error {
	staff, err := requester(c)
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
	ticket, err := h.tickets.AppendMessage(c.UserContext(), staff, c.Params("id"), req.Text, service.AppendOptions{
		IdempotencyKey: c.Get(IdempotencyKeyHeader),
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// TransitionStatus POST /staff/tickets/:id/status.
func (h *StaffTicketsHandler) TransitionStatus(c *fiber.Ctx) error {
	staff, err := requester(c)
	if err != nil {
		return err
	}
	var req dto.TransitionStatusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := dto.Validate(req); err != nil {
		return err
	}
	ticket, err := h.tickets.TransitionStatus(c.UserContext(), staff, c.Params("id"), req.Status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// ListHistory GET /staff/tickets/:id/history.
func (h *StaffTicketsHandler) ListHistory(c *fiber.Ctx) error {
	staff, err := requester(c)
	if err != nil {
		return err
	}
	entries, err := h.tickets.ListStatusHistory(c.UserContext(), staff, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewStatusHistoryResponse(entries)})
}
