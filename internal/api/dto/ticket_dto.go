package dto

import (
	"time"

	"github.com/spec-kit/support-ticket-service/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Subject  string                `json:"subject" validate:"required,max=200"`
	Message  string                `json:"message" validate:"required,max=10000"`
	Priority domain.TicketPriority `json:"priority" validate:"required,oneof=low medium high"`
}

// AppendMessageRequest payload.
type AppendMessageRequest struct {
	Text string `json:"text" validate:"required,max=10000"`
}

// TransitionStatusRequest payload.
type TransitionStatusRequest struct {
	Status domain.TicketStatus `json:"status" validate:"required,oneof=open in-progress resolved closed"`
}

// TicketResponse is the full ticket including its thread.
type TicketResponse struct {
	ID        string                `json:"id"`
	OwnerID   string                `json:"owner_id"`
	Subject   string                `json:"subject"`
	Priority  domain.TicketPriority `json:"priority"`
	Status    domain.TicketStatus   `json:"status"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
	Messages  []MessageResponse     `json:"messages"`
}

// MessageResponse represents one thread entry.
type MessageResponse struct {
	Sequence int                  `json:"sequence"`
	Sender   domain.MessageSender `json:"sender"`
	Text     string               `json:"text"`
	Time     time.Time            `json:"time"`
}

// StatusChangeResponse is one status audit entry.
type StatusChangeResponse struct {
	ID        string                    `json:"id"`
	Revision  int64                     `json:"revision"`
	From      domain.TicketStatus       `json:"from,omitempty"`
	To        domain.TicketStatus       `json:"to"`
	Reason    domain.StatusChangeReason `json:"reason"`
	ActorID   string                    `json:"actor_id"`
	ActorRole domain.Role               `json:"actor_role"`
	CreatedAt time.Time                 `json:"created_at"`
}

// NewTicketResponse maps a domain ticket.
func NewTicketResponse(ticket *domain.Ticket) TicketResponse {
	msgs := make([]MessageResponse, 0, len(ticket.Messages))
	for _, msg := range ticket.Messages {
		msgs = append(msgs, MessageResponse{
			Sequence: msg.Sequence,
			Sender:   msg.Sender,
			Text:     msg.Text,
			Time:     msg.Time,
		})
	}
	return TicketResponse{
		ID:        ticket.ID,
		OwnerID:   ticket.OwnerID,
		Subject:   ticket.Subject,
		Priority:  ticket.Priority,
		Status:    ticket.Status,
		CreatedAt: ticket.CreatedAt,
		UpdatedAt: ticket.UpdatedAt,
		Messages:  msgs,
	}
}

// NewTicketListResponse maps a ticket list, keeping order.
func NewTicketListResponse(tickets []domain.Ticket) []TicketResponse {
	items := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, NewTicketResponse(&tickets[i]))
	}
	return items
}

// NewStatusHistoryResponse maps audit entries.
func NewStatusHistoryResponse(entries []domain.StatusChange) []StatusChangeResponse {
	resp := make([]StatusChangeResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, StatusChangeResponse{
			ID:        entry.ID,
			Revision:  entry.Revision,
			From:      entry.From,
			To:        entry.To,
			Reason:    entry.Reason,
			ActorID:   entry.ActorID,
			ActorRole: entry.ActorRole,
			CreatedAt: entry.CreatedAt,
		})
	}
	return resp
}
