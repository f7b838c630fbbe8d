package events

import (
	"time"

	"github.com/spec-kit/support-ticket-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated         EventType = "ticket_created"
	EventTicketMessageAppended EventType = "ticket_message_appended"
	EventTicketStatusChanged   EventType = "ticket_status_changed"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	ID   string      `json:"id"`
	Role domain.Role `json:"role"`
}

// Event represents a domain event emitted after a ticket write commits.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	OwnerID   string      `json:"owner_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Subject  string                `json:"subject"`
	Priority domain.TicketPriority `json:"priority"`
}

// TicketMessageAppendedPayload payload.
type TicketMessageAppendedPayload struct {
	Sequence    int                  `json:"sequence"`
	Sender      domain.MessageSender `json:"sender"`
	BodyPreview string               `json:"body_preview"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus       `json:"old_status"`
	NewStatus domain.TicketStatus       `json:"new_status"`
	Reason    domain.StatusChangeReason `json:"reason"`
}
