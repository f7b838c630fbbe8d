package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in-progress"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

// Valid reports whether s is one of the four lifecycle states.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// TicketPriority enumerates urgency levels chosen by the owner.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
)

// Valid reports whether p is an accepted priority.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh:
		return true
	}
	return false
}

// Ticket is the aggregate for support requests. Messages are kept in sequence order.
type Ticket struct {
	ID        string
	OwnerID   string
	Subject   string
	Priority  TicketPriority
	Status    TicketStatus
	CreatedAt time.Time
	UpdatedAt time.Time
	Messages  []Message
	// Version counts committed writes, starting at 1 on create. Repositories own it.
	Version int64
}

// NextSequence returns the sequence number the next appended message must carry.
func (t *Ticket) NextSequence() int {
	return len(t.Messages) + 1
}

// Clone returns a deep copy so callers can mutate without aliasing stored state.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	cp := *t
	cp.Messages = append([]Message(nil), t.Messages...)
	return &cp
}
