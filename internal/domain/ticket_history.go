package domain

import "time"

// StatusChangeReason captures why a ticket changed status.
type StatusChangeReason string

const (
	ReasonCreated      StatusChangeReason = "created"
	ReasonExplicit     StatusChangeReason = "explicit"
	ReasonReopened     StatusChangeReason = "reopened"
	ReasonAutoAdvanced StatusChangeReason = "auto_advanced"
)

// StatusChange is an immutable audit trail entry for a ticket's status. Revision is the ticket
// version committed with the change and orders the trail.
type StatusChange struct {
	ID        string
	TicketID  string
	Revision  int64
	From      TicketStatus
	To        TicketStatus
	Reason    StatusChangeReason
	ActorID   string
	ActorRole Role
	CreatedAt time.Time
}
