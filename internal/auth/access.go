package auth

import "github.com/spec-kit/support-ticket-service/internal/domain"

// CanRead reports whether requester may see ticket: staff, or the ticket's owner.
func CanRead(requester domain.Requester, ticket *domain.Ticket) bool {
	if requester.IsStaff() {
		return true
	}
	return ticket != nil && requester.ID != "" && requester.ID == ticket.OwnerID
}

// CanWrite reports whether requester may append to ticket. Same rule as CanRead.
func CanWrite(requester domain.Requester, ticket *domain.Ticket) bool {
	return CanRead(requester, ticket)
}

// CanTransition reports whether requester may drive explicit status changes or see every ticket.
func CanTransition(requester domain.Requester) bool {
	return requester.IsStaff()
}
