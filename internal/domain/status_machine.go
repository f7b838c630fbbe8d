package domain

// allowedTransitions lists the explicit, staff-initiated edges. Closed has none; it can only be
// left through the reopen rule.
var allowedTransitions = map[TicketStatus][]TicketStatus{
	TicketStatusOpen:       {TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed},
	TicketStatusInProgress: {TicketStatusResolved, TicketStatusClosed},
	TicketStatusResolved:   {TicketStatusClosed},
	TicketStatusClosed:     {},
}

// CanTransition reports whether an explicit transition from current to next is permitted.
func CanTransition(current, next TicketStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// AllowedTransitions returns the explicit targets reachable from current.
func AllowedTransitions(current TicketStatus) []TicketStatus {
	return append([]TicketStatus(nil), allowedTransitions[current]...)
}

// StatusAfterAppend applies the implicit rules triggered by posting a message: an owner reply
// reopens a resolved or closed ticket, and a staff reply on an open ticket marks work as started.
// The returned reason is empty when the status does not change.
func StatusAfterAppend(current TicketStatus, sender MessageSender) (TicketStatus, StatusChangeReason) {
	switch sender {
	case SenderOwner:
		if current == TicketStatusResolved || current == TicketStatusClosed {
			return TicketStatusOpen, ReasonReopened
		}
	case SenderStaff:
		if current == TicketStatusOpen {
			return TicketStatusInProgress, ReasonAutoAdvanced
		}
	}
	return current, ""
}
