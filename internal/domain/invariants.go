package domain

import (
	"errors"
	"fmt"
)

// ErrInvariantViolation is returned when a mutation would break the ticket aggregate's rules.
var ErrInvariantViolation = errors.New("ticket invariant violation")

// CheckMutation verifies that after is a legal successor of before: identity fields are
// untouched, the thread only grew, and sequences stay gapless from 1.
func CheckMutation(before, after *Ticket) error {
	if after.ID != before.ID || after.OwnerID != before.OwnerID {
		return fmt.Errorf("%w: identity changed", ErrInvariantViolation)
	}
	if after.Subject != before.Subject || after.Priority != before.Priority || !after.CreatedAt.Equal(before.CreatedAt) {
		return fmt.Errorf("%w: immutable field changed", ErrInvariantViolation)
	}
	if len(after.Messages) < len(before.Messages) {
		return fmt.Errorf("%w: messages removed", ErrInvariantViolation)
	}
	for i := range before.Messages {
		if !sameMessage(after.Messages[i], before.Messages[i]) {
			return fmt.Errorf("%w: message %d rewritten", ErrInvariantViolation, i+1)
		}
	}
	return CheckTicket(after)
}

// CheckTicket verifies the standalone invariants of a ticket.
func CheckTicket(t *Ticket) error {
	if !t.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvariantViolation, t.Status)
	}
	if !t.Priority.Valid() {
		return fmt.Errorf("%w: unknown priority %q", ErrInvariantViolation, t.Priority)
	}
	if len(t.Messages) == 0 {
		return fmt.Errorf("%w: empty thread", ErrInvariantViolation)
	}
	for i, msg := range t.Messages {
		if msg.Sequence != i+1 {
			return fmt.Errorf("%w: message at %d has sequence %d", ErrInvariantViolation, i, msg.Sequence)
		}
	}
	return nil
}

func sameMessage(a, b Message) bool {
	return a.Sequence == b.Sequence && a.Sender == b.Sender && a.Text == b.Text && a.Time.Equal(b.Time)
}
