package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-ticket-service/internal/domain"
)

func TestStatusHistoryRepository(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend) {
		ctx := context.Background()
		ticket := newTestTicket(uuid.NewString(), time.Now())
		_, err := b.tickets.Create(ctx, ticket)
		require.NoError(t, err)

		// all in the same millisecond, written out of revision order
		at := time.Now().UTC().Truncate(time.Millisecond)
		entries := []domain.StatusChange{
			{Revision: 1, From: "", To: domain.TicketStatusOpen, Reason: domain.ReasonCreated, ActorID: ticket.OwnerID, ActorRole: domain.RoleBuyer},
			{Revision: 2, From: domain.TicketStatusOpen, To: domain.TicketStatusInProgress, Reason: domain.ReasonAutoAdvanced, ActorID: "S1", ActorRole: domain.RoleStaff},
			{Revision: 4, From: domain.TicketStatusInProgress, To: domain.TicketStatusResolved, Reason: domain.ReasonExplicit, ActorID: "S1", ActorRole: domain.RoleStaff},
		}
		for _, i := range []int{2, 0, 1} {
			entries[i].ID = uuid.NewString()
			entries[i].TicketID = ticket.ID
			entries[i].CreatedAt = at
			require.NoError(t, b.history.Create(ctx, &entries[i]))
		}

		got, err := b.history.ListByTicket(ctx, ticket.ID)
		require.NoError(t, err)
		require.Len(t, got, 3)
		for i := range entries {
			assert.Equal(t, entries[i].Revision, got[i].Revision)
			assert.Equal(t, entries[i].To, got[i].To)
			assert.Equal(t, entries[i].Reason, got[i].Reason)
			assert.Equal(t, entries[i].ActorRole, got[i].ActorRole)
			assert.True(t, entries[i].CreatedAt.Equal(got[i].CreatedAt))
		}

		empty, err := b.history.ListByTicket(ctx, uuid.NewString())
		require.NoError(t, err)
		assert.Empty(t, empty)
	})
}
