package service

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-ticket-service/internal/config"
	"github.com/spec-kit/support-ticket-service/internal/domain"
	"github.com/spec-kit/support-ticket-service/internal/events"
)

func TestNotificationRouting(t *testing.T) {
	n := NewNotificationService(nil, config.NotificationConfig{})

	ownerReply := events.Event{
		Type:     events.EventTicketMessageAppended,
		TicketID: "t-1",
		OwnerID:  "U1",
		Actor:    events.Actor{ID: "U1", Role: domain.RoleBuyer},
		Payload:  events.TicketMessageAppendedPayload{Sequence: 3, Sender: domain.SenderOwner, BodyPreview: "one more question"},
	}
	note, ok := n.Build(ownerReply)
	require.True(t, ok)
	assert.Equal(t, AudienceStaffQueue, note.Recipient)
	assert.Equal(t, "new reply #3: one more question", note.Summary)

	resolved := events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: "t-1",
		OwnerID:  "U1",
		Actor:    events.Actor{ID: "S1", Role: domain.RoleStaff},
		Payload: events.TicketStatusChangedPayload{
			OldStatus: domain.TicketStatusInProgress,
			NewStatus: domain.TicketStatusResolved,
			Reason:    domain.ReasonExplicit,
		},
	}
	note, ok = n.Build(resolved)
	require.True(t, ok)
	assert.Equal(t, "U1", note.Recipient)
	assert.Equal(t, "status changed from in-progress to resolved", note.Summary)

	resolved.Payload = events.TicketStatusChangedPayload{
		OldStatus: domain.TicketStatusOpen,
		NewStatus: domain.TicketStatusInProgress,
		Reason:    domain.ReasonAutoAdvanced,
	}
	_, ok = n.Build(resolved)
	assert.False(t, ok)

	_, ok = n.Build(events.Event{Type: "unknown"})
	assert.False(t, ok)
}

func TestNotificationWebhookDelivery(t *testing.T) {
	received := make(chan Notification, 1)
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Post("/hook", func(c *fiber.Ctx) error {
		var note Notification
		if err := json.Unmarshal(c.Body(), &note); err != nil {
			return fiber.ErrBadRequest
		}
		received <- note
		return c.SendStatus(fiber.StatusNoContent)
	})
	app.Post("/broken", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusBadGateway)
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })

	base := "http://" + ln.Addr().String()
	event := events.Event{
		ID:        "e-1",
		Type:      events.EventTicketCreated,
		TicketID:  "t-9",
		OwnerID:   "U1",
		Actor:     events.Actor{ID: "U1", Role: domain.RoleSupplier},
		Timestamp: time.Now().UTC(),
		Payload:   events.TicketCreatedPayload{Subject: "Price update request", Priority: domain.TicketPriorityMedium},
	}

	n := NewNotificationService(nil, config.NotificationConfig{WebhookURL: base + "/hook", WebhookTimeoutSeconds: 2})
	require.NoError(t, n.Deliver(context.Background(), event))

	select {
	case note := <-received:
		assert.Equal(t, "t-9", note.TicketID)
		assert.Equal(t, AudienceStaffQueue, note.Recipient)
		assert.Equal(t, "new medium priority ticket: Price update request", note.Summary)
	case <-time.After(2 * time.Second):
		t.Fatal("webhook not called")
	}

	failing := NewNotificationService(nil, config.NotificationConfig{WebhookURL: base + "/broken", WebhookTimeoutSeconds: 2})
	assert.ErrorContains(t, failing.Deliver(context.Background(), event), "unexpected status 502")
}

func TestNotificationWithoutWebhookIsNoop(t *testing.T) {
	n := NewNotificationService(nil, config.NotificationConfig{EmailFrom: "noreply@example.com"})
	err := n.Deliver(context.Background(), events.Event{
		Type:    events.EventTicketCreated,
		Actor:   events.Actor{ID: "U1", Role: domain.RoleBuyer},
		Payload: events.TicketCreatedPayload{Subject: "s", Priority: domain.TicketPriorityLow},
	})
	assert.NoError(t, err)
}
